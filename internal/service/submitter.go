package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxcard/ajo-engine/internal/contract"
	"github.com/voxcard/ajo-engine/internal/model"
)

// ChainSubmitter wraps the reconciler around external-ledger
// submissions: a pending record is persisted before the broadcast and
// settled exactly once afterwards, so no submission can leak an
// untracked or permanently-pending record.
type ChainSubmitter struct {
	reconciler   *Reconciler
	broadcaster  contract.Broadcaster
	treasury     *TreasuryService
	contractAddr string
	log          zerolog.Logger
}

func NewChainSubmitter(reconciler *Reconciler, broadcaster contract.Broadcaster, treasury *TreasuryService, contractAddr string, log zerolog.Logger) *ChainSubmitter {
	return &ChainSubmitter{
		reconciler:   reconciler,
		broadcaster:  broadcaster,
		treasury:     treasury,
		contractAddr: contractAddr,
		log:          log,
	}
}

type SubmitInput struct {
	Kind        model.TransactionKind
	Subject     string
	Amount      int64
	Description string
	PlanID      *uuid.UUID
	RoundNumber *int
	// SignedTx is the wallet-signed transaction; the engine never holds
	// keys, it only relays.
	SignedTx []byte
	// Gasless requests treasury sponsorship; the submission is refused
	// when the treasury declines, before anything reaches the chain.
	Gasless bool
}

// Submit broadcasts a signed transaction with full reconciler
// bookkeeping. The returned record is terminal: confirmed with the tx
// hash, or failed. A failed broadcast never rolls back local state.
func (s *ChainSubmitter) Submit(ctx context.Context, input SubmitInput) (*model.TransactionRecord, error) {
	record, err := s.reconciler.BeginOperation(ctx, BeginOperationInput{
		Kind:        input.Kind,
		Subject:     input.Subject,
		Amount:      input.Amount,
		Description: input.Description,
		PlanID:      input.PlanID,
		RoundNumber: input.RoundNumber,
	})
	if err != nil {
		return nil, err
	}

	if input.Gasless {
		estimated := s.treasury.EstimateGas(input.SignedTx)
		eligible, err := s.treasury.IsEligible(ctx, s.contractAddr, estimated)
		if err != nil {
			s.settleFailed(ctx, record, err.Error())
			return record, fmt.Errorf("%w: %v", ErrSubsidyUnavailable, err)
		}
		if !eligible {
			s.settleFailed(ctx, record, "gas subsidy declined")
			return record, ErrSubsidyUnavailable
		}
	}

	txHash, err := s.broadcaster.Broadcast(ctx, input.SignedTx)
	if err != nil {
		// Cancellation still settles the record; a pending row must
		// never leak from an abandoned submission.
		reason := err.Error()
		if ctxErr := ctx.Err(); ctxErr != nil {
			reason = ctxErr.Error()
		}
		s.settleFailed(ctx, record, reason)
		return record, fmt.Errorf("%w: %v", ErrLedgerFailure, err)
	}

	if err := s.reconciler.SettleConfirmed(ctx, record.ID, txHash); err != nil {
		return record, err
	}
	record.Status = model.TransactionStatusConfirmed
	record.ExternalRef = txHash
	return record, nil
}

func (s *ChainSubmitter) settleFailed(ctx context.Context, record *model.TransactionRecord, reason string) {
	// Settlement is local bookkeeping; detach from the caller's
	// cancellation so the record still lands.
	if err := s.reconciler.SettleFailed(context.WithoutCancel(ctx), record.ID, reason); err != nil && !errors.Is(err, ErrAlreadySettled) {
		s.log.Error().Err(err).Str("tx_id", record.ID.String()).Msg("failed to settle record")
	}
	record.Status = model.TransactionStatusFailed
	record.FailureReason = reason
}
