package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxcard/ajo-engine/internal/model"
	"github.com/voxcard/ajo-engine/internal/storage"
)

const expiryReason = "timed out"

// Reconciler tracks the locally observed status of every operation
// submitted to the external ledger. It is pure bookkeeping: it never
// submits anything itself, and it never rolls back local workflow state
// when a submission fails.
type Reconciler struct {
	store storage.Store
	log   zerolog.Logger
}

func NewReconciler(store storage.Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

type BeginOperationInput struct {
	Kind        model.TransactionKind
	Subject     string
	Amount      int64
	Description string
	PlanID      *uuid.UUID
	RoundNumber *int
}

// BeginOperation persists a pending record before any external
// submission is attempted. It records local intent only and must not
// depend on external-system availability.
func (r *Reconciler) BeginOperation(ctx context.Context, input BeginOperationInput) (*model.TransactionRecord, error) {
	record := &model.TransactionRecord{
		ID:          uuid.New(),
		Subject:     input.Subject,
		Amount:      input.Amount,
		Description: input.Description,
		Kind:        input.Kind,
		PlanID:      input.PlanID,
		RoundNumber: input.RoundNumber,
		Status:      model.TransactionStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.store.CreateTransaction(ctx, record); err != nil {
		return nil, err
	}
	r.log.Debug().Str("tx_id", record.ID.String()).Str("kind", string(record.Kind)).Msg("operation begun")
	return record, nil
}

// SettleConfirmed moves a pending record to confirmed with the chain tx
// hash. Terminal records are immutable; double settles fail.
func (r *Reconciler) SettleConfirmed(ctx context.Context, id uuid.UUID, externalRef string) error {
	err := r.store.SettleTransaction(ctx, id, model.TransactionStatusConfirmed, externalRef, "", time.Now().UTC())
	if err != nil {
		return mapStorageErr(err)
	}
	r.log.Info().Str("tx_id", id.String()).Str("external_ref", externalRef).Msg("operation confirmed")
	return nil
}

// SettleFailed moves a pending record to failed. reason is surfaced to
// the caller as the bookkeeping signal to retry the external leg.
func (r *Reconciler) SettleFailed(ctx context.Context, id uuid.UUID, reason string) error {
	err := r.store.SettleTransaction(ctx, id, model.TransactionStatusFailed, "", reason, time.Now().UTC())
	if err != nil {
		return mapStorageErr(err)
	}
	r.log.Warn().Str("tx_id", id.String()).Str("reason", reason).Msg("operation failed")
	return nil
}

func (r *Reconciler) Get(ctx context.Context, id uuid.UUID) (*model.TransactionRecord, error) {
	record, err := r.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return record, nil
}

// HistoryBySubject returns a wallet's records, newest first.
func (r *Reconciler) HistoryBySubject(ctx context.Context, subject string) ([]model.TransactionRecord, error) {
	return r.store.HistoryBySubject(ctx, subject)
}

// HistoryByPlan returns a plan's records, newest first.
func (r *Reconciler) HistoryByPlan(ctx context.Context, planID uuid.UUID) ([]model.TransactionRecord, error) {
	return r.store.HistoryByPlan(ctx, planID)
}

// ExpirePending fails pending records older than maxAge. This is an
// extension over the reference behavior, which lets records stay
// pending forever; it is a no-op when maxAge is zero. Returns how many
// records were expired.
func (r *Reconciler) ExpirePending(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	pending, err := r.store.ListPendingTransactionsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, record := range pending {
		err := r.store.SettleTransaction(ctx, record.ID, model.TransactionStatusFailed, "", expiryReason, time.Now().UTC())
		if errors.Is(err, storage.ErrAlreadySettled) {
			// Settled between the list and the sweep; nothing to do.
			continue
		}
		if err != nil {
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		r.log.Warn().Int("count", expired).Dur("max_age", maxAge).Msg("expired pending operations")
	}
	return expired, nil
}
