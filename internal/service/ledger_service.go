package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxcard/ajo-engine/internal/model"
	"github.com/voxcard/ajo-engine/internal/storage"
)

// LedgerService owns contribution records and round advancement, and
// runs the payout scheduler when a round closes.
type LedgerService struct {
	store storage.Store
	trust TrustScoreProvider
	log   zerolog.Logger
}

func NewLedgerService(store storage.Store, trust TrustScoreProvider, log zerolog.Logger) *LedgerService {
	return &LedgerService{store: store, trust: trust, log: log}
}

// RecordContribution accumulates a payment toward the plan's current
// round. When the payment completes the round, the emitted payout is
// returned alongside the contribution.
func (s *LedgerService) RecordContribution(ctx context.Context, planID uuid.UUID, principal model.Principal, roundNumber int, amount int64) (*model.Contribution, *model.Payout, error) {
	var (
		recorded *model.Contribution
		payout   *model.Payout
	)
	err := s.store.UpdatePlan(ctx, planID, func(plan *model.Plan, tx storage.PlanTx) error {
		if !plan.IsParticipant(principal.Address) {
			return fmt.Errorf("%w: not a participant of this plan", ErrPermissionDenied)
		}
		if plan.Status != model.PlanStatusActive {
			return fmt.Errorf("%w: plan is not accepting contributions", ErrInvalidState)
		}
		if roundNumber != plan.CurrentRound {
			return fmt.Errorf("%w: contributions must target the current round %d", ErrInvalidState, plan.CurrentRound)
		}
		if amount <= 0 {
			return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
		}
		if !plan.AllowPartial && amount < plan.ContributionAmount {
			return fmt.Errorf("%w: plan requires the full %d per round", ErrInsufficientAmount, plan.ContributionAmount)
		}

		contribution := &model.Contribution{
			ID:          uuid.New(),
			PlanID:      planID,
			Participant: principal.Address,
			RoundNumber: roundNumber,
			Amount:      amount,
			Partial:     amount < plan.ContributionAmount,
			CreatedAt:   time.Now().UTC(),
		}
		if err := tx.AddContribution(contribution); err != nil {
			return err
		}
		recorded = contribution

		totals, err := tx.RoundTotals(plan.CurrentRound)
		if err != nil {
			return err
		}
		if !roundComplete(plan, totals) {
			return nil
		}

		payout, err = s.closeRound(ctx, plan, tx)
		return err
	})
	if err != nil {
		return nil, nil, mapStorageErr(err)
	}

	event := s.log.Info().
		Str("plan_id", planID.String()).
		Str("participant", principal.Address).
		Int("round", roundNumber).
		Int64("amount", amount)
	if payout != nil {
		event = event.Str("payout_recipient", payout.Recipient).Int64("payout_amount", payout.Amount)
	}
	event.Msg("contribution recorded")
	return recorded, payout, nil
}

// roundComplete reports whether every participant has reached the exact
// per-round requirement. Partial payments may straddle calls; the round
// stays open until the full amount per participant is in.
func roundComplete(plan *model.Plan, totals map[string]int64) bool {
	for _, participant := range plan.Participants {
		if totals[participant] < plan.ContributionAmount {
			return false
		}
	}
	return true
}

// RoundStatus is a read-only projection of per-participant paid amounts
// for one round. Participants with no contributions appear with zero.
func (s *LedgerService) RoundStatus(ctx context.Context, planID uuid.UUID, roundNumber int) (map[string]int64, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	totals, err := s.store.RoundTotals(ctx, planID, roundNumber)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	status := make(map[string]int64, len(plan.Participants))
	for _, participant := range plan.Participants {
		status[participant] = totals[participant]
	}
	return status, nil
}

// CycleStatus mirrors the contract's GetParticipantCycleStatus query.
func (s *LedgerService) CycleStatus(ctx context.Context, planID uuid.UUID, participant string) (*model.ParticipantCycleStatus, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	if !plan.IsParticipant(participant) {
		return nil, fmt.Errorf("%w: not a participant of this plan", ErrNotFound)
	}

	totals, err := s.store.RoundTotals(ctx, planID, plan.CurrentRound)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	payouts, err := s.store.ListPayouts(ctx, planID)
	if err != nil {
		return nil, mapStorageErr(err)
	}

	received := false
	for _, payout := range payouts {
		if payout.Recipient == participant {
			received = true
			break
		}
	}

	return &model.ParticipantCycleStatus{
		Participant:    participant,
		RoundNumber:    plan.CurrentRound,
		Contributed:    totals[participant],
		Required:       plan.ContributionAmount,
		ReceivedPayout: received,
	}, nil
}

// Payouts lists the payouts a plan has emitted, oldest round first.
func (s *LedgerService) Payouts(ctx context.Context, planID uuid.UUID) ([]model.Payout, error) {
	payouts, err := s.store.ListPayouts(ctx, planID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return payouts, nil
}

// SettlePayout records the outcome of a payout disbursement. Only
// scheduled payouts settle; the terminal status is written once.
func (s *LedgerService) SettlePayout(ctx context.Context, planID, payoutID uuid.UUID, completed bool) (*model.Payout, error) {
	payouts, err := s.store.ListPayouts(ctx, planID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	var payout *model.Payout
	for i := range payouts {
		if payouts[i].ID == payoutID {
			payout = &payouts[i]
			break
		}
	}
	if payout == nil {
		return nil, ErrNotFound
	}
	if payout.Status != model.PayoutStatusScheduled {
		return nil, ErrAlreadySettled
	}

	status := model.PayoutStatusCompleted
	if !completed {
		status = model.PayoutStatusFailed
	}
	if err := s.store.UpdatePayoutStatus(ctx, payoutID, status); err != nil {
		return nil, mapStorageErr(err)
	}
	payout.Status = status
	s.log.Info().Str("payout_id", payoutID.String()).Str("status", string(status)).Msg("payout settled")
	return payout, nil
}

// Statement assembles the exportable contribution history of a plan.
func (s *LedgerService) Statement(ctx context.Context, planID uuid.UUID) (*model.PlanStatement, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	contributions, err := s.store.ListContributions(ctx, planID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	payouts, err := s.store.ListPayouts(ctx, planID)
	if err != nil {
		return nil, mapStorageErr(err)
	}

	payoutByRound := make(map[int]*model.Payout, len(payouts))
	for i := range payouts {
		payoutByRound[payouts[i].RoundNumber] = &payouts[i]
	}

	lastRound := plan.CurrentRound
	if lastRound >= plan.TotalRounds() {
		lastRound = plan.TotalRounds() - 1
	}

	// Float counts only closed rounds: what was collected beyond the
	// nominal pool that was paid out.
	var (
		rounds []model.StatementRound
		float  int64
	)
	for round := 0; round <= lastRound; round++ {
		paid := make(map[string]int64, len(plan.Participants))
		for _, participant := range plan.Participants {
			paid[participant] = 0
		}
		var roundCollected int64
		for _, c := range contributions {
			if c.RoundNumber == round {
				paid[c.Participant] += c.Amount
				roundCollected += c.Amount
			}
		}
		payout := payoutByRound[round]
		if payout != nil {
			float += roundCollected - payout.Amount
		}
		rounds = append(rounds, model.StatementRound{
			RoundNumber: round,
			Paid:        paid,
			Payout:      payout,
		})
	}

	return &model.PlanStatement{
		Plan:        *plan,
		GeneratedAt: time.Now().UTC(),
		Rounds:      rounds,
		Float:       float,
	}, nil
}
