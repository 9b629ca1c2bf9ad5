package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/voxcard/ajo-engine/internal/model"
	"github.com/voxcard/ajo-engine/internal/storage"
)

// payoutOrder is the deterministic rotation: trust score descending,
// ties broken by admission order. Reproducible from stored state plus
// the trust provider alone.
func payoutOrder(participants []string, scores map[string]int) []string {
	order := append([]string(nil), participants...)
	index := make(map[string]int, len(participants))
	for i, address := range participants {
		index[address] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		si, sj := scores[order[i]], scores[order[j]]
		if si != sj {
			return si > sj
		}
		return index[order[i]] < index[order[j]]
	})
	return order
}

// closeRound emits the payout for the plan's current round and advances
// the rotation. Runs inside the plan's atomicity boundary so the payout
// index advances exactly once per round. The payout amount is the
// nominal pool (contribution x participants); excess partial payments
// stay behind as plan float.
func (s *LedgerService) closeRound(ctx context.Context, plan *model.Plan, tx storage.PlanTx) (*model.Payout, error) {
	scores := make(map[string]int, len(plan.Participants))
	for _, address := range plan.Participants {
		score, err := s.trust.TrustScore(ctx, address)
		if err != nil {
			return nil, err
		}
		scores[address] = score
	}
	order := payoutOrder(plan.Participants, scores)
	recipient := order[plan.PayoutIndex%len(order)]

	payout := &model.Payout{
		ID:            uuid.New(),
		PlanID:        plan.ID,
		Recipient:     recipient,
		RoundNumber:   plan.CurrentRound,
		Amount:        plan.RoundPool(),
		ScheduledDate: time.Now().UTC(),
		Status:        model.PayoutStatusScheduled,
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.CreatePayout(payout); err != nil {
		return nil, err
	}

	plan.PayoutIndex++
	plan.CurrentRound++
	if plan.CurrentRound >= plan.TotalRounds() {
		plan.Status = model.PlanStatusCompleted
	}
	return payout, nil
}
