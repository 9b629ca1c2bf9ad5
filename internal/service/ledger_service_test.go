package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxcard/ajo-engine/internal/model"
	"github.com/voxcard/ajo-engine/internal/storage/memory"
)

func activePlan(t *testing.T, store *memory.Store, participants []string, contribution int64, durationMonths int, allowPartial bool) *model.Plan {
	t.Helper()
	return seedPlan(t, store, &model.Plan{
		Initiator:          participants[0],
		MaxMembers:         len(participants),
		ContributionAmount: contribution,
		DurationMonths:     durationMonths,
		AllowPartial:       allowPartial,
		Status:             model.PlanStatusActive,
		Participants:       participants,
	})
}

func TestRecordContributionValidation(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, StaticTrustScore(50), zerolog.Nop())
	plan := activePlan(t, store, []string{"xion1a", "xion1b", "xion1c"}, 100, 3, false)

	_, _, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1stranger"}, 0, 100)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, _, err = svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 1, 100)
	assert.ErrorIs(t, err, ErrInvalidState) // wrong round

	_, _, err = svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 0, 40)
	assert.ErrorIs(t, err, ErrInsufficientAmount) // partials not allowed

	open := seedPlan(t, store, &model.Plan{
		Initiator:          "xion1a",
		MaxMembers:         2,
		ContributionAmount: 100,
		DurationMonths:     1,
		Participants:       []string{"xion1a"},
	})
	_, _, err = svc.RecordContribution(context.Background(), open.ID, model.Principal{Address: "xion1a"}, 0, 100)
	assert.ErrorIs(t, err, ErrInvalidState) // not active
}

func TestRoundClosesWhenAllContribute(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, StaticTrustScore(50), zerolog.Nop())
	plan := activePlan(t, store, []string{"xion1a", "xion1b", "xion1c"}, 100, 3, false)

	_, payout, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 0, 100)
	require.NoError(t, err)
	assert.Nil(t, payout)

	_, payout, err = svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1b"}, 0, 100)
	require.NoError(t, err)
	assert.Nil(t, payout)

	_, payout, err = svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1c"}, 0, 100)
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, int64(300), payout.Amount)
	assert.Equal(t, 0, payout.RoundNumber)
	// Equal trust scores: admission order decides, first recipient is
	// the first admitted.
	assert.Equal(t, "xion1a", payout.Recipient)

	stored, err := store.GetPlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentRound)
	assert.Equal(t, 1, stored.PayoutIndex)
	assert.Equal(t, model.PlanStatusActive, stored.Status)
}

func TestPartialContributionsAccumulate(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, StaticTrustScore(50), zerolog.Nop())
	plan := activePlan(t, store, []string{"xion1a", "xion1b"}, 100, 2, true)

	contribution, payout, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 0, 40)
	require.NoError(t, err)
	assert.True(t, contribution.Partial)
	assert.Nil(t, payout)

	_, payout, err = svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1b"}, 0, 100)
	require.NoError(t, err)
	assert.Nil(t, payout) // xion1a still 60 short

	contribution, payout, err = svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 0, 60)
	require.NoError(t, err)
	assert.True(t, contribution.Partial)
	require.NotNil(t, payout)
	assert.Equal(t, int64(200), payout.Amount)
}

func TestPlanCompletesAfterFinalRound(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, StaticTrustScore(50), zerolog.Nop())
	plan := activePlan(t, store, []string{"xion1a", "xion1b"}, 50, 1, false)

	_, _, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 0, 50)
	require.NoError(t, err)
	_, payout, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1b"}, 0, 50)
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, int64(100), payout.Amount)

	stored, err := store.GetPlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStatusCompleted, stored.Status)

	// A completed plan takes no further contributions.
	_, _, err = svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 1, 50)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPayoutRotationOverRounds(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, StaticTrustScore(50), zerolog.Nop())
	plan := activePlan(t, store, []string{"xion1a", "xion1b"}, 100, 2, false)

	fundRound := func(round int) *model.Payout {
		t.Helper()
		_, _, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, round, 100)
		require.NoError(t, err)
		_, payout, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1b"}, round, 100)
		require.NoError(t, err)
		require.NotNil(t, payout)
		return payout
	}

	first := fundRound(0)
	second := fundRound(1)
	assert.Equal(t, "xion1a", first.Recipient)
	assert.Equal(t, "xion1b", second.Recipient)

	payouts, err := svc.Payouts(context.Background(), plan.ID)
	require.NoError(t, err)
	require.Len(t, payouts, 2)
	assert.Equal(t, 0, payouts[0].RoundNumber)
	assert.Equal(t, 1, payouts[1].RoundNumber)
}

func TestRoundStatusIncludesZeroes(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, StaticTrustScore(50), zerolog.Nop())
	plan := activePlan(t, store, []string{"xion1a", "xion1b", "xion1c"}, 100, 1, true)

	_, _, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 0, 70)
	require.NoError(t, err)

	status, err := svc.RoundStatus(context.Background(), plan.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"xion1a": 70, "xion1b": 0, "xion1c": 0}, status)
}

func TestCycleStatus(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, StaticTrustScore(50), zerolog.Nop())
	plan := activePlan(t, store, []string{"xion1a", "xion1b"}, 100, 2, true)

	_, _, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 0, 100)
	require.NoError(t, err)
	_, payout, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1b"}, 0, 100)
	require.NoError(t, err)
	require.NotNil(t, payout)

	status, err := svc.CycleStatus(context.Background(), plan.ID, payout.Recipient)
	require.NoError(t, err)
	assert.Equal(t, 1, status.RoundNumber)
	assert.Equal(t, int64(0), status.Contributed)
	assert.Equal(t, int64(100), status.Required)
	assert.True(t, status.ReceivedPayout)

	_, err = svc.CycleStatus(context.Background(), plan.ID, "xion1stranger")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatementFloatCountsOnlyClosedRounds(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, StaticTrustScore(50), zerolog.Nop())
	plan := activePlan(t, store, []string{"xion1a", "xion1b"}, 100, 2, true)

	// Round 0: xion1a overpays by 30, round closes at 230 collected
	// against a 200 payout.
	_, _, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 0, 130)
	require.NoError(t, err)
	_, payout, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1b"}, 0, 100)
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, int64(200), payout.Amount)

	// Round 1 is mid-collection; its contributions must not count.
	_, _, err = svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 1, 100)
	require.NoError(t, err)

	statement, err := svc.Statement(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), statement.Float)
	require.Len(t, statement.Rounds, 2)
	assert.NotNil(t, statement.Rounds[0].Payout)
	assert.Nil(t, statement.Rounds[1].Payout)
	assert.Equal(t, int64(130), statement.Rounds[0].Paid["xion1a"])
	assert.Equal(t, int64(100), statement.Rounds[1].Paid["xion1a"])
	assert.Equal(t, int64(0), statement.Rounds[1].Paid["xion1b"])
}

func TestSettlePayout(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, StaticTrustScore(50), zerolog.Nop())
	plan := activePlan(t, store, []string{"xion1a", "xion1b"}, 100, 1, false)

	_, _, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1a"}, 0, 100)
	require.NoError(t, err)
	_, payout, err := svc.RecordContribution(context.Background(), plan.ID, model.Principal{Address: "xion1b"}, 0, 100)
	require.NoError(t, err)
	require.NotNil(t, payout)

	settled, err := svc.SettlePayout(context.Background(), plan.ID, payout.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutStatusCompleted, settled.Status)

	_, err = svc.SettlePayout(context.Background(), plan.ID, payout.ID, false)
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestPayoutOrderTrustDescAdmissionAsc(t *testing.T) {
	participants := []string{"xion1a", "xion1b", "xion1c", "xion1d"}
	scores := map[string]int{"xion1a": 50, "xion1b": 80, "xion1c": 50, "xion1d": 80}

	order := payoutOrder(participants, scores)
	assert.Equal(t, []string{"xion1b", "xion1d", "xion1a", "xion1c"}, order)
}
