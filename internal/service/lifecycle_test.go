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

// Full lifecycle: create, admit two members, fund the single round,
// pay out, complete.
func TestPlanLifecycle(t *testing.T) {
	store := memory.New()
	log := zerolog.Nop()
	trust := StaticTrustScore(50)
	plans := NewPlanService(store, log)
	membership := NewMembershipService(store, trust, log)
	ledger := NewLedgerService(store, trust, log)
	ctx := context.Background()

	creator := model.Principal{Address: "xion1creator"}
	plan, err := plans.Create(ctx, CreatePlanInput{
		Name:               "Two Person Circle",
		Description:        "Smallest possible circle, one month long.",
		MaxMembers:         2,
		ContributionAmount: 50,
		Frequency:          "Monthly",
		DurationMonths:     1,
		Principal:          creator,
	})
	require.NoError(t, err)

	// Creator bootstraps themselves in, then admits the second member.
	_, err = membership.RequestJoin(ctx, plan.ID, creator)
	require.NoError(t, err)
	_, resolution, err := membership.Approve(ctx, plan.ID, creator.Address, creator)
	require.NoError(t, err)
	require.Equal(t, ResolutionAccepted, resolution)

	member := model.Principal{Address: "xion1member"}
	_, err = membership.RequestJoin(ctx, plan.ID, member)
	require.NoError(t, err)
	_, resolution, err = membership.Approve(ctx, plan.ID, member.Address, creator)
	require.NoError(t, err)
	require.Equal(t, ResolutionAccepted, resolution)

	active, err := plans.Get(ctx, plan.ID)
	require.NoError(t, err)
	require.Equal(t, model.PlanStatusActive, active.Status)

	_, payout, err := ledger.RecordContribution(ctx, plan.ID, creator, 0, 50)
	require.NoError(t, err)
	require.Nil(t, payout)
	_, payout, err = ledger.RecordContribution(ctx, plan.ID, member, 0, 50)
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, int64(100), payout.Amount)

	done, err := plans.Get(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStatusCompleted, done.Status)
	assert.Equal(t, 1, done.CurrentRound)
	assert.Equal(t, 1, done.PayoutIndex)

	statement, err := ledger.Statement(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, statement.Rounds, 1)
	assert.Zero(t, statement.Float)
	require.NotNil(t, statement.Rounds[0].Payout)
	assert.Equal(t, payout.Recipient, statement.Rounds[0].Payout.Recipient)
}
