package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxcard/ajo-engine/internal/model"
	"github.com/voxcard/ajo-engine/internal/storage"
)

func newPlan() *model.Plan {
	return &model.Plan{
		ID:                 uuid.New(),
		Name:               "Test Circle",
		Initiator:          "xion1creator",
		MaxMembers:         3,
		ContributionAmount: 100,
		DurationMonths:     2,
		Status:             model.PlanStatusOpen,
		Participants:       []string{"xion1a"},
		CreatedAt:          time.Now().UTC(),
	}
}

func TestCreateAndGetPlan(t *testing.T) {
	store := New()
	plan := newPlan()
	require.NoError(t, store.CreatePlan(context.Background(), plan))

	got, err := store.GetPlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.Name, got.Name)

	// Reads are snapshots; mutating one must not leak into the store.
	got.Participants = append(got.Participants, "xion1intruder")
	again, err := store.GetPlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"xion1a"}, again.Participants)

	_, err = store.GetPlan(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdatePlanCommitsOnSuccess(t *testing.T) {
	store := New()
	plan := newPlan()
	require.NoError(t, store.CreatePlan(context.Background(), plan))

	err := store.UpdatePlan(context.Background(), plan.ID, func(p *model.Plan, tx storage.PlanTx) error {
		p.Participants = append(p.Participants, "xion1b")
		return tx.AddContribution(&model.Contribution{
			ID:          uuid.New(),
			PlanID:      p.ID,
			Participant: "xion1a",
			RoundNumber: 0,
			Amount:      100,
		})
	})
	require.NoError(t, err)

	got, err := store.GetPlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"xion1a", "xion1b"}, got.Participants)

	totals, err := store.RoundTotals(context.Background(), plan.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(100), totals["xion1a"])
}

func TestUpdatePlanRollsBackOnError(t *testing.T) {
	store := New()
	plan := newPlan()
	require.NoError(t, store.CreatePlan(context.Background(), plan))

	boom := errors.New("boom")
	err := store.UpdatePlan(context.Background(), plan.ID, func(p *model.Plan, tx storage.PlanTx) error {
		p.Participants = append(p.Participants, "xion1b")
		if err := tx.AddContribution(&model.Contribution{ID: uuid.New(), Participant: "xion1a", Amount: 100}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetPlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"xion1a"}, got.Participants)

	totals, err := store.RoundTotals(context.Background(), plan.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, totals)
}

func TestUpdatePlanSerializesWriters(t *testing.T) {
	store := New()
	plan := newPlan()
	plan.MaxMembers = 1000
	require.NoError(t, store.CreatePlan(context.Background(), plan))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.UpdatePlan(context.Background(), plan.ID, func(p *model.Plan, _ storage.PlanTx) error {
				p.CurrentRound++
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := store.GetPlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.CurrentRound)
}

func TestRequestLifecycle(t *testing.T) {
	store := New()
	plan := newPlan()
	require.NoError(t, store.CreatePlan(context.Background(), plan))

	err := store.UpdatePlan(context.Background(), plan.ID, func(_ *model.Plan, tx storage.PlanTx) error {
		if _, err := tx.GetRequest("xion1new"); !errors.Is(err, storage.ErrNotFound) {
			return errors.New("expected not found")
		}
		return tx.PutRequest(&model.JoinRequest{
			ID:        uuid.New(),
			PlanID:    plan.ID,
			Requester: "xion1new",
			CreatedAt: time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	pending, err := store.ListPendingRequests(context.Background(), plan.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "xion1new", pending[0].Requester)

	err = store.UpdatePlan(context.Background(), plan.ID, func(_ *model.Plan, tx storage.PlanTx) error {
		return tx.DeleteRequest("xion1new")
	})
	require.NoError(t, err)

	pending, err = store.ListPendingRequests(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeletePlanDropsScopedState(t *testing.T) {
	store := New()
	plan := newPlan()
	require.NoError(t, store.CreatePlan(context.Background(), plan))

	err := store.UpdatePlan(context.Background(), plan.ID, func(p *model.Plan, tx storage.PlanTx) error {
		return tx.CreatePayout(&model.Payout{ID: uuid.New(), PlanID: p.ID, Recipient: "xion1a"})
	})
	require.NoError(t, err)

	require.NoError(t, store.DeletePlan(context.Background(), plan.ID))
	_, err = store.ListPayouts(context.Background(), plan.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	err = store.UpdatePlan(context.Background(), plan.ID, func(*model.Plan, storage.PlanTx) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSettleTransactionExactlyOnce(t *testing.T) {
	store := New()
	record := &model.TransactionRecord{
		ID:        uuid.New(),
		Subject:   "xion1alice",
		Kind:      model.TransactionKindContribute,
		Status:    model.TransactionStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateTransaction(context.Background(), record))

	now := time.Now().UTC()
	require.NoError(t, store.SettleTransaction(context.Background(), record.ID, model.TransactionStatusConfirmed, "0xabc", "", now))

	err := store.SettleTransaction(context.Background(), record.ID, model.TransactionStatusFailed, "", "late", now)
	assert.ErrorIs(t, err, storage.ErrAlreadySettled)

	err = store.SettleTransaction(context.Background(), uuid.New(), model.TransactionStatusConfirmed, "0xabc", "", now)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListPendingTransactionsBefore(t *testing.T) {
	store := New()
	old := &model.TransactionRecord{
		ID:        uuid.New(),
		Subject:   "xion1alice",
		Status:    model.TransactionStatusPending,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	recent := &model.TransactionRecord{
		ID:        uuid.New(),
		Subject:   "xion1alice",
		Status:    model.TransactionStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateTransaction(context.Background(), old))
	require.NoError(t, store.CreateTransaction(context.Background(), recent))

	stale, err := store.ListPendingTransactionsBefore(context.Background(), time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}
