package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxcard/ajo-engine/internal/model"
	"github.com/voxcard/ajo-engine/internal/storage/memory"
)

type fakeBroadcaster struct {
	txHash string
	err    error
	calls  int
}

func (b *fakeBroadcaster) Broadcast(context.Context, []byte) (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return b.txHash, nil
}

func newSubmitter(broadcaster *fakeBroadcaster, balance int64) (*ChainSubmitter, *Reconciler) {
	store := memory.New()
	rec := NewReconciler(store, zerolog.Nop())
	treasury := NewTreasuryService(treasuryConfig(), staticBalance{amount: balance}, zerolog.Nop())
	return NewChainSubmitter(rec, broadcaster, treasury, "xion1contract", zerolog.Nop()), rec
}

func TestSubmitConfirms(t *testing.T) {
	broadcaster := &fakeBroadcaster{txHash: "0xabc"}
	submitter, rec := newSubmitter(broadcaster, 2_000_000)

	record, err := submitter.Submit(context.Background(), SubmitInput{
		Kind:     model.TransactionKindContribute,
		Subject:  "xion1alice",
		Amount:   100,
		SignedTx: []byte("signed"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusConfirmed, record.Status)
	assert.Equal(t, "0xabc", record.ExternalRef)
	assert.Equal(t, 1, broadcaster.calls)

	stored, err := rec.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusConfirmed, stored.Status)
}

func TestSubmitFailureSettlesRecord(t *testing.T) {
	broadcaster := &fakeBroadcaster{err: errors.New("sequence mismatch")}
	submitter, rec := newSubmitter(broadcaster, 2_000_000)

	record, err := submitter.Submit(context.Background(), SubmitInput{
		Kind:     model.TransactionKindContribute,
		Subject:  "xion1alice",
		SignedTx: []byte("signed"),
	})
	assert.ErrorIs(t, err, ErrLedgerFailure)
	require.NotNil(t, record)

	stored, err := rec.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "sequence mismatch")
}

func TestSubmitGaslessDeclinedBeforeBroadcast(t *testing.T) {
	broadcaster := &fakeBroadcaster{txHash: "0xabc"}
	// Treasury below its minimum balance: subsidy declined.
	submitter, rec := newSubmitter(broadcaster, 100)

	record, err := submitter.Submit(context.Background(), SubmitInput{
		Kind:     model.TransactionKindJoin,
		Subject:  "xion1alice",
		SignedTx: []byte("signed"),
		Gasless:  true,
	})
	assert.ErrorIs(t, err, ErrSubsidyUnavailable)
	require.NotNil(t, record)
	assert.Zero(t, broadcaster.calls)

	stored, err := rec.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusFailed, stored.Status)
}

func TestSubmitGaslessEligibleBroadcasts(t *testing.T) {
	broadcaster := &fakeBroadcaster{txHash: "0xdef"}
	submitter, _ := newSubmitter(broadcaster, 2_000_000)

	record, err := submitter.Submit(context.Background(), SubmitInput{
		Kind:     model.TransactionKindJoin,
		Subject:  "xion1alice",
		SignedTx: []byte("signed"),
		Gasless:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "0xdef", record.ExternalRef)
	assert.Equal(t, 1, broadcaster.calls)
}

func TestSubmitCancellationStillSettles(t *testing.T) {
	broadcaster := &fakeBroadcaster{err: context.Canceled}
	submitter, rec := newSubmitter(broadcaster, 2_000_000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	record, err := submitter.Submit(ctx, SubmitInput{
		Kind:     model.TransactionKindContribute,
		Subject:  "xion1alice",
		SignedTx: []byte("signed"),
	})
	assert.Error(t, err)
	require.NotNil(t, record)

	stored, getErr := rec.Get(context.Background(), record.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.TransactionStatusFailed, stored.Status)
	assert.Equal(t, context.Canceled.Error(), stored.FailureReason)
}
