// Package storage abstracts persistent state behind interfaces so the
// engine can run against Postgres in production and an in-memory store
// in tests and development.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/voxcard/ajo-engine/internal/model"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadySettled is returned when settling a transaction record
	// that is already terminal.
	ErrAlreadySettled = errors.New("storage: already settled")
)

// PlanTx exposes plan-scoped rows to an UpdatePlan mutation. All reads
// and writes through a PlanTx happen inside the same atomicity boundary
// as the plan mutation itself.
type PlanTx interface {
	// GetRequest returns the pending join request from requester, or
	// ErrNotFound.
	GetRequest(requester string) (*model.JoinRequest, error)
	// PutRequest inserts or replaces a pending join request.
	PutRequest(req *model.JoinRequest) error
	// DeleteRequest removes a pending join request; resolving a request
	// always deletes it.
	DeleteRequest(requester string) error
	// AddContribution appends an immutable contribution row.
	AddContribution(c *model.Contribution) error
	// RoundTotals returns accumulated per-participant totals for round.
	RoundTotals(round int) (map[string]int64, error)
	// CreatePayout inserts the payout emitted by a round closure.
	CreatePayout(p *model.Payout) error
}

// Store is the durable-store collaborator. Implementations must make
// UpdatePlan a per-plan atomicity boundary: two concurrent updates of
// the same plan serialize, updates of different plans do not.
type Store interface {
	CreatePlan(ctx context.Context, plan *model.Plan) error
	GetPlan(ctx context.Context, id uuid.UUID) (*model.Plan, error)
	ListPlans(ctx context.Context) ([]model.Plan, error)
	ListPlansByCreator(ctx context.Context, creator string) ([]model.Plan, error)
	CountPlans(ctx context.Context) (int64, error)
	DeletePlan(ctx context.Context, id uuid.UUID) error

	// UpdatePlan loads the plan, runs fn under the plan's atomicity
	// boundary and persists the mutated plan when fn returns nil.
	UpdatePlan(ctx context.Context, id uuid.UUID, fn func(plan *model.Plan, tx PlanTx) error) error

	ListPendingRequests(ctx context.Context, planID uuid.UUID) ([]model.JoinRequest, error)
	RoundTotals(ctx context.Context, planID uuid.UUID, round int) (map[string]int64, error)
	ListContributions(ctx context.Context, planID uuid.UUID) ([]model.Contribution, error)
	ListPayouts(ctx context.Context, planID uuid.UUID) ([]model.Payout, error)
	UpdatePayoutStatus(ctx context.Context, id uuid.UUID, status model.PayoutStatus) error

	CreateTransaction(ctx context.Context, record *model.TransactionRecord) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*model.TransactionRecord, error)
	// SettleTransaction moves a pending record to a terminal status
	// exactly once; a second settle returns ErrAlreadySettled.
	SettleTransaction(ctx context.Context, id uuid.UUID, status model.TransactionStatus, externalRef, failureReason string, settledAt time.Time) error
	// HistoryBySubject returns records for one wallet, newest first.
	HistoryBySubject(ctx context.Context, subject string) ([]model.TransactionRecord, error)
	// HistoryByPlan returns records for one plan, newest first.
	HistoryByPlan(ctx context.Context, planID uuid.UUID) ([]model.TransactionRecord, error)
	// ListPendingTransactionsBefore returns pending records created
	// before cutoff, for the expiry sweep.
	ListPendingTransactionsBefore(ctx context.Context, cutoff time.Time) ([]model.TransactionRecord, error)

	Close() error
}
