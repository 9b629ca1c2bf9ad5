package model

import (
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	TransactionKindJoin       TransactionKind = "join"
	TransactionKindContribute TransactionKind = "contribute"
	TransactionKindWithdraw   TransactionKind = "withdraw"
)

func ParseTransactionKind(raw string) (TransactionKind, bool) {
	switch TransactionKind(raw) {
	case TransactionKindJoin, TransactionKindContribute, TransactionKindWithdraw:
		return TransactionKind(raw), true
	}
	return "", false
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// TransactionRecord is the local bookkeeping row for one external-ledger
// submission. It is persisted as pending before the submission is
// attempted and moves to a terminal status exactly once; ground truth
// for the operation itself lives on the chain.
type TransactionRecord struct {
	ID          uuid.UUID
	Subject     string
	Amount      int64
	Description string
	Kind        TransactionKind
	PlanID      *uuid.UUID
	RoundNumber *int
	Status      TransactionStatus
	// ExternalRef is the chain tx hash, populated only on confirmation.
	ExternalRef string
	// FailureReason is set when Status is failed.
	FailureReason string
	CreatedAt     time.Time
	SettledAt     *time.Time
}

func (t *TransactionRecord) Terminal() bool {
	return t.Status != TransactionStatusPending
}
