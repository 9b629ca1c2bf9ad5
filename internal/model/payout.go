package model

import (
	"time"

	"github.com/google/uuid"
)

type PayoutStatus string

const (
	PayoutStatusScheduled PayoutStatus = "SCHEDULED"
	PayoutStatusCompleted PayoutStatus = "COMPLETED"
	PayoutStatusFailed    PayoutStatus = "FAILED"
)

// Payout is the pooled disbursement of one closed round. Created by the
// scheduler; only settlement of the external disbursement moves it to a
// terminal status.
type Payout struct {
	ID            uuid.UUID
	PlanID        uuid.UUID
	Recipient     string
	RoundNumber   int
	Amount        int64
	ScheduledDate time.Time
	Status        PayoutStatus
	CreatedAt     time.Time
}
