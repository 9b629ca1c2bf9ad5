package model

import (
	"time"

	"github.com/google/uuid"
)

// Contribution is one recorded payment toward a round. Multiple
// contributions by the same participant in the same round accumulate;
// recorded rows are immutable facts.
type Contribution struct {
	ID          uuid.UUID
	PlanID      uuid.UUID
	Participant string
	RoundNumber int
	Amount      int64
	// Partial is derived at recording time: Amount below the plan's
	// per-round requirement.
	Partial   bool
	CreatedAt time.Time
}

// ParticipantCycleStatus mirrors the contract's per-participant view of
// the current cycle.
type ParticipantCycleStatus struct {
	Participant    string
	RoundNumber    int
	Contributed    int64
	Required       int64
	ReceivedPayout bool
}
