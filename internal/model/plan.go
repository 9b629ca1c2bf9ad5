package model

import (
	"time"

	"github.com/google/uuid"
)

type PlanStatus string

const (
	PlanStatusOpen      PlanStatus = "OPEN"
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusCompleted PlanStatus = "COMPLETED"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
)

func ParseFrequency(raw string) (Frequency, bool) {
	switch Frequency(raw) {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return Frequency(raw), true
	}
	return "", false
}

// Plan is a rotating savings circle. Amounts are integer base units of
// the chain denom (uxion), never floating point.
type Plan struct {
	ID                 uuid.UUID
	Name               string
	Description        string
	Initiator          string
	MaxMembers         int
	ContributionAmount int64
	Frequency          Frequency
	DurationMonths     int
	TrustScoreRequired int
	AllowPartial       bool
	Status             PlanStatus
	// Participants in admission order. The order is part of the payout
	// rotation and must be preserved by storage.
	Participants []string
	CurrentRound int
	PayoutIndex  int
	// ChainPlanID is the plan's sequence number in the savings
	// contract, zero until the on-chain echo is recorded.
	ChainPlanID     uint64
	ContractAddress string
	ContractTxHash  string
	CreatedAt       time.Time
}

func (p *Plan) IsParticipant(address string) bool {
	for _, member := range p.Participants {
		if member == address {
			return true
		}
	}
	return false
}

// AdmissionIndex returns the position of address in the admission order,
// or -1 when address is not a participant.
func (p *Plan) AdmissionIndex(address string) int {
	for i, member := range p.Participants {
		if member == address {
			return i
		}
	}
	return -1
}

// TotalRounds is the number of contribution/payout cycles the plan runs.
func (p *Plan) TotalRounds() int {
	return p.DurationMonths
}

// RoundPool is the nominal payout for one round.
func (p *Plan) RoundPool() int64 {
	return p.ContributionAmount * int64(len(p.Participants))
}
