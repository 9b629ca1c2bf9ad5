package model

import "time"

// StatementRound is one round of a plan statement: per-participant paid
// totals and the round's payout, if the round has closed.
type StatementRound struct {
	RoundNumber int
	Paid        map[string]int64
	Payout      *Payout
}

// PlanStatement is the exportable contribution history of a plan.
type PlanStatement struct {
	Plan        Plan
	GeneratedAt time.Time
	Rounds      []StatementRound
	// Float is the excess collected over the nominal requirement across
	// all rounds (overpayment retained by the plan, never paid out).
	Float int64
}
