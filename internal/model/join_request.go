package model

import (
	"time"

	"github.com/google/uuid"
)

// JoinRequest is a pending admission request. Resolved requests are
// removed from storage; only pending ones exist.
type JoinRequest struct {
	ID        uuid.UUID
	PlanID    uuid.UUID
	Requester string
	Approvals []string
	Denials   []string
	CreatedAt time.Time
}

func (r *JoinRequest) HasApproved(address string) bool {
	return contains(r.Approvals, address)
}

func (r *JoinRequest) HasDenied(address string) bool {
	return contains(r.Denials, address)
}

// Approve records a vote for admission. A previous denial by the same
// voter is withdrawn; last action wins. Reports whether the vote sets
// changed.
func (r *JoinRequest) Approve(address string) bool {
	changed := false
	if removed := remove(&r.Denials, address); removed {
		changed = true
	}
	if !contains(r.Approvals, address) {
		r.Approvals = append(r.Approvals, address)
		changed = true
	}
	return changed
}

// Deny is symmetric to Approve.
func (r *JoinRequest) Deny(address string) bool {
	changed := false
	if removed := remove(&r.Approvals, address); removed {
		changed = true
	}
	if !contains(r.Denials, address) {
		r.Denials = append(r.Denials, address)
		changed = true
	}
	return changed
}

func contains(list []string, address string) bool {
	for _, item := range list {
		if item == address {
			return true
		}
	}
	return false
}

func remove(list *[]string, address string) bool {
	for i, item := range *list {
		if item == address {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}
