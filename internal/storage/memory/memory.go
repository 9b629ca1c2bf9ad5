// Package memory implements storage.Store in process memory. It backs
// tests and development mode and is the reference implementation of the
// per-plan atomicity boundary (one mutex per plan).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxcard/ajo-engine/internal/model"
	"github.com/voxcard/ajo-engine/internal/storage"
)

type Store struct {
	mu            sync.RWMutex
	plans         map[uuid.UUID]*model.Plan
	planLocks     map[uuid.UUID]*sync.Mutex
	requests      map[uuid.UUID]map[string]*model.JoinRequest
	contributions map[uuid.UUID][]model.Contribution
	payouts       map[uuid.UUID][]model.Payout
	transactions  map[uuid.UUID]*model.TransactionRecord
}

func New() *Store {
	return &Store{
		plans:         make(map[uuid.UUID]*model.Plan),
		planLocks:     make(map[uuid.UUID]*sync.Mutex),
		requests:      make(map[uuid.UUID]map[string]*model.JoinRequest),
		contributions: make(map[uuid.UUID][]model.Contribution),
		payouts:       make(map[uuid.UUID][]model.Payout),
		transactions:  make(map[uuid.UUID]*model.TransactionRecord),
	}
}

func (s *Store) CreatePlan(_ context.Context, plan *model.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = clonePlan(plan)
	s.planLocks[plan.ID] = &sync.Mutex{}
	return nil
}

func (s *Store) GetPlan(_ context.Context, id uuid.UUID) (*model.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clonePlan(plan), nil
}

func (s *Store) ListPlans(_ context.Context) ([]model.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plans := make([]model.Plan, 0, len(s.plans))
	for _, plan := range s.plans {
		plans = append(plans, *clonePlan(plan))
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CreatedAt.Before(plans[j].CreatedAt) })
	return plans, nil
}

func (s *Store) ListPlansByCreator(_ context.Context, creator string) ([]model.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var plans []model.Plan
	for _, plan := range s.plans {
		if plan.Initiator == creator {
			plans = append(plans, *clonePlan(plan))
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CreatedAt.Before(plans[j].CreatedAt) })
	return plans, nil
}

func (s *Store) CountPlans(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.plans)), nil
}

func (s *Store) DeletePlan(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.plans, id)
	delete(s.planLocks, id)
	delete(s.requests, id)
	delete(s.contributions, id)
	delete(s.payouts, id)
	return nil
}

func (s *Store) UpdatePlan(_ context.Context, id uuid.UUID, fn func(plan *model.Plan, tx storage.PlanTx) error) error {
	s.mu.RLock()
	lock, ok := s.planLocks[id]
	s.mu.RUnlock()
	if !ok {
		return storage.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	plan, ok := s.plans[id]
	if !ok {
		s.mu.RUnlock()
		return storage.ErrNotFound
	}
	working := clonePlan(plan)
	tx := &planTx{
		requests:      cloneRequests(s.requests[id]),
		contributions: append([]model.Contribution(nil), s.contributions[id]...),
		payouts:       append([]model.Payout(nil), s.payouts[id]...),
	}
	s.mu.RUnlock()

	if err := fn(working, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.plans[id] = working
	s.requests[id] = tx.requests
	s.contributions[id] = tx.contributions
	s.payouts[id] = tx.payouts
	s.mu.Unlock()
	return nil
}

// planTx stages plan-scoped mutations so a failed update commits nothing.
type planTx struct {
	requests      map[string]*model.JoinRequest
	contributions []model.Contribution
	payouts       []model.Payout
}

func (tx *planTx) GetRequest(requester string) (*model.JoinRequest, error) {
	req, ok := tx.requests[requester]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := cloneRequest(req)
	return &clone, nil
}

func (tx *planTx) PutRequest(req *model.JoinRequest) error {
	if tx.requests == nil {
		tx.requests = make(map[string]*model.JoinRequest)
	}
	clone := cloneRequest(req)
	tx.requests[req.Requester] = &clone
	return nil
}

func (tx *planTx) DeleteRequest(requester string) error {
	delete(tx.requests, requester)
	return nil
}

func (tx *planTx) AddContribution(c *model.Contribution) error {
	tx.contributions = append(tx.contributions, *c)
	return nil
}

func (tx *planTx) RoundTotals(round int) (map[string]int64, error) {
	totals := make(map[string]int64)
	for _, c := range tx.contributions {
		if c.RoundNumber == round {
			totals[c.Participant] += c.Amount
		}
	}
	return totals, nil
}

func (tx *planTx) CreatePayout(p *model.Payout) error {
	tx.payouts = append(tx.payouts, *p)
	return nil
}

func (s *Store) ListPendingRequests(_ context.Context, planID uuid.UUID) ([]model.JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.plans[planID]; !ok {
		return nil, storage.ErrNotFound
	}
	var requests []model.JoinRequest
	for _, req := range s.requests[planID] {
		requests = append(requests, cloneRequest(req))
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.Before(requests[j].CreatedAt) })
	return requests, nil
}

func (s *Store) RoundTotals(_ context.Context, planID uuid.UUID, round int) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.plans[planID]; !ok {
		return nil, storage.ErrNotFound
	}
	totals := make(map[string]int64)
	for _, c := range s.contributions[planID] {
		if c.RoundNumber == round {
			totals[c.Participant] += c.Amount
		}
	}
	return totals, nil
}

func (s *Store) ListContributions(_ context.Context, planID uuid.UUID) ([]model.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.plans[planID]; !ok {
		return nil, storage.ErrNotFound
	}
	contributions := append([]model.Contribution(nil), s.contributions[planID]...)
	sort.Slice(contributions, func(i, j int) bool {
		return contributions[i].CreatedAt.Before(contributions[j].CreatedAt)
	})
	return contributions, nil
}

func (s *Store) ListPayouts(_ context.Context, planID uuid.UUID) ([]model.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.plans[planID]; !ok {
		return nil, storage.ErrNotFound
	}
	payouts := append([]model.Payout(nil), s.payouts[planID]...)
	sort.Slice(payouts, func(i, j int) bool { return payouts[i].RoundNumber < payouts[j].RoundNumber })
	return payouts, nil
}

func (s *Store) UpdatePayoutStatus(_ context.Context, id uuid.UUID, status model.PayoutStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for planID := range s.payouts {
		for i := range s.payouts[planID] {
			if s.payouts[planID][i].ID == id {
				s.payouts[planID][i].Status = status
				return nil
			}
		}
	}
	return storage.ErrNotFound
}

func (s *Store) CreateTransaction(_ context.Context, record *model.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.transactions[record.ID] = &clone
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (*model.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.transactions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *Store) SettleTransaction(_ context.Context, id uuid.UUID, status model.TransactionStatus, externalRef, failureReason string, settledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.transactions[id]
	if !ok {
		return storage.ErrNotFound
	}
	if record.Terminal() {
		return storage.ErrAlreadySettled
	}
	record.Status = status
	record.ExternalRef = externalRef
	record.FailureReason = failureReason
	record.SettledAt = &settledAt
	return nil
}

func (s *Store) HistoryBySubject(_ context.Context, subject string) ([]model.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []model.TransactionRecord
	for _, record := range s.transactions {
		if record.Subject == subject {
			records = append(records, *record)
		}
	}
	sortHistory(records)
	return records, nil
}

func (s *Store) HistoryByPlan(_ context.Context, planID uuid.UUID) ([]model.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []model.TransactionRecord
	for _, record := range s.transactions {
		if record.PlanID != nil && *record.PlanID == planID {
			records = append(records, *record)
		}
	}
	sortHistory(records)
	return records, nil
}

func (s *Store) ListPendingTransactionsBefore(_ context.Context, cutoff time.Time) ([]model.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []model.TransactionRecord
	for _, record := range s.transactions {
		if record.Status == model.TransactionStatusPending && record.CreatedAt.Before(cutoff) {
			records = append(records, *record)
		}
	}
	sortHistory(records)
	return records, nil
}

func (s *Store) Close() error { return nil }

func sortHistory(records []model.TransactionRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

func clonePlan(plan *model.Plan) *model.Plan {
	clone := *plan
	clone.Participants = append([]string(nil), plan.Participants...)
	return &clone
}

func cloneRequest(req *model.JoinRequest) model.JoinRequest {
	clone := *req
	clone.Approvals = append([]string(nil), req.Approvals...)
	clone.Denials = append([]string(nil), req.Denials...)
	return clone
}

func cloneRequests(requests map[string]*model.JoinRequest) map[string]*model.JoinRequest {
	cloned := make(map[string]*model.JoinRequest, len(requests))
	for requester, req := range requests {
		clone := cloneRequest(req)
		cloned[requester] = &clone
	}
	return cloned
}
