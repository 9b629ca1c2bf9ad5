package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxcard/ajo-engine/internal/model"
	"github.com/voxcard/ajo-engine/internal/storage"
)

// planTx runs plan-scoped reads and writes inside the UpdatePlan
// transaction, under the plan row lock.
type planTx struct {
	db     *gorm.DB
	planID uuid.UUID
}

type requestRow struct {
	ID        uuid.UUID
	PlanID    uuid.UUID
	Requester string
	Approvals []byte
	Denials   []byte
	CreatedAt time.Time
}

func (row requestRow) toModel() (model.JoinRequest, error) {
	req := model.JoinRequest{
		ID:        row.ID,
		PlanID:    row.PlanID,
		Requester: row.Requester,
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal(row.Approvals, &req.Approvals); err != nil {
		return req, err
	}
	if err := json.Unmarshal(row.Denials, &req.Denials); err != nil {
		return req, err
	}
	return req, nil
}

func marshalVotes(votes []string) ([]byte, error) {
	if votes == nil {
		votes = []string{}
	}
	return json.Marshal(votes)
}

func (tx *planTx) GetRequest(requester string) (*model.JoinRequest, error) {
	var row requestRow
	err := tx.db.Raw(`
		SELECT id, plan_id, requester, approvals, denials, created_at
		FROM join_requests
		WHERE plan_id = ? AND requester = ?
		LIMIT 1
	`, tx.planID, requester).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, storage.ErrNotFound
	}
	req, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (tx *planTx) PutRequest(req *model.JoinRequest) error {
	approvals, err := marshalVotes(req.Approvals)
	if err != nil {
		return err
	}
	denials, err := marshalVotes(req.Denials)
	if err != nil {
		return err
	}
	return tx.db.Exec(`
		INSERT INTO join_requests (id, plan_id, requester, approvals, denials, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (plan_id, requester) DO UPDATE
		SET approvals = EXCLUDED.approvals, denials = EXCLUDED.denials
	`, req.ID, req.PlanID, req.Requester, approvals, denials, req.CreatedAt).Error
}

func (tx *planTx) DeleteRequest(requester string) error {
	return tx.db.Exec(`
		DELETE FROM join_requests WHERE plan_id = ? AND requester = ?
	`, tx.planID, requester).Error
}

func (tx *planTx) AddContribution(c *model.Contribution) error {
	return tx.db.Exec(`
		INSERT INTO contributions (id, plan_id, participant, round_number, amount, partial, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.PlanID, c.Participant, c.RoundNumber, c.Amount, c.Partial, c.CreatedAt).Error
}

func (tx *planTx) RoundTotals(round int) (map[string]int64, error) {
	return roundTotals(tx.db, tx.planID, round)
}

func (tx *planTx) CreatePayout(p *model.Payout) error {
	return tx.db.Exec(`
		INSERT INTO payouts (id, plan_id, recipient, round_number, amount, scheduled_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.PlanID, p.Recipient, p.RoundNumber, p.Amount, p.ScheduledDate, string(p.Status), p.CreatedAt).Error
}

func roundTotals(db *gorm.DB, planID uuid.UUID, round int) (map[string]int64, error) {
	var rows []struct {
		Participant string
		Total       int64
	}
	err := db.Raw(`
		SELECT participant, SUM(amount) AS total
		FROM contributions
		WHERE plan_id = ? AND round_number = ?
		GROUP BY participant
	`, planID, round).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.Participant] = row.Total
	}
	return totals, nil
}

func (s *Store) ListPendingRequests(ctx context.Context, planID uuid.UUID) ([]model.JoinRequest, error) {
	if err := s.planExists(ctx, planID); err != nil {
		return nil, err
	}
	var rows []requestRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT id, plan_id, requester, approvals, denials, created_at
		FROM join_requests
		WHERE plan_id = ?
		ORDER BY created_at ASC
	`, planID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	requests := make([]model.JoinRequest, 0, len(rows))
	for _, row := range rows {
		req, err := row.toModel()
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func (s *Store) RoundTotals(ctx context.Context, planID uuid.UUID, round int) (map[string]int64, error) {
	if err := s.planExists(ctx, planID); err != nil {
		return nil, err
	}
	return roundTotals(s.db.WithContext(ctx), planID, round)
}

func (s *Store) ListContributions(ctx context.Context, planID uuid.UUID) ([]model.Contribution, error) {
	if err := s.planExists(ctx, planID); err != nil {
		return nil, err
	}
	var contributions []model.Contribution
	err := s.db.WithContext(ctx).Raw(`
		SELECT id, plan_id, participant, round_number, amount, partial, created_at
		FROM contributions
		WHERE plan_id = ?
		ORDER BY created_at ASC
	`, planID).Scan(&contributions).Error
	if err != nil {
		return nil, err
	}
	return contributions, nil
}

func (s *Store) ListPayouts(ctx context.Context, planID uuid.UUID) ([]model.Payout, error) {
	if err := s.planExists(ctx, planID); err != nil {
		return nil, err
	}
	var payouts []model.Payout
	err := s.db.WithContext(ctx).Raw(`
		SELECT id, plan_id, recipient, round_number, amount, scheduled_date, status, created_at
		FROM payouts
		WHERE plan_id = ?
		ORDER BY round_number ASC
	`, planID).Scan(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (s *Store) UpdatePayoutStatus(ctx context.Context, id uuid.UUID, status model.PayoutStatus) error {
	result := s.db.WithContext(ctx).Exec(`
		UPDATE payouts SET status = ? WHERE id = ?
	`, string(status), id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) planExists(ctx context.Context, planID uuid.UUID) error {
	var id uuid.UUID
	if err := s.db.WithContext(ctx).Raw(`SELECT id FROM plans WHERE id = ?`, planID).Scan(&id).Error; err != nil {
		return err
	}
	if id == uuid.Nil {
		return storage.ErrNotFound
	}
	return nil
}
