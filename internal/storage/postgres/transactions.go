package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voxcard/ajo-engine/internal/model"
	"github.com/voxcard/ajo-engine/internal/storage"
)

const selectTransaction = `
	SELECT
		id, subject, amount, description, kind, plan_id, round_number,
		status, external_ref, failure_reason, created_at, settled_at
	FROM transactions
`

func (s *Store) CreateTransaction(ctx context.Context, record *model.TransactionRecord) error {
	return s.db.WithContext(ctx).Exec(`
		INSERT INTO transactions (
			id, subject, amount, description, kind, plan_id, round_number,
			status, external_ref, failure_reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.Subject,
		record.Amount,
		record.Description,
		string(record.Kind),
		record.PlanID,
		record.RoundNumber,
		string(record.Status),
		record.ExternalRef,
		record.FailureReason,
		record.CreatedAt,
	).Error
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*model.TransactionRecord, error) {
	var record model.TransactionRecord
	err := s.db.WithContext(ctx).Raw(selectTransaction+` WHERE id = ? LIMIT 1`, id).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == uuid.Nil {
		return nil, storage.ErrNotFound
	}
	return &record, nil
}

// SettleTransaction relies on the status guard in the WHERE clause to
// reject double settles atomically.
func (s *Store) SettleTransaction(ctx context.Context, id uuid.UUID, status model.TransactionStatus, externalRef, failureReason string, settledAt time.Time) error {
	result := s.db.WithContext(ctx).Exec(`
		UPDATE transactions
		SET status = ?, external_ref = ?, failure_reason = ?, settled_at = ?
		WHERE id = ? AND status = 'pending'
	`, string(status), externalRef, failureReason, settledAt, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var existing uuid.UUID
		if err := s.db.WithContext(ctx).Raw(`SELECT id FROM transactions WHERE id = ?`, id).Scan(&existing).Error; err != nil {
			return err
		}
		if existing == uuid.Nil {
			return storage.ErrNotFound
		}
		return storage.ErrAlreadySettled
	}
	return nil
}

func (s *Store) HistoryBySubject(ctx context.Context, subject string) ([]model.TransactionRecord, error) {
	var records []model.TransactionRecord
	err := s.db.WithContext(ctx).Raw(selectTransaction+`
		WHERE subject = ?
		ORDER BY created_at DESC
	`, subject).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) HistoryByPlan(ctx context.Context, planID uuid.UUID) ([]model.TransactionRecord, error) {
	var records []model.TransactionRecord
	err := s.db.WithContext(ctx).Raw(selectTransaction+`
		WHERE plan_id = ?
		ORDER BY created_at DESC
	`, planID).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) ListPendingTransactionsBefore(ctx context.Context, cutoff time.Time) ([]model.TransactionRecord, error) {
	var records []model.TransactionRecord
	err := s.db.WithContext(ctx).Raw(selectTransaction+`
		WHERE status = 'pending' AND created_at < ?
		ORDER BY created_at DESC
	`, cutoff).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
