package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxcard/ajo-engine/internal/model"
	"github.com/voxcard/ajo-engine/internal/storage"
)

type planRow struct {
	ID                 uuid.UUID
	Name               string
	Description        string
	Initiator          string
	MaxMembers         int
	ContributionAmount int64
	Frequency          string
	DurationMonths     int
	TrustScoreRequired int
	AllowPartial       bool
	Status             string
	CurrentRound       int
	PayoutIndex        int
	ChainPlanID        uint64
	ContractAddress    *string
	ContractTxHash     *string
	CreatedAt          time.Time
}

func (row planRow) toModel(participants []string) model.Plan {
	plan := model.Plan{
		ID:                 row.ID,
		Name:               row.Name,
		Description:        row.Description,
		Initiator:          row.Initiator,
		MaxMembers:         row.MaxMembers,
		ContributionAmount: row.ContributionAmount,
		Frequency:          model.Frequency(row.Frequency),
		DurationMonths:     row.DurationMonths,
		TrustScoreRequired: row.TrustScoreRequired,
		AllowPartial:       row.AllowPartial,
		Status:             model.PlanStatus(row.Status),
		Participants:       participants,
		CurrentRound:       row.CurrentRound,
		PayoutIndex:        row.PayoutIndex,
		ChainPlanID:        row.ChainPlanID,
		CreatedAt:          row.CreatedAt,
	}
	if row.ContractAddress != nil {
		plan.ContractAddress = *row.ContractAddress
	}
	if row.ContractTxHash != nil {
		plan.ContractTxHash = *row.ContractTxHash
	}
	return plan
}

const selectPlan = `
	SELECT
		id, name, description, initiator, max_members, contribution_amount,
		frequency, duration_months, trust_score_required, allow_partial,
		status, current_round, payout_index, chain_plan_id,
		contract_address, contract_tx_hash, created_at
	FROM plans
`

func (s *Store) CreatePlan(ctx context.Context, plan *model.Plan) error {
	return s.db.WithContext(ctx).Exec(`
		INSERT INTO plans (
			id, name, description, initiator, max_members,
			contribution_amount, frequency, duration_months,
			trust_score_required, allow_partial, status, current_round,
			payout_index, chain_plan_id, contract_address, contract_tx_hash,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		plan.ID,
		plan.Name,
		plan.Description,
		plan.Initiator,
		plan.MaxMembers,
		plan.ContributionAmount,
		string(plan.Frequency),
		plan.DurationMonths,
		plan.TrustScoreRequired,
		plan.AllowPartial,
		string(plan.Status),
		plan.CurrentRound,
		plan.PayoutIndex,
		plan.ChainPlanID,
		nullable(plan.ContractAddress),
		nullable(plan.ContractTxHash),
		plan.CreatedAt,
	).Error
}

func (s *Store) GetPlan(ctx context.Context, id uuid.UUID) (*model.Plan, error) {
	return getPlan(s.db.WithContext(ctx), id, false)
}

func getPlan(db *gorm.DB, id uuid.UUID, forUpdate bool) (*model.Plan, error) {
	query := selectPlan + ` WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row planRow
	if err := db.Raw(query, id).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, storage.ErrNotFound
	}

	participants, err := listParticipants(db, id)
	if err != nil {
		return nil, err
	}
	plan := row.toModel(participants)
	return &plan, nil
}

func listParticipants(db *gorm.DB, planID uuid.UUID) ([]string, error) {
	var participants []string
	err := db.Raw(`
		SELECT address FROM plan_participants
		WHERE plan_id = ?
		ORDER BY position ASC
	`, planID).Scan(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]model.Plan, error) {
	return s.listPlans(ctx, selectPlan+` ORDER BY created_at ASC`)
}

func (s *Store) ListPlansByCreator(ctx context.Context, creator string) ([]model.Plan, error) {
	return s.listPlans(ctx, selectPlan+` WHERE initiator = ? ORDER BY created_at ASC`, creator)
}

func (s *Store) listPlans(ctx context.Context, query string, args ...interface{}) ([]model.Plan, error) {
	var rows []planRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	plans := make([]model.Plan, 0, len(rows))
	for _, row := range rows {
		participants, err := listParticipants(s.db.WithContext(ctx), row.ID)
		if err != nil {
			return nil, err
		}
		plans = append(plans, row.toModel(participants))
	}
	return plans, nil
}

func (s *Store) CountPlans(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM plans`).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) DeletePlan(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Exec(`DELETE FROM plans WHERE id = ?`, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdatePlan serializes concurrent mutations of one plan with a row lock
// held for the whole transaction.
func (s *Store) UpdatePlan(ctx context.Context, id uuid.UUID, fn func(plan *model.Plan, tx storage.PlanTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		plan, err := getPlan(db, id, true)
		if err != nil {
			return err
		}
		before := append([]string(nil), plan.Participants...)

		if err := fn(plan, &planTx{db: db, planID: id}); err != nil {
			return err
		}

		if err := db.Exec(`
			UPDATE plans
			SET
				name = ?,
				description = ?,
				max_members = ?,
				contribution_amount = ?,
				frequency = ?,
				duration_months = ?,
				trust_score_required = ?,
				allow_partial = ?,
				status = ?,
				current_round = ?,
				payout_index = ?,
				chain_plan_id = ?,
				contract_address = ?,
				contract_tx_hash = ?
			WHERE id = ?
		`,
			plan.Name,
			plan.Description,
			plan.MaxMembers,
			plan.ContributionAmount,
			string(plan.Frequency),
			plan.DurationMonths,
			plan.TrustScoreRequired,
			plan.AllowPartial,
			string(plan.Status),
			plan.CurrentRound,
			plan.PayoutIndex,
			plan.ChainPlanID,
			nullable(plan.ContractAddress),
			nullable(plan.ContractTxHash),
			id,
		).Error; err != nil {
			return err
		}

		return syncParticipants(db, id, before, plan.Participants)
	})
}

func syncParticipants(db *gorm.DB, planID uuid.UUID, before, after []string) error {
	if equalStrings(before, after) {
		return nil
	}
	if err := db.Exec(`DELETE FROM plan_participants WHERE plan_id = ?`, planID).Error; err != nil {
		return err
	}
	for i, address := range after {
		if err := db.Exec(`
			INSERT INTO plan_participants (plan_id, address, position)
			VALUES (?, ?, ?)
		`, planID, address, i).Error; err != nil {
			return err
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
