package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxcard/ajo-engine/internal/model"
	"github.com/voxcard/ajo-engine/internal/storage"
)

// PlanService owns plan entities and their creation/update invariants.
type PlanService struct {
	store storage.Store
	log   zerolog.Logger
}

func NewPlanService(store storage.Store, log zerolog.Logger) *PlanService {
	return &PlanService{store: store, log: log}
}

type CreatePlanInput struct {
	Name               string
	Description        string
	MaxMembers         int
	ContributionAmount int64
	Frequency          string
	DurationMonths     int
	TrustScoreRequired int
	AllowPartial       bool
	Principal          model.Principal
}

// UpdatePlanInput patches a plan; nil fields are left unchanged.
type UpdatePlanInput struct {
	Name               *string
	Description        *string
	MaxMembers         *int
	ContributionAmount *int64
	Frequency          *string
	DurationMonths     *int
	TrustScoreRequired *int
	AllowPartial       *bool
	Principal          model.Principal
}

func (s *PlanService) Create(ctx context.Context, input CreatePlanInput) (*model.Plan, error) {
	if input.Principal.Zero() {
		return nil, ErrPermissionDenied
	}
	frequency, ok := model.ParseFrequency(input.Frequency)
	if !ok {
		return nil, fmt.Errorf("%w: frequency must be Daily, Weekly or Monthly", ErrInvalidInput)
	}
	if err := validatePlanFields(input.Name, input.Description, input.MaxMembers, input.ContributionAmount, input.DurationMonths, input.TrustScoreRequired); err != nil {
		return nil, err
	}

	plan := &model.Plan{
		ID:                 uuid.New(),
		Name:               input.Name,
		Description:        input.Description,
		Initiator:          input.Principal.Address,
		MaxMembers:         input.MaxMembers,
		ContributionAmount: input.ContributionAmount,
		Frequency:          frequency,
		DurationMonths:     input.DurationMonths,
		TrustScoreRequired: input.TrustScoreRequired,
		AllowPartial:       input.AllowPartial,
		Status:             model.PlanStatusOpen,
		Participants:       []string{},
		CurrentRound:       0,
		PayoutIndex:        0,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.store.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}
	s.log.Info().Str("plan_id", plan.ID.String()).Str("initiator", plan.Initiator).Msg("plan created")
	return plan, nil
}

func (s *PlanService) Get(ctx context.Context, id uuid.UUID) (*model.Plan, error) {
	plan, err := s.store.GetPlan(ctx, id)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return plan, nil
}

func (s *PlanService) List(ctx context.Context) ([]model.Plan, error) {
	return s.store.ListPlans(ctx)
}

func (s *PlanService) ListByCreator(ctx context.Context, creator string) ([]model.Plan, error) {
	return s.store.ListPlansByCreator(ctx, creator)
}

func (s *PlanService) Count(ctx context.Context) (int64, error) {
	return s.store.CountPlans(ctx)
}

func (s *PlanService) Update(ctx context.Context, id uuid.UUID, input UpdatePlanInput) (*model.Plan, error) {
	var updated *model.Plan
	err := s.store.UpdatePlan(ctx, id, func(plan *model.Plan, _ storage.PlanTx) error {
		if plan.Initiator != input.Principal.Address {
			return ErrPermissionDenied
		}
		if plan.Status != model.PlanStatusOpen {
			return fmt.Errorf("%w: only open plans can be updated", ErrInvalidState)
		}

		if input.Name != nil {
			plan.Name = *input.Name
		}
		if input.Description != nil {
			plan.Description = *input.Description
		}
		if input.MaxMembers != nil {
			if *input.MaxMembers < len(plan.Participants) {
				return fmt.Errorf("%w: max_members cannot drop below current participants", ErrInvalidInput)
			}
			plan.MaxMembers = *input.MaxMembers
		}
		if input.ContributionAmount != nil {
			plan.ContributionAmount = *input.ContributionAmount
		}
		if input.Frequency != nil {
			frequency, ok := model.ParseFrequency(*input.Frequency)
			if !ok {
				return fmt.Errorf("%w: frequency must be Daily, Weekly or Monthly", ErrInvalidInput)
			}
			plan.Frequency = frequency
		}
		if input.DurationMonths != nil {
			plan.DurationMonths = *input.DurationMonths
		}
		if input.TrustScoreRequired != nil {
			plan.TrustScoreRequired = *input.TrustScoreRequired
		}
		if input.AllowPartial != nil {
			plan.AllowPartial = *input.AllowPartial
		}

		if err := validatePlanFields(plan.Name, plan.Description, plan.MaxMembers, plan.ContributionAmount, plan.DurationMonths, plan.TrustScoreRequired); err != nil {
			return err
		}
		clone := *plan
		updated = &clone
		return nil
	})
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return updated, nil
}

func (s *PlanService) Delete(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	plan, err := s.store.GetPlan(ctx, id)
	if err != nil {
		return mapStorageErr(err)
	}
	if plan.Initiator != principal.Address {
		return ErrPermissionDenied
	}
	if plan.Status != model.PlanStatusOpen {
		return fmt.Errorf("%w: only open plans can be deleted", ErrInvalidState)
	}
	if len(plan.Participants) > 0 {
		return fmt.Errorf("%w: plan already has participants", ErrInvalidState)
	}
	if err := s.store.DeletePlan(ctx, id); err != nil {
		return mapStorageErr(err)
	}
	s.log.Info().Str("plan_id", id.String()).Msg("plan deleted")
	return nil
}

// Validation ranges match the savings contract.
func validatePlanFields(name, description string, maxMembers int, contribution int64, durationMonths, trustScore int) error {
	if l := len(name); l < 3 || l > 50 {
		return fmt.Errorf("%w: name must be between 3 and 50 characters", ErrInvalidInput)
	}
	if l := len(description); l < 10 || l > 500 {
		return fmt.Errorf("%w: description must be between 10 and 500 characters", ErrInvalidInput)
	}
	if maxMembers < 2 || maxMembers > 100 {
		return fmt.Errorf("%w: max_members must be between 2 and 100", ErrInvalidInput)
	}
	if contribution < 10 || contribution > 100000 {
		return fmt.Errorf("%w: contribution_amount must be between 10 and 100000", ErrInvalidInput)
	}
	if durationMonths < 1 || durationMonths > 36 {
		return fmt.Errorf("%w: duration_months must be between 1 and 36", ErrInvalidInput)
	}
	if trustScore < 0 || trustScore > 100 {
		return fmt.Errorf("%w: trust_score_required must be between 0 and 100", ErrInvalidInput)
	}
	return nil
}

func mapStorageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrAlreadySettled):
		return ErrAlreadySettled
	}
	return err
}
