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

// RequestResolution is the outcome of a vote on a join request.
type RequestResolution string

const (
	ResolutionPending  RequestResolution = "PENDING"
	ResolutionAccepted RequestResolution = "ACCEPTED"
	ResolutionRejected RequestResolution = "REJECTED"
)

// MembershipService owns the join-request lifecycle and is the only
// writer of plan participants.
type MembershipService struct {
	store storage.Store
	trust TrustScoreProvider
	log   zerolog.Logger
}

func NewMembershipService(store storage.Store, trust TrustScoreProvider, log zerolog.Logger) *MembershipService {
	return &MembershipService{store: store, trust: trust, log: log}
}

// quorumThreshold is the strict majority of the current participants:
// ceil((n+1)/2). With zero participants it is 1, so the creator's vote
// alone resolves the bootstrap case.
func quorumThreshold(participants int) int {
	return (participants + 2) / 2
}

func (s *MembershipService) RequestJoin(ctx context.Context, planID uuid.UUID, principal model.Principal) (*model.JoinRequest, error) {
	score, err := s.trust.TrustScore(ctx, principal.Address)
	if err != nil {
		return nil, err
	}

	var created *model.JoinRequest
	err = s.store.UpdatePlan(ctx, planID, func(plan *model.Plan, tx storage.PlanTx) error {
		if plan.Status != model.PlanStatusOpen {
			return fmt.Errorf("%w: plan is not open for joining", ErrInvalidState)
		}
		if len(plan.Participants) >= plan.MaxMembers {
			return fmt.Errorf("%w: plan is full", ErrInvalidState)
		}
		if plan.IsParticipant(principal.Address) {
			return fmt.Errorf("%w: already a participant", ErrInvalidState)
		}
		if score < plan.TrustScoreRequired {
			return fmt.Errorf("%w: trust score %d below required %d", ErrPermissionDenied, score, plan.TrustScoreRequired)
		}
		if _, err := tx.GetRequest(principal.Address); err == nil {
			return ErrDuplicateRequest
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		req := &model.JoinRequest{
			ID:        uuid.New(),
			PlanID:    planID,
			Requester: principal.Address,
			Approvals: []string{},
			Denials:   []string{},
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.PutRequest(req); err != nil {
			return err
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, mapStorageErr(err)
	}
	s.log.Info().Str("plan_id", planID.String()).Str("requester", principal.Address).Msg("join requested")
	return created, nil
}

func (s *MembershipService) Approve(ctx context.Context, planID uuid.UUID, requester string, principal model.Principal) (*model.JoinRequest, RequestResolution, error) {
	return s.vote(ctx, planID, requester, principal, true)
}

func (s *MembershipService) Deny(ctx context.Context, planID uuid.UUID, requester string, principal model.Principal) (*model.JoinRequest, RequestResolution, error) {
	return s.vote(ctx, planID, requester, principal, false)
}

func (s *MembershipService) vote(ctx context.Context, planID uuid.UUID, requester string, principal model.Principal, approve bool) (*model.JoinRequest, RequestResolution, error) {
	var (
		voted      *model.JoinRequest
		resolution = ResolutionPending
	)
	err := s.store.UpdatePlan(ctx, planID, func(plan *model.Plan, tx storage.PlanTx) error {
		if !plan.IsParticipant(principal.Address) && plan.Initiator != principal.Address {
			return fmt.Errorf("%w: only participants or the initiator may vote", ErrPermissionDenied)
		}

		req, err := tx.GetRequest(requester)
		if err != nil {
			return err
		}

		if approve {
			req.Approve(principal.Address)
		} else {
			req.Deny(principal.Address)
		}

		threshold := quorumThreshold(len(plan.Participants))
		switch {
		case len(req.Approvals) >= threshold:
			if len(plan.Participants) >= plan.MaxMembers {
				// Quorum raced with other admissions; the plan filled
				// first, so the request is resolved as rejected.
				resolution = ResolutionRejected
				voted = req
				return tx.DeleteRequest(requester)
			}
			plan.Participants = append(plan.Participants, req.Requester)
			if len(plan.Participants) == plan.MaxMembers {
				plan.Status = model.PlanStatusActive
			}
			resolution = ResolutionAccepted
			voted = req
			return tx.DeleteRequest(requester)
		case len(req.Denials) >= threshold:
			resolution = ResolutionRejected
			voted = req
			return tx.DeleteRequest(requester)
		}

		voted = req
		return tx.PutRequest(req)
	})
	if err != nil {
		return nil, ResolutionPending, mapStorageErr(err)
	}

	event := s.log.Info().
		Str("plan_id", planID.String()).
		Str("requester", requester).
		Str("voter", principal.Address).
		Bool("approve", approve)
	event.Str("resolution", string(resolution)).Msg("join request vote")
	return voted, resolution, nil
}

func (s *MembershipService) ListPending(ctx context.Context, planID uuid.UUID) ([]model.JoinRequest, error) {
	requests, err := s.store.ListPendingRequests(ctx, planID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return requests, nil
}

// Leave removes the caller from an open plan. Active plans cannot be
// left: the payout rotation depends on a stable participant set.
func (s *MembershipService) Leave(ctx context.Context, planID uuid.UUID, principal model.Principal) error {
	err := s.store.UpdatePlan(ctx, planID, func(plan *model.Plan, _ storage.PlanTx) error {
		if plan.Status != model.PlanStatusOpen {
			return fmt.Errorf("%w: cannot leave a plan that has started", ErrInvalidState)
		}
		index := plan.AdmissionIndex(principal.Address)
		if index < 0 {
			return fmt.Errorf("%w: not a participant", ErrInvalidState)
		}
		plan.Participants = append(plan.Participants[:index], plan.Participants[index+1:]...)
		return nil
	})
	if err != nil {
		return mapStorageErr(err)
	}
	s.log.Info().Str("plan_id", planID.String()).Str("participant", principal.Address).Msg("participant left plan")
	return nil
}
