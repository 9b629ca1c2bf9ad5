// Package contract speaks the savings contract's wire format: CosmWasm
// execute and query messages as single-key PascalCase JSON envelopes,
// with Uint128 amounts encoded as decimal strings.
package contract

import (
	"encoding/json"
	"strconv"

	"github.com/voxcard/ajo-engine/internal/model"
)

// Uint128 carries a chain amount; CosmWasm serializes Uint128 as a
// JSON string.
type Uint128 int64

func (u Uint128) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(u), 10))
}

func (u *Uint128) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}
	*u = Uint128(value)
	return nil
}

type CreatePlanMsg struct {
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	TotalParticipants  int     `json:"total_participants"`
	ContributionAmount Uint128 `json:"contribution_amount"`
	Frequency          string  `json:"frequency"`
	DurationMonths     int     `json:"duration_months"`
	TrustScoreRequired int     `json:"trust_score_required"`
	AllowPartial       bool    `json:"allow_partial"`
}

type RequestToJoinPlanMsg struct {
	PlanID uint64 `json:"plan_id"`
}

type ApproveJoinRequestMsg struct {
	PlanID    uint64 `json:"plan_id"`
	Requester string `json:"requester"`
}

type DenyJoinRequestMsg struct {
	PlanID    uint64 `json:"plan_id"`
	Requester string `json:"requester"`
}

type ContributeMsg struct {
	PlanID uint64  `json:"plan_id"`
	Amount Uint128 `json:"amount"`
}

// ExecuteMsg is the single-variant envelope the contract executes.
// Exactly one field is set.
type ExecuteMsg struct {
	CreatePlan         *CreatePlanMsg         `json:"CreatePlan,omitempty"`
	RequestToJoinPlan  *RequestToJoinPlanMsg  `json:"RequestToJoinPlan,omitempty"`
	ApproveJoinRequest *ApproveJoinRequestMsg `json:"ApproveJoinRequest,omitempty"`
	DenyJoinRequest    *DenyJoinRequestMsg    `json:"DenyJoinRequest,omitempty"`
	Contribute         *ContributeMsg         `json:"Contribute,omitempty"`
}

type GetPlanQuery struct {
	PlanID uint64 `json:"plan_id"`
}

type GetPlansByCreatorQuery struct {
	Creator string `json:"creator"`
}

type GetPlanCountQuery struct{}

type GetJoinRequestsQuery struct {
	PlanID uint64 `json:"plan_id"`
}

type GetParticipantCycleStatusQuery struct {
	PlanID      uint64 `json:"plan_id"`
	Participant string `json:"participant"`
}

// QueryMsg is the single-variant query envelope.
type QueryMsg struct {
	GetPlan                   *GetPlanQuery                   `json:"GetPlan,omitempty"`
	GetPlansByCreator         *GetPlansByCreatorQuery         `json:"GetPlansByCreator,omitempty"`
	GetPlanCount              *GetPlanCountQuery              `json:"GetPlanCount,omitempty"`
	GetJoinRequests           *GetJoinRequestsQuery           `json:"GetJoinRequests,omitempty"`
	GetParticipantCycleStatus *GetParticipantCycleStatusQuery `json:"GetParticipantCycleStatus,omitempty"`
}

// PlanState is the contract-side plan shape.
type PlanState struct {
	ID                 uint64   `json:"id"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	TotalParticipants  int      `json:"total_participants"`
	ContributionAmount Uint128  `json:"contribution_amount"`
	Frequency          string   `json:"frequency"`
	DurationMonths     int      `json:"duration_months"`
	TrustScoreRequired int      `json:"trust_score_required"`
	AllowPartial       bool     `json:"allow_partial"`
	Initiator          string   `json:"initiator"`
	Participants       []string `json:"participants"`
	CurrentCycle       int      `json:"current_cycle"`
	IsActive           bool     `json:"is_active"`
	PayoutIndex        int      `json:"payout_index"`
}

type PlanResponse struct {
	Plan *PlanState `json:"plan"`
}

type JoinRequestEntry struct {
	Requester string   `json:"requester"`
	Approvals []string `json:"approvals"`
	Denials   []string `json:"denials"`
}

type JoinRequestsResponse struct {
	Requests []JoinRequestEntry `json:"requests"`
}

type ParticipantCycleStatusResponse struct {
	Contributed    Uint128 `json:"contributed"`
	ReceivedPayout bool    `json:"received_payout"`
}

// NewCreatePlanMsg maps a local plan to the contract's creation shape.
func NewCreatePlanMsg(plan *model.Plan) ExecuteMsg {
	return ExecuteMsg{CreatePlan: &CreatePlanMsg{
		Name:               plan.Name,
		Description:        plan.Description,
		TotalParticipants:  plan.MaxMembers,
		ContributionAmount: Uint128(plan.ContributionAmount),
		Frequency:          string(plan.Frequency),
		DurationMonths:     plan.DurationMonths,
		TrustScoreRequired: plan.TrustScoreRequired,
		AllowPartial:       plan.AllowPartial,
	}}
}

func NewContributeMsg(plan *model.Plan, amount int64) ExecuteMsg {
	return ExecuteMsg{Contribute: &ContributeMsg{
		PlanID: plan.ChainPlanID,
		Amount: Uint128(amount),
	}}
}

func NewRequestToJoinMsg(plan *model.Plan) ExecuteMsg {
	return ExecuteMsg{RequestToJoinPlan: &RequestToJoinPlanMsg{PlanID: plan.ChainPlanID}}
}

func NewApproveJoinMsg(plan *model.Plan, requester string) ExecuteMsg {
	return ExecuteMsg{ApproveJoinRequest: &ApproveJoinRequestMsg{PlanID: plan.ChainPlanID, Requester: requester}}
}

func NewDenyJoinMsg(plan *model.Plan, requester string) ExecuteMsg {
	return ExecuteMsg{DenyJoinRequest: &DenyJoinRequestMsg{PlanID: plan.ChainPlanID, Requester: requester}}
}

// PlanFromState maps a contract-side plan onto the local entity shape.
// The reverse of NewCreatePlanMsg plus the contract-assigned fields.
func PlanFromState(state *PlanState) model.Plan {
	status := model.PlanStatusOpen
	switch {
	case state.CurrentCycle >= state.DurationMonths && state.DurationMonths > 0:
		status = model.PlanStatusCompleted
	case state.IsActive:
		status = model.PlanStatusActive
	}
	return model.Plan{
		Name:               state.Name,
		Description:        state.Description,
		Initiator:          state.Initiator,
		MaxMembers:         state.TotalParticipants,
		ContributionAmount: int64(state.ContributionAmount),
		Frequency:          model.Frequency(state.Frequency),
		DurationMonths:     state.DurationMonths,
		TrustScoreRequired: state.TrustScoreRequired,
		AllowPartial:       state.AllowPartial,
		Status:             status,
		Participants:       state.Participants,
		CurrentRound:       state.CurrentCycle,
		PayoutIndex:        state.PayoutIndex,
		ChainPlanID:        state.ID,
	}
}
