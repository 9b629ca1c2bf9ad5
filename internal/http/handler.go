package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxcard/ajo-engine/internal/export"
	"github.com/voxcard/ajo-engine/internal/http/middleware"
	"github.com/voxcard/ajo-engine/internal/model"
	"github.com/voxcard/ajo-engine/internal/service"
)

type Handler struct {
	plans      *service.PlanService
	membership *service.MembershipService
	ledger     *service.LedgerService
	reconciler *service.Reconciler
	submitter  *service.ChainSubmitter
	excel      *export.ExcelGenerator
	pdf        *export.PDFGenerator
	log        zerolog.Logger
}

func NewHandler(
	plans *service.PlanService,
	membership *service.MembershipService,
	ledger *service.LedgerService,
	reconciler *service.Reconciler,
	submitter *service.ChainSubmitter,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		plans:      plans,
		membership: membership,
		ledger:     ledger,
		reconciler: reconciler,
		submitter:  submitter,
		excel:      export.NewExcelGenerator(),
		pdf:        export.NewPDFGenerator(),
		log:        log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/plans", h.listPlans)
	router.GET("/plans/count", h.countPlans)
	router.GET("/plans/:id", h.getPlan)
	router.GET("/plans/:id/requests", h.listRequests)
	router.GET("/plans/:id/rounds/:round", h.roundStatus)
	router.GET("/plans/:id/payouts", h.listPayouts)

	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.POST("/plans", h.createPlan)
	protected.PUT("/plans/:id", h.updatePlan)
	protected.DELETE("/plans/:id", h.deletePlan)
	protected.POST("/plans/:id/join", h.requestJoin)
	protected.POST("/plans/:id/leave", h.leavePlan)
	protected.POST("/plans/:id/requests/:requester/approve", h.approveRequest)
	protected.POST("/plans/:id/requests/:requester/deny", h.denyRequest)
	protected.POST("/plans/:id/contribute", h.contribute)
	protected.POST("/plans/:id/payouts/:payout_id/settle", h.settlePayout)
	protected.GET("/plans/:id/cycle-status", h.cycleStatus)
	protected.GET("/plans/:id/history", h.planHistory)
	protected.POST("/plans/:id/statement", h.exportStatement)
	protected.POST("/plans/:id/statement/pdf", h.exportStatementPDF)
	protected.GET("/history", h.history)
	protected.POST("/transactions", h.submitTransaction)
	protected.GET("/transactions/:id", h.getTransaction)
	protected.POST("/transactions/:id/confirm", h.confirmTransaction)
	protected.POST("/transactions/:id/fail", h.failTransaction)
}

type planResponse struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	Initiator           string   `json:"initiator"`
	TotalParticipants   int      `json:"total_participants"`
	CurrentParticipants int      `json:"current_participants"`
	ContributionAmount  int64    `json:"contribution_amount"`
	MaxMembers          int      `json:"max_members"`
	Frequency           string   `json:"frequency"`
	Duration            int      `json:"duration"`
	TotalAmount         int64    `json:"total_amount"`
	TrustScoreRequired  int      `json:"trust_score_required"`
	AllowPartial        bool     `json:"allow_partial"`
	Status              string   `json:"status"`
	Members             []string `json:"members"`
	CurrentRound        int      `json:"current_round"`
	PayoutIndex         int      `json:"payout_index"`
	ContractAddress     string   `json:"contract_address,omitempty"`
	ContractTxHash      string   `json:"contract_tx_hash,omitempty"`
	CreatedAt           string   `json:"created_at"`
}

func toPlanResponse(plan *model.Plan) planResponse {
	members := plan.Participants
	if members == nil {
		members = []string{}
	}
	return planResponse{
		ID:                  plan.ID.String(),
		Name:                plan.Name,
		Description:         plan.Description,
		Initiator:           plan.Initiator,
		TotalParticipants:   plan.MaxMembers,
		CurrentParticipants: len(plan.Participants),
		ContributionAmount:  plan.ContributionAmount,
		MaxMembers:          plan.MaxMembers,
		Frequency:           string(plan.Frequency),
		Duration:            plan.DurationMonths,
		TotalAmount:         plan.ContributionAmount * int64(plan.MaxMembers) * int64(plan.DurationMonths),
		TrustScoreRequired:  plan.TrustScoreRequired,
		AllowPartial:        plan.AllowPartial,
		Status:              string(plan.Status),
		Members:             members,
		CurrentRound:        plan.CurrentRound,
		PayoutIndex:         plan.PayoutIndex,
		ContractAddress:     plan.ContractAddress,
		ContractTxHash:      plan.ContractTxHash,
		CreatedAt:           plan.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type createPlanRequest struct {
	Name               string `json:"name" binding:"required"`
	Description        string `json:"description" binding:"required"`
	MaxMembers         int    `json:"max_members" binding:"required"`
	ContributionAmount int64  `json:"contribution_amount" binding:"required"`
	Frequency          string `json:"frequency" binding:"required"`
	Duration           int    `json:"duration" binding:"required"`
	TrustScoreRequired int    `json:"trust_score_required"`
	AllowPartial       bool   `json:"allow_partial"`
}

func (h *Handler) createPlan(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.plans.Create(c.Request.Context(), service.CreatePlanInput{
		Name:               req.Name,
		Description:        req.Description,
		MaxMembers:         req.MaxMembers,
		ContributionAmount: req.ContributionAmount,
		Frequency:          req.Frequency,
		DurationMonths:     req.Duration,
		TrustScoreRequired: req.TrustScoreRequired,
		AllowPartial:       req.AllowPartial,
		Principal:          principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPlanResponse(plan))
}

func (h *Handler) listPlans(c *gin.Context) {
	var (
		plans []model.Plan
		err   error
	)
	if creator := strings.TrimSpace(c.Query("creator")); creator != "" {
		plans, err = h.plans.ListByCreator(c.Request.Context(), creator)
	} else {
		plans, err = h.plans.List(c.Request.Context())
	}
	if err != nil {
		h.handleError(c, err)
		return
	}

	responses := make([]planResponse, 0, len(plans))
	for i := range plans {
		responses = append(responses, toPlanResponse(&plans[i]))
	}
	c.JSON(http.StatusOK, gin.H{"plans": responses})
}

func (h *Handler) countPlans(c *gin.Context) {
	count, err := h.plans.Count(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handler) getPlan(c *gin.Context) {
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	plan, err := h.plans.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPlanResponse(plan))
}

type updatePlanRequest struct {
	Name               *string `json:"name"`
	Description        *string `json:"description"`
	MaxMembers         *int    `json:"max_members"`
	ContributionAmount *int64  `json:"contribution_amount"`
	Frequency          *string `json:"frequency"`
	Duration           *int    `json:"duration"`
	TrustScoreRequired *int    `json:"trust_score_required"`
	AllowPartial       *bool   `json:"allow_partial"`
}

func (h *Handler) updatePlan(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}

	var req updatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.plans.Update(c.Request.Context(), id, service.UpdatePlanInput{
		Name:               req.Name,
		Description:        req.Description,
		MaxMembers:         req.MaxMembers,
		ContributionAmount: req.ContributionAmount,
		Frequency:          req.Frequency,
		DurationMonths:     req.Duration,
		TrustScoreRequired: req.TrustScoreRequired,
		AllowPartial:       req.AllowPartial,
		Principal:          principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPlanResponse(plan))
}

func (h *Handler) deletePlan(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	if err := h.plans.Delete(c.Request.Context(), id, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type joinRequestResponse struct {
	ID        string   `json:"id"`
	PlanID    string   `json:"plan_id"`
	Requester string   `json:"requester"`
	Approvals []string `json:"approvals"`
	Denials   []string `json:"denials"`
	CreatedAt string   `json:"created_at"`
}

func toJoinRequestResponse(req *model.JoinRequest) joinRequestResponse {
	approvals := req.Approvals
	if approvals == nil {
		approvals = []string{}
	}
	denials := req.Denials
	if denials == nil {
		denials = []string{}
	}
	return joinRequestResponse{
		ID:        req.ID.String(),
		PlanID:    req.PlanID.String(),
		Requester: req.Requester,
		Approvals: approvals,
		Denials:   denials,
		CreatedAt: req.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) requestJoin(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}

	req, err := h.membership.RequestJoin(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJoinRequestResponse(req))
}

func (h *Handler) leavePlan(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	if err := h.membership.Leave(c.Request.Context(), id, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listRequests(c *gin.Context) {
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	requests, err := h.membership.ListPending(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	responses := make([]joinRequestResponse, 0, len(requests))
	for i := range requests {
		responses = append(responses, toJoinRequestResponse(&requests[i]))
	}
	c.JSON(http.StatusOK, gin.H{"requests": responses})
}

func (h *Handler) approveRequest(c *gin.Context) {
	h.voteRequest(c, true)
}

func (h *Handler) denyRequest(c *gin.Context) {
	h.voteRequest(c, false)
}

func (h *Handler) voteRequest(c *gin.Context, approve bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	requester := strings.TrimSpace(c.Param("requester"))
	if requester == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing requester"})
		return
	}

	var (
		req        *model.JoinRequest
		resolution service.RequestResolution
	)
	if approve {
		req, resolution, err = h.membership.Approve(c.Request.Context(), id, requester, principal)
	} else {
		req, resolution, err = h.membership.Deny(c.Request.Context(), id, requester, principal)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request":    toJoinRequestResponse(req),
		"resolution": string(resolution),
	})
}

type contributeRequest struct {
	RoundNumber int   `json:"round_number"`
	Amount      int64 `json:"amount" binding:"required"`
}

func (h *Handler) contribute(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}

	var req contributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contribution, payout, err := h.ledger.RecordContribution(c.Request.Context(), id, principal, req.RoundNumber, req.Amount)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response := gin.H{
		"contribution": gin.H{
			"id":           contribution.ID.String(),
			"plan_id":      contribution.PlanID.String(),
			"participant":  contribution.Participant,
			"round_number": contribution.RoundNumber,
			"amount":       contribution.Amount,
			"partial":      contribution.Partial,
		},
	}
	if payout != nil {
		response["payout"] = toPayoutResponse(payout)
	}
	c.JSON(http.StatusCreated, response)
}

func (h *Handler) roundStatus(c *gin.Context) {
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	round, err := strconv.Atoi(c.Param("round"))
	if err != nil || round < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid round number"})
		return
	}

	status, err := h.ledger.RoundStatus(c.Request.Context(), id, round)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round_number": round, "contributions": status})
}

func (h *Handler) cycleStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}

	status, err := h.ledger.CycleStatus(c.Request.Context(), id, principal.Address)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participant":     status.Participant,
		"round_number":    status.RoundNumber,
		"contributed":     status.Contributed,
		"required":        status.Required,
		"received_payout": status.ReceivedPayout,
	})
}

type payoutResponse struct {
	ID            string `json:"id"`
	PlanID        string `json:"plan_id"`
	Recipient     string `json:"recipient"`
	RoundNumber   int    `json:"round_number"`
	Amount        int64  `json:"amount"`
	ScheduledDate string `json:"scheduled_date"`
	Status        string `json:"status"`
}

func toPayoutResponse(payout *model.Payout) payoutResponse {
	return payoutResponse{
		ID:            payout.ID.String(),
		PlanID:        payout.PlanID.String(),
		Recipient:     payout.Recipient,
		RoundNumber:   payout.RoundNumber,
		Amount:        payout.Amount,
		ScheduledDate: payout.ScheduledDate.Format("2006-01-02T15:04:05Z07:00"),
		Status:        string(payout.Status),
	}
}

type settlePayoutRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

func (h *Handler) settlePayout(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	planID, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	payoutID, err := uuid.Parse(c.Param("payout_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payout id"})
		return
	}

	var req settlePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.plans.Get(c.Request.Context(), planID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if plan.Initiator != principal.Address {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the initiator settles payouts"})
		return
	}

	payout, err := h.ledger.SettlePayout(c.Request.Context(), planID, payoutID, *req.Completed)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayoutResponse(payout))
}

func (h *Handler) listPayouts(c *gin.Context) {
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	payouts, err := h.ledger.Payouts(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	responses := make([]payoutResponse, 0, len(payouts))
	for i := range payouts {
		responses = append(responses, toPayoutResponse(&payouts[i]))
	}
	c.JSON(http.StatusOK, gin.H{"payouts": responses})
}

type transactionResponse struct {
	ID            string `json:"id"`
	Subject       string `json:"subject"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
	Kind          string `json:"kind"`
	PlanID        string `json:"plan_id,omitempty"`
	RoundNumber   *int   `json:"round_number,omitempty"`
	Status        string `json:"status"`
	ExternalRef   string `json:"external_ref,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	SettledAt     string `json:"settled_at,omitempty"`
}

func toTransactionResponse(record *model.TransactionRecord) transactionResponse {
	response := transactionResponse{
		ID:            record.ID.String(),
		Subject:       record.Subject,
		Amount:        record.Amount,
		Description:   record.Description,
		Kind:          string(record.Kind),
		RoundNumber:   record.RoundNumber,
		Status:        string(record.Status),
		ExternalRef:   record.ExternalRef,
		FailureReason: record.FailureReason,
		CreatedAt:     record.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if record.PlanID != nil {
		response.PlanID = record.PlanID.String()
	}
	if record.SettledAt != nil {
		response.SettledAt = record.SettledAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return response
}

type submitTransactionRequest struct {
	Kind        string `json:"kind" binding:"required"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	PlanID      string `json:"plan_id"`
	RoundNumber *int   `json:"round_number"`
	SignedTx    string `json:"signed_tx" binding:"required"`
	Gasless     bool   `json:"gasless"`
}

func (h *Handler) submitTransaction(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req submitTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, ok := model.ParseTransactionKind(req.Kind)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
		return
	}
	signedTx, err := base64.StdEncoding.DecodeString(req.SignedTx)
	if err != nil || len(signedTx) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signed_tx must be non-empty base64"})
		return
	}

	var planID *uuid.UUID
	if strings.TrimSpace(req.PlanID) != "" {
		parsed, err := uuid.Parse(strings.TrimSpace(req.PlanID))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan_id"})
			return
		}
		planID = &parsed
	}

	record, err := h.submitter.Submit(c.Request.Context(), service.SubmitInput{
		Kind:        kind,
		Subject:     principal.Address,
		Amount:      req.Amount,
		Description: req.Description,
		PlanID:      planID,
		RoundNumber: req.RoundNumber,
		SignedTx:    signedTx,
		Gasless:     req.Gasless,
	})
	if err != nil {
		// The record, when it exists, carries the failure detail.
		if record != nil {
			h.handleSubmitError(c, err, record)
			return
		}
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTransactionResponse(record))
}

func (h *Handler) handleSubmitError(c *gin.Context, err error, record *model.TransactionRecord) {
	status := http.StatusBadGateway
	if errors.Is(err, service.ErrSubsidyUnavailable) {
		status = http.StatusPaymentRequired
	}
	c.JSON(status, gin.H{
		"error":       err.Error(),
		"transaction": toTransactionResponse(record),
	})
}

func (h *Handler) getTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}
	record, err := h.reconciler.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResponse(record))
}

type confirmTransactionRequest struct {
	TxHash string `json:"tx_hash" binding:"required"`
}

func (h *Handler) confirmTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	var req confirmTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.reconciler.SettleConfirmed(c.Request.Context(), id, req.TxHash); err != nil {
		h.handleError(c, err)
		return
	}

	record, err := h.reconciler.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResponse(record))
}

type failTransactionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) failTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	var req failTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.reconciler.SettleFailed(c.Request.Context(), id, req.Reason); err != nil {
		h.handleError(c, err)
		return
	}

	record, err := h.reconciler.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResponse(record))
}

func (h *Handler) history(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	records, err := h.reconciler.HistoryBySubject(c.Request.Context(), principal.Address)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": toTransactionResponses(records)})
}

func (h *Handler) planHistory(c *gin.Context) {
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	records, err := h.reconciler.HistoryByPlan(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": toTransactionResponses(records)})
}

func toTransactionResponses(records []model.TransactionRecord) []transactionResponse {
	responses := make([]transactionResponse, 0, len(records))
	for i := range records {
		responses = append(responses, toTransactionResponse(&records[i]))
	}
	return responses
}

func (h *Handler) exportStatement(c *gin.Context) {
	statement, name, ok := h.loadStatement(c)
	if !ok {
		return
	}
	content, err := h.excel.Generate(*statement)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+name+".xlsx\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
}

func (h *Handler) exportStatementPDF(c *gin.Context) {
	statement, name, ok := h.loadStatement(c)
	if !ok {
		return
	}
	content, err := h.pdf.Generate(*statement)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+name+".pdf\"")
	c.Data(http.StatusOK, "application/pdf", content)
}

func (h *Handler) loadStatement(c *gin.Context) (*model.PlanStatement, string, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return nil, "", false
	}
	id, err := parsePlanID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return nil, "", false
	}

	statement, err := h.ledger.Statement(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return nil, "", false
	}
	if !statement.Plan.IsParticipant(principal.Address) && statement.Plan.Initiator != principal.Address {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this plan"})
		return nil, "", false
	}
	return statement, fmt.Sprintf("plan-statement-%s", id.String()[:8]), true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrDuplicateRequest),
		errors.Is(err, service.ErrAlreadySettled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientAmount):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSubsidyUnavailable):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrLedgerFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parsePlanID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(c.Param("id")))
}
