// Moderation workflow HTTP handlers.
//
// This file exposes REST endpoints for the claim/decision/execution flow:
//   - POST   /reports/{id}/claim       (acquire the exclusive review lock)
//   - DELETE /reports/{id}/claim       (release it)
//   - POST   /reports/{id}/decision    (record decision + statement of reasons)
//   - GET    /decisions/{id}           (fetch a decision)
//   - POST   /decisions/{id}/approve   (supervisor approval of high-impact actions)
//   - POST   /decisions/{id}/execute   (apply the decision exactly once)
//   - GET    /decisions/{id}/execution (fetch the execution record)
//   - GET    /statements/{id}          (fetch a statement of reasons)
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ModerationService defines claim, decision, and approval operations consumed
// by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ModerationService interface {
	// Claim acquires the exclusive review lock on a report.
	Claim(ctx context.Context, reportID, moderatorID string) (*domain.ModerationClaim, error)
	// Release drops the caller's claim on a report.
	Release(ctx context.Context, reportID, moderatorID string) error
	// RecordDecision persists the decision and its statement of reasons.
	RecordDecision(ctx context.Context, in services.DecisionInput) (*domain.ModerationDecision, *domain.StatementOfReasons, error)
	// Approve records supervisor approval of a high-impact decision.
	Approve(ctx context.Context, decisionID, supervisorID string) (*domain.ModerationDecision, error)
	// GetDecision fetches a decision by id.
	GetDecision(ctx context.Context, id string) (*domain.ModerationDecision, error)
	// GetStatement fetches a statement of reasons by id.
	GetStatement(ctx context.Context, id string) (*domain.StatementOfReasons, error)
}

// ExecutionService defines decision enforcement operations.
type ExecutionService interface {
	// Execute applies a decision exactly once.
	Execute(ctx context.Context, in services.ExecuteInput) (*domain.ActionExecution, error)
	// GetByDecision fetches the execution record for a decision.
	GetByDecision(ctx context.Context, decisionID string) (*domain.ActionExecution, error)
}

//
// Request/response DTOs
//

// DecisionRequest is a moderator's decision plus its statement of reasons.
type DecisionRequest struct {
	Action           string   `json:"action" binding:"required" example:"remove"`
	PolicyViolations []string `json:"policy_violations,omitempty"`
	Reasoning        string   `json:"reasoning" binding:"required,min=1"`
	Evidence         []string `json:"evidence,omitempty"`

	Ground             string   `json:"ground" binding:"required" example:"illegal"`
	LegalReference     string   `json:"legal_reference,omitempty" example:"DE StGB 130"`
	Facts              string   `json:"facts" binding:"required,min=1"`
	AutomatedDetection bool     `json:"automated_detection"`
	AutomatedDecision  bool     `json:"automated_decision"`
	TerritorialScope   []string `json:"territorial_scope,omitempty"`
	RedressOptions     []string `json:"redress_options,omitempty"`
}

// DecisionResponse pairs a decision with its statement of reasons.
type DecisionResponse struct {
	Decision  *domain.ModerationDecision `json:"decision"`
	Statement *domain.StatementOfReasons `json:"statement"`
}

// ExecuteRequest optionally overrides the default enforcement duration.
type ExecuteRequest struct {
	DurationDays *int `json:"duration_days,omitempty" example:"14"`
}

//
// Handlers
//

// ClaimReport godoc
// @ID          claimReport
// @Summary     Claim a report for review
// @Description Acquires the exclusive review lock. A lapsed claim by another moderator is superseded; an active one yields 409 with the holder and expiry.
// @Tags        Moderation
// @Produce     json
//
// @Param       id  path  string  true  "Report ID"
//
// @Success     201  {object}  domain.ModerationClaim
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Actively claimed or already resolved"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /reports/{id}/claim [post]
func (h *Handlers) ClaimReport(c *gin.Context) {
	claim, err := h.modSvc.Claim(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, claim)
}

// ReleaseClaim godoc
// @ID          releaseClaim
// @Summary     Release a claim
// @Tags        Moderation
// @Produce     json
//
// @Param       id  path  string  true  "Report ID"
//
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the claim holder"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /reports/{id}/claim [delete]
func (h *Handlers) ReleaseClaim(c *gin.Context) {
	if err := h.modSvc.Release(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// RecordDecision godoc
// @ID          recordDecision
// @Summary     Record a moderation decision
// @Description Persists the decision and its statement of reasons atomically and queues the statement for Transparency Database export. The caller must hold the claim.
// @Tags        Moderation
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Report ID"
// @Param       body  body  handlers.DecisionRequest  true  "Decision payload"
//
// @Success     201  {object}  handlers.DecisionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Claim held by another moderator"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /reports/{id}/decision [post]
func (h *Handlers) RecordDecision(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	d, sor, err := h.modSvc.RecordDecision(c.Request.Context(), services.DecisionInput{
		ReportID:           c.Param("id"),
		ModeratorID:        userID(c),
		Action:             req.Action,
		PolicyViolations:   req.PolicyViolations,
		Reasoning:          req.Reasoning,
		Evidence:           req.Evidence,
		Ground:             req.Ground,
		LegalReference:     req.LegalReference,
		Facts:              req.Facts,
		AutomatedDetection: req.AutomatedDetection,
		AutomatedDecision:  req.AutomatedDecision,
		TerritorialScope:   req.TerritorialScope,
		RedressOptions:     req.RedressOptions,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, DecisionResponse{Decision: d, Statement: sor})
}

// GetDecision godoc
// @ID          getDecision
// @Summary     Fetch a decision
// @Tags        Moderation
// @Produce     json
//
// @Param       id  path  string  true  "Decision ID"
//
// @Success     200  {object}  domain.ModerationDecision
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /decisions/{id} [get]
func (h *Handlers) GetDecision(c *gin.Context) {
	d, err := h.modSvc.GetDecision(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// ApproveDecision godoc
// @ID          approveDecision
// @Summary     Approve a high-impact decision
// @Description Records supervisor approval. The approver must differ from the deciding moderator.
// @Tags        Moderation
// @Produce     json
//
// @Param       id  path  string  true  "Decision ID"
//
// @Success     200  {object}  domain.ModerationDecision
// @Failure     403  {object}  handlers.ErrorResponse  "Self approval"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "No approval pending"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /decisions/{id}/approve [post]
func (h *Handlers) ApproveDecision(c *gin.Context) {
	d, err := h.modSvc.Approve(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// ExecuteDecision godoc
// @ID          executeDecision
// @Summary     Execute a decision
// @Description Applies the decided action exactly once. Re-executing returns the original execution record unchanged.
// @Tags        Moderation
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true   "Decision ID"
// @Param       body  body  handlers.ExecuteRequest  false  "Optional overrides"
//
// @Success     200  {object}  domain.ActionExecution
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Approval pending or decision reversed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /decisions/{id}/execute [post]
func (h *Handlers) ExecuteDecision(c *gin.Context) {
	var req ExecuteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	exec, err := h.execSvc.Execute(c.Request.Context(), services.ExecuteInput{
		DecisionID:   c.Param("id"),
		ExecutedBy:   userID(c),
		DurationDays: req.DurationDays,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, exec)
}

// GetExecution godoc
// @ID          getExecution
// @Summary     Fetch the execution record for a decision
// @Tags        Moderation
// @Produce     json
//
// @Param       id  path  string  true  "Decision ID"
//
// @Success     200  {object}  domain.ActionExecution
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /decisions/{id}/execution [get]
func (h *Handlers) GetExecution(c *gin.Context) {
	exec, err := h.execSvc.GetByDecision(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, exec)
}

// GetStatement godoc
// @ID          getStatement
// @Summary     Fetch a statement of reasons
// @Tags        Moderation
// @Produce     json
//
// @Param       id  path  string  true  "Statement ID"
//
// @Success     200  {object}  domain.StatementOfReasons
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /statements/{id} [get]
func (h *Handlers) GetStatement(c *gin.Context) {
	sor, err := h.modSvc.GetStatement(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, sor)
}
