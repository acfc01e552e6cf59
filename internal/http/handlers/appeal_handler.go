// Appeal and dispute-settlement HTTP handlers.
//
// This file exposes REST endpoints for the redress flow:
//   - POST /decisions/{id}/appeals    (file an appeal)
//   - GET  /appeals/{id}              (fetch one)
//   - POST /appeals/{id}/review       (assign an independent reviewer)
//   - POST /appeals/{id}/resolve      (record the verdict)
//   - POST /appeals/{id}/escalate     (take the appeal to a certified dispute body)
//   - POST /appeals/{id}/ods-outcome  (record the dispute body's verdict)
//   - GET  /ods-bodies                (list certified bodies)
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

// AppealService defines redress operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AppealService interface {
	// File opens an appeal against a decision.
	File(ctx context.Context, in services.FileAppealInput) (*domain.Appeal, error)
	// StartReview assigns an independent reviewer to an appeal.
	StartReview(ctx context.Context, appealID, reviewerID string) (*domain.Appeal, error)
	// Resolve records the appeal outcome, reversing upheld decisions.
	Resolve(ctx context.Context, in services.ResolveAppealInput) (*domain.Appeal, error)
	// EscalateToODS opens an out-of-court dispute case.
	EscalateToODS(ctx context.Context, in services.EscalateInput) (*domain.ODSEscalation, error)
	// CloseEscalation records the dispute body's verdict.
	CloseEscalation(ctx context.Context, in services.CloseEscalationInput) (*domain.ODSEscalation, error)
	// Get fetches an appeal by id.
	Get(ctx context.Context, id string) (*domain.Appeal, error)
	// ListBodies lists certified dispute bodies, optionally by jurisdiction.
	ListBodies(ctx context.Context, jurisdiction string) ([]domain.OdsBody, error)
}

//
// Request/response DTOs
//

// FileAppealRequest is a user's challenge to a decision.
type FileAppealRequest struct {
	AppealType       string   `json:"appeal_type,omitempty" example:"decision"`
	CounterArguments string   `json:"counter_arguments" binding:"required,min=1"`
	Evidence         []string `json:"evidence,omitempty"`
}

// ResolveAppealRequest is a reviewer's verdict on an appeal.
type ResolveAppealRequest struct {
	Outcome   string `json:"outcome" binding:"required" example:"upheld"`
	Reasoning string `json:"reasoning" binding:"required,min=1"`
}

// EscalateRequest names the certified body the appellant chose.
type EscalateRequest struct {
	OdsBodyID string `json:"ods_body_id" binding:"required,min=1" example:"ods-eu-01"`
}

// OdsOutcomeRequest records the dispute body's verdict.
type OdsOutcomeRequest struct {
	Status         string `json:"status" binding:"required" example:"resolved"`
	Outcome        string `json:"outcome,omitempty" example:"decision overturned"`
	ActionRequired bool   `json:"action_required"`
}

//
// Handlers
//

// FileAppeal godoc
// @ID          fileAppeal
// @Summary     File an appeal against a decision
// @Description Opens an appeal with a handling deadline floored at the configured minimum window. One appeal per user per decision.
// @Tags        Appeals
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Decision ID"
// @Param       body  body  handlers.FileAppealRequest  true  "Appeal payload"
//
// @Success     201  {object}  domain.Appeal
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Decision not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Appeal already filed"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /decisions/{id}/appeals [post]
func (h *Handlers) FileAppeal(c *gin.Context) {
	var req FileAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	a, err := h.appealSvc.File(c.Request.Context(), services.FileAppealInput{
		DecisionID:       c.Param("id"),
		UserID:           userID(c),
		AppealType:       req.AppealType,
		CounterArguments: req.CounterArguments,
		Evidence:         req.Evidence,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, a)
}

// GetAppeal godoc
// @ID          getAppeal
// @Summary     Fetch an appeal
// @Tags        Appeals
// @Produce     json
//
// @Param       id  path  string  true  "Appeal ID"
//
// @Success     200  {object}  domain.Appeal
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /appeals/{id} [get]
func (h *Handlers) GetAppeal(c *gin.Context) {
	a, err := h.appealSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// ReviewAppeal godoc
// @ID          reviewAppeal
// @Summary     Start reviewing an appeal
// @Description Assigns the caller as reviewer. The reviewer must differ from the moderator who made the original decision.
// @Tags        Appeals
// @Produce     json
//
// @Param       id  path  string  true  "Appeal ID"
//
// @Success     200  {object}  domain.Appeal
// @Failure     403  {object}  handlers.ErrorResponse  "Reviewer not independent"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /appeals/{id}/review [post]
func (h *Handlers) ReviewAppeal(c *gin.Context) {
	a, err := h.appealSvc.StartReview(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// ResolveAppeal godoc
// @ID          resolveAppeal
// @Summary     Resolve an appeal
// @Description Records the verdict. An upheld appeal reverses the original decision and rolls its enforcement back.
// @Tags        Appeals
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Appeal ID"
// @Param       body  body  handlers.ResolveAppealRequest  true  "Verdict payload"
//
// @Success     200  {object}  domain.Appeal
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Reviewer not independent"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already resolved"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /appeals/{id}/resolve [post]
func (h *Handlers) ResolveAppeal(c *gin.Context) {
	var req ResolveAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	a, err := h.appealSvc.Resolve(c.Request.Context(), services.ResolveAppealInput{
		AppealID:   c.Param("id"),
		ReviewerID: userID(c),
		Outcome:    req.Outcome,
		Reasoning:  req.Reasoning,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// EscalateAppeal godoc
// @ID          escalateAppeal
// @Summary     Escalate an appeal to a dispute body
// @Description Opens an out-of-court dispute case with a certified body. Only the appellant may escalate, and only once per appeal.
// @Tags        Appeals
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Appeal ID"
// @Param       body  body  handlers.EscalateRequest  true  "Escalation payload"
//
// @Success     201  {object}  domain.ODSEscalation
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Caller is not the appellant"
// @Failure     404  {object}  handlers.ErrorResponse  "Appeal or body not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already escalated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /appeals/{id}/escalate [post]
func (h *Handlers) EscalateAppeal(c *gin.Context) {
	var req EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	e, err := h.appealSvc.EscalateToODS(c.Request.Context(), services.EscalateInput{
		AppealID:  c.Param("id"),
		UserID:    userID(c),
		OdsBodyID: req.OdsBodyID,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, e)
}

// RecordOdsOutcome godoc
// @ID          recordOdsOutcome
// @Summary     Record a dispute body's verdict
// @Tags        Appeals
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Appeal ID"
// @Param       body  body  handlers.OdsOutcomeRequest  true  "Outcome payload"
//
// @Success     200  {object}  domain.ODSEscalation
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already closed"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /appeals/{id}/ods-outcome [post]
func (h *Handlers) RecordOdsOutcome(c *gin.Context) {
	var req OdsOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	e, err := h.appealSvc.CloseEscalation(c.Request.Context(), services.CloseEscalationInput{
		AppealID:       c.Param("id"),
		RecordedBy:     userID(c),
		Status:         req.Status,
		Outcome:        req.Outcome,
		ActionRequired: req.ActionRequired,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, e)
}

// ListOdsBodies godoc
// @ID          listOdsBodies
// @Summary     List certified dispute bodies
// @Tags        Appeals
// @Produce     json
//
// @Param       jurisdiction  query  string  false  "Filter by jurisdiction"  example(DE)
//
// @Success     200  {array}   domain.OdsBody
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /ods-bodies [get]
func (h *Handlers) ListOdsBodies(c *gin.Context) {
	bodies, err := h.appealSvc.ListBodies(c.Request.Context(), c.Query("jurisdiction"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, bodies)
}
