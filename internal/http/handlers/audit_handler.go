// Audit ledger HTTP handlers.
//
// This file exposes REST endpoints for the signed audit trail:
//   - GET  /audit/events                (history for one target)
//   - GET  /audit/events/{id}/verify    (signature verification)
//   - GET  /audit/partitions/{id}       (partition metadata)
//   - POST /audit/partitions/{id}/seal  (seal a closed monthly partition)
//   - POST /audit/keys/rotate           (rotate the signing key)
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

// AuditService defines the ledger operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AuditService interface {
	// TargetHistory returns the ordered event trail for one target.
	TargetHistory(ctx context.Context, targetType, targetID string) ([]domain.AuditEvent, error)
	// Verify recomputes one event's signature.
	Verify(ctx context.Context, eventID string) (*services.VerifyResult, error)
	// GetPartition fetches partition metadata by id (YYYY-MM).
	GetPartition(ctx context.Context, id string) (*domain.AuditPartition, error)
	// SealPartition seals a closed monthly partition.
	SealPartition(ctx context.Context, partitionID string) (*domain.AuditPartition, error)
	// RotateKey retires the active signing key and installs a new one.
	RotateKey(ctx context.Context, newSecret string) (*domain.SigningKey, error)
	// ActiveKeyVersion reports the version currently signing new events.
	ActiveKeyVersion() int
}

//
// Request/response DTOs
//

// RotateKeyRequest carries the new signing secret.
type RotateKeyRequest struct {
	Secret string `json:"secret" binding:"required,min=32"`
}

// RotateKeyResponse reports the installed key without echoing material.
type RotateKeyResponse struct {
	Version   int    `json:"version" example:"2"`
	Status    string `json:"status" example:"active"`
	CreatedAt string `json:"created_at" example:"2026-03-01T10:30:00Z"`
}

//
// Handlers
//

// AuditHistory godoc
// @ID          auditHistory
// @Summary     Event trail for a target
// @Description Returns the ordered audit events recorded against one target, e.g. a report or decision.
// @Tags        Audit
// @Produce     json
//
// @Param       target_type  query  string  true  "Target type"  example(report)
// @Param       target_id    query  string  true  "Target ID"
//
// @Success     200  {array}   domain.AuditEvent
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /audit/events [get]
func (h *Handlers) AuditHistory(c *gin.Context) {
	targetType := c.Query("target_type")
	targetID := c.Query("target_id")
	if targetType == "" || targetID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "target_type and target_id are required")
		return
	}
	events, err := h.auditSvc.TargetHistory(c.Request.Context(), targetType, targetID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, events)
}

// VerifyEvent godoc
// @ID          verifyEvent
// @Summary     Verify an audit event signature
// @Description Recomputes the HMAC over the canonical payload. An invalid signature is reported in the body, not as an error status.
// @Tags        Audit
// @Produce     json
//
// @Param       id  path  string  true  "Event ID"
//
// @Success     200  {object}  services.VerifyResult
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /audit/events/{id}/verify [get]
func (h *Handlers) VerifyEvent(c *gin.Context) {
	res, err := h.auditSvc.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// GetPartition godoc
// @ID          getPartition
// @Summary     Fetch audit partition metadata
// @Tags        Audit
// @Produce     json
//
// @Param       id  path  string  true  "Partition ID (YYYY-MM)"  example(2026-02)
//
// @Success     200  {object}  domain.AuditPartition
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /audit/partitions/{id} [get]
func (h *Handlers) GetPartition(c *gin.Context) {
	p, err := h.auditSvc.GetPartition(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// SealPartition godoc
// @ID          sealPartition
// @Summary     Seal a monthly audit partition
// @Description Verifies every event in the partition, computes the checksum, signs the manifest, and marks the partition sealed. Re-sealing an identical partition is a no-op; divergence yields 409.
// @Tags        Audit
// @Produce     json
//
// @Param       id  path  string  true  "Partition ID (YYYY-MM)"  example(2026-02)
//
// @Success     200  {object}  domain.AuditPartition
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Checksum diverges from the stored seal"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /audit/partitions/{id}/seal [post]
func (h *Handlers) SealPartition(c *gin.Context) {
	p, err := h.auditSvc.SealPartition(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// RotateKey godoc
// @ID          rotateKey
// @Summary     Rotate the audit signing key
// @Description Retires the active key into its verification overlap window and installs the new secret as the next version. Key material is never echoed back.
// @Tags        Audit
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RotateKeyRequest  true  "New signing secret"
//
// @Success     201  {object}  handlers.RotateKeyResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Key too weak"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /audit/keys/rotate [post]
func (h *Handlers) RotateKey(c *gin.Context) {
	var req RotateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	k, err := h.auditSvc.RotateKey(c.Request.Context(), req.Secret)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, RotateKeyResponse{
		Version:   k.Version,
		Status:    k.Status,
		CreatedAt: k.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}
