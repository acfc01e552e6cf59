// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., claim_conflict, approval_required) are reserved for
//     workflow errors that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Usage:
//   - Handlers pass service errors to failErr(), which selects the most specific
//     matching code; fail() remains available for transport-level failures.
//   - Clients are expected to branch on these codes for programmatic error handling.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "claim_conflict",
//	  "message": "report claimed by mod-7 until 2026-03-01T10:30:00Z"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cultivarhq/go-moderation-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeValidation       = "validation_failed"
	ErrCodeClaimConflict    = "claim_conflict"
	ErrCodeApprovalRequired = "approval_required"
	ErrCodeAlreadyResolved  = "already_resolved"
	ErrCodeSealMismatch     = "seal_mismatch"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// validationErrs are business-rule violations in the request payload. They
// map to 422 so clients can distinguish them from malformed JSON (400).
var validationErrs = []error{
	services.ErrMissingExplanation,
	services.ErrMissingGoodFaith,
	services.ErrMissingJurisdiction,
	services.ErrMissingLegalReference,
	services.ErrInvalidRegion,
	services.ErrInvalidReportType,
	services.ErrInvalidContentType,
	services.ErrInvalidAction,
	services.ErrMissingReasoning,
	services.ErrInvalidOutcome,
	services.ErrInvalidGround,
	services.ErrMissingTerritory,
	services.ErrWeakKey,
}

var notFoundErrs = []error{
	services.ErrReportNotFound,
	services.ErrDecisionNotFound,
	services.ErrStatementNotFound,
	services.ErrAppealNotFound,
	services.ErrContentNotFound,
	services.ErrEventNotFound,
	services.ErrPartitionNotFound,
	services.ErrOdsBodyNotFound,
	services.ErrAlertNotFound,
	services.ErrNotificationNotFound,
}

var forbiddenErrs = []error{
	services.ErrNotClaimOwner,
	services.ErrSelfApproval,
	services.ErrSameReviewer,
	services.ErrNotAppellant,
}

// failErr translates a service error into the standard error envelope.
//
// The claim conflict case is handled specially: the response carries the
// current holder and expiry so the client can show who owns the review.
func failErr(c *gin.Context, err error) {
	var conflict *services.ClaimConflict
	if errors.As(err, &conflict) {
		reqID := c.Writer.Header().Get("X-Request-ID")
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"request_id": reqID,
			"code":       ErrCodeClaimConflict,
			"message":    conflict.Error(),
			"claimed_by": conflict.HolderID,
			"expires_at": conflict.ExpiresAt,
		})
		return
	}

	switch {
	case matchesAny(err, validationErrs):
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case matchesAny(err, notFoundErrs):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case matchesAny(err, forbiddenErrs):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrApprovalRequired):
		fail(c, http.StatusConflict, ErrCodeApprovalRequired, err.Error())
	case errors.Is(err, services.ErrApprovalNotRequired),
		errors.Is(err, services.ErrDuplicateAppeal),
		errors.Is(err, services.ErrAlreadyEscalated):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrAlreadyResolved):
		fail(c, http.StatusConflict, ErrCodeAlreadyResolved, err.Error())
	case errors.Is(err, services.ErrPartitionSealed):
		fail(c, http.StatusConflict, ErrCodeSealMismatch, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

func matchesAny(err error, set []error) bool {
	for _, target := range set {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
