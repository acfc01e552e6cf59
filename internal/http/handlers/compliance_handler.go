// Compliance, SLA, and operations HTTP handlers.
//
// This file exposes the supervisor/admin surface:
//   - GET  /sla/alerts                   (unacknowledged deadline alerts)
//   - POST /sla/alerts/{id}/ack          (acknowledge one)
//   - GET  /sla/incidents                (open breach incidents)
//   - POST /sla/incidents/{id}/close     (close with a root cause)
//   - GET  /compliance/nearing-breach    (reports approaching their deadline)
//   - GET  /compliance/daily             (per-day compliance summary)
//   - GET  /notifications/due            (outbox rows ready for delivery)
//   - POST /notifications/{id}/delivered (delivery callback)
//   - POST /notifications/{id}/failed    (delivery callback)
//   - GET  /exports/dead-letters         (parked Transparency Database exports)
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/services"
	"github.com/cultivarhq/go-moderation-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SlaService defines deadline monitoring operations consumed by HTTP handlers.
type SlaService interface {
	// Acknowledge marks an alert as seen by a supervisor.
	Acknowledge(ctx context.Context, alertID, supervisorID string) error
	// Unacknowledged lists open alerts at or above a threshold.
	Unacknowledged(ctx context.Context, minThreshold, limit int) ([]domain.SlaAlert, error)
	// OpenIncidents lists unresolved breach incidents.
	OpenIncidents(ctx context.Context) ([]domain.SlaIncident, error)
	// CloseIncident resolves an incident with a root cause and corrective action.
	CloseIncident(ctx context.Context, id, rootCause, corrective string) error
}

// ComplianceService defines reporting operations consumed by HTTP handlers.
type ComplianceService interface {
	// NearingBreach lists open reports whose deadline falls within the horizon.
	NearingBreach(ctx context.Context, horizon time.Duration) ([]domain.ContentReport, error)
	// Daily summarizes one day of moderation activity.
	Daily(ctx context.Context, t time.Time) (*services.DailyReport, error)
}

// NotificationService exposes the outbox to delivery workers.
type NotificationService interface {
	// Due returns pending notifications scheduled at or before now.
	Due(ctx context.Context, limit int) ([]domain.Notification, error)
	// MarkDelivered records a successful delivery callback.
	MarkDelivered(ctx context.Context, id string) error
	// MarkFailed records a failed delivery callback.
	MarkFailed(ctx context.Context, id string) error
}

// ExportService exposes the Transparency Database export queue.
type ExportService interface {
	// DeadLetters returns exports that exhausted their attempt budget.
	DeadLetters(ctx context.Context, limit int) ([]domain.SorExport, error)
}

//
// Request DTOs
//

// CloseIncidentRequest documents why a deadline was missed.
type CloseIncidentRequest struct {
	RootCause        string `json:"root_cause" binding:"required,min=1"`
	CorrectiveAction string `json:"corrective_action" binding:"required,min=1"`
}

//
// Handlers
//

// ListSlaAlerts godoc
// @ID          listSlaAlerts
// @Summary     List unacknowledged SLA alerts
// @Tags        SLA
// @Produce     json
//
// @Param       min_threshold  query  int  false  "Minimum threshold percent"  default(75)
// @Param       limit          query  int  false  "Max items"                  default(50)
//
// @Success     200  {array}   domain.SlaAlert
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sla/alerts [get]
func (h *Handlers) ListSlaAlerts(c *gin.Context) {
	min := utils.AtoiDefault(c.Query("min_threshold"), 75)
	alerts, err := h.slaSvc.Unacknowledged(c.Request.Context(), min, clampLimit(c, 50, 200))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, alerts)
}

// AckSlaAlert godoc
// @ID          ackSlaAlert
// @Summary     Acknowledge an SLA alert
// @Tags        SLA
// @Produce     json
//
// @Param       id  path  string  true  "Alert ID"
//
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sla/alerts/{id}/ack [post]
func (h *Handlers) AckSlaAlert(c *gin.Context) {
	if err := h.slaSvc.Acknowledge(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ListSlaIncidents godoc
// @ID          listSlaIncidents
// @Summary     List open SLA breach incidents
// @Tags        SLA
// @Produce     json
//
// @Success     200  {array}   domain.SlaIncident
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sla/incidents [get]
func (h *Handlers) ListSlaIncidents(c *gin.Context) {
	incidents, err := h.slaSvc.OpenIncidents(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, incidents)
}

// CloseSlaIncident godoc
// @ID          closeSlaIncident
// @Summary     Close an SLA breach incident
// @Description Resolves the incident with the documented root cause and corrective action.
// @Tags        SLA
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Incident ID"
// @Param       body  body  handlers.CloseIncidentRequest  true  "Root cause payload"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Already closed"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sla/incidents/{id}/close [post]
func (h *Handlers) CloseSlaIncident(c *gin.Context) {
	var req CloseIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.slaSvc.CloseIncident(c.Request.Context(), c.Param("id"), req.RootCause, req.CorrectiveAction); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// NearingBreach godoc
// @ID          nearingBreach
// @Summary     Reports approaching their deadline
// @Tags        Compliance
// @Produce     json
//
// @Param       horizon_hours  query  int  false  "Look-ahead window in hours"  default(4)
//
// @Success     200  {array}   domain.ContentReport
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /compliance/nearing-breach [get]
func (h *Handlers) NearingBreach(c *gin.Context) {
	hours := utils.AtoiDefault(c.Query("horizon_hours"), 4)
	if hours < 1 {
		hours = 4
	}
	reports, err := h.compSvc.NearingBreach(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, reports)
}

// DailyCompliance godoc
// @ID          dailyCompliance
// @Summary     Daily compliance summary
// @Description Summarizes report, decision, and breach activity for one day (default: today, UTC).
// @Tags        Compliance
// @Produce     json
//
// @Param       date  query  string  false  "Day to summarize (YYYY-MM-DD)"  example(2026-02-14)
//
// @Success     200  {object}  services.DailyReport
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /compliance/daily [get]
func (h *Handlers) DailyCompliance(c *gin.Context) {
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	report, err := h.compSvc.Daily(c.Request.Context(), day)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, report)
}

// DueNotifications godoc
// @ID          dueNotifications
// @Summary     List notifications ready for delivery
// @Tags        Notifications
// @Produce     json
//
// @Param       limit  query  int  false  "Max items"  default(50)
//
// @Success     200  {array}   domain.Notification
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /notifications/due [get]
func (h *Handlers) DueNotifications(c *gin.Context) {
	due, err := h.notifySvc.Due(c.Request.Context(), clampLimit(c, 50, 200))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, due)
}

// NotificationDelivered godoc
// @ID          notificationDelivered
// @Summary     Record a successful delivery
// @Tags        Notifications
// @Produce     json
//
// @Param       id  path  string  true  "Notification ID"
//
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /notifications/{id}/delivered [post]
func (h *Handlers) NotificationDelivered(c *gin.Context) {
	if err := h.notifySvc.MarkDelivered(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// NotificationFailed godoc
// @ID          notificationFailed
// @Summary     Record a failed delivery
// @Tags        Notifications
// @Produce     json
//
// @Param       id  path  string  true  "Notification ID"
//
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /notifications/{id}/failed [post]
func (h *Handlers) NotificationFailed(c *gin.Context) {
	if err := h.notifySvc.MarkFailed(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ExportDeadLetters godoc
// @ID          exportDeadLetters
// @Summary     List dead-lettered Transparency Database exports
// @Tags        Compliance
// @Produce     json
//
// @Param       limit  query  int  false  "Max items"  default(50)
//
// @Success     200  {array}   domain.SorExport
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /exports/dead-letters [get]
func (h *Handlers) ExportDeadLetters(c *gin.Context) {
	rows, err := h.exportSvc.DeadLetters(c.Request.Context(), clampLimit(c, 50, 200))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rows)
}
