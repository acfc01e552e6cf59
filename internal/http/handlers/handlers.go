// Handler wiring shared by all endpoint files.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Service contracts live next to
// the endpoints that consume them; this file holds the aggregate struct and
// small helpers shared across resources.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/cultivarhq/go-moderation-backend/internal/utils"
)

// Handlers aggregates all endpoint implementations over injected services.
type Handlers struct {
	reportSvc ReportService
	modSvc    ModerationService
	execSvc   ExecutionService
	appealSvc AppealService
	auditSvc  AuditService
	slaSvc    SlaService
	compSvc   ComplianceService
	notifySvc NotificationService
	exportSvc ExportService
}

// New constructs the handler set from its service dependencies.
func New(
	reports ReportService,
	moderation ModerationService,
	executions ExecutionService,
	appeals AppealService,
	audit AuditService,
	sla SlaService,
	compliance ComplianceService,
	notifications NotificationService,
	exports ExportService,
) *Handlers {
	return &Handlers{
		reportSvc: reports,
		modSvc:    moderation,
		execSvc:   executions,
		appealSvc: appeals,
		auditSvc:  audit,
		slaSvc:    sla,
		compSvc:   compliance,
		notifySvc: notifications,
		exportSvc: exports,
	}
}

// userID returns the authenticated caller id set by the auth middleware,
// falling back to the X-User-ID demo header and finally "anonymous".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if h := c.GetHeader("X-User-ID"); h != "" {
		return h
	}
	return "anonymous"
}

// Pagination describes the shape of paginated list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// clampLimit bounds a ?limit query param for non-paginated listings.
func clampLimit(c *gin.Context, def, max int) int {
	n := utils.AtoiDefault(c.Query("limit"), def)
	if n < 1 {
		n = def
	}
	return utils.ClampInt(n, 1, max)
}
