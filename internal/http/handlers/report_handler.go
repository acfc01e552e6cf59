// Report intake HTTP handlers.
//
// This file exposes REST endpoints for content report resources:
//   - POST   /reports             (submit a notice)
//   - GET    /reports             (list by status, paginated)
//   - GET    /reports/{id}        (fetch one)
//   - GET    /queue               (priority-ordered review queue)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ReportService defines notice intake operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ReportService interface {
	// Submit validates and stores a notice, deduplicating repeats.
	Submit(ctx context.Context, in services.SubmitReportInput) (*services.SubmitResult, error)
	// Get fetches a single report by id.
	Get(ctx context.Context, id string) (*domain.ContentReport, error)
	// ListPage returns a page of reports filtered by status and the total count.
	ListPage(ctx context.Context, status string, page, pageSize int) ([]domain.ContentReport, int64, error)
	// Queue returns open reports in priority order.
	Queue(ctx context.Context, limit int) ([]domain.ContentReport, error)
}

//
// Request/response DTOs
//

// SubmitReportRequest is the notice submission payload.
type SubmitReportRequest struct {
	ContentID       string   `json:"content_id" binding:"required,min=1,max=255" example:"post-9f3c"`
	ContentType     string   `json:"content_type" binding:"required" example:"post"`
	ContentLocator  string   `json:"content_locator" example:"https://example.com/p/9f3c"`
	ContentPayload  string   `json:"content_payload,omitempty"`
	ReporterContact string   `json:"reporter_contact,omitempty" example:"reporter@example.com"`
	ReportType      string   `json:"report_type" binding:"required" example:"illegal"`
	Jurisdiction    string   `json:"jurisdiction,omitempty" example:"DE"`
	LegalReference  string   `json:"legal_reference,omitempty" example:"DE StGB 130"`
	Explanation     string   `json:"explanation" binding:"required,min=1" example:"Incites violence against a minority"`
	GoodFaith       bool     `json:"good_faith" example:"true"`
	EvidenceURLs    []string `json:"evidence_urls,omitempty"`
}

// SubmitReportResponse wraps the stored report and the duplicate verdict.
type SubmitReportResponse struct {
	Report    *domain.ContentReport `json:"report"`
	Duplicate bool                  `json:"duplicate"`
}

// ListReportsResponse wraps a page of reports and pagination information.
type ListReportsResponse struct {
	Reports    []domain.ContentReport `json:"reports"`
	Pagination Pagination             `json:"pagination"`
}

//
// Handlers
//

// SubmitReport godoc
// @ID          submitReport
// @Summary     Submit a content report
// @Description Validates and stores a notice. A repeat notice from the same reporter against the same content is stored as a duplicate of the original.
// @Tags        Reports
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SubmitReportRequest  true  "Notice payload"
//
// @Success     201  {object}  handlers.SubmitReportResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /reports [post]
func (h *Handlers) SubmitReport(c *gin.Context) {
	var req SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	role := roleOf(c)
	res, err := h.reportSvc.Submit(c.Request.Context(), services.SubmitReportInput{
		ContentID:       strings.TrimSpace(req.ContentID),
		ContentType:     req.ContentType,
		ContentLocator:  req.ContentLocator,
		ContentPayload:  []byte(req.ContentPayload),
		ReporterID:      userID(c),
		ReporterContact: req.ReporterContact,
		TrustedFlagger:  role == "moderator" || role == "supervisor" || role == "admin",
		ReportType:      req.ReportType,
		Jurisdiction:    req.Jurisdiction,
		LegalReference:  req.LegalReference,
		Explanation:     req.Explanation,
		GoodFaith:       req.GoodFaith,
		EvidenceURLs:    req.EvidenceURLs,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, SubmitReportResponse{Report: res.Report, Duplicate: res.Duplicate})
}

// GetReport godoc
// @ID          getReport
// @Summary     Fetch a report
// @Tags        Reports
// @Produce     json
//
// @Param       id  path  string  true  "Report ID"
//
// @Success     200  {object}  domain.ContentReport
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /reports/{id} [get]
func (h *Handlers) GetReport(c *gin.Context) {
	r, err := h.reportSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// ListReports godoc
// @ID          listReports
// @Summary     List reports (paginated)
// @Description Returns a page of reports, optionally filtered by status.
// @Tags        Reports
// @Produce     json
//
// @Param       status     query  string  false "Filter by status"  example(pending)
// @Param       page       query  int     false "Page number"       minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"    minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListReportsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /reports [get]
func (h *Handlers) ListReports(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.reportSvc.ListPage(c.Request.Context(), c.Query("status"), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListReportsResponse{
		Reports: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// ReviewQueue godoc
// @ID          reviewQueue
// @Summary     Priority review queue
// @Description Returns open reports ordered by priority then age.
// @Tags        Reports
// @Produce     json
//
// @Param       limit  query  int  false "Max items"  minimum(1) maximum(200) default(50)
//
// @Success     200  {array}   domain.ContentReport
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /queue [get]
func (h *Handlers) ReviewQueue(c *gin.Context) {
	items, err := h.reportSvc.Queue(c.Request.Context(), clampLimit(c, 50, 200))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// roleOf returns the authenticated role from the Gin context, defaulting to
// "user".
func roleOf(c *gin.Context) string {
	if v, ok := c.Get("role"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "user"
}
