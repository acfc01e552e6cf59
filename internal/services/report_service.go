// Package services – ReportService
//
// This file implements report intake: the notice-and-action entry point of
// the engine. Intake validates the notice, captures a content snapshot so the
// evidence survives later edits, detects duplicate notices from the same
// reporter, computes priority and the SLA deadline from the policy tables,
// and records the submission in the audit ledger.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/config"
	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
)

// ReportService handles notice intake and report reads.
type ReportService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Ledger records intake events.
	Ledger *AuditLedger

	SLA    config.SLAPolicy
	Policy config.ModerationConfig
}

// NewReportService constructs a ReportService from the policy tables.
func NewReportService(db *gorm.DB, ledger *AuditLedger, sla config.SLAPolicy, policy config.ModerationConfig) *ReportService {
	return &ReportService{DB: db, Ledger: ledger, SLA: sla, Policy: policy}
}

// SubmitReportInput is a validated-at-the-edge notice submission.
type SubmitReportInput struct {
	ContentID       string
	ContentType     string
	ContentLocator  string
	ContentPayload  []byte // raw capture of the reported material, may be empty
	ReporterID      string
	ReporterContact string
	TrustedFlagger  bool
	ReportType      string
	Jurisdiction    string
	LegalReference  string
	Explanation     string
	GoodFaith       bool
	EvidenceURLs    []string
}

// SubmitResult carries the stored report plus the duplicate verdict.
type SubmitResult struct {
	Report    *domain.ContentReport
	Duplicate bool
}

// Submit validates and stores a notice. Illegal-content notices must carry a
// jurisdiction and a legal reference; every notice needs an explanation and a
// good-faith declaration. A notice from the same reporter against the same
// content within the dedupe window is stored as a duplicate pointing at the
// original and does not re-enter the review queue.
func (s *ReportService) Submit(ctx context.Context, in SubmitReportInput) (*SubmitResult, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	hash := contentHash(in)
	snap, err := s.ensureSnapshot(ctx, in, hash, now)
	if err != nil {
		return nil, err
	}

	original, err := repo.FindRecentReport(ctx, s.DB, hash, in.ReporterID, now.Add(-s.Policy.DuplicateWindow))
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	duplicate := original != nil

	r := &domain.ContentReport{
		ID:              uuid.NewString(),
		ContentID:       in.ContentID,
		ContentType:     in.ContentType,
		ContentLocator:  in.ContentLocator,
		ContentHash:     hash,
		ReporterID:      in.ReporterID,
		ReporterContact: in.ReporterContact,
		TrustedFlagger:  in.TrustedFlagger,
		ReportType:      in.ReportType,
		Jurisdiction:    in.Jurisdiction,
		LegalReference:  in.LegalReference,
		Explanation:     in.Explanation,
		GoodFaith:       in.GoodFaith,
		EvidenceURLs:    in.EvidenceURLs,
		Status:          domain.ReportStatusPending,
		Priority:        s.priority(in),
		SLADeadline:     now.Add(s.SLA.Window(in.ReportType, in.TrustedFlagger)),
		SnapshotID:      &snap.ID,
	}
	if duplicate {
		r.Status = domain.ReportStatusDuplicate
		r.DuplicateOfID = &original.ID
		// A duplicate inherits no queue position; its SLA rides on the
		// original's deadline.
		r.SLADeadline = original.SLADeadline
	}
	if err := repo.CreateReport(ctx, s.DB, r); err != nil {
		return nil, err
	}

	eventType := EventReportSubmitted
	if duplicate {
		eventType = EventReportDuplicate
	}
	if _, err := s.Ledger.Record(ctx, RecordInput{
		EventType:  eventType,
		ActorID:    in.ReporterID,
		ActorType:  domain.ActorTypeUser,
		TargetID:   r.ID,
		TargetType: "content_report",
		Action:     "submit",
		Metadata: domain.Meta(domain.ReportMeta{
			ReportType:     r.ReportType,
			ContentType:    r.ContentType,
			TrustedFlagger: r.TrustedFlagger,
			Priority:       r.Priority,
			Duplicate:      duplicate,
		}),
		PII: in.ReporterContact != "",
	}); err != nil {
		return nil, err
	}

	metricReportsSubmitted.WithLabelValues(r.ReportType, strconv.FormatBool(duplicate)).Inc()
	return &SubmitResult{Report: r, Duplicate: duplicate}, nil
}

// Get fetches a report by ID.
func (s *ReportService) Get(ctx context.Context, id string) (*domain.ContentReport, error) {
	r, err := repo.GetReport(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return r, nil
}

// ListPage returns a page of reports filtered by status plus the total count.
func (s *ReportService) ListPage(ctx context.Context, status string, page, pageSize int) ([]domain.ContentReport, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return repo.ListReportsPage(ctx, s.DB, status, (page-1)*pageSize, pageSize)
}

// Queue returns open reports ordered by SLA deadline, soonest first.
func (s *ReportService) Queue(ctx context.Context, limit int) ([]domain.ContentReport, error) {
	return repo.ListOpenReports(ctx, s.DB, limit)
}

func (s *ReportService) validate(in *SubmitReportInput) error {
	in.Explanation = strings.TrimSpace(in.Explanation)
	in.Jurisdiction = strings.ToUpper(strings.TrimSpace(in.Jurisdiction))

	if in.Explanation == "" {
		return ErrMissingExplanation
	}
	if !in.GoodFaith {
		return ErrMissingGoodFaith
	}
	switch in.ReportType {
	case domain.ReportTypeIllegal, domain.ReportTypePolicyViolation:
	default:
		return ErrInvalidReportType
	}
	switch in.ContentType {
	case domain.ContentTypePost, domain.ContentTypeComment, domain.ContentTypeImage,
		domain.ContentTypeProfile, domain.ContentTypeOther:
	default:
		return ErrInvalidContentType
	}
	if in.ReportType == domain.ReportTypeIllegal {
		if in.Jurisdiction == "" {
			return ErrMissingJurisdiction
		}
		if strings.TrimSpace(in.LegalReference) == "" {
			return ErrMissingLegalReference
		}
	}
	if in.Jurisdiction != "" {
		if _, err := language.ParseRegion(in.Jurisdiction); err != nil {
			return ErrInvalidRegion
		}
	}
	return nil
}

// priority resolves the queue priority from the policy table, clamped to the
// column's 0..100 check constraint.
func (s *ReportService) priority(in SubmitReportInput) int {
	p := s.Policy.BasePriority
	if in.TrustedFlagger {
		p = s.Policy.TrustedPriority
	}
	if in.ReportType == domain.ReportTypeIllegal {
		p += s.Policy.IllegalPriorityUp
	}
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}

// ensureSnapshot reuses a recent capture of the same content hash or stores a
// fresh one.
func (s *ReportService) ensureSnapshot(ctx context.Context, in SubmitReportInput, hash string, now time.Time) (*domain.ContentSnapshot, error) {
	snap, err := repo.FindSnapshot(ctx, s.DB, hash, now.Add(-s.Policy.SnapshotRecency))
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return repo.CreateSnapshot(ctx, s.DB, in.ContentID, in.ContentType, hash, in.ContentPayload)
}

// contentHash addresses the reported material: the payload when provided,
// otherwise the stable identity (id + locator) of the content.
func contentHash(in SubmitReportInput) string {
	h := sha256.New()
	if len(in.ContentPayload) > 0 {
		h.Write(in.ContentPayload)
	} else {
		h.Write([]byte(in.ContentID))
		h.Write([]byte{0})
		h.Write([]byte(in.ContentLocator))
	}
	return hex.EncodeToString(h.Sum(nil))
}
