// Package repo – content report persistence.
//
// Thin CRUD over content_reports and content_snapshots. Status transitions
// go through SetReportStatus, which performs a single conditional UPDATE so
// monotonicity (no resolved → pending) holds under concurrent writers.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// CreateReport inserts a new report row. ID and timestamps are set by the
// caller (the intake service owns deadline and priority computation).
func CreateReport(ctx context.Context, db *gorm.DB, r *domain.ContentReport) error {
	return db.WithContext(ctx).Create(r).Error
}

// GetReport fetches a report by ID, or ErrNotFound.
func GetReport(ctx context.Context, db *gorm.DB, id string) (*domain.ContentReport, error) {
	var r domain.ContentReport
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// SetReportStatus moves a report from one of the allowed source statuses to
// the target status in a single conditional UPDATE. Returns ErrNotFound
// when the report does not exist or is not in an allowed source status,
// which keeps transitions monotonic without a read-then-write race.
func SetReportStatus(ctx context.Context, db *gorm.DB, id string, from []string, to string) error {
	res := db.WithContext(ctx).
		Model(&domain.ContentReport{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindRecentReport returns the earliest non-duplicate report by the same
// reporter against the same content hash within the dedupe window, or
// ErrNotFound.
func FindRecentReport(ctx context.Context, db *gorm.DB, contentHash, reporterID string, since time.Time) (*domain.ContentReport, error) {
	var r domain.ContentReport
	err := db.WithContext(ctx).
		Where("content_hash = ? AND reporter_id = ? AND status <> ? AND created_at >= ?",
			contentHash, reporterID, domain.ReportStatusDuplicate, since).
		Order("created_at asc").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListOpenReports returns unresolved reports (pending or in_review) ordered
// by SLA deadline, soonest first. Used by the SLA sweep and the moderation
// queue.
func ListOpenReports(ctx context.Context, db *gorm.DB, limit int) ([]domain.ContentReport, error) {
	var out []domain.ContentReport
	q := db.WithContext(ctx).
		Where("status IN ?", []string{domain.ReportStatusPending, domain.ReportStatusInReview}).
		Order("sla_deadline asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListReportsPage returns a page of reports filtered by status (empty status
// means all), newest first, plus the total count for pagination metadata.
func ListReportsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.ContentReport, int64, error) {
	q := db.WithContext(ctx).Model(&domain.ContentReport{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.ContentReport
	err := q.Order("created_at desc").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// FindSnapshot returns the most recent snapshot for a content hash captured
// at or after the cutoff, or ErrNotFound.
func FindSnapshot(ctx context.Context, db *gorm.DB, contentHash string, capturedAfter time.Time) (*domain.ContentSnapshot, error) {
	var s domain.ContentSnapshot
	err := db.WithContext(ctx).
		Where("content_hash = ? AND captured_at >= ?", contentHash, capturedAfter).
		Order("captured_at desc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSnapshot stores a new content snapshot and returns it.
func CreateSnapshot(ctx context.Context, db *gorm.DB, contentID, contentType, contentHash string, payload []byte) (*domain.ContentSnapshot, error) {
	s := &domain.ContentSnapshot{
		ID:          uuid.NewString(),
		ContentID:   contentID,
		ContentType: contentType,
		ContentHash: contentHash,
		Payload:     payload,
		CapturedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}
