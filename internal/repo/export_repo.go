// Package repo – Transparency Database export queue persistence.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// EnqueueExport inserts a pending export for a statement of reasons.
// Returns ErrDuplicate when the statement is already queued.
func EnqueueExport(ctx context.Context, db *gorm.DB, e *domain.SorExport) error {
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DueExports returns pending exports whose next attempt is due, oldest
// first.
func DueExports(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.SorExport, error) {
	var out []domain.SorExport
	q := db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", domain.ExportPending, now).
		Order("next_attempt_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// MarkExportFailure bumps the attempt counter and schedules the next retry,
// or parks the row in dead_letter when the attempt budget is spent.
func MarkExportFailure(ctx context.Context, db *gorm.DB, id string, attempts, maxAttempts int, lastErr string, nextAttempt time.Time) error {
	status := domain.ExportPending
	if attempts >= maxAttempts {
		status = domain.ExportDeadLetter
	}
	return db.WithContext(ctx).
		Model(&domain.SorExport{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          status,
			"attempts":        attempts,
			"last_error":      lastErr,
			"next_attempt_at": nextAttempt,
		}).Error
}

// MarkExportSubmitted records a successful submission and the external id.
func MarkExportSubmitted(ctx context.Context, db *gorm.DB, id, externalID string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.SorExport{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       domain.ExportSubmitted,
			"external_id":  externalID,
			"submitted_at": at,
		}).Error
}
