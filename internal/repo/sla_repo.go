// Package repo – SLA alert and incident persistence.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// CreateAlert inserts an alert for a (report, threshold) pair. Returns
// ErrDuplicate when the sweep already raised this alert, which is what makes
// re-running the sweep idempotent.
func CreateAlert(ctx context.Context, db *gorm.DB, a *domain.SlaAlert) error {
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// CreateIncident opens a breach incident for a report. One incident per
// report; ErrDuplicate on re-detection of the same breach.
func CreateIncident(ctx context.Context, db *gorm.DB, inc *domain.SlaIncident) error {
	if err := db.WithContext(ctx).Create(inc).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// AcknowledgeAlert records a supervisor acknowledgment. Acknowledging twice
// is a no-op for the second caller (zero rows → ErrNotFound).
func AcknowledgeAlert(ctx context.Context, db *gorm.DB, id, supervisorID string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.SlaAlert{}).
		Where("id = ? AND acknowledged_at IS NULL", id).
		Updates(map[string]any{
			"acknowledged_by": supervisorID,
			"acknowledged_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUnacknowledgedAlerts returns unacknowledged alerts at or above the
// given threshold, oldest first, so the longest-ignored alerts surface for
// escalation.
func ListUnacknowledgedAlerts(ctx context.Context, db *gorm.DB, minThreshold, limit int) ([]domain.SlaAlert, error) {
	var out []domain.SlaAlert
	q := db.WithContext(ctx).
		Where("acknowledged_at IS NULL AND threshold >= ?", minThreshold).
		Order("raised_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListOpenIncidents returns open incidents, oldest first.
func ListOpenIncidents(ctx context.Context, db *gorm.DB) ([]domain.SlaIncident, error) {
	var out []domain.SlaIncident
	err := db.WithContext(ctx).
		Where("status = ?", domain.IncidentOpen).
		Order("opened_at asc").
		Find(&out).Error
	return out, err
}

// CloseIncident records root cause and corrective action on an open
// incident.
func CloseIncident(ctx context.Context, db *gorm.DB, id, rootCause, corrective string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.SlaIncident{}).
		Where("id = ? AND status = ?", id, domain.IncidentOpen).
		Updates(map[string]any{
			"status":            domain.IncidentClosed,
			"root_cause":        rootCause,
			"corrective_action": corrective,
			"closed_at":         at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
