// Package repo – compliance aggregates.
//
// Small aggregate queries feeding the ops/dashboard query surfaces: reports
// approaching breach, per-day compliance counts, and handling-time figures.
// Each function is context-aware and safe to call from services or handlers.
package repo

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// ReportsNearingBreach returns open reports whose SLA deadline falls within
// the horizon, ordered by deadline.
func ReportsNearingBreach(ctx context.Context, db *gorm.DB, horizon time.Duration, now time.Time) ([]domain.ContentReport, error) {
	var out []domain.ContentReport
	err := db.WithContext(ctx).
		Where("status IN ? AND sla_deadline <= ?",
			[]string{domain.ReportStatusPending, domain.ReportStatusInReview}, now.Add(horizon)).
		Order("sla_deadline asc").
		Find(&out).Error
	return out, err
}

// StatusCount is one row of a grouped count query.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// CountReportsByStatus groups reports created on the given UTC day by
// status.
func CountReportsByStatus(ctx context.Context, db *gorm.DB, day time.Time) ([]StatusCount, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	var out []StatusCount
	err := db.WithContext(ctx).
		Model(&domain.ContentReport{}).
		Select("status, count(*) as count").
		Where("created_at >= ? AND created_at < ?", start, end).
		Group("status").
		Scan(&out).Error
	return out, err
}

// CountDecisionsByAction groups decisions created on the given UTC day by
// action.
func CountDecisionsByAction(ctx context.Context, db *gorm.DB, day time.Time) ([]StatusCount, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	var out []StatusCount
	err := db.WithContext(ctx).
		Model(&domain.ModerationDecision{}).
		Select("action as status, count(*) as count").
		Where("created_at >= ? AND created_at < ?", start, end).
		Group("action").
		Scan(&out).Error
	return out, err
}

// BreachStats returns, for the given UTC day, the number of reports that
// breached their SLA and the total resolved, for the breach-rate figure.
func BreachStats(ctx context.Context, db *gorm.DB, day time.Time) (breached, resolved int64, err error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	err = db.WithContext(ctx).
		Model(&domain.SlaIncident{}).
		Where("opened_at >= ? AND opened_at < ?", start, end).
		Count(&breached).Error
	if err != nil {
		return 0, 0, err
	}

	err = db.WithContext(ctx).
		Model(&domain.ContentReport{}).
		Where("status = ? AND updated_at >= ? AND updated_at < ?", domain.ReportStatusResolved, start, end).
		Count(&resolved).Error
	return breached, resolved, err
}

// MedianHandlingTime returns the median intake-to-resolution duration over
// reports resolved on the given UTC day, zero when none were. The median is
// computed here rather than in SQL so the query stays portable between
// Postgres and SQLite.
func MedianHandlingTime(ctx context.Context, db *gorm.DB, day time.Time) (time.Duration, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	var rows []struct {
		CreatedAt time.Time
		UpdatedAt time.Time
	}
	err := db.WithContext(ctx).
		Model(&domain.ContentReport{}).
		Select("created_at, updated_at").
		Where("status = ? AND updated_at >= ? AND updated_at < ?", domain.ReportStatusResolved, start, end).
		Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return 0, err
	}

	durations := make([]time.Duration, 0, len(rows))
	for _, r := range rows {
		durations = append(durations, r.UpdatedAt.Sub(r.CreatedAt))
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	mid := len(durations) / 2
	if len(durations)%2 == 1 {
		return durations[mid], nil
	}
	return (durations[mid-1] + durations[mid]) / 2, nil
}
