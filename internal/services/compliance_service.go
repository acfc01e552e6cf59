// Package services – ComplianceService
//
// Read-only aggregates for the operations dashboard and the regulator-facing
// daily figures: reports approaching breach, per-day intake and decision
// counts, and the breach rate.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
)

// ComplianceService serves the ops and reporting query surfaces.
type ComplianceService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewComplianceService constructs a ComplianceService.
func NewComplianceService(db *gorm.DB) *ComplianceService {
	return &ComplianceService{DB: db}
}

// NearingBreach returns open reports whose SLA deadline falls within the
// horizon, most urgent first.
func (s *ComplianceService) NearingBreach(ctx context.Context, horizon time.Duration) ([]domain.ContentReport, error) {
	if horizon <= 0 {
		horizon = 4 * time.Hour
	}
	return repo.ReportsNearingBreach(ctx, s.DB, horizon, time.Now().UTC())
}

// DailyReport is one UTC day of compliance figures.
type DailyReport struct {
	Day                string             `json:"day"`
	ReportsByStatus    []repo.StatusCount `json:"reports_by_status"`
	DecisionsByAction  []repo.StatusCount `json:"decisions_by_action"`
	Breached           int64              `json:"breached"`
	Resolved           int64              `json:"resolved"`
	BreachRate         float64            `json:"breach_rate"`
	MedianHandlingSecs float64            `json:"median_handling_seconds"`
}

// Daily assembles the compliance figures for the UTC day containing t.
func (s *ComplianceService) Daily(ctx context.Context, t time.Time) (*DailyReport, error) {
	day := t.UTC().Truncate(24 * time.Hour)

	byStatus, err := repo.CountReportsByStatus(ctx, s.DB, day)
	if err != nil {
		return nil, err
	}
	byAction, err := repo.CountDecisionsByAction(ctx, s.DB, day)
	if err != nil {
		return nil, err
	}
	breached, resolved, err := repo.BreachStats(ctx, s.DB, day)
	if err != nil {
		return nil, err
	}
	median, err := repo.MedianHandlingTime(ctx, s.DB, day)
	if err != nil {
		return nil, err
	}

	rep := &DailyReport{
		Day:                day.Format("2006-01-02"),
		ReportsByStatus:    byStatus,
		DecisionsByAction:  byAction,
		Breached:           breached,
		Resolved:           resolved,
		MedianHandlingSecs: median.Seconds(),
	}
	if total := breached + resolved; total > 0 {
		rep.BreachRate = float64(breached) / float64(total)
	}
	return rep, nil
}
