// Package services – SlaService
//
// This file implements deadline monitoring over the open report queue. The
// sweep walks unresolved reports, computes how much of each SLA window has
// elapsed, and raises warning (75%), critical (90%), and breach (100%)
// alerts. Alert rows are unique per (report, threshold), so running the sweep
// twice never pages anyone twice. A confirmed breach additionally opens an
// incident that management closes with a root cause and corrective action.
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
)

// SlaService raises and manages SLA alerts and breach incidents.
type SlaService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Ledger records breach incidents.
	Ledger *AuditLedger
}

// NewSlaService constructs a SlaService.
func NewSlaService(db *gorm.DB, ledger *AuditLedger) *SlaService {
	return &SlaService{DB: db, Ledger: ledger}
}

// SweepStats summarizes one monitoring pass.
type SweepStats struct {
	Scanned   int `json:"scanned"`
	Warnings  int `json:"warnings"`
	Criticals int `json:"criticals"`
	Breaches  int `json:"breaches"`
}

// Sweep scans open reports and raises every threshold alert that the elapsed
// share of the SLA window has crossed. Idempotent: already-raised alerts and
// already-open incidents are skipped via their unique constraints.
func (s *SlaService) Sweep(ctx context.Context, now time.Time) (SweepStats, error) {
	now = now.UTC()
	var stats SweepStats

	reports, err := repo.ListOpenReports(ctx, s.DB, 0)
	if err != nil {
		return stats, err
	}
	stats.Scanned = len(reports)

	for i := range reports {
		r := &reports[i]
		pct := elapsedPct(r.CreatedAt, r.SLADeadline, now)
		for _, threshold := range []int{domain.SlaThresholdWarning, domain.SlaThresholdCritical, domain.SlaThresholdBreach} {
			if pct < threshold {
				break
			}
			raised, err := s.raise(ctx, r, threshold, now)
			if err != nil {
				return stats, err
			}
			if !raised {
				continue
			}
			switch threshold {
			case domain.SlaThresholdWarning:
				stats.Warnings++
			case domain.SlaThresholdCritical:
				stats.Criticals++
			case domain.SlaThresholdBreach:
				stats.Breaches++
			}
		}
		if pct >= domain.SlaThresholdBreach {
			if err := s.openIncident(ctx, r, now); err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

// raise inserts one alert; reports false when the sweep already raised it.
func (s *SlaService) raise(ctx context.Context, r *domain.ContentReport, threshold int, now time.Time) (bool, error) {
	err := repo.CreateAlert(ctx, s.DB, &domain.SlaAlert{
		ID:        uuid.NewString(),
		ReportID:  r.ID,
		Threshold: threshold,
		Severity:  severityName(threshold),
		RaisedAt:  now,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	metricSlaAlerts.WithLabelValues(strconv.Itoa(threshold)).Inc()
	log.Warn().
		Str("report_id", r.ID).
		Int("threshold", threshold).
		Time("sla_deadline", r.SLADeadline).
		Msg("sla: threshold crossed")
	return true, nil
}

// openIncident opens the breach incident for a report, once.
func (s *SlaService) openIncident(ctx context.Context, r *domain.ContentReport, now time.Time) error {
	err := repo.CreateIncident(ctx, s.DB, &domain.SlaIncident{
		ID:             uuid.NewString(),
		ReportID:       r.ID,
		BreachDuration: int64(now.Sub(r.SLADeadline).Seconds()),
		Status:         domain.IncidentOpen,
		OpenedAt:       now,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil
		}
		return err
	}
	metricSlaBreaches.Inc()

	_, err = s.Ledger.Record(ctx, RecordInput{
		EventType:      EventSlaBreach,
		ActorID:        "sla-monitor",
		ActorType:      domain.ActorTypeSystem,
		TargetID:       r.ID,
		TargetType:     "content_report",
		Action:         "breach",
		IdempotencyKey: "sla-breach:" + r.ID,
	})
	return err
}

// Acknowledge records a supervisor acknowledgment on an alert.
func (s *SlaService) Acknowledge(ctx context.Context, alertID, supervisorID string) error {
	if err := repo.AcknowledgeAlert(ctx, s.DB, alertID, supervisorID, time.Now().UTC()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAlertNotFound
		}
		return err
	}
	return nil
}

// Unacknowledged returns outstanding alerts at or above the threshold,
// longest-ignored first.
func (s *SlaService) Unacknowledged(ctx context.Context, minThreshold, limit int) ([]domain.SlaAlert, error) {
	if minThreshold <= 0 {
		minThreshold = domain.SlaThresholdWarning
	}
	return repo.ListUnacknowledgedAlerts(ctx, s.DB, minThreshold, limit)
}

// OpenIncidents returns open breach incidents, oldest first.
func (s *SlaService) OpenIncidents(ctx context.Context) ([]domain.SlaIncident, error) {
	return repo.ListOpenIncidents(ctx, s.DB)
}

// CloseIncident closes an incident with its post-mortem fields.
func (s *SlaService) CloseIncident(ctx context.Context, id, rootCause, corrective string) error {
	rootCause = strings.TrimSpace(rootCause)
	corrective = strings.TrimSpace(corrective)
	if rootCause == "" || corrective == "" {
		return ErrMissingReasoning
	}
	if err := repo.CloseIncident(ctx, s.DB, id, rootCause, corrective, time.Now().UTC()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAlreadyResolved
		}
		return err
	}
	return nil
}

// elapsedPct returns how much of the window from start to deadline has
// elapsed at now, as an integer percentage. A degenerate window counts as
// fully elapsed.
func elapsedPct(start, deadline, now time.Time) int {
	window := deadline.Sub(start)
	if window <= 0 {
		return domain.SlaThresholdBreach
	}
	pct := int(now.Sub(start) * 100 / window)
	if pct < 0 {
		return 0
	}
	return pct
}

func severityName(threshold int) string {
	switch threshold {
	case domain.SlaThresholdBreach:
		return "breach"
	case domain.SlaThresholdCritical:
		return "critical"
	default:
		return "warning"
	}
}
