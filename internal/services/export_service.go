// Package services – ExportService
//
// This file drains the Transparency Database export queue. Each due row is
// submitted once per pump pass; a failure reschedules the row with
// exponential backoff until the attempt budget is spent and the row parks in
// dead_letter for manual review. Successful submissions stamp the remote
// correlation id back onto the statement of reasons.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/config"
	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
	"github.com/cultivarhq/go-moderation-backend/internal/transparency"
)

// exportBackoffBase is doubled per attempt: 1m, 2m, 4m, ...
const exportBackoffBase = time.Minute

// exportPageSize bounds one pump pass.
const exportPageSize = 100

// Submitter is the remote side of the export queue.
type Submitter interface {
	Submit(ctx context.Context, idempotencyKey string, sub transparency.Submission) (string, error)
}

// ExportService pumps queued statements of reasons to the Transparency
// Database.
type ExportService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Client submits to the remote database.
	Client Submitter

	MaxAttempts int
}

// NewExportService constructs an ExportService.
func NewExportService(db *gorm.DB, client Submitter, cfg config.TransparencyConfig) *ExportService {
	return &ExportService{DB: db, Client: client, MaxAttempts: cfg.MaxAttempts}
}

// Pump submits every due export once. Scheduler entry point; returns the
// number of successful submissions. A disabled client leaves the queue
// untouched so enabling the endpoint later drains the backlog.
func (s *ExportService) Pump(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	due, err := repo.DueExports(ctx, s.DB, now, exportPageSize)
	if err != nil {
		return 0, err
	}

	submitted := 0
	for i := range due {
		e := &due[i]
		if err := s.submitOne(ctx, e, now); err != nil {
			if errors.Is(err, transparency.ErrDisabled) {
				return submitted, nil
			}
			continue
		}
		submitted++
	}
	return submitted, nil
}

func (s *ExportService) submitOne(ctx context.Context, e *domain.SorExport, now time.Time) error {
	sub, err := s.buildSubmission(ctx, e.StatementID)
	if err != nil {
		s.fail(ctx, e, now, err)
		return err
	}

	externalID, err := s.Client.Submit(ctx, e.IdempotencyKey, *sub)
	if err != nil {
		if !errors.Is(err, transparency.ErrDisabled) {
			s.fail(ctx, e, now, err)
		}
		return err
	}

	if err := repo.MarkExportSubmitted(ctx, s.DB, e.ID, externalID, now); err != nil {
		return err
	}
	if err := repo.SetStatementSubmitted(ctx, s.DB, e.StatementID, externalID, now); err != nil {
		return err
	}
	metricExports.WithLabelValues("submitted").Inc()
	return nil
}

// buildSubmission assembles the redacted payload from the statement and its
// decision. Identities never leave the engine.
func (s *ExportService) buildSubmission(ctx context.Context, statementID string) (*transparency.Submission, error) {
	sor, err := repo.GetStatement(ctx, s.DB, statementID)
	if err != nil {
		return nil, err
	}
	d, err := repo.GetDecision(ctx, s.DB, sor.DecisionID)
	if err != nil {
		return nil, err
	}
	r, err := repo.GetReport(ctx, s.DB, d.ReportID)
	if err != nil {
		return nil, err
	}
	return &transparency.Submission{
		StatementID:        sor.ID,
		DecisionGround:     sor.DecisionGround,
		LegalReference:     sor.LegalReference,
		Facts:              sor.Facts,
		Action:             d.Action,
		ContentType:        r.ContentType,
		AutomatedDetection: sor.AutomatedDetection,
		AutomatedDecision:  sor.AutomatedDecision,
		TerritorialScope:   sor.TerritorialScope,
		DecidedAt:          d.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// fail reschedules the row with exponential backoff or parks it in
// dead_letter once the attempt budget is spent.
func (s *ExportService) fail(ctx context.Context, e *domain.SorExport, now time.Time, cause error) {
	attempts := e.Attempts + 1
	next := now.Add(exportBackoffBase << (attempts - 1))

	outcome := "failed"
	if attempts >= s.MaxAttempts {
		outcome = "dead_letter"
		log.Error().Err(cause).
			Str("export_id", e.ID).
			Str("statement_id", e.StatementID).
			Msg("transparency export dead-lettered")
	}
	metricExports.WithLabelValues(outcome).Inc()

	if err := repo.MarkExportFailure(ctx, s.DB, e.ID, attempts, s.MaxAttempts, cause.Error(), next); err != nil {
		log.Error().Err(err).Str("export_id", e.ID).Msg("export failure bookkeeping failed")
	}
}

// DeadLetters returns parked exports for manual review.
func (s *ExportService) DeadLetters(ctx context.Context, limit int) ([]domain.SorExport, error) {
	var out []domain.SorExport
	q := s.DB.WithContext(ctx).
		Where("status = ?", domain.ExportDeadLetter).
		Order("updated_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
