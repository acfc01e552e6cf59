// Package services – ExecutionService
//
// This file applies decisions to the platform: visibility changes, removal,
// suspensions, geo blocks, and restrictions. Execution is exactly-once: the
// execution row is inserted first inside the transaction, so a concurrent or
// retried execute hits the unique decision constraint, rolls back without
// side effects, and reads back the winner's record. The user notification is
// written to an outbox table in the same transaction and fanned out over
// Redis after commit on a best-effort basis.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
)

// NotificationChannel is the Redis pub/sub channel carrying outbox rows to
// delivery workers.
const NotificationChannel = "moderation.notifications"

// Default restriction durations, in days, when the decision does not name one.
const (
	defaultSuspensionDays  = 30
	defaultRestrictionDays = 7
)

// ExecutionService applies approved decisions and records their execution.
type ExecutionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Ledger records execution events.
	Ledger *AuditLedger
	// Redis, when non-nil, fans out notification outbox rows after commit.
	Redis *redis.Client
}

// NewExecutionService constructs an ExecutionService. redisClient may be nil;
// the outbox then relies on polling alone.
func NewExecutionService(db *gorm.DB, ledger *AuditLedger, redisClient *redis.Client) *ExecutionService {
	return &ExecutionService{DB: db, Ledger: ledger, Redis: redisClient}
}

// ExecuteInput identifies the decision to apply and who is applying it.
type ExecuteInput struct {
	DecisionID string
	ExecutedBy string
	// DurationDays overrides the default duration for suspensions and
	// restrictions.
	DurationDays *int
}

// Execute applies a decision exactly once. Re-executing an already-executed
// decision returns the original execution record and applies nothing. A
// pending high-impact decision is refused until a supervisor approves it.
func (s *ExecutionService) Execute(ctx context.Context, in ExecuteInput) (*domain.ActionExecution, error) {
	d, err := repo.GetDecision(ctx, s.DB, in.DecisionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDecisionNotFound
		}
		return nil, err
	}
	switch d.Status {
	case domain.DecisionStatusExecuted:
		return repo.GetExecutionByDecision(ctx, s.DB, d.ID)
	case domain.DecisionStatusReversed:
		return nil, ErrAlreadyResolved
	}
	if d.RequiresApproval && d.Status != domain.DecisionStatusApproved {
		return nil, ErrApprovalRequired
	}

	r, err := repo.GetReport(ctx, s.DB, d.ReportID)
	if err != nil {
		return nil, err
	}
	var sor *domain.StatementOfReasons
	if d.StatementID != nil {
		if sor, err = repo.GetStatement(ctx, s.DB, *d.StatementID); err != nil {
			return nil, err
		}
	}

	// Resolve the content author up front so the stored execution row and
	// the replay read both carry it. A no_action outcome touches no content.
	var authorID string
	if d.Action != domain.ActionNoAction {
		c, err := repo.GetContent(ctx, s.DB, r.ContentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrContentNotFound
			}
			return nil, err
		}
		authorID = c.AuthorID
	}

	now := time.Now().UTC()
	exec := &domain.ActionExecution{
		ID:         uuid.NewString(),
		DecisionID: d.ID,
		Action:     d.Action,
		ContentID:  r.ContentID,
		UserID:     authorID,
		ReasonCode: reasonCode(sor),
		ExecutedBy: in.ExecutedBy,
		ExecutedAt: now,
	}
	if sor != nil {
		exec.TerritorialScope = sor.TerritorialScope
	}
	if days := durationDays(d.Action, in.DurationDays); days > 0 {
		until := now.AddDate(0, 0, days)
		exec.DurationDays = &days
		exec.ExpiresAt = &until
	}

	var notif *domain.Notification
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Insert before side effects: a duplicate-execute race aborts here
		// with nothing applied.
		if err := repo.CreateExecution(ctx, tx, exec); err != nil {
			return err
		}
		if err := s.dispatch(ctx, tx, d, r, exec, now); err != nil {
			return err
		}
		if err := repo.MarkDecisionExecuted(ctx, tx, d.ID, now); err != nil {
			return err
		}
		if err := repo.SetReportStatus(ctx, tx, r.ID,
			[]string{domain.ReportStatusPending, domain.ReportStatusInReview},
			domain.ReportStatusResolved); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err := repo.ClearClaim(ctx, tx, r.ID); err != nil {
			return err
		}

		notif = s.outboxRow(d, r, exec, now)
		if err := repo.CreateNotification(ctx, tx, notif); err != nil {
			return err
		}

		_, err := s.Ledger.RecordWith(ctx, tx, RecordInput{
			EventType:  EventActionExecuted,
			ActorID:    in.ExecutedBy,
			ActorType:  domain.ActorTypeModerator,
			TargetID:   d.ID,
			TargetType: "moderation_decision",
			Action:     d.Action,
			Metadata: domain.Meta(domain.ExecutionMeta{
				DecisionID:  d.ID,
				Action:      d.Action,
				ContentID:   exec.ContentID,
				UserID:      exec.UserID,
				Territories: exec.TerritorialScope,
			}),
			IdempotencyKey: "exec:" + d.ID,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Another writer executed this decision first.
			return repo.GetExecutionByDecision(ctx, s.DB, d.ID)
		}
		return nil, err
	}

	metricActionsExecuted.WithLabelValues(d.Action).Inc()
	s.publish(ctx, notif)
	return exec, nil
}

// GetByDecision fetches the execution record for a decision.
func (s *ExecutionService) GetByDecision(ctx context.Context, decisionID string) (*domain.ActionExecution, error) {
	e, err := repo.GetExecutionByDecision(ctx, s.DB, decisionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDecisionNotFound
		}
		return nil, err
	}
	return e, nil
}

// dispatch applies the action's side effects inside the execution
// transaction. The action set is closed at decision validation; an unknown
// value reaching this switch means corrupted state, not bad input.
func (s *ExecutionService) dispatch(ctx context.Context, tx *gorm.DB, d *domain.ModerationDecision, r *domain.ContentReport, exec *domain.ActionExecution, now time.Time) error {
	switch d.Action {
	case domain.ActionNoAction:
		return nil

	case domain.ActionQuarantine:
		return repo.QuarantineContent(ctx, tx, r.ContentID, now)

	case domain.ActionRemove:
		return repo.SoftDeleteContent(ctx, tx, r.ContentID, exec.ExecutedBy, exec.ReasonCode, now)

	case domain.ActionGeoBlock:
		blocks := make([]domain.GeoBlock, 0, len(exec.TerritorialScope))
		for _, territory := range exec.TerritorialScope {
			blocks = append(blocks, domain.GeoBlock{
				ID:         uuid.NewString(),
				ContentID:  r.ContentID,
				Territory:  territory,
				ReasonCode: exec.ReasonCode,
				DecisionID: d.ID,
			})
		}
		if len(blocks) == 0 {
			return ErrMissingTerritory
		}
		return repo.InsertGeoBlocks(ctx, tx, blocks)

	case domain.ActionShadowBan:
		if err := repo.ShadowContent(ctx, tx, r.ContentID); err != nil {
			return err
		}
		return repo.InsertRestriction(ctx, tx, s.restriction(d, exec, domain.RestrictionShadowBan, now))

	case domain.ActionRateLimit:
		return repo.InsertRestriction(ctx, tx, s.restriction(d, exec, domain.RestrictionRateLimit, now))

	case domain.ActionSuspendUser:
		if err := repo.SuspendUser(ctx, tx, exec.UserID, *exec.ExpiresAt); err != nil {
			return err
		}
		return repo.InsertRestriction(ctx, tx, s.restriction(d, exec, domain.RestrictionSuspension, now))

	default:
		panic(fmt.Sprintf("execution: action %q passed decision validation", d.Action))
	}
}

func (s *ExecutionService) restriction(d *domain.ModerationDecision, exec *domain.ActionExecution, kind string, now time.Time) *domain.ContentRestriction {
	return &domain.ContentRestriction{
		ID:         uuid.NewString(),
		UserID:     exec.UserID,
		DecisionID: d.ID,
		Kind:       kind,
		ReasonCode: exec.ReasonCode,
		StartsAt:   now,
		ExpiresAt:  *exec.ExpiresAt,
	}
}

// outboxRow builds the user notification for an executed decision. Actions
// against content notify the author; a no_action outcome notifies the
// reporter that the notice was reviewed and closed.
func (s *ExecutionService) outboxRow(d *domain.ModerationDecision, r *domain.ContentReport, exec *domain.ActionExecution, now time.Time) *domain.Notification {
	userID := exec.UserID
	if d.Action == domain.ActionNoAction || userID == "" {
		userID = r.ReporterID
	}
	return &domain.Notification{
		ID:           uuid.NewString(),
		UserID:       userID,
		DecisionID:   d.ID,
		Action:       d.Action,
		ScheduledFor: now,
		Status:       domain.NotificationPending,
	}
}

// publish fans the outbox row out over Redis. Best effort: delivery workers
// also poll the outbox, so a failed publish only delays the notification.
func (s *ExecutionService) publish(ctx context.Context, n *domain.Notification) {
	if s.Redis == nil || n == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := s.Redis.Publish(ctx, NotificationChannel, payload).Err(); err != nil {
		log.Warn().Err(err).Str("notification_id", n.ID).Msg("notification publish failed")
	}
}

func reasonCode(sor *domain.StatementOfReasons) string {
	if sor == nil {
		return ""
	}
	return "ground:" + sor.DecisionGround
}

func durationDays(action string, override *int) int {
	if override != nil && *override > 0 {
		return *override
	}
	switch action {
	case domain.ActionSuspendUser:
		return defaultSuspensionDays
	case domain.ActionRateLimit, domain.ActionShadowBan:
		return defaultRestrictionDays
	default:
		return 0
	}
}
