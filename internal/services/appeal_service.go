// Package services – AppealService
//
// This file implements the internal complaint-handling system and its bridge
// to out-of-court dispute settlement (ODS). An appeal is one user's challenge
// to one decision, reviewed by a moderator who was not the original decider.
// An upheld appeal reverses the decision and rolls back its side effects in
// the same transaction. A user unsatisfied with the outcome can escalate to a
// certified dispute body exactly once per appeal.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/config"
	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
)

// AppealService provides appeal filing, review, resolution, and ODS
// escalation.
type AppealService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Ledger records appeal lifecycle events.
	Ledger *AuditLedger

	Policy config.ModerationConfig
}

// NewAppealService constructs an AppealService.
func NewAppealService(db *gorm.DB, ledger *AuditLedger, policy config.ModerationConfig) *AppealService {
	return &AppealService{DB: db, Ledger: ledger, Policy: policy}
}

// FileAppealInput is a user's challenge to a decision.
type FileAppealInput struct {
	DecisionID       string
	UserID           string
	AppealType       string
	CounterArguments string
	Evidence         []string
}

// File opens an appeal against a decision. The handling deadline is floored
// at the configured minimum window (never under seven days). One appeal per
// (decision, user) pair.
func (s *AppealService) File(ctx context.Context, in FileAppealInput) (*domain.Appeal, error) {
	in.CounterArguments = strings.TrimSpace(in.CounterArguments)
	if in.CounterArguments == "" {
		return nil, ErrMissingReasoning
	}

	d, err := repo.GetDecision(ctx, s.DB, in.DecisionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDecisionNotFound
		}
		return nil, err
	}
	if d.Status == domain.DecisionStatusReversed {
		return nil, ErrAlreadyResolved
	}

	now := time.Now().UTC()
	a := &domain.Appeal{
		ID:               uuid.NewString(),
		DecisionID:       in.DecisionID,
		UserID:           in.UserID,
		AppealType:       in.AppealType,
		CounterArguments: in.CounterArguments,
		Evidence:         in.Evidence,
		Status:           domain.AppealStatusPending,
		SubmittedAt:      now,
		Deadline:         now.Add(s.Policy.AppealMinWindow),
	}
	if err := repo.CreateAppeal(ctx, s.DB, a); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateAppeal
		}
		return nil, err
	}

	if _, err := s.Ledger.Record(ctx, RecordInput{
		EventType:  EventAppealFiled,
		ActorID:    in.UserID,
		ActorType:  domain.ActorTypeUser,
		TargetID:   a.ID,
		TargetType: "appeal",
		Action:     "file",
		Metadata:   domain.Meta(domain.AppealMeta{DecisionID: in.DecisionID}),
	}); err != nil {
		return nil, err
	}

	metricAppealsFiled.Inc()
	return a, nil
}

// StartReview assigns a reviewer and moves the appeal into review. The
// reviewer must not be the moderator who made the original decision.
func (s *AppealService) StartReview(ctx context.Context, appealID, reviewerID string) (*domain.Appeal, error) {
	a, err := s.Get(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if err := s.requireIndependent(ctx, a.DecisionID, reviewerID); err != nil {
		return nil, err
	}
	if err := repo.StartAppealReview(ctx, s.DB, appealID, reviewerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrAlreadyResolved
		}
		return nil, err
	}
	return s.Get(ctx, appealID)
}

// ResolveAppealInput is a reviewer's verdict on an appeal.
type ResolveAppealInput struct {
	AppealID   string
	ReviewerID string
	Outcome    string
	Reasoning  string
}

// Resolve records the appeal outcome. An upheld appeal reverses the original
// decision and rolls its side effects back in the same transaction; partial
// and rejected outcomes leave the enforcement state alone. The appellant is
// notified through the outbox.
func (s *AppealService) Resolve(ctx context.Context, in ResolveAppealInput) (*domain.Appeal, error) {
	in.Reasoning = strings.TrimSpace(in.Reasoning)
	if in.Reasoning == "" {
		return nil, ErrMissingReasoning
	}
	switch in.Outcome {
	case domain.AppealOutcomeUpheld, domain.AppealOutcomeRejected, domain.AppealOutcomePartial:
	default:
		return nil, ErrInvalidOutcome
	}

	a, err := s.Get(ctx, in.AppealID)
	if err != nil {
		return nil, err
	}
	if err := s.requireIndependent(ctx, a.DecisionID, in.ReviewerID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.ResolveAppeal(ctx, tx, in.AppealID, in.Outcome, in.Reasoning, now); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrAlreadyResolved
			}
			return err
		}
		if in.Outcome == domain.AppealOutcomeUpheld {
			if err := s.reverse(ctx, tx, a.DecisionID, "appeal "+in.AppealID+" upheld", now); err != nil {
				return err
			}
		}
		if err := repo.CreateNotification(ctx, tx, &domain.Notification{
			ID:           uuid.NewString(),
			UserID:       a.UserID,
			DecisionID:   a.DecisionID,
			Action:       "appeal_" + in.Outcome,
			ScheduledFor: now,
			Status:       domain.NotificationPending,
		}); err != nil {
			return err
		}
		_, err := s.Ledger.RecordWith(ctx, tx, RecordInput{
			EventType:  EventAppealResolved,
			ActorID:    in.ReviewerID,
			ActorType:  domain.ActorTypeModerator,
			TargetID:   in.AppealID,
			TargetType: "appeal",
			Action:     in.Outcome,
			Metadata:   domain.Meta(domain.AppealMeta{DecisionID: a.DecisionID, Outcome: in.Outcome}),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, in.AppealID)
}

// reverse undoes an executed decision's side effects: content is restored,
// geo blocks dropped, restrictions expired, and a suspended author
// reinstated.
func (s *AppealService) reverse(ctx context.Context, tx *gorm.DB, decisionID, reason string, now time.Time) error {
	if err := repo.MarkDecisionReversed(ctx, tx, decisionID, reason, now); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Never executed; upholding the appeal needs no rollback.
			return nil
		}
		return err
	}
	exec, err := repo.GetExecutionByDecision(ctx, tx, decisionID)
	if err != nil {
		return err
	}
	switch exec.Action {
	case domain.ActionNoAction:
		return nil
	case domain.ActionQuarantine, domain.ActionRemove:
		return repo.RestoreContent(ctx, tx, exec.ContentID)
	case domain.ActionGeoBlock:
		return repo.RemoveGeoBlocks(ctx, tx, decisionID)
	case domain.ActionShadowBan:
		if err := repo.RestoreContent(ctx, tx, exec.ContentID); err != nil {
			return err
		}
		return repo.ExpireRestrictions(ctx, tx, decisionID, now)
	case domain.ActionRateLimit:
		return repo.ExpireRestrictions(ctx, tx, decisionID, now)
	case domain.ActionSuspendUser:
		if err := repo.ReinstateUser(ctx, tx, exec.UserID); err != nil {
			return err
		}
		return repo.ExpireRestrictions(ctx, tx, decisionID, now)
	default:
		return nil
	}
}

// EscalateInput is a user's request to take an appeal to a dispute body.
type EscalateInput struct {
	AppealID  string
	UserID    string
	OdsBodyID string
}

// EscalateToODS opens the external dispute case. Only the appellant may
// escalate, only to an active certified body, and only once per appeal; the
// unique escalation row makes the second attempt fail regardless of timing.
func (s *AppealService) EscalateToODS(ctx context.Context, in EscalateInput) (*domain.ODSEscalation, error) {
	a, err := s.Get(ctx, in.AppealID)
	if err != nil {
		return nil, err
	}
	if a.UserID != in.UserID {
		return nil, ErrNotAppellant
	}

	body, err := repo.GetOdsBody(ctx, s.DB, in.OdsBodyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOdsBodyNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	e := &domain.ODSEscalation{
		ID:               uuid.NewString(),
		AppealID:         in.AppealID,
		OdsBodyID:        body.ID,
		Status:           domain.OdsStatusSubmitted,
		SubmittedAt:      now,
		TargetResolution: now.Add(s.Policy.ODSTargetWindow),
	}
	if err := repo.CreateEscalation(ctx, s.DB, e); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrAlreadyEscalated
		}
		return nil, err
	}

	// A still-open appeal moves to escalated_to_ods; a resolved one keeps
	// its outcome on record while the dispute runs externally.
	if err := repo.MarkAppealEscalated(ctx, s.DB, in.AppealID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	if _, err := s.Ledger.Record(ctx, RecordInput{
		EventType:  EventAppealEscalated,
		ActorID:    in.UserID,
		ActorType:  domain.ActorTypeUser,
		TargetID:   in.AppealID,
		TargetType: "appeal",
		Action:     "escalate",
		Metadata:   domain.Meta(domain.AppealMeta{DecisionID: a.DecisionID, OdsBodyID: body.ID}),
	}); err != nil {
		return nil, err
	}
	return e, nil
}

// CloseEscalationInput records the dispute body's verdict.
type CloseEscalationInput struct {
	AppealID       string
	RecordedBy     string
	Status         string // resolved, expired, withdrawn
	Outcome        string
	ActionRequired bool
}

// CloseEscalation records the external outcome of a dispute case.
func (s *AppealService) CloseEscalation(ctx context.Context, in CloseEscalationInput) (*domain.ODSEscalation, error) {
	switch in.Status {
	case domain.OdsStatusResolved, domain.OdsStatusExpired, domain.OdsStatusWithdrawn:
	default:
		return nil, ErrInvalidOutcome
	}

	a, err := s.Get(ctx, in.AppealID)
	if err != nil {
		return nil, err
	}
	e, err := repo.GetEscalationByAppeal(ctx, s.DB, in.AppealID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppealNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	if err := repo.CloseEscalation(ctx, s.DB, e.ID, in.Status, in.Outcome, now, in.ActionRequired); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrAlreadyResolved
		}
		return nil, err
	}

	if _, err := s.Ledger.Record(ctx, RecordInput{
		EventType:  EventOdsResolved,
		ActorID:    in.RecordedBy,
		ActorType:  domain.ActorTypeModerator,
		TargetID:   in.AppealID,
		TargetType: "appeal",
		Action:     in.Status,
		Metadata:   domain.Meta(domain.AppealMeta{DecisionID: a.DecisionID, OdsBodyID: e.OdsBodyID}),
	}); err != nil {
		return nil, err
	}
	return repo.GetEscalationByAppeal(ctx, s.DB, in.AppealID)
}

// Get fetches an appeal by ID.
func (s *AppealService) Get(ctx context.Context, id string) (*domain.Appeal, error) {
	a, err := repo.GetAppeal(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppealNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListBodies returns active certified dispute bodies serving a jurisdiction.
func (s *AppealService) ListBodies(ctx context.Context, jurisdiction string) ([]domain.OdsBody, error) {
	return repo.ListOdsBodies(ctx, s.DB, strings.ToUpper(strings.TrimSpace(jurisdiction)))
}

// requireIndependent refuses reviewers who made the original decision.
func (s *AppealService) requireIndependent(ctx context.Context, decisionID, reviewerID string) error {
	d, err := repo.GetDecision(ctx, s.DB, decisionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDecisionNotFound
		}
		return err
	}
	if d.ModeratorID == reviewerID {
		return ErrSameReviewer
	}
	return nil
}
