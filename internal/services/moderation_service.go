// Package services – ModerationService
//
// This file implements the review workflow: exclusive time-boxed claims,
// decision recording with the mandatory statement of reasons, and supervisor
// approval for high-impact actions. Claim acquisition is delegated to a
// single conditional upsert in the repository so two moderators can never
// hold the same report at once; this service layers the ownership and
// lifecycle checks on top.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/config"
	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
)

// ClaimConflict reports who holds the active claim and until when. It
// unwraps to ErrAlreadyClaimed so handlers can map it by identity.
type ClaimConflict struct {
	HolderID  string
	ExpiresAt time.Time
}

// Error implements error.
func (e *ClaimConflict) Error() string {
	return fmt.Sprintf("report claimed by %s until %s", e.HolderID, e.ExpiresAt.Format(time.RFC3339))
}

// Unwrap ties the conflict to the ErrAlreadyClaimed sentinel.
func (e *ClaimConflict) Unwrap() error { return ErrAlreadyClaimed }

// ModerationService provides claim, decision, and approval operations.
type ModerationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Ledger records workflow events.
	Ledger *AuditLedger

	Policy config.ModerationConfig
}

// NewModerationService constructs a ModerationService.
func NewModerationService(db *gorm.DB, ledger *AuditLedger, policy config.ModerationConfig) *ModerationService {
	return &ModerationService{DB: db, Ledger: ledger, Policy: policy}
}

// Claim acquires the exclusive review lock on a report for the configured
// TTL. A lapsed claim by another moderator is superseded in the same write.
// When another moderator holds an active claim, a *ClaimConflict is returned.
func (s *ModerationService) Claim(ctx context.Context, reportID, moderatorID string) (*domain.ModerationClaim, error) {
	r, err := repo.GetReport(ctx, s.DB, reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	switch r.Status {
	case domain.ReportStatusResolved, domain.ReportStatusDuplicate:
		return nil, ErrAlreadyResolved
	}

	c, err := repo.TryClaim(ctx, s.DB, reportID, moderatorID, s.Policy.ClaimTTL)
	if err != nil {
		return nil, err
	}
	if c == nil {
		holder, err := repo.GetClaim(ctx, s.DB, reportID)
		if err != nil {
			return nil, err
		}
		return nil, &ClaimConflict{HolderID: holder.ModeratorID, ExpiresAt: holder.ExpiresAt}
	}

	if err := repo.SetReportStatus(ctx, s.DB, reportID,
		[]string{domain.ReportStatusPending, domain.ReportStatusInReview},
		domain.ReportStatusInReview); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	if _, err := s.Ledger.Record(ctx, RecordInput{
		EventType:  EventClaimAcquired,
		ActorID:    moderatorID,
		ActorType:  domain.ActorTypeModerator,
		TargetID:   reportID,
		TargetType: "content_report",
		Action:     "claim",
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// Release drops the caller's own claim early. Releasing a claim held by
// someone else (or no claim at all) is a silent no-op.
func (s *ModerationService) Release(ctx context.Context, reportID, moderatorID string) error {
	if err := repo.ReleaseClaim(ctx, s.DB, reportID, moderatorID); err != nil {
		return err
	}
	_, err := s.Ledger.Record(ctx, RecordInput{
		EventType:  EventClaimReleased,
		ActorID:    moderatorID,
		ActorType:  domain.ActorTypeModerator,
		TargetID:   reportID,
		TargetType: "content_report",
		Action:     "release",
	})
	return err
}

// DecisionInput is a moderator's decision plus its statement of reasons.
type DecisionInput struct {
	ReportID         string
	ModeratorID      string
	Action           string
	PolicyViolations []string
	Reasoning        string
	Evidence         []string

	// Statement of reasons (DSA Art.17).
	Ground             string
	LegalReference     string
	Facts              string
	AutomatedDetection bool
	AutomatedDecision  bool
	TerritorialScope   []string
	RedressOptions     []string
}

// RecordDecision persists the decision and its statement of reasons in one
// transaction, flags high-impact actions for supervisor approval, and queues
// the statement for Transparency Database export. The caller must hold the
// claim row for the report; a superseded claim means another moderator owns
// the review now.
func (s *ModerationService) RecordDecision(ctx context.Context, in DecisionInput) (*domain.ModerationDecision, *domain.StatementOfReasons, error) {
	if err := validateDecision(&in); err != nil {
		return nil, nil, err
	}

	r, err := repo.GetReport(ctx, s.DB, in.ReportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrReportNotFound
		}
		return nil, nil, err
	}
	switch r.Status {
	case domain.ReportStatusResolved, domain.ReportStatusDuplicate:
		return nil, nil, ErrAlreadyResolved
	}

	claim, err := repo.GetClaim(ctx, s.DB, in.ReportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotClaimOwner
		}
		return nil, nil, err
	}
	if claim.ModeratorID != in.ModeratorID {
		return nil, nil, ErrNotClaimOwner
	}

	d := &domain.ModerationDecision{
		ID:               uuid.NewString(),
		ReportID:         in.ReportID,
		ModeratorID:      in.ModeratorID,
		Action:           in.Action,
		PolicyViolations: in.PolicyViolations,
		Reasoning:        in.Reasoning,
		Evidence:         in.Evidence,
		Status:           domain.DecisionStatusPending,
		RequiresApproval: domain.HighImpact(in.Action),
	}
	// Closing a report with no_action leaves nothing to explain to the
	// content author, so no statement of reasons accompanies it and nothing
	// is exported.
	var sor *domain.StatementOfReasons
	if in.Action != domain.ActionNoAction {
		sor = &domain.StatementOfReasons{
			ID:                 uuid.NewString(),
			DecisionID:         d.ID,
			DecisionGround:     in.Ground,
			LegalReference:     in.LegalReference,
			Facts:              in.Facts,
			AutomatedDetection: in.AutomatedDetection,
			AutomatedDecision:  in.AutomatedDecision,
			TerritorialScope:   in.TerritorialScope,
			RedressOptions:     in.RedressOptions,
		}
		d.StatementID = &sor.ID
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateDecision(ctx, tx, d); err != nil {
			return err
		}
		if sor != nil {
			if err := repo.CreateStatement(ctx, tx, sor); err != nil {
				return err
			}
			if err := repo.EnqueueExport(ctx, tx, &domain.SorExport{
				ID:             uuid.NewString(),
				StatementID:    sor.ID,
				IdempotencyKey: "sor:" + sor.ID,
				Status:         domain.ExportPending,
				NextAttemptAt:  time.Now().UTC(),
			}); err != nil && !errors.Is(err, repo.ErrDuplicate) {
				return err
			}
		}
		_, err := s.Ledger.RecordWith(ctx, tx, RecordInput{
			EventType:  EventDecisionRecorded,
			ActorID:    in.ModeratorID,
			ActorType:  domain.ActorTypeModerator,
			TargetID:   d.ID,
			TargetType: "moderation_decision",
			Action:     in.Action,
			Metadata: domain.Meta(domain.DecisionMeta{
				ReportID:         in.ReportID,
				Action:           in.Action,
				RequiresApproval: d.RequiresApproval,
				PolicyViolations: in.PolicyViolations,
			}),
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return d, sor, nil
}

// Approve records supervisor approval on a pending high-impact decision.
// The supervisor must be a different person than the deciding moderator.
func (s *ModerationService) Approve(ctx context.Context, decisionID, supervisorID string) (*domain.ModerationDecision, error) {
	d, err := repo.GetDecision(ctx, s.DB, decisionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDecisionNotFound
		}
		return nil, err
	}
	if !d.RequiresApproval {
		return nil, ErrApprovalNotRequired
	}
	if d.ModeratorID == supervisorID {
		return nil, ErrSelfApproval
	}

	if err := repo.ApproveDecision(ctx, s.DB, decisionID, supervisorID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrAlreadyResolved
		}
		return nil, err
	}

	if _, err := s.Ledger.Record(ctx, RecordInput{
		EventType:  EventDecisionApproved,
		ActorID:    supervisorID,
		ActorType:  domain.ActorTypeModerator,
		TargetID:   decisionID,
		TargetType: "moderation_decision",
		Action:     "approve",
		Metadata: domain.Meta(domain.DecisionMeta{
			ReportID: d.ReportID,
			Action:   d.Action,
		}),
	}); err != nil {
		return nil, err
	}
	return repo.GetDecision(ctx, s.DB, decisionID)
}

// GetDecision fetches a decision by ID.
func (s *ModerationService) GetDecision(ctx context.Context, id string) (*domain.ModerationDecision, error) {
	d, err := repo.GetDecision(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDecisionNotFound
		}
		return nil, err
	}
	return d, nil
}

// GetStatement fetches a statement of reasons by ID.
func (s *ModerationService) GetStatement(ctx context.Context, id string) (*domain.StatementOfReasons, error) {
	sor, err := repo.GetStatement(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStatementNotFound
		}
		return nil, err
	}
	return sor, nil
}

func validateDecision(in *DecisionInput) error {
	in.Reasoning = strings.TrimSpace(in.Reasoning)
	in.Facts = strings.TrimSpace(in.Facts)
	in.LegalReference = strings.TrimSpace(in.LegalReference)

	switch in.Action {
	case domain.ActionNoAction, domain.ActionQuarantine, domain.ActionGeoBlock,
		domain.ActionRemove, domain.ActionSuspendUser, domain.ActionRateLimit,
		domain.ActionShadowBan:
	default:
		return ErrInvalidAction
	}
	if in.Reasoning == "" || in.Facts == "" {
		return ErrMissingReasoning
	}
	switch in.Ground {
	case domain.GroundIllegal:
		if in.LegalReference == "" {
			return ErrMissingLegalReference
		}
	case domain.GroundTerms:
		// A terms decision may still cite the law the terms clause mirrors.
	default:
		return ErrInvalidGround
	}
	if in.Action == domain.ActionGeoBlock {
		if len(in.TerritorialScope) == 0 {
			return ErrMissingTerritory
		}
		for i, t := range in.TerritorialScope {
			t = strings.ToUpper(strings.TrimSpace(t))
			if _, err := language.ParseRegion(t); err != nil {
				return ErrInvalidRegion
			}
			in.TerritorialScope[i] = t
		}
	}
	return nil
}
