// Package repo – moderation decision and statement-of-reasons persistence.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// CreateDecision inserts a decision row.
func CreateDecision(ctx context.Context, db *gorm.DB, d *domain.ModerationDecision) error {
	return db.WithContext(ctx).Create(d).Error
}

// GetDecision fetches a decision by ID, or ErrNotFound.
func GetDecision(ctx context.Context, db *gorm.DB, id string) (*domain.ModerationDecision, error) {
	var d domain.ModerationDecision
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ApproveDecision records supervisor approval via a conditional UPDATE:
// only a pending decision that requires approval can be approved, and only
// once. Returns ErrNotFound when the precondition does not hold.
func ApproveDecision(ctx context.Context, db *gorm.DB, id, supervisorID string) error {
	res := db.WithContext(ctx).
		Model(&domain.ModerationDecision{}).
		Where("id = ? AND status = ? AND requires_approval = ?", id, domain.DecisionStatusPending, true).
		Updates(map[string]any{
			"supervisor_id": supervisorID,
			"status":        domain.DecisionStatusApproved,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDecisionExecuted stamps the decision executed. Called inside the
// execution transaction after the action has been applied.
func MarkDecisionExecuted(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ModerationDecision{}).
		Where("id = ? AND status IN ?", id, []string{domain.DecisionStatusPending, domain.DecisionStatusApproved}).
		Updates(map[string]any{
			"status":      domain.DecisionStatusExecuted,
			"executed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDecisionReversed records an upheld appeal's reversal of an executed
// decision.
func MarkDecisionReversed(ctx context.Context, db *gorm.DB, id, reason string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ModerationDecision{}).
		Where("id = ? AND status = ?", id, domain.DecisionStatusExecuted).
		Updates(map[string]any{
			"status":          domain.DecisionStatusReversed,
			"reversed_at":     at,
			"reversal_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateStatement inserts the statement of reasons tied to a decision.
// Returns ErrDuplicate if the decision already has one.
func CreateStatement(ctx context.Context, db *gorm.DB, s *domain.StatementOfReasons) error {
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetStatement fetches a statement of reasons by ID, or ErrNotFound.
func GetStatement(ctx context.Context, db *gorm.DB, id string) (*domain.StatementOfReasons, error) {
	var s domain.StatementOfReasons
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SetStatementSubmitted records the Transparency Database correlation id
// after a successful export.
func SetStatementSubmitted(ctx context.Context, db *gorm.DB, id, externalID string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.StatementOfReasons{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"transparency_db_id": externalID,
			"submitted_at":       at,
		}).Error
}
