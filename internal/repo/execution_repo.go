// Package repo – action execution persistence.
//
// The unique index on action_executions.decision_id is the exactly-once
// backbone: the first writer inserts, every later writer (concurrent or
// retried) hits the constraint, gets ErrDuplicate, and reads back the
// original row.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// CreateExecution inserts the execution record for a decision. Returns
// ErrDuplicate when an execution already exists for the decision.
func CreateExecution(ctx context.Context, db *gorm.DB, e *domain.ActionExecution) error {
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetExecutionByDecision fetches the execution record for a decision, or
// ErrNotFound.
func GetExecutionByDecision(ctx context.Context, db *gorm.DB, decisionID string) (*domain.ActionExecution, error) {
	var e domain.ActionExecution
	if err := db.WithContext(ctx).Where("decision_id = ?", decisionID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}
