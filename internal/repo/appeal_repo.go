// Package repo – appeal and ODS escalation persistence.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// CreateAppeal inserts an appeal. Returns ErrDuplicate when the user already
// has an appeal against the decision.
func CreateAppeal(ctx context.Context, db *gorm.DB, a *domain.Appeal) error {
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetAppeal fetches an appeal by ID, or ErrNotFound.
func GetAppeal(ctx context.Context, db *gorm.DB, id string) (*domain.Appeal, error) {
	var a domain.Appeal
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// StartAppealReview moves a pending appeal into review and assigns the
// reviewer. Conditional UPDATE keeps the transition monotonic.
func StartAppealReview(ctx context.Context, db *gorm.DB, id, reviewerID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Appeal{}).
		Where("id = ? AND status = ?", id, domain.AppealStatusPending).
		Updates(map[string]any{
			"status":      domain.AppealStatusInReview,
			"reviewer_id": reviewerID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResolveAppeal records the outcome of an unresolved appeal.
func ResolveAppeal(ctx context.Context, db *gorm.DB, id, outcome, reasoning string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Appeal{}).
		Where("id = ? AND status IN ?", id, []string{domain.AppealStatusPending, domain.AppealStatusInReview}).
		Updates(map[string]any{
			"status":            domain.AppealStatusResolved,
			"outcome":           outcome,
			"outcome_reasoning": reasoning,
			"resolved_at":       at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAppealEscalated flips an unresolved appeal to escalated_to_ods.
func MarkAppealEscalated(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Appeal{}).
		Where("id = ? AND status IN ?", id, []string{domain.AppealStatusPending, domain.AppealStatusInReview}).
		Update("status", domain.AppealStatusEscalated)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateEscalation inserts the ODS escalation for an appeal. Returns
// ErrDuplicate when the appeal already has one (unique index on appeal_id).
func CreateEscalation(ctx context.Context, db *gorm.DB, e *domain.ODSEscalation) error {
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetEscalationByAppeal fetches the escalation for an appeal, or ErrNotFound.
func GetEscalationByAppeal(ctx context.Context, db *gorm.DB, appealID string) (*domain.ODSEscalation, error) {
	var e domain.ODSEscalation
	if err := db.WithContext(ctx).Where("appeal_id = ?", appealID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// CloseEscalation records the external outcome. The resolution date must be
// on or after submission; the service validates before calling.
func CloseEscalation(ctx context.Context, db *gorm.DB, id, status, outcome string, resolvedAt time.Time, actionRequired bool) error {
	res := db.WithContext(ctx).
		Model(&domain.ODSEscalation{}).
		Where("id = ? AND status IN ?", id, []string{domain.OdsStatusSubmitted, domain.OdsStatusInProgress}).
		Updates(map[string]any{
			"status":              status,
			"outcome":             outcome,
			"actual_resolution":   resolvedAt,
			"platform_action_req": actionRequired,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOdsBody fetches an active certified dispute body, or ErrNotFound.
func GetOdsBody(ctx context.Context, db *gorm.DB, id string) (*domain.OdsBody, error) {
	var b domain.OdsBody
	if err := db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// ListOdsBodies returns active dispute bodies serving a jurisdiction (empty
// matches all).
func ListOdsBodies(ctx context.Context, db *gorm.DB, jurisdiction string) ([]domain.OdsBody, error) {
	var out []domain.OdsBody
	q := db.WithContext(ctx).Where("active = ?", true)
	if jurisdiction != "" {
		q = q.Where("jurisdictions LIKE ?", "%\""+jurisdiction+"\"%")
	}
	err := q.Order("name asc").Find(&out).Error
	return out, err
}
