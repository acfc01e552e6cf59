// Package repo – moderated content and account state.
//
// These functions are the persistence half of the content-store contract
// the execution engine calls: visibility changes, soft deletion, geo
// blocks, restrictions, and account suspension. All of them are plain
// conditional writes meant to run inside the execution transaction.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// GetContent fetches a content item by ID, or ErrNotFound.
func GetContent(ctx context.Context, db *gorm.DB, id string) (*domain.ContentItem, error) {
	var c domain.ContentItem
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// QuarantineContent reduces a content item's visibility without deleting it.
func QuarantineContent(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ContentItem{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{
			"visibility":     domain.VisibilityLimited,
			"quarantined_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ShadowContent flips a content item to shadowed visibility (author still
// sees it, nobody else does).
func ShadowContent(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.ContentItem{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("visibility", domain.VisibilityShadowed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteContent marks a content item removed. The row is retained and
// recoverable until the hard-deletion policy applies.
func SoftDeleteContent(ctx context.Context, db *gorm.DB, id, deletedBy, reason string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ContentItem{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{
			"deleted_at":    at,
			"deleted_by":    deletedBy,
			"delete_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RestoreContent undoes quarantine, shadowing, and soft deletion after a
// reversal. Safe on content that was never touched.
func RestoreContent(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.ContentItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"visibility":     domain.VisibilityPublic,
			"quarantined_at": nil,
			"deleted_at":     nil,
			"deleted_by":     "",
			"delete_reason":  "",
		}).Error
}

// RemoveGeoBlocks drops the territorial blocks written by a decision.
func RemoveGeoBlocks(ctx context.Context, db *gorm.DB, decisionID string) error {
	return db.WithContext(ctx).
		Where("decision_id = ?", decisionID).
		Delete(&domain.GeoBlock{}).Error
}

// ExpireRestrictions ends a decision's restrictions now instead of at their
// scheduled expiry.
func ExpireRestrictions(ctx context.Context, db *gorm.DB, decisionID string, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.ContentRestriction{}).
		Where("decision_id = ? AND expires_at > ?", decisionID, now).
		Update("expires_at", now).Error
}

// ReinstateUser lifts a suspension.
func ReinstateUser(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).
		Model(&domain.UserAccount{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"status":          domain.AccountStatusActive,
			"suspended_until": nil,
		}).Error
}

// InsertGeoBlocks writes one block row per (territory, reason code). Rows
// that already exist are skipped, so re-running a geo_block execution is
// additive-idempotent.
func InsertGeoBlocks(ctx context.Context, db *gorm.DB, blocks []domain.GeoBlock) error {
	for i := range blocks {
		if err := db.WithContext(ctx).Create(&blocks[i]).Error; err != nil {
			if IsDuplicate(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// InsertRestriction writes a time-boxed user restriction row.
func InsertRestriction(ctx context.Context, db *gorm.DB, r *domain.ContentRestriction) error {
	return db.WithContext(ctx).Create(r).Error
}

// SuspendUser flips an account to suspended until the given time.
func SuspendUser(ctx context.Context, db *gorm.DB, userID string, until time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.UserAccount{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"status":          domain.AccountStatusSuspended,
			"suspended_until": until,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUserAccount fetches an account by ID, or ErrNotFound.
func GetUserAccount(ctx context.Context, db *gorm.DB, id string) (*domain.UserAccount, error) {
	var u domain.UserAccount
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
