// Package repo – signing key persistence.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// ListKeys returns all signing keys ordered by version.
func ListKeys(ctx context.Context, db *gorm.DB) ([]domain.SigningKey, error) {
	var out []domain.SigningKey
	err := db.WithContext(ctx).Order("version asc").Find(&out).Error
	return out, err
}

// GetActiveKey returns the single active key, or ErrNotFound.
func GetActiveKey(ctx context.Context, db *gorm.DB) (*domain.SigningKey, error) {
	var k domain.SigningKey
	if err := db.WithContext(ctx).Where("status = ?", domain.KeyStatusActive).First(&k).Error; err != nil {
		return nil, err
	}
	return &k, nil
}

// CreateKey inserts a new key in the given lifecycle state and returns it
// with its assigned version.
func CreateKey(ctx context.Context, db *gorm.DB, secret, status string, activatedAt *time.Time) (*domain.SigningKey, error) {
	k := &domain.SigningKey{
		Secret:      secret,
		Status:      status,
		ActivatedAt: activatedAt,
	}
	if err := db.WithContext(ctx).Create(k).Error; err != nil {
		return nil, err
	}
	return k, nil
}

// RotateActiveKey marks the currently active key rotated. Zero rows means
// there was no active key, which the service treats as a broken keyring.
func RotateActiveKey(ctx context.Context, db *gorm.DB, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.SigningKey{}).
		Where("status = ?", domain.KeyStatusActive).
		Updates(map[string]any{
			"status":     domain.KeyStatusRotated,
			"rotated_at": at,
		})
	return res.RowsAffected, res.Error
}

// DeactivateExpiredKeys retires rotated keys whose overlap window has
// closed. Idempotent; safe to run on every scheduler tick.
func DeactivateExpiredKeys(ctx context.Context, db *gorm.DB, overlap time.Duration, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.SigningKey{}).
		Where("status = ? AND rotated_at <= ?", domain.KeyStatusRotated, now.Add(-overlap)).
		Update("status", domain.KeyStatusDeactivated)
	return res.RowsAffected, res.Error
}
