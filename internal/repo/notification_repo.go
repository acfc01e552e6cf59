// Package repo – notification outbox persistence.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// CreateNotification writes an outbox row for the external delivery worker.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	return db.WithContext(ctx).Create(n).Error
}

// SetNotificationStatus records the delivery callback (sent/failed).
func SetNotificationStatus(ctx context.Context, db *gorm.DB, id, status string, at time.Time) error {
	updates := map[string]any{"status": status}
	if status == domain.NotificationSent {
		updates["sent_at"] = at
	}
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND status = ?", id, domain.NotificationPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDueNotifications returns pending notifications scheduled at or before
// now, oldest first.
func ListDueNotifications(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	q := db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", domain.NotificationPending, now).
		Order("scheduled_for asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
