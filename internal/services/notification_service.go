// Package services – NotificationService
//
// Thin surface over the notification outbox. Delivery itself is an external
// worker; the engine hands out due rows and consumes delivery callbacks.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
)

// ErrNotificationNotFound is returned for callbacks against unknown or
// already-finalized outbox rows.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService exposes the outbox to delivery workers.
type NotificationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// Due returns pending notifications scheduled at or before now.
func (s *NotificationService) Due(ctx context.Context, limit int) ([]domain.Notification, error) {
	return repo.ListDueNotifications(ctx, s.DB, time.Now().UTC(), limit)
}

// MarkDelivered records a successful delivery callback.
func (s *NotificationService) MarkDelivered(ctx context.Context, id string) error {
	return s.callback(ctx, id, domain.NotificationSent)
}

// MarkFailed records a failed delivery callback.
func (s *NotificationService) MarkFailed(ctx context.Context, id string) error {
	return s.callback(ctx, id, domain.NotificationFailed)
}

func (s *NotificationService) callback(ctx context.Context, id, status string) error {
	if err := repo.SetNotificationStatus(ctx, s.DB, id, status, time.Now().UTC()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}
