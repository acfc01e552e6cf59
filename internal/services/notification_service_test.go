package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

func TestNotification_Outbox(t *testing.T) {
	f := newExecFixture(t)
	svc := NewNotificationService(f.db)
	ctx := context.Background()

	d := f.decide(t, domain.ActionQuarantine, nil)
	if _, err := f.exec.Execute(ctx, ExecuteInput{DecisionID: d.ID, ExecutedBy: "mod-1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	due, err := svc.Due(ctx, 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].UserID != "author-1" {
		t.Fatalf("due = %+v", due)
	}

	if err := svc.MarkDelivered(ctx, due[0].ID); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	var n domain.Notification
	if err := f.db.Where("id = ?", due[0].ID).First(&n).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if n.Status != domain.NotificationSent || n.SentAt == nil {
		t.Fatalf("state = %q / %v", n.Status, n.SentAt)
	}

	// Finalized rows drop out of the due list and reject further callbacks.
	left, err := svc.Due(ctx, 10)
	if err != nil {
		t.Fatalf("due after delivery: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("due after delivery = %d", len(left))
	}
	if err := svc.MarkFailed(ctx, due[0].ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("late callback: got %v, want ErrNotificationNotFound", err)
	}
}

func TestNotification_MarkFailed(t *testing.T) {
	f := newExecFixture(t)
	svc := NewNotificationService(f.db)
	ctx := context.Background()

	d := f.decide(t, domain.ActionNoAction, nil)
	if _, err := f.exec.Execute(ctx, ExecuteInput{DecisionID: d.ID, ExecutedBy: "mod-1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	due, err := svc.Due(ctx, 10)
	if err != nil || len(due) != 1 {
		t.Fatalf("due = %v, %v", due, err)
	}

	if err := svc.MarkFailed(ctx, due[0].ID); err != nil {
		t.Fatalf("fail: %v", err)
	}
	var n domain.Notification
	if err := f.db.Where("id = ?", due[0].ID).First(&n).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if n.Status != domain.NotificationFailed || n.SentAt != nil {
		t.Fatalf("state = %q / %v", n.Status, n.SentAt)
	}
}

func TestNotification_DueRespectsSchedule(t *testing.T) {
	f := newModFixture(t)
	svc := NewNotificationService(f.db)
	ctx := context.Background()

	future := &domain.Notification{
		ID:           "n-future",
		UserID:       "u1",
		DecisionID:   "d1",
		Action:       domain.ActionQuarantine,
		ScheduledFor: time.Now().UTC().Add(time.Hour),
		Status:       domain.NotificationPending,
	}
	if err := f.db.Create(future).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	due, err := svc.Due(ctx, 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("future notification already due: %+v", due)
	}
	if err := svc.MarkDelivered(ctx, "missing"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("got %v, want ErrNotificationNotFound", err)
	}
}
