package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cultivarhq/go-moderation-backend/internal/config"
	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
	"github.com/cultivarhq/go-moderation-backend/internal/signing"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:modsvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

const testHMACKey = "0123456789abcdef0123456789abcdef" // 32 bytes

func testAuditCfg() config.AuditConfig {
	return config.AuditConfig{
		HMACKey:    testHMACKey,
		KeyOverlap: 48 * time.Hour,
		Retention: config.RetentionPolicy{
			DefaultYears:   5,
			IntegrityYears: 10,
			LegalHoldYears: 7,
		},
		SealBatchSize: 2, // force paging in seal tests
	}
}

func newTestLedger(t *testing.T, db *gorm.DB) *AuditLedger {
	t.Helper()
	l, err := NewAuditLedger(context.Background(), db, testAuditCfg())
	if err != nil {
		t.Fatalf("ledger init: %v", err)
	}
	return l
}

func testModCfg() config.ModerationConfig {
	return config.ModerationConfig{
		ClaimTTL:          30 * time.Minute,
		AppealMinWindow:   168 * time.Hour,
		ODSTargetWindow:   90 * 24 * time.Hour,
		SnapshotRecency:   time.Hour,
		DuplicateWindow:   24 * time.Hour,
		BasePriority:      50,
		TrustedPriority:   70,
		IllegalPriorityUp: 20,
	}
}

func testSLACfg() config.SLAPolicy {
	return config.SLAPolicy{
		IllegalWindow:        24 * time.Hour,
		PolicyWindow:         72 * time.Hour,
		TrustedFlaggerFactor: 2,
	}
}

func TestLedger_BootstrapInstallsKeyV1(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)

	if got := l.ActiveKeyVersion(); got != 1 {
		t.Fatalf("active key version = %d, want 1", got)
	}

	// A second construction must reuse the stored key, not install another.
	l2, err := NewAuditLedger(context.Background(), db, testAuditCfg())
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if got := l2.ActiveKeyVersion(); got != 1 {
		t.Fatalf("active key version after re-init = %d, want 1", got)
	}
}

func TestLedger_RecordAndVerify(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)
	ctx := context.Background()

	e, err := l.Record(ctx, RecordInput{
		EventType:  EventReportSubmitted,
		ActorID:    "u1",
		ActorType:  domain.ActorTypeUser,
		TargetID:   "r1",
		TargetType: "report",
		Action:     "submit",
		Metadata:   domain.Meta(domain.ReportMeta{ReportType: "illegal", ContentType: "post", Priority: 70}),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if e.Signature == "" || e.KeyVersion != 1 {
		t.Fatalf("event not signed: sig=%q key=%d", e.Signature, e.KeyVersion)
	}
	if e.PartitionID != time.Now().UTC().Format("2006-01") {
		t.Fatalf("partition = %q", e.PartitionID)
	}

	res, err := l.Verify(ctx, e.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Valid || res.KeyVersion != 1 {
		t.Fatalf("verify = %+v, want valid under key 1", res)
	}
}

func TestLedger_Verify_TamperedEventInvalid(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)
	ctx := context.Background()

	e, err := l.Record(ctx, RecordInput{
		EventType:  EventClaimAcquired,
		ActorID:    "mod-1",
		ActorType:  domain.ActorTypeModerator,
		TargetID:   "r1",
		TargetType: "report",
		Action:     "claim",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	// Raw SQL bypasses the ORM hooks; this simulates out-of-band tampering.
	if err := db.Exec("UPDATE audit_events SET actor_id = 'intruder' WHERE id = ?", e.ID).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}

	res, err := l.Verify(ctx, e.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Valid {
		t.Fatal("tampered event verified")
	}
}

func TestLedger_Verify_UnknownEvent(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)

	if _, err := l.Verify(context.Background(), "missing"); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestLedger_IdempotentRecord(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)
	ctx := context.Background()

	in := RecordInput{
		EventType:      EventActionExecuted,
		ActorID:        "mod-1",
		ActorType:      domain.ActorTypeModerator,
		TargetID:       "d1",
		TargetType:     "decision",
		Action:         "remove",
		IdempotencyKey: "exec:d1",
	}
	first, err := l.Record(ctx, in)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	second, err := l.Record(ctx, in)
	if err != nil {
		t.Fatalf("replayed record: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay created a new event: %s vs %s", first.ID, second.ID)
	}

	var n int64
	db.Model(&domain.AuditEvent{}).Where("target_id = ?", "d1").Count(&n)
	if n != 1 {
		t.Fatalf("event count = %d, want 1", n)
	}
}

func TestLedger_ReplayInsideTransactionKeepsTransactionUsable(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)
	ctx := context.Background()

	in := RecordInput{
		EventType:      EventActionExecuted,
		ActorID:        "mod-1",
		ActorType:      domain.ActorTypeModerator,
		TargetID:       "d1",
		TargetType:     "decision",
		Action:         "remove",
		IdempotencyKey: "exec:d1",
	}
	first, err := l.Record(ctx, in)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}

	// The duplicate insert is confined to its own nested transaction, so a
	// replay hitting the unique key must not abort the caller's transaction;
	// writes after it on the same handle still commit.
	err = db.Transaction(func(tx *gorm.DB) error {
		replay, err := l.RecordWith(ctx, tx, in)
		if err != nil {
			return err
		}
		if replay.ID != first.ID {
			t.Fatalf("replay created a new event: %s vs %s", replay.ID, first.ID)
		}
		next := in
		next.TargetID = "d2"
		next.IdempotencyKey = "exec:d2"
		_, err = l.RecordWith(ctx, tx, next)
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	var n int64
	db.Model(&domain.AuditEvent{}).Where("target_id IN ?", []string{"d1", "d2"}).Count(&n)
	if n != 2 {
		t.Fatalf("event count = %d, want 2", n)
	}
}

func TestLedger_RetentionClasses(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)
	ctx := context.Background()
	now := time.Now().UTC()

	cases := []struct {
		name  string
		in    RecordInput
		years int
	}{
		{"default", RecordInput{EventType: EventReportSubmitted, ActorID: "u", ActorType: "user", TargetID: "r", TargetType: "report", Action: "submit"}, 5},
		{"integrity", RecordInput{EventType: EventKeyRotated, ActorID: "ledger", ActorType: "system", TargetID: "k", TargetType: "signing_key", Action: "rotate"}, 10},
		{"legal_hold", RecordInput{EventType: EventReportSubmitted, ActorID: "u", ActorType: "user", TargetID: "r2", TargetType: "report", Action: "submit", LegalHold: true}, 7},
	}
	for _, tc := range cases {
		e, err := l.Record(ctx, tc.in)
		if err != nil {
			t.Fatalf("%s: record: %v", tc.name, err)
		}
		want := now.AddDate(tc.years, 0, 0)
		if d := e.RetentionUntil.Sub(want); d < -time.Minute || d > time.Minute {
			t.Fatalf("%s: retention until %v, want about %v", tc.name, e.RetentionUntil, want)
		}
	}
}

func TestAuditEvent_WriteOnce(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)

	e, err := l.Record(context.Background(), RecordInput{
		EventType:  EventReportSubmitted,
		ActorID:    "u1",
		ActorType:  domain.ActorTypeUser,
		TargetID:   "r1",
		TargetType: "report",
		Action:     "submit",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	err = db.Model(&domain.AuditEvent{}).Where("id = ?", e.ID).Update("actor_id", "mallory").Error
	if !errors.Is(err, domain.ErrAuditImmutable) {
		t.Fatalf("update: expected ErrAuditImmutable, got %v", err)
	}
	err = db.Where("id = ?", e.ID).Delete(&domain.AuditEvent{}).Error
	if !errors.Is(err, domain.ErrAuditImmutable) {
		t.Fatalf("delete: expected ErrAuditImmutable, got %v", err)
	}
}

// seedPastPartition writes count signed events into a prior-month partition,
// the state SealPartition normally operates on.
func seedPastPartition(t *testing.T, db *gorm.DB, l *AuditLedger, id string, count int) {
	t.Helper()
	ctx := context.Background()

	startsAt, err := time.Parse("2006-01", id)
	if err != nil {
		t.Fatalf("partition id: %v", err)
	}
	if _, err := repo.GetOrCreatePartition(ctx, db, id, startsAt, startsAt.AddDate(0, 1, 0)); err != nil {
		t.Fatalf("partition: %v", err)
	}

	for i := 0; i < count; i++ {
		ts := startsAt.Add(time.Duration(i) * time.Hour)
		meta, _ := domain.EventMetadata{}.Canonical()
		payload := signing.Payload{
			EventType:  EventReportSubmitted,
			ActorID:    "u1",
			ActorType:  domain.ActorTypeUser,
			TargetType: "report",
			TargetID:   fmt.Sprintf("r%d", i),
			Action:     "submit",
			Metadata:   meta,
			Timestamp:  ts,
		}
		e := &domain.AuditEvent{
			ID:             uuid.NewString(),
			PartitionID:    id,
			EventType:      payload.EventType,
			ActorID:        payload.ActorID,
			ActorType:      payload.ActorType,
			TargetID:       payload.TargetID,
			TargetType:     payload.TargetType,
			Action:         payload.Action,
			Timestamp:      ts,
			Signature:      signing.Sign([]byte(testHMACKey), payload),
			KeyVersion:     1,
			RetentionUntil: ts.AddDate(5, 0, 0),
		}
		if err := repo.AppendEvent(ctx, db, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

func TestLedger_SealPartition_Idempotent(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)
	ctx := context.Background()

	seedPastPartition(t, db, l, "2026-01", 5) // SealBatch=2 forces three pages

	first, err := l.SealPartition(ctx, "2026-01")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !first.Sealed() || first.RecordCount != 5 || first.Checksum == "" || first.ManifestSignature == "" {
		t.Fatalf("manifest incomplete: %+v", first)
	}

	again, err := l.SealPartition(ctx, "2026-01")
	if err != nil {
		t.Fatalf("re-seal: %v", err)
	}
	if again.Checksum != first.Checksum || !again.Sealed() {
		t.Fatalf("re-seal changed the manifest: %+v", again)
	}
}

func TestLedger_SealPartition_AbortsOnBadSignature(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)

	seedPastPartition(t, db, l, "2026-01", 3)
	db.Exec("UPDATE audit_events SET signature = ? WHERE partition_id = '2026-01' AND target_id = 'r1'",
		strings.Repeat("0", 64))

	_, err := l.SealPartition(context.Background(), "2026-01")
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}

	// The failed seal must leave the partition unsealed.
	p, gerr := l.GetPartition(context.Background(), "2026-01")
	if gerr != nil || p.Sealed() {
		t.Fatalf("partition after failed seal: %+v, %v", p, gerr)
	}
}

func TestLedger_SealPartition_DivergenceDetected(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)
	ctx := context.Background()

	seedPastPartition(t, db, l, "2026-01", 3)
	if _, err := l.SealPartition(ctx, "2026-01"); err != nil {
		t.Fatalf("seal: %v", err)
	}

	// An event smuggled into a sealed partition changes the recomputed
	// checksum. That is reported, never repaired.
	seedPastPartition(t, db, l, "2026-01", 1)

	_, err := l.SealPartition(ctx, "2026-01")
	if !errors.Is(err, ErrPartitionSealed) {
		t.Fatalf("expected ErrPartitionSealed, got %v", err)
	}
}

func TestLedger_SealPartition_NotFound(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)

	if _, err := l.SealPartition(context.Background(), "1999-01"); !errors.Is(err, ErrPartitionNotFound) {
		t.Fatalf("expected ErrPartitionNotFound, got %v", err)
	}
}

func TestSealedPartition_RejectsManifestChanges(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)
	ctx := context.Background()

	seedPastPartition(t, db, l, "2026-01", 2)
	if _, err := l.SealPartition(ctx, "2026-01"); err != nil {
		t.Fatalf("seal: %v", err)
	}

	err := db.Model(&domain.AuditPartition{}).Where("id = ?", "2026-01").Update("checksum", "forged").Error
	if !errors.Is(err, domain.ErrAuditImmutable) {
		t.Fatalf("expected ErrAuditImmutable, got %v", err)
	}
}

func TestLedger_RotateKey(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)
	ctx := context.Background()

	old, err := l.Record(ctx, RecordInput{
		EventType:  EventReportSubmitted,
		ActorID:    "u1",
		ActorType:  domain.ActorTypeUser,
		TargetID:   "r1",
		TargetType: "report",
		Action:     "submit",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	k, err := l.RotateKey(ctx, strings.Repeat("n", 32))
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if k.Version != 2 || l.ActiveKeyVersion() != 2 {
		t.Fatalf("rotation version = %d, active = %d", k.Version, l.ActiveKeyVersion())
	}

	// Events written before the rotation must keep verifying under the
	// retired key during the overlap window.
	res, err := l.Verify(ctx, old.ID)
	if err != nil || !res.Valid || res.KeyVersion != 1 {
		t.Fatalf("old event after rotation: %+v, %v", res, err)
	}

	// New events sign under the new version.
	fresh, err := l.Record(ctx, RecordInput{
		EventType:  EventReportSubmitted,
		ActorID:    "u2",
		ActorType:  domain.ActorTypeUser,
		TargetID:   "r2",
		TargetType: "report",
		Action:     "submit",
	})
	if err != nil {
		t.Fatalf("record after rotation: %v", err)
	}
	if fresh.KeyVersion != 2 {
		t.Fatalf("new event key version = %d, want 2", fresh.KeyVersion)
	}

	// The rotation itself leaves an integrity event in the trail.
	trail, err := l.TargetHistory(ctx, "signing_key", "key-v2")
	if err != nil || len(trail) != 1 || trail[0].EventType != EventKeyRotated {
		t.Fatalf("rotation trail = %+v, %v", trail, err)
	}
}

func TestLedger_RotateKey_WeakKeyRefused(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)

	if _, err := l.RotateKey(context.Background(), "short"); !errors.Is(err, ErrWeakKey) {
		t.Fatalf("expected ErrWeakKey, got %v", err)
	}
	if l.ActiveKeyVersion() != 1 {
		t.Fatal("weak rotation must not change the active key")
	}
}

func TestLedger_MaintainKeys_ExpiresOverlap(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db)
	ctx := context.Background()

	if _, err := l.RotateKey(ctx, strings.Repeat("n", 32)); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	// Inside the window nothing expires.
	n, err := l.MaintainKeys(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("maintain inside window = %d, %v", n, err)
	}

	// Past the window the retired key is deactivated.
	n, err = l.MaintainKeys(ctx, time.Now().UTC().Add(72*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("maintain past window = %d, %v", n, err)
	}

	var k domain.SigningKey
	if err := db.Where("version = ?", 1).First(&k).Error; err != nil {
		t.Fatalf("load key: %v", err)
	}
	if k.Status != domain.KeyStatusDeactivated {
		t.Fatalf("key 1 status = %q, want deactivated", k.Status)
	}
}
