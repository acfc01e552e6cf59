package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cultivarhq/go-moderation-backend/internal/config"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
	"github.com/cultivarhq/go-moderation-backend/internal/services"
	"github.com/cultivarhq/go-moderation-backend/internal/transparency"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	dsn := fmt.Sprintf("file:modsched_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	auditCfg := config.AuditConfig{
		HMACKey:    "0123456789abcdef0123456789abcdef",
		KeyOverlap: 48 * time.Hour,
		Retention: config.RetentionPolicy{
			DefaultYears:   5,
			IntegrityYears: 7,
			LegalHoldYears: 10,
		},
		SealBatchSize: 100,
	}
	ledger, err := services.NewAuditLedger(context.Background(), db, auditCfg)
	if err != nil {
		t.Fatalf("ledger init: %v", err)
	}

	tcfg := config.TransparencyConfig{MaxAttempts: 3}
	return New(
		ledger,
		services.NewSlaService(db, ledger),
		services.NewExportService(db, transparency.NewClient(tcfg), tcfg),
	)
}

func TestScheduler_StartAndStop(t *testing.T) {
	s := newTestScheduler(t)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := len(s.cron.Entries()); got != 4 {
		t.Fatalf("registered jobs = %d, want 4", got)
	}
	s.Stop()
}

func TestScheduler_JobsRunAgainstEmptyState(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	// Every job must be a no-op on an empty database rather than an error,
	// since the loop runs from first boot.
	for name, run := range map[string]func(context.Context) error{
		"sla_sweep":        s.sweep,
		"export_pump":      s.pump,
		"key_maintenance":  s.maintainKeys,
		"partition_upkeep": s.partitionUpkeep,
	} {
		if err := run(ctx); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
}
