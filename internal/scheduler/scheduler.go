// Package scheduler runs the engine's background jobs on a cron loop:
// deadline sweeps, Transparency Database export pumping, signing-key
// maintenance, and monthly audit partition bookkeeping.
//
// Jobs are deliberately small and idempotent; a missed tick is made up on the
// next one. Each job logs its outcome so operators can spot a stuck loop.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/cultivarhq/go-moderation-backend/internal/services"
)

// Scheduler owns the cron loop and the services it drives.
type Scheduler struct {
	cron   *cron.Cron
	ledger *services.AuditLedger
	sla    *services.SlaService
	export *services.ExportService
}

// New assembles the scheduler. Start must be called to begin ticking.
func New(ledger *services.AuditLedger, sla *services.SlaService, export *services.ExportService) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		ledger: ledger,
		sla:    sla,
		export: export,
	}
}

// Start registers all jobs and starts the loop. Registration uses fixed
// expressions; an error here is a programming mistake, not a runtime
// condition, so it propagates.
func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context) error
	}{
		{"@every 1m", "sla_sweep", s.sweep},
		{"@every 1m", "export_pump", s.pump},
		{"@every 5m", "key_maintenance", s.maintainKeys},
		{"@every 1h", "partition_upkeep", s.partitionUpkeep},
	}
	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := j.run(ctx); err != nil {
				log.Error().Err(err).Str("job", j.name).Msg("scheduled job failed")
			}
		}); err != nil {
			return err
		}
	}
	s.cron.Start()
	log.Info().Msg("scheduler started")
	return nil
}

// Stop halts the loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) sweep(ctx context.Context) error {
	stats, err := s.sla.Sweep(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if stats.Warnings+stats.Criticals+stats.Breaches > 0 {
		log.Info().
			Int("scanned", stats.Scanned).
			Int("warnings", stats.Warnings).
			Int("criticals", stats.Criticals).
			Int("breaches", stats.Breaches).
			Msg("sla sweep")
	}
	return nil
}

func (s *Scheduler) pump(ctx context.Context) error {
	n, err := s.export.Pump(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int("submitted", n).Msg("transparency exports pumped")
	}
	return nil
}

func (s *Scheduler) maintainKeys(ctx context.Context) error {
	_, err := s.ledger.MaintainKeys(ctx, time.Now().UTC())
	return err
}

// partitionUpkeep keeps the current monthly partition row present and seals
// any partition whose month has closed.
func (s *Scheduler) partitionUpkeep(ctx context.Context) error {
	now := time.Now().UTC()
	if err := s.ledger.EnsureCurrentPartition(ctx, now); err != nil {
		return err
	}
	sealed, err := s.ledger.SealDuePartitions(ctx, now)
	if err != nil {
		return err
	}
	if sealed > 0 {
		log.Info().Int("sealed", sealed).Msg("audit partitions sealed")
	}
	return nil
}
