// Package repo implements the data persistence layer for the moderation
// engine, backed by GORM. This file contains database bootstrapping for
// Postgres (production) and SQLite (dev/test), schema migration, and the
// partial indexes that back the engine's uniqueness invariants.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	otelgorm "gorm.io/plugin/opentelemetry/tracing"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// OpenPostgres opens a Postgres database, configures the pool, and attaches
// query tracing.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		return nil, err
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
// Used for local development and tests; production runs Postgres.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for every engine table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.ContentReport{},
		&domain.ContentSnapshot{},
		&domain.ModerationClaim{},
		&domain.ModerationDecision{},
		&domain.StatementOfReasons{},
		&domain.ActionExecution{},
		&domain.Appeal{},
		&domain.ODSEscalation{},
		&domain.OdsBody{},
		&domain.AuditEvent{},
		&domain.AuditPartition{},
		&domain.SigningKey{},
		&domain.SlaAlert{},
		&domain.SlaIncident{},
		&domain.ContentItem{},
		&domain.UserAccount{},
		&domain.ContentRestriction{},
		&domain.GeoBlock{},
		&domain.Notification{},
		&domain.SorExport{},
	)
}
