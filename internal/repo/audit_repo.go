// Package repo – audit ledger persistence.
//
// Events are append-only: the only write operation this file exposes is an
// insert, and the domain-level GORM hooks reject updates and deletes for any
// caller that tries to go around it. Reads are ordered by the monotonic
// insertion sequence so partition checksums are deterministic.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// AppendEvent inserts a signed audit event, assigning the next insertion
// sequence number. When the event carries an idempotency key that was already
// recorded, ErrDuplicate is returned and the caller fetches the original row.
// A lost race on the sequence number is retried with a fresh number. Each
// attempt runs in a nested transaction, so on Postgres a failed insert rolls
// back to its savepoint instead of aborting the caller's transaction.
func AppendEvent(ctx context.Context, db *gorm.DB, e *domain.AuditEvent) error {
	for attempt := 0; attempt < 5; attempt++ {
		var maxSeq uint64
		row := db.WithContext(ctx).
			Model(&domain.AuditEvent{}).
			Select("COALESCE(MAX(seq), 0)").
			Row()
		if err := row.Scan(&maxSeq); err != nil {
			return err
		}
		e.Seq = maxSeq + 1

		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(e).Error
		})
		if err == nil {
			return nil
		}
		if !IsDuplicate(err) {
			return err
		}
		// Either an idempotency replay or a sequence race. Replays are
		// terminal; a sequence collision just means another writer took the
		// number first.
		if e.IdempotencyKey != nil {
			var n int64
			if cerr := db.WithContext(ctx).
				Model(&domain.AuditEvent{}).
				Where("idempotency_key = ?", *e.IdempotencyKey).
				Count(&n).Error; cerr == nil && n > 0 {
				return ErrDuplicate
			}
		}
	}
	return ErrDuplicate
}

// GetEvent fetches an audit event by ID, or ErrNotFound.
func GetEvent(ctx context.Context, db *gorm.DB, id string) (*domain.AuditEvent, error) {
	var e domain.AuditEvent
	if err := db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEventByIdempotencyKey fetches the original event recorded under the
// given idempotency key, or ErrNotFound.
func GetEventByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.AuditEvent, error) {
	var e domain.AuditEvent
	if err := db.WithContext(ctx).Where("idempotency_key = ?", key).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListTargetEvents returns all events for a target in creation order
// (timestamp, then insertion sequence).
func ListTargetEvents(ctx context.Context, db *gorm.DB, targetType, targetID string) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	err := db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("timestamp asc, seq asc").
		Find(&out).Error
	return out, err
}

// ListPartitionEvents returns one page of a partition's events in insertion
// order, starting after the given sequence number. Paging keeps sealing
// bounded in memory for large months.
func ListPartitionEvents(ctx context.Context, db *gorm.DB, partitionID string, afterSeq uint64, limit int) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	err := db.WithContext(ctx).
		Where("partition_id = ? AND seq > ?", partitionID, afterSeq).
		Order("seq asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountPartitionEvents returns the number of events in a partition.
func CountPartitionEvents(ctx context.Context, db *gorm.DB, partitionID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.AuditEvent{}).
		Where("partition_id = ?", partitionID).
		Count(&n).Error
	return n, err
}

// GetOrCreatePartition returns the partition row for the given month,
// creating it on first touch. Concurrent first touches race on the primary
// key; the loser re-reads the winner's row.
func GetOrCreatePartition(ctx context.Context, db *gorm.DB, id string, startsAt, endsAt time.Time) (*domain.AuditPartition, error) {
	var p domain.AuditPartition
	err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	p = domain.AuditPartition{ID: id, StartsAt: startsAt, EndsAt: endsAt}
	if err := db.WithContext(ctx).Create(&p).Error; err != nil {
		if IsDuplicate(err) {
			var again domain.AuditPartition
			if err2 := db.WithContext(ctx).Where("id = ?", id).First(&again).Error; err2 != nil {
				return nil, err2
			}
			return &again, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetPartition fetches a partition by ID, or ErrNotFound.
func GetPartition(ctx context.Context, db *gorm.DB, id string) (*domain.AuditPartition, error) {
	var p domain.AuditPartition
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// SealPartition persists the manifest on an unsealed partition. The
// conditional WHERE plus the domain BeforeUpdate hook together make sealing
// a one-way transition.
func SealPartition(ctx context.Context, db *gorm.DB, id string, recordCount int64, checksum, manifestSig string, keyVersion int, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.AuditPartition{ID: id}).
		Where("id = ? AND sealed_at IS NULL", id).
		Updates(map[string]any{
			"sealed_at":            at,
			"record_count":         recordCount,
			"checksum":             checksum,
			"manifest_signature":   manifestSig,
			"manifest_key_version": keyVersion,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUnsealedPartitionsBefore returns partitions whose window ended before
// the cutoff and which have not been sealed yet.
func ListUnsealedPartitionsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.AuditPartition, error) {
	var out []domain.AuditPartition
	err := db.WithContext(ctx).
		Where("sealed_at IS NULL AND ends_at <= ?", cutoff).
		Order("id asc").
		Find(&out).Error
	return out, err
}
