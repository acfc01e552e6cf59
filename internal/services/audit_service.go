// Package services – AuditLedger
//
// The audit ledger is the engine's evidentiary record: every state change in
// the moderation pipeline lands here as a signed, append-only event. This
// service owns signing-key lifecycle (bootstrap, rotation, overlap expiry),
// event recording with retention stamping, signature verification, and the
// monthly partition seal that freezes a month of history behind an aggregate
// checksum and a signed manifest.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/config"
	"github.com/cultivarhq/go-moderation-backend/internal/domain"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
	"github.com/cultivarhq/go-moderation-backend/internal/signing"
)

// Audit event types emitted by the services in this package.
const (
	EventReportSubmitted  = "report_submitted"
	EventReportDuplicate  = "report_duplicate"
	EventClaimAcquired    = "claim_acquired"
	EventClaimReleased    = "claim_released"
	EventDecisionRecorded = "decision_recorded"
	EventDecisionApproved = "decision_approved"
	EventActionExecuted   = "action_executed"
	EventAppealFiled      = "appeal_filed"
	EventAppealResolved   = "appeal_resolved"
	EventAppealEscalated  = "appeal_escalated"
	EventOdsResolved      = "ods_resolved"
	EventSlaBreach        = "sla_breach"
	EventKeyRotated       = "key_rotated"
	EventPartitionSealed  = "partition_sealed"
)

// eventClassTable maps event types to retention classes. Types absent from
// the table fall into the default class; the years per class live in
// configuration, so retention tuning never touches this file.
var eventClassTable = map[string]string{
	EventKeyRotated:      domain.EventClassIntegrity,
	EventPartitionSealed: domain.EventClassIntegrity,
}

// AuditLedger records, verifies, and seals audit events. It caches the
// signing keyring in memory and reloads it after every key lifecycle change.
type AuditLedger struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Retention maps event classes to retention years.
	Retention config.RetentionPolicy
	// Overlap is the dual-key verification window after a rotation.
	Overlap time.Duration
	// SealBatch bounds the rows loaded per page while sealing.
	SealBatch int

	mu      sync.RWMutex
	keyring *signing.Keyring
}

// NewAuditLedger builds the ledger and bootstraps the keyring. On a fresh
// database the configured HMAC key is installed as key version 1; afterwards
// the database is the source of truth and the configured key is only the
// bootstrap seed.
func NewAuditLedger(ctx context.Context, db *gorm.DB, cfg config.AuditConfig) (*AuditLedger, error) {
	l := &AuditLedger{
		DB:        db,
		Retention: cfg.Retention,
		Overlap:   cfg.KeyOverlap,
		SealBatch: cfg.SealBatchSize,
	}
	if l.SealBatch < 1 {
		l.SealBatch = 1000
	}

	keys, err := repo.ListKeys(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("audit: load signing keys: %w", err)
	}
	if len(keys) == 0 {
		now := time.Now().UTC()
		if _, err := repo.CreateKey(ctx, db, cfg.HMACKey, domain.KeyStatusActive, &now); err != nil {
			return nil, fmt.Errorf("audit: bootstrap signing key: %w", err)
		}
	}
	if err := l.reloadKeyring(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// reloadKeyring rebuilds the in-memory keyring from the key table.
func (l *AuditLedger) reloadKeyring(ctx context.Context) error {
	rows, err := repo.ListKeys(ctx, l.DB)
	if err != nil {
		return fmt.Errorf("audit: load signing keys: %w", err)
	}
	keys := make([]signing.Key, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, signing.Key{
			Version:   r.Version,
			Secret:    []byte(r.Secret),
			Active:    r.Status == domain.KeyStatusActive,
			RotatedAt: r.RotatedAt,
		})
	}
	kr, err := signing.NewKeyring(keys, l.Overlap)
	if err != nil {
		if errors.Is(err, signing.ErrNoActiveKey) {
			return ErrNoActiveKey
		}
		return err
	}
	l.mu.Lock()
	l.keyring = kr
	l.mu.Unlock()
	return nil
}

func (l *AuditLedger) ring() *signing.Keyring {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.keyring
}

// RecordInput is the caller-supplied portion of an audit event. Timestamp,
// partition, signature, and retention are stamped by the ledger.
type RecordInput struct {
	EventType  string
	ActorID    string
	ActorType  string
	TargetID   string
	TargetType string
	Action     string
	Metadata   domain.EventMetadata
	PII        bool
	LegalHold  bool
	// IdempotencyKey, when set, makes the record replay-safe: a second call
	// with the same key returns the original event instead of a new row.
	IdempotencyKey string
}

// Record appends a signed event using the ledger's own DB handle.
func (l *AuditLedger) Record(ctx context.Context, in RecordInput) (*domain.AuditEvent, error) {
	return l.RecordWith(ctx, l.DB, in)
}

// RecordWith appends a signed event on the given handle, which may be a
// transaction so the event commits or rolls back with the state change it
// describes.
func (l *AuditLedger) RecordWith(ctx context.Context, db *gorm.DB, in RecordInput) (*domain.AuditEvent, error) {
	now := time.Now().UTC()

	p, err := repo.GetOrCreatePartition(ctx, db, partitionID(now), monthStart(now), monthEnd(now))
	if err != nil {
		return nil, fmt.Errorf("audit: partition: %w", err)
	}

	meta, err := in.Metadata.Canonical()
	if err != nil {
		return nil, fmt.Errorf("audit: metadata: %w", err)
	}

	key := l.ring().ActiveKey()
	sig := signing.Sign(key.Secret, signing.Payload{
		EventType:  in.EventType,
		ActorID:    in.ActorID,
		ActorType:  in.ActorType,
		TargetType: in.TargetType,
		TargetID:   in.TargetID,
		Action:     in.Action,
		Metadata:   meta,
		Timestamp:  now,
	})

	class := eventClassTable[in.EventType]
	if in.LegalHold {
		class = domain.EventClassLegalHold
	}

	e := &domain.AuditEvent{
		ID:             uuid.NewString(),
		PartitionID:    p.ID,
		EventType:      in.EventType,
		ActorID:        in.ActorID,
		ActorType:      in.ActorType,
		TargetID:       in.TargetID,
		TargetType:     in.TargetType,
		Action:         in.Action,
		Metadata:       in.Metadata,
		Timestamp:      now,
		Signature:      sig,
		KeyVersion:     key.Version,
		PIITagged:      in.PII,
		RetentionUntil: now.AddDate(l.Retention.Years(class), 0, 0),
	}
	if in.IdempotencyKey != "" {
		k := in.IdempotencyKey
		e.IdempotencyKey = &k
	}

	if err := repo.AppendEvent(ctx, db, e); err != nil {
		if errors.Is(err, repo.ErrDuplicate) && in.IdempotencyKey != "" {
			return repo.GetEventByIdempotencyKey(ctx, db, in.IdempotencyKey)
		}
		return nil, fmt.Errorf("audit: append: %w", err)
	}
	return e, nil
}

// VerifyResult reports the outcome of a signature check.
type VerifyResult struct {
	EventID    string `json:"event_id"`
	Valid      bool   `json:"valid"`
	KeyVersion int    `json:"signing_key_version"`
	Detail     string `json:"detail,omitempty"`
}

// Verify recomputes an event's signature under the key version stored on the
// record. When that key fails, every key whose overlap window covered the
// event timestamp is tried before the record is declared tampered. An invalid
// signature is a result, not an error; callers decide how loudly to react.
func (l *AuditLedger) Verify(ctx context.Context, eventID string) (*VerifyResult, error) {
	e, err := repo.GetEvent(ctx, l.DB, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return l.verifyEvent(e), nil
}

func (l *AuditLedger) verifyEvent(e *domain.AuditEvent) *VerifyResult {
	res := &VerifyResult{EventID: e.ID, KeyVersion: e.KeyVersion}
	kr := l.ring()

	meta, err := e.Metadata.Canonical()
	if err != nil {
		res.Detail = "metadata does not re-serialize: " + err.Error()
		return res
	}
	payload := signing.Payload{
		EventType:  e.EventType,
		ActorID:    e.ActorID,
		ActorType:  e.ActorType,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Action:     e.Action,
		Metadata:   meta,
		Timestamp:  e.Timestamp,
	}

	key, err := kr.KeyByVersion(e.KeyVersion)
	if err != nil {
		res.Detail = fmt.Sprintf("signing key version %d not in keyring", e.KeyVersion)
		return res
	}
	if signing.VerifySig(key.Secret, payload, e.Signature) {
		res.Valid = true
		return res
	}

	// Dual-key window: a record written while a rotation was in flight may
	// carry the signature of the other key valid at its timestamp.
	for _, v := range kr.SortedVersions() {
		if v == e.KeyVersion || !kr.VerifiesAt(v, e.Timestamp) {
			continue
		}
		alt, _ := kr.KeyByVersion(v)
		if signing.VerifySig(alt.Secret, payload, e.Signature) {
			res.Valid = true
			res.KeyVersion = v
			res.Detail = fmt.Sprintf("verified under overlap key version %d", v)
			return res
		}
	}

	res.Detail = "signature mismatch"
	return res
}

// TargetHistory returns the full audit trail for one target in creation
// order.
func (l *AuditLedger) TargetHistory(ctx context.Context, targetType, targetID string) ([]domain.AuditEvent, error) {
	return repo.ListTargetEvents(ctx, l.DB, targetType, targetID)
}

// SealPartition verifies every event signature in the partition, computes the
// aggregate checksum, and persists the signed manifest. Sealing an
// already-sealed partition is idempotent as long as the recomputed checksum
// matches the stored one; a mismatch is an integrity violation and is
// returned as ErrPartitionSealed, never repaired.
func (l *AuditLedger) SealPartition(ctx context.Context, partitionID string) (*domain.AuditPartition, error) {
	p, err := repo.GetPartition(ctx, l.DB, partitionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPartitionNotFound
		}
		return nil, err
	}

	var (
		sigs     []string
		afterSeq uint64
	)
	for {
		page, err := repo.ListPartitionEvents(ctx, l.DB, partitionID, afterSeq, l.SealBatch)
		if err != nil {
			return nil, err
		}
		for i := range page {
			e := &page[i]
			if res := l.verifyEvent(e); !res.Valid {
				log.Error().
					Str("partition_id", partitionID).
					Str("event_id", e.ID).
					Str("detail", res.Detail).
					Msg("audit: seal aborted on unverifiable event")
				return nil, fmt.Errorf("%w: event %s: %s", ErrSignatureMismatch, e.ID, res.Detail)
			}
			sigs = append(sigs, e.Signature)
			afterSeq = e.Seq
		}
		if len(page) < l.SealBatch {
			break
		}
	}
	checksum := signing.PartitionChecksum(sigs)
	count := int64(len(sigs))

	if p.Sealed() {
		if p.Checksum == checksum {
			return p, nil
		}
		log.Error().
			Str("partition_id", partitionID).
			Str("stored", p.Checksum).
			Str("recomputed", checksum).
			Msg("audit: sealed partition checksum diverged")
		return nil, fmt.Errorf("%w: partition %s", ErrPartitionSealed, partitionID)
	}

	sealedAt := time.Now().UTC()
	key := l.ring().ActiveKey()
	manifestSig := signing.Sign(key.Secret, signing.ManifestPayload(partitionID, count, checksum, sealedAt))

	if err := repo.SealPartition(ctx, l.DB, partitionID, count, checksum, manifestSig, key.Version, sealedAt); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Lost a seal race; the winner's manifest must agree with ours.
			return l.SealPartition(ctx, partitionID)
		}
		return nil, err
	}

	p.SealedAt = &sealedAt
	p.RecordCount = count
	p.Checksum = checksum
	p.ManifestSignature = manifestSig
	p.ManifestKeyVersion = key.Version

	if _, err := l.Record(ctx, RecordInput{
		EventType:      EventPartitionSealed,
		ActorID:        "ledger",
		ActorType:      domain.ActorTypeSystem,
		TargetID:       partitionID,
		TargetType:     "audit_partition",
		Action:         "seal",
		Metadata:       domain.Meta(domain.SealMeta{PartitionID: partitionID, RecordCount: count, Checksum: checksum}),
		IdempotencyKey: "seal:" + partitionID,
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// SealDuePartitions seals every partition whose month has fully elapsed.
// Scheduler entry point; failures on one partition do not block the rest.
func (l *AuditLedger) SealDuePartitions(ctx context.Context, now time.Time) (sealed int, err error) {
	due, err := repo.ListUnsealedPartitionsBefore(ctx, l.DB, monthStart(now.UTC()))
	if err != nil {
		return 0, err
	}
	for _, p := range due {
		if _, serr := l.SealPartition(ctx, p.ID); serr != nil {
			log.Error().Err(serr).Str("partition_id", p.ID).Msg("audit: seal failed")
			err = serr
			continue
		}
		sealed++
	}
	return sealed, err
}

// EnsureCurrentPartition creates the partition row for the month containing
// now. Scheduler entry point; recording an event would create it anyway, this
// just keeps the row visible before the first event lands.
func (l *AuditLedger) EnsureCurrentPartition(ctx context.Context, now time.Time) error {
	now = now.UTC()
	_, err := repo.GetOrCreatePartition(ctx, l.DB, partitionID(now), monthStart(now), monthEnd(now))
	return err
}

// GetPartition fetches a partition manifest by ID.
func (l *AuditLedger) GetPartition(ctx context.Context, id string) (*domain.AuditPartition, error) {
	p, err := repo.GetPartition(ctx, l.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPartitionNotFound
		}
		return nil, err
	}
	return p, nil
}

// RotateKey retires the active signing key and installs newSecret as the next
// version. The retired key keeps verifying for the overlap window. The
// rotation itself is recorded as an integrity event signed by the new key.
func (l *AuditLedger) RotateKey(ctx context.Context, newSecret string) (*domain.SigningKey, error) {
	if len(newSecret) < 32 {
		return nil, ErrWeakKey
	}

	oldVersion := l.ring().ActiveKey().Version
	now := time.Now().UTC()

	var created *domain.SigningKey
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := repo.RotateActiveKey(ctx, tx, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNoActiveKey
		}
		created, err = repo.CreateKey(ctx, tx, newSecret, domain.KeyStatusActive, &now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := l.reloadKeyring(ctx); err != nil {
		return nil, err
	}

	if _, err := l.Record(ctx, RecordInput{
		EventType:  EventKeyRotated,
		ActorID:    "ledger",
		ActorType:  domain.ActorTypeSystem,
		TargetID:   fmt.Sprintf("key-v%d", created.Version),
		TargetType: "signing_key",
		Action:     "rotate",
		Metadata:   domain.Meta(domain.KeyChangeMeta{OldVersion: oldVersion, NewVersion: created.Version}),
	}); err != nil {
		return nil, err
	}

	log.Info().Int("old_version", oldVersion).Int("new_version", created.Version).
		Msg("audit: signing key rotated")
	return created, nil
}

// MaintainKeys retires rotated keys whose overlap window has closed.
// Scheduler entry point; idempotent.
func (l *AuditLedger) MaintainKeys(ctx context.Context, now time.Time) (int64, error) {
	n, err := repo.DeactivateExpiredKeys(ctx, l.DB, l.Overlap, now.UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := l.reloadKeyring(ctx); err != nil {
			return n, err
		}
	}
	return n, nil
}

// ActiveKeyVersion returns the version of the key signing new records.
func (l *AuditLedger) ActiveKeyVersion() int { return l.ring().ActiveKey().Version }

func partitionID(t time.Time) string { return t.UTC().Format("2006-01") }

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthEnd(t time.Time) time.Time { return monthStart(t).AddDate(0, 1, 0) }
