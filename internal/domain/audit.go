// Package domain – audit ledger models.
//
// AuditEvent rows are write-once: GORM hooks reject updates and deletes at
// the ORM boundary for every caller, including privileged code paths, so the
// WORM property does not depend on repository discipline alone. Partitions
// group events by creation month and, once sealed, carry an immutable
// manifest (record count, aggregate checksum, manifest signature).
package domain

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAuditImmutable is returned by the GORM hooks when any caller attempts
// to update or delete an audit event or a sealed partition manifest.
var ErrAuditImmutable = errors.New("audit records are append-only")

// Actor types recorded on audit events.
const (
	ActorTypeUser      = "user"
	ActorTypeModerator = "moderator"
	ActorTypeSystem    = "system"
)

// Audit event classes used by the retention policy table.
const (
	EventClassDefault   = "default"
	EventClassIntegrity = "integrity"
	EventClassLegalHold = "legal_hold"
)

// AuditEvent is an immutable, signed fact about the moderation record.
//
// Signature is an HMAC-SHA256 over the canonical serialization of
// {event_type, actor_id, actor_type, target_type, target_id, action,
// metadata, timestamp} under the key identified by KeyVersion.
// RetentionUntil is computed from the event class at insert time and never
// recomputed afterwards.
type AuditEvent struct {
	ID             string        `json:"id"              gorm:"type:char(36);primaryKey"`
	Seq            uint64        `json:"seq"             gorm:"not null;uniqueIndex:ux_audit_seq"`
	PartitionID    string        `json:"partition_id"    gorm:"type:char(7);not null;index"` // YYYY-MM
	EventType      string        `json:"event_type"      gorm:"type:varchar(64);not null;index"`
	ActorID        string        `json:"actor_id"        gorm:"type:varchar(64);not null"`
	ActorType      string        `json:"actor_type"      gorm:"type:varchar(16);not null;check:actor_type IN ('user','moderator','system')"`
	TargetID       string        `json:"target_id"       gorm:"type:varchar(64);not null;index:idx_audit_target"`
	TargetType     string        `json:"target_type"     gorm:"type:varchar(32);not null;index:idx_audit_target"`
	Action         string        `json:"action"          gorm:"type:varchar(64);not null"`
	Metadata       EventMetadata `json:"metadata"        gorm:"type:text"`
	Timestamp      time.Time     `json:"timestamp"       gorm:"not null;index"`
	Signature      string        `json:"signature"       gorm:"type:varchar(64);not null"`
	KeyVersion     int           `json:"signing_key_version" gorm:"not null"`
	PIITagged      bool          `json:"pii_tagged"      gorm:"not null;default:false"`
	RetentionUntil time.Time     `json:"retention_until" gorm:"not null"`
	IdempotencyKey *string       `json:"-"               gorm:"type:varchar(128);uniqueIndex:ux_audit_idem"`
}

// TableName returns the database table name for AuditEvent.
func (AuditEvent) TableName() string { return "audit_events" }

// BeforeUpdate blocks every update. WORM.
func (AuditEvent) BeforeUpdate(*gorm.DB) error { return ErrAuditImmutable }

// BeforeDelete blocks every delete. WORM.
func (AuditEvent) BeforeDelete(*gorm.DB) error { return ErrAuditImmutable }

// AuditPartition is the lifecycle record of one calendar month of audit
// events. A sealed partition carries the aggregate checksum over all event
// signatures (in primary-key order) plus a manifest signature, and rejects
// further structural changes.
type AuditPartition struct {
	ID                string     `json:"id"            gorm:"type:char(7);primaryKey"` // YYYY-MM
	StartsAt          time.Time  `json:"starts_at"     gorm:"not null"`
	EndsAt            time.Time  `json:"ends_at"       gorm:"not null"`
	SealedAt          *time.Time `json:"sealed_at,omitempty"`
	RecordCount       int64      `json:"record_count"`
	Checksum          string     `json:"checksum,omitempty"          gorm:"type:varchar(64)"`
	ManifestSignature string     `json:"manifest_signature,omitempty" gorm:"type:varchar(64)"`
	ManifestKeyVersion int       `json:"manifest_key_version,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the database table name for AuditPartition.
func (AuditPartition) TableName() string { return "audit_partitions" }

// Sealed reports whether the partition has been sealed.
func (p AuditPartition) Sealed() bool { return p.SealedAt != nil }

// BeforeUpdate allows exactly one transition: unsealed → sealed. Any write
// that would touch an already-sealed partition is an integrity violation.
// The target rows are resolved from the update's own conditions, since
// updates arrive both as Model(&AuditPartition{ID: id}) and as
// Model(&AuditPartition{}).Where(...).
func (p *AuditPartition) BeforeUpdate(tx *gorm.DB) error {
	q := tx.Session(&gorm.Session{NewDB: true, SkipHooks: true}).
		Model(&AuditPartition{}).
		Where("sealed_at IS NOT NULL")
	if p.ID != "" {
		q = q.Where("id = ?", p.ID)
	} else if c, ok := tx.Statement.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok && len(where.Exprs) > 0 {
			q = q.Where(clause.Where{Exprs: where.Exprs})
		}
	}
	var sealed int64
	if err := q.Count(&sealed).Error; err != nil {
		return err
	}
	if sealed > 0 {
		return ErrAuditImmutable
	}
	return nil
}

// BeforeDelete blocks every delete; partitions expire via retention, not
// ad-hoc removal.
func (AuditPartition) BeforeDelete(*gorm.DB) error { return ErrAuditImmutable }

// Signing key statuses.
const (
	KeyStatusCreated     = "created"
	KeyStatusActive      = "active"
	KeyStatusRotated     = "rotated"
	KeyStatusDeactivated = "deactivated"
)

// SigningKey is one version of the ledger's HMAC key. Exactly one key is
// active at a time; a rotated key continues to verify until RotatedAt plus
// the configured overlap window, after which it is deactivated.
type SigningKey struct {
	Version     int        `json:"version"    gorm:"primaryKey;autoIncrement"`
	Secret      string     `json:"-"          gorm:"type:text;not null"` // never serialized
	Status      string     `json:"status"     gorm:"type:varchar(16);not null;check:status IN ('created','active','rotated','deactivated')"`
	CreatedAt   time.Time  `json:"created_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	RotatedAt   *time.Time `json:"rotated_at,omitempty"`
}

// TableName returns the database table name for SigningKey.
func (SigningKey) TableName() string { return "signing_keys" }

// VerifiesAt reports whether the key may be used for verification at instant
// t, given the dual-key overlap window.
func (k SigningKey) VerifiesAt(t time.Time, overlap time.Duration) bool {
	switch k.Status {
	case KeyStatusActive:
		return true
	case KeyStatusRotated:
		return k.RotatedAt != nil && t.Before(k.RotatedAt.Add(overlap))
	default:
		return false
	}
}
