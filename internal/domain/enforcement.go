// Package domain – enforcement and outbox models.
//
// These tables carry the side effects of executed decisions: the moderated
// view of content, time-boxed user restrictions, territorial blocks, the
// user-notification outbox, and the Transparency Database export queue.
package domain

import "time"

// Content visibility states.
const (
	VisibilityPublic   = "public"
	VisibilityLimited  = "limited" // quarantined: reachable by direct link only
	VisibilityShadowed = "shadowed"
)

// User account statuses.
const (
	AccountStatusActive    = "active"
	AccountStatusSuspended = "suspended"
)

// ContentItem is the engine's moderated view of a piece of community
// content. The community domain owns authorship and body; this table owns
// visibility, quarantine, and soft-deletion state.
type ContentItem struct {
	ID            string     `json:"id"          gorm:"type:varchar(64);primaryKey"`
	ContentType   string     `json:"content_type" gorm:"type:varchar(16);not null"`
	AuthorID      string     `json:"author_id"   gorm:"type:varchar(64);not null;index"`
	Body          string     `json:"body"        gorm:"type:text"`
	Visibility    string     `json:"visibility"  gorm:"type:varchar(16);not null;default:'public';check:visibility IN ('public','limited','shadowed')"`
	QuarantinedAt *time.Time `json:"quarantined_at,omitempty"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" gorm:"index"` // soft delete; recoverable until hard-deletion policy applies
	DeletedBy     string     `json:"deleted_by,omitempty" gorm:"type:varchar(64)"`
	DeleteReason  string     `json:"delete_reason,omitempty" gorm:"type:varchar(128)"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ContentItem.
func (ContentItem) TableName() string { return "content_items" }

// UserAccount is the engine's view of a community account, carrying the
// suspension state that suspend_user decisions toggle.
type UserAccount struct {
	ID             string     `json:"id"     gorm:"type:varchar(64);primaryKey"`
	Status         string     `json:"status" gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','suspended')"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
	TrustedFlagger bool       `json:"trusted_flagger" gorm:"not null;default:false"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for UserAccount.
func (UserAccount) TableName() string { return "user_accounts" }

// Restriction kinds applied by the execution engine.
const (
	RestrictionRateLimit  = "rate_limit"
	RestrictionShadowBan  = "shadow_ban"
	RestrictionSuspension = "suspension"
)

// ContentRestriction is a time-boxed restriction on a user produced by a
// rate_limit, shadow_ban, or suspend_user decision.
type ContentRestriction struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID      string    `json:"user_id"     gorm:"type:varchar(64);not null;index"`
	DecisionID  string    `json:"decision_id" gorm:"type:char(36);not null;index"`
	Kind        string    `json:"kind"        gorm:"type:varchar(16);not null;check:kind IN ('rate_limit','shadow_ban','suspension')"`
	ReasonCode  string    `json:"reason_code" gorm:"type:varchar(64)"`
	StartsAt    time.Time `json:"starts_at"   gorm:"not null"`
	ExpiresAt   time.Time `json:"expires_at"  gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for ContentRestriction.
func (ContentRestriction) TableName() string { return "content_restrictions" }

// GeoBlock is one territorial visibility block: one row per
// (content, territory, reason code).
type GeoBlock struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ContentID  string    `json:"content_id"  gorm:"type:varchar(64);not null;uniqueIndex:ux_geo_block,priority:1"`
	Territory  string    `json:"territory"   gorm:"type:varchar(8);not null;uniqueIndex:ux_geo_block,priority:2"`
	ReasonCode string    `json:"reason_code" gorm:"type:varchar(64);not null;uniqueIndex:ux_geo_block,priority:3"`
	DecisionID string    `json:"decision_id" gorm:"type:char(36);not null;index"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for GeoBlock.
func (GeoBlock) TableName() string { return "geo_blocks" }

// Notification statuses. Delivery itself is an external collaborator; the
// engine only writes outbox rows and consumes status callbacks.
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification is a user-facing outbox record enqueued when a decision is
// executed or an appeal is resolved.
type Notification struct {
	ID           string     `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID       string     `json:"user_id"       gorm:"type:varchar(64);not null;index"`
	DecisionID   string     `json:"decision_id"   gorm:"type:char(36);index"`
	Action       string     `json:"action"        gorm:"type:varchar(32);not null"`
	ScheduledFor time.Time  `json:"scheduled_for" gorm:"not null;index"`
	Status       string     `json:"status"        gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','sent','failed')"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Transparency Database export statuses.
const (
	ExportPending    = "pending"
	ExportSubmitted  = "submitted"
	ExportDeadLetter = "dead_letter"
)

// SorExport is one queued submission of a redacted statement of reasons to
// the external Transparency Database. IdempotencyKey deduplicates retried
// submissions on the remote side; LastError and Attempts drive the bounded
// retry loop before the row is parked in dead_letter.
type SorExport struct {
	ID             string     `json:"id"              gorm:"type:char(36);primaryKey"`
	StatementID    string     `json:"statement_id"    gorm:"type:char(36);not null;uniqueIndex:ux_export_statement"`
	IdempotencyKey string     `json:"idempotency_key" gorm:"type:varchar(128);not null;uniqueIndex:ux_export_idem"`
	Status         string     `json:"status"          gorm:"type:varchar(16);not null;default:'pending';index;check:status IN ('pending','submitted','dead_letter')"`
	Attempts       int        `json:"attempts"        gorm:"not null;default:0"`
	LastError      string     `json:"last_error,omitempty" gorm:"type:text"`
	ExternalID     *string    `json:"external_id,omitempty" gorm:"type:varchar(128)"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	NextAttemptAt  time.Time  `json:"next_attempt_at" gorm:"not null;index"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for SorExport.
func (SorExport) TableName() string { return "sor_exports" }
