// Package domain defines the persistence models for the moderation and
// compliance engine: content reports, review claims, decisions, statements
// of reasons, action executions, appeals, and ODS escalations. These types
// are mapped with GORM and are shared by the repository and service layers.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Report statuses. Transitions are monotonic: pending → in_review → resolved,
// with duplicate as an alternate terminal state set only at intake.
const (
	ReportStatusPending   = "pending"
	ReportStatusInReview  = "in_review"
	ReportStatusResolved  = "resolved"
	ReportStatusDuplicate = "duplicate"
)

// Report types per the notice-and-action contract.
const (
	ReportTypeIllegal         = "illegal"
	ReportTypePolicyViolation = "policy_violation"
)

// Content types a report may target.
const (
	ContentTypePost    = "post"
	ContentTypeComment = "comment"
	ContentTypeImage   = "image"
	ContentTypeProfile = "profile"
	ContentTypeOther   = "other"
)

// Moderation actions. Unknown values must never reach the execution engine;
// the decision row carries a check constraint over this set.
const (
	ActionNoAction    = "no_action"
	ActionQuarantine  = "quarantine"
	ActionGeoBlock    = "geo_block"
	ActionRemove      = "remove"
	ActionSuspendUser = "suspend_user"
	ActionRateLimit   = "rate_limit"
	ActionShadowBan   = "shadow_ban"
)

// Decision statuses.
const (
	DecisionStatusPending  = "pending"
	DecisionStatusApproved = "approved"
	DecisionStatusExecuted = "executed"
	DecisionStatusReversed = "reversed"
)

// Statement-of-reasons decision grounds (DSA Art.17).
const (
	GroundIllegal = "illegal"
	GroundTerms   = "terms"
)

// Appeal statuses and outcomes.
const (
	AppealStatusPending   = "pending"
	AppealStatusInReview  = "in_review"
	AppealStatusResolved  = "resolved"
	AppealStatusEscalated = "escalated_to_ods"

	AppealOutcomeUpheld   = "upheld"
	AppealOutcomeRejected = "rejected"
	AppealOutcomePartial  = "partial"
)

// ODS escalation statuses.
const (
	OdsStatusSubmitted  = "submitted"
	OdsStatusInProgress = "in_progress"
	OdsStatusResolved   = "resolved"
	OdsStatusExpired    = "expired"
	OdsStatusWithdrawn  = "withdrawn"
)

// ContentReport is a notice filed against a piece of content or a user.
//
// Invariants enforced by the intake and workflow services:
//   - SLADeadline is set once at creation and never moved earlier.
//   - Status transitions are monotonic (no resolved → pending).
//   - A duplicate report always points at a non-duplicate via DuplicateOfID.
//
// Reports are never physically deleted; retention and legal hold are handled
// by the audit ledger's retention policy.
type ContentReport struct {
	ID              string     `json:"id"               gorm:"type:char(36);primaryKey"`
	ContentID       string     `json:"content_id"       gorm:"type:varchar(64);not null;index:idx_reports_content"`
	ContentType     string     `json:"content_type"     gorm:"type:varchar(16);not null;check:content_type IN ('post','comment','image','profile','other')"`
	ContentLocator  string     `json:"content_locator"  gorm:"type:text"`
	ContentHash     string     `json:"content_hash"     gorm:"type:varchar(64);index"`
	ReporterID      string     `json:"reporter_id"      gorm:"type:varchar(64);not null;index"`
	ReporterContact string     `json:"-"                gorm:"type:varchar(255)"` // PII, never serialized
	TrustedFlagger  bool       `json:"trusted_flagger"  gorm:"not null;default:false"`
	ReportType      string     `json:"report_type"      gorm:"type:varchar(32);not null;check:report_type IN ('illegal','policy_violation')"`
	Jurisdiction    string     `json:"jurisdiction"     gorm:"type:varchar(8)"`
	LegalReference  string     `json:"legal_reference"  gorm:"type:text"`
	Explanation     string     `json:"explanation"      gorm:"type:text;not null"`
	GoodFaith       bool       `json:"good_faith_declaration" gorm:"not null"`
	EvidenceURLs    StringList `json:"evidence_urls"    gorm:"type:text"`
	Status          string     `json:"status"           gorm:"type:varchar(16);not null;default:'pending';index;check:status IN ('pending','in_review','resolved','duplicate')"`
	Priority        int        `json:"priority"         gorm:"not null;default:50;check:priority >= 0 AND priority <= 100"`
	SLADeadline     time.Time  `json:"sla_deadline"     gorm:"not null;index"`
	SnapshotID      *string    `json:"content_snapshot_id,omitempty" gorm:"type:char(36)"`
	DuplicateOfID   *string    `json:"duplicate_of_report_id,omitempty" gorm:"type:char(36)"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ContentReport.
func (ContentReport) TableName() string { return "content_reports" }

// ContentSnapshot is a content-addressed capture of the reported material,
// taken at intake so the evidence survives later edits or deletion.
type ContentSnapshot struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	ContentID   string    `json:"content_id"   gorm:"type:varchar(64);not null;index"`
	ContentType string    `json:"content_type" gorm:"type:varchar(16);not null"`
	ContentHash string    `json:"content_hash" gorm:"type:varchar(64);not null;index:idx_snapshots_hash"`
	Payload     []byte    `json:"-"            gorm:"type:blob"` // opaque capture, hash-addressed
	CapturedAt  time.Time `json:"captured_at"  gorm:"not null;index"`
}

// TableName returns the database table name for ContentSnapshot.
func (ContentSnapshot) TableName() string { return "content_snapshots" }

// ModerationClaim is the exclusive, time-boxed review lock a moderator holds
// on a report. The table keys on ReportID, so "at most one active claim per
// report" is a structural fact: claiming a report whose previous claim has
// expired updates the single row in place via a conditional upsert, and two
// concurrent claims can never both succeed.
type ModerationClaim struct {
	ReportID    string    `json:"report_id"    gorm:"type:char(36);primaryKey"`
	ModeratorID string    `json:"moderator_id" gorm:"type:varchar(64);not null;index"`
	ClaimedAt   time.Time `json:"claimed_at"   gorm:"not null"`
	ExpiresAt   time.Time `json:"expires_at"   gorm:"not null;index"`
}

// TableName returns the database table name for ModerationClaim.
func (ModerationClaim) TableName() string { return "moderation_claims" }

// Active reports whether the claim still holds at the given instant.
func (c ModerationClaim) Active(now time.Time) bool { return c.ExpiresAt.After(now) }

// ModerationDecision records the action chosen for a report. A decision is
// executed exactly once; the unique constraint on ActionExecution.DecisionID
// backs that invariant.
type ModerationDecision struct {
	ID               string     `json:"id"            gorm:"type:char(36);primaryKey"`
	ReportID         string     `json:"report_id"     gorm:"type:char(36);not null;index"`
	ModeratorID      string     `json:"moderator_id"  gorm:"type:varchar(64);not null;index"`
	SupervisorID     *string    `json:"supervisor_id,omitempty" gorm:"type:varchar(64)"`
	Action           string     `json:"action"        gorm:"type:varchar(16);not null;check:action IN ('no_action','quarantine','geo_block','remove','suspend_user','rate_limit','shadow_ban')"`
	PolicyViolations StringList `json:"policy_violations" gorm:"type:text"`
	Reasoning        string     `json:"reasoning"     gorm:"type:text;not null"`
	Evidence         StringList `json:"evidence"      gorm:"type:text"`
	StatementID      *string    `json:"statement_of_reasons_id,omitempty" gorm:"type:char(36)"`
	Status           string     `json:"status"        gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','approved','executed','reversed')"`
	RequiresApproval bool       `json:"requires_supervisor_approval" gorm:"not null;default:false"`
	ExecutedAt       *time.Time `json:"executed_at,omitempty"`
	ReversedAt       *time.Time `json:"reversed_at,omitempty"`
	ReversalReason   string     `json:"reversal_reason,omitempty" gorm:"type:text"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	Report ContentReport `json:"-" gorm:"foreignKey:ReportID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for ModerationDecision.
func (ModerationDecision) TableName() string { return "moderation_decisions" }

// HighImpact reports whether the action requires supervisor approval before
// execution.
func HighImpact(action string) bool {
	return action == ActionRemove || action == ActionSuspendUser
}

// StatementOfReasons is the DSA Art.17 structured explanation tied 1:1 to a
// decision. LegalReference is required exactly when the ground is "illegal";
// the intake service enforces the consistency rule before persisting.
type StatementOfReasons struct {
	ID                 string     `json:"id"             gorm:"type:char(36);primaryKey"`
	DecisionID         string     `json:"decision_id"    gorm:"type:char(36);not null;uniqueIndex:ux_sor_decision"`
	DecisionGround     string     `json:"decision_ground" gorm:"type:varchar(16);not null;check:decision_ground IN ('illegal','terms')"`
	LegalReference     string     `json:"legal_reference,omitempty" gorm:"type:text"`
	Facts              string     `json:"facts_and_circumstances" gorm:"type:text;not null"`
	AutomatedDetection bool       `json:"automated_detection" gorm:"not null;default:false"`
	AutomatedDecision  bool       `json:"automated_decision"  gorm:"not null;default:false"`
	TerritorialScope   StringList `json:"territorial_scope" gorm:"type:text"`
	RedressOptions     StringList `json:"redress_options"   gorm:"type:text"`
	TransparencyDBID   *string    `json:"transparency_db_id,omitempty" gorm:"column:transparency_db_id;type:varchar(128)"`
	SubmittedAt        *time.Time `json:"transparency_db_submitted_at,omitempty" gorm:"column:submitted_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName returns the database table name for StatementOfReasons.
func (StatementOfReasons) TableName() string { return "statements_of_reasons" }

// ActionExecution is the audit record of one applied decision. The unique
// index on DecisionID makes execution exactly-once: a losing writer in a
// duplicate-execute race reads back the winner's row instead of re-applying
// side effects.
type ActionExecution struct {
	ID               string     `json:"id"            gorm:"type:char(36);primaryKey"`
	DecisionID       string     `json:"decision_id"   gorm:"type:char(36);not null;uniqueIndex:ux_execution_decision"`
	Action           string     `json:"action"        gorm:"type:varchar(16);not null"`
	ContentID        string     `json:"content_id"    gorm:"type:varchar(64)"`
	UserID           string     `json:"user_id"       gorm:"type:varchar(64)"`
	ReasonCode       string     `json:"reason_code"   gorm:"type:varchar(64)"`
	DurationDays     *int       `json:"duration_days,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	TerritorialScope StringList `json:"territorial_scope" gorm:"type:text"`
	ExecutedBy       string     `json:"executed_by"   gorm:"type:varchar(64);not null"`
	ExecutedAt       time.Time  `json:"executed_at"   gorm:"not null"`
}

// TableName returns the database table name for ActionExecution.
func (ActionExecution) TableName() string { return "action_executions" }

// Appeal is a user challenge to a moderation decision. One active appeal per
// (decision, user) pair; Deadline is floored at seven days from submission.
type Appeal struct {
	ID               string     `json:"id"             gorm:"type:char(36);primaryKey"`
	DecisionID       string     `json:"original_decision_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_appeal_decision_user,priority:1"`
	UserID           string     `json:"user_id"        gorm:"type:varchar(64);not null;uniqueIndex:ux_appeal_decision_user,priority:2"`
	AppealType       string     `json:"appeal_type"    gorm:"type:varchar(32);not null"`
	CounterArguments string     `json:"counter_arguments" gorm:"type:text;not null"`
	Evidence         StringList `json:"supporting_evidence" gorm:"type:text"`
	ReviewerID       *string    `json:"reviewer_id,omitempty" gorm:"type:varchar(64)"`
	Outcome          *string    `json:"decision,omitempty" gorm:"column:outcome;type:varchar(16);check:outcome IN ('upheld','rejected','partial')"`
	OutcomeReasoning string     `json:"outcome_reasoning,omitempty" gorm:"type:text"`
	Status           string     `json:"status"         gorm:"type:varchar(24);not null;default:'pending';index;check:status IN ('pending','in_review','resolved','escalated_to_ods')"`
	SubmittedAt      time.Time  `json:"submitted_at"   gorm:"not null"`
	Deadline         time.Time  `json:"deadline"       gorm:"not null"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	Decision ModerationDecision `json:"-" gorm:"foreignKey:DecisionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Appeal.
func (Appeal) TableName() string { return "appeals" }

// ODSEscalation tracks an external out-of-court dispute settlement case.
// At most one escalation per appeal (unique index on AppealID).
type ODSEscalation struct {
	ID                 string     `json:"id"          gorm:"type:char(36);primaryKey"`
	AppealID           string     `json:"appeal_id"   gorm:"type:char(36);not null;uniqueIndex:ux_ods_appeal"`
	OdsBodyID          string     `json:"ods_body_id" gorm:"type:char(36);not null"`
	CaseNumber         string     `json:"case_number" gorm:"type:varchar(64)"`
	Status             string     `json:"status"      gorm:"type:varchar(16);not null;default:'submitted';check:status IN ('submitted','in_progress','resolved','expired','withdrawn')"`
	SubmittedAt        time.Time  `json:"submitted_at" gorm:"not null"`
	TargetResolution   time.Time  `json:"target_resolution_date" gorm:"not null"`
	ActualResolution   *time.Time `json:"actual_resolution_date,omitempty"`
	Outcome            string     `json:"outcome,omitempty" gorm:"type:text"`
	PlatformActionReq  bool       `json:"platform_action_required" gorm:"not null;default:false"`
	PlatformActionDone bool       `json:"platform_action_completed" gorm:"not null;default:false"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ODSEscalation.
func (ODSEscalation) TableName() string { return "ods_escalations" }

// OdsBody is read-only reference data for a certified out-of-court dispute
// settlement body (DSA Art.21).
type OdsBody struct {
	ID              string         `json:"id"             gorm:"type:char(36);primaryKey"`
	Name            string         `json:"name"           gorm:"type:varchar(255);not null"`
	Jurisdictions   StringList     `json:"jurisdictions"  gorm:"type:text"`
	Specialization  string         `json:"specialization" gorm:"type:varchar(128)"`
	SubmissionURL   string         `json:"submission_url" gorm:"type:text"`
	Active          bool           `json:"active"         gorm:"not null;default:true"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DecommissionedAt gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for OdsBody.
func (OdsBody) TableName() string { return "ods_bodies" }
