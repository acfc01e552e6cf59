// Package services defines the business logic of the moderation engine:
// report intake, claim/decision workflow, action execution, appeals, the
// audit ledger, and SLA monitoring. This file centralizes service-level
// error values so they can be consistently returned by service methods and
// mapped to HTTP results by the handlers.
package services

import "errors"

// Validation errors (rejected synchronously, nothing persisted).
var (
	// ErrMissingExplanation is returned when a report has an empty explanation.
	ErrMissingExplanation = errors.New("explanation is required")

	// ErrMissingGoodFaith is returned when a report lacks the good-faith
	// declaration.
	ErrMissingGoodFaith = errors.New("good-faith declaration is required")

	// ErrMissingJurisdiction is returned when an illegal-content report has
	// no jurisdiction.
	ErrMissingJurisdiction = errors.New("jurisdiction is required for illegal-content reports")

	// ErrMissingLegalReference is returned when an illegal-content report or
	// an illegal-ground statement of reasons has no legal reference.
	ErrMissingLegalReference = errors.New("legal reference is required for illegal ground")

	// ErrInvalidRegion is returned when a jurisdiction or territory is not a
	// recognized ISO region code.
	ErrInvalidRegion = errors.New("invalid region code")

	// ErrInvalidReportType is returned for report types outside the checked set.
	ErrInvalidReportType = errors.New("report type must be illegal or policy_violation")

	// ErrInvalidContentType is returned for content types outside the checked set.
	ErrInvalidContentType = errors.New("unknown content type")

	// ErrInvalidAction is returned when a decision names an action outside
	// the checked set.
	ErrInvalidAction = errors.New("unknown moderation action")

	// ErrMissingReasoning is returned when a decision or appeal outcome
	// carries no reasoning.
	ErrMissingReasoning = errors.New("reasoning is required")

	// ErrInvalidOutcome is returned for appeal outcomes outside the checked set.
	ErrInvalidOutcome = errors.New("appeal outcome must be upheld, rejected, or partial")

	// ErrInvalidGround is returned for statement grounds outside the checked set.
	ErrInvalidGround = errors.New("decision ground must be illegal or terms")

	// ErrMissingTerritory is returned when a geo_block decision names no
	// territories.
	ErrMissingTerritory = errors.New("geo_block requires at least one territory")
)

// Authorization errors (operation refused, no state change).
var (
	// ErrNotClaimOwner is returned when a moderator records a decision on a
	// report they do not hold (and never held) the claim for.
	ErrNotClaimOwner = errors.New("report is not claimed by this moderator")

	// ErrApprovalRequired is returned when executing a high-impact decision
	// that has not been approved by a supervisor.
	ErrApprovalRequired = errors.New("decision requires supervisor approval")

	// ErrApprovalNotRequired is returned when approving a decision whose
	// action never needed a supervisor.
	ErrApprovalNotRequired = errors.New("decision does not require approval")

	// ErrSelfApproval is returned when the deciding moderator tries to
	// approve their own decision.
	ErrSelfApproval = errors.New("supervisor must differ from the deciding moderator")

	// ErrSameReviewer is returned when the deciding moderator tries to
	// review the appeal against their own decision.
	ErrSameReviewer = errors.New("appeal reviewer must differ from the deciding moderator")

	// ErrNotAppellant is returned when someone other than the appellant
	// tries to escalate the appeal.
	ErrNotAppellant = errors.New("only the appellant may escalate")
)

// Conflict errors.
var (
	// ErrAlreadyClaimed is returned when another moderator holds the active
	// claim. The wrapped ClaimConflict carries holder and expiry for the
	// user-facing message.
	ErrAlreadyClaimed = errors.New("report already claimed")

	// ErrDuplicateAppeal is returned when the user already has an appeal
	// against the decision.
	ErrDuplicateAppeal = errors.New("appeal already filed for this decision")

	// ErrAlreadyEscalated is returned on a second ODS escalation attempt for
	// the same appeal.
	ErrAlreadyEscalated = errors.New("appeal already escalated to a dispute body")

	// ErrAlreadyResolved is returned when acting on a report, decision, or
	// appeal that has reached a terminal state.
	ErrAlreadyResolved = errors.New("already resolved")
)

// Integrity errors (fatal, logged, never auto-corrected).
var (
	// ErrSignatureMismatch is returned when a stored audit signature does not
	// verify under any key valid for the record.
	ErrSignatureMismatch = errors.New("audit signature mismatch")

	// ErrPartitionSealed is returned when sealing finds the partition sealed
	// with a different checksum than a recomputation produces.
	ErrPartitionSealed = errors.New("sealed partition checksum mismatch")

	// ErrNoActiveKey is returned when the signing keyring holds no active key.
	ErrNoActiveKey = errors.New("no active signing key")

	// ErrWeakKey is returned when a rotation offers a key under 32 bytes.
	ErrWeakKey = errors.New("signing key must be at least 32 bytes")
)

// Not-found errors.
var (
	ErrReportNotFound    = errors.New("report not found")
	ErrDecisionNotFound  = errors.New("decision not found")
	ErrStatementNotFound = errors.New("statement of reasons not found")
	ErrAppealNotFound    = errors.New("appeal not found")
	ErrContentNotFound   = errors.New("content not found")
	ErrEventNotFound     = errors.New("audit event not found")
	ErrPartitionNotFound = errors.New("audit partition not found")
	ErrOdsBodyNotFound   = errors.New("dispute body not found")
	ErrAlertNotFound     = errors.New("alert not found")
)
