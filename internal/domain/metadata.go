// Package domain – typed audit event metadata.
//
// Metadata on audit events is a tagged variant record rather than a
// free-form JSON blob: each producer has its own payload type, the envelope
// carries a "kind" discriminator, and decoding an unknown kind fails loudly.
// The canonical signing serialization depends on this encoding being
// deterministic, so payloads marshal with fixed field order (struct order).
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Metadata kinds.
const (
	MetaKindNone      = "none"
	MetaKindReport    = "report"
	MetaKindDecision  = "decision"
	MetaKindExecution = "execution"
	MetaKindAppeal    = "appeal"
	MetaKindKeyChange = "key_change"
	MetaKindSeal      = "seal"
)

// MetadataPayload is implemented by every metadata variant.
type MetadataPayload interface {
	MetadataKind() string
}

// ReportMeta describes a report-intake event.
type ReportMeta struct {
	ReportType     string `json:"report_type"`
	ContentType    string `json:"content_type"`
	TrustedFlagger bool   `json:"trusted_flagger"`
	Priority       int    `json:"priority"`
	Duplicate      bool   `json:"duplicate,omitempty"`
}

// MetadataKind implements MetadataPayload.
func (ReportMeta) MetadataKind() string { return MetaKindReport }

// DecisionMeta describes a decision-recorded or decision-approved event.
type DecisionMeta struct {
	ReportID         string   `json:"report_id"`
	Action           string   `json:"action"`
	RequiresApproval bool     `json:"requires_supervisor_approval"`
	PolicyViolations []string `json:"policy_violations,omitempty"`
}

// MetadataKind implements MetadataPayload.
func (DecisionMeta) MetadataKind() string { return MetaKindDecision }

// ExecutionMeta describes an action-execution event.
type ExecutionMeta struct {
	DecisionID  string   `json:"decision_id"`
	Action      string   `json:"action"`
	ContentID   string   `json:"content_id,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	Territories []string `json:"territories,omitempty"`
}

// MetadataKind implements MetadataPayload.
func (ExecutionMeta) MetadataKind() string { return MetaKindExecution }

// AppealMeta describes appeal lifecycle events.
type AppealMeta struct {
	DecisionID string `json:"decision_id"`
	Outcome    string `json:"outcome,omitempty"`
	OdsBodyID  string `json:"ods_body_id,omitempty"`
}

// MetadataKind implements MetadataPayload.
func (AppealMeta) MetadataKind() string { return MetaKindAppeal }

// KeyChangeMeta describes signing-key lifecycle events.
type KeyChangeMeta struct {
	OldVersion int `json:"old_version,omitempty"`
	NewVersion int `json:"new_version"`
}

// MetadataKind implements MetadataPayload.
func (KeyChangeMeta) MetadataKind() string { return MetaKindKeyChange }

// SealMeta describes a partition-seal event.
type SealMeta struct {
	PartitionID string `json:"partition_id"`
	RecordCount int64  `json:"record_count"`
	Checksum    string `json:"checksum"`
}

// MetadataKind implements MetadataPayload.
func (SealMeta) MetadataKind() string { return MetaKindSeal }

// EventMetadata is the persisted envelope: {"kind": ..., "payload": {...}}.
// The zero value encodes as kind "none" with no payload.
type EventMetadata struct {
	Payload MetadataPayload
}

// Meta wraps a payload into an envelope.
func Meta(p MetadataPayload) EventMetadata { return EventMetadata{Payload: p} }

type metaEnvelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m EventMetadata) MarshalJSON() ([]byte, error) {
	if m.Payload == nil {
		return json.Marshal(metaEnvelope{Kind: MetaKindNone})
	}
	raw, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(metaEnvelope{Kind: m.Payload.MetadataKind(), Payload: raw})
}

// UnmarshalJSON implements json.Unmarshaler. Unknown kinds are an error:
// silently round-tripping unrecognized metadata would defeat the point of
// typing it.
func (m *EventMetadata) UnmarshalJSON(b []byte) error {
	var env metaEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	decode := func(p MetadataPayload) error {
		if err := json.Unmarshal(env.Payload, p); err != nil {
			return err
		}
		return nil
	}
	switch env.Kind {
	case MetaKindNone, "":
		m.Payload = nil
		return nil
	case MetaKindReport:
		p := &ReportMeta{}
		if err := decode(p); err != nil {
			return err
		}
		m.Payload = *p
	case MetaKindDecision:
		p := &DecisionMeta{}
		if err := decode(p); err != nil {
			return err
		}
		m.Payload = *p
	case MetaKindExecution:
		p := &ExecutionMeta{}
		if err := decode(p); err != nil {
			return err
		}
		m.Payload = *p
	case MetaKindAppeal:
		p := &AppealMeta{}
		if err := decode(p); err != nil {
			return err
		}
		m.Payload = *p
	case MetaKindKeyChange:
		p := &KeyChangeMeta{}
		if err := decode(p); err != nil {
			return err
		}
		m.Payload = *p
	case MetaKindSeal:
		p := &SealMeta{}
		if err := decode(p); err != nil {
			return err
		}
		m.Payload = *p
	default:
		return fmt.Errorf("unknown metadata kind %q", env.Kind)
	}
	return nil
}

// Value implements driver.Valuer.
func (m EventMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *EventMetadata) Scan(src any) error {
	if src == nil {
		m.Payload = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("EventMetadata: unsupported column type")
	}
	if len(raw) == 0 {
		m.Payload = nil
		return nil
	}
	return m.UnmarshalJSON(raw)
}

// Canonical returns the deterministic byte serialization of the metadata for
// signing. encoding/json emits struct fields in declaration order, which is
// stable across processes for a fixed build.
func (m EventMetadata) Canonical() ([]byte, error) { return m.MarshalJSON() }
