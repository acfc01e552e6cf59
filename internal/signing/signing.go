// Package signing implements the cryptographic core of the audit ledger:
// canonical payload serialization, HMAC-SHA256 record signatures, versioned
// key resolution with a dual-key overlap window, and deterministic partition
// checksums. The package is pure (no I/O, no persistence) so every property
// can be tested in isolation.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNoActiveKey is returned when the keyring holds no active key.
var ErrNoActiveKey = errors.New("signing: no active key")

// ErrUnknownKeyVersion is returned when a record references a key version
// the keyring does not hold.
var ErrUnknownKeyVersion = errors.New("signing: unknown key version")

// Payload is the signed portion of an audit event. Field order is part of
// the canonical format and must not change; bump the version prefix instead.
type Payload struct {
	EventType  string
	ActorID    string
	ActorType  string
	TargetType string
	TargetID   string
	Action     string
	Metadata   []byte // canonical metadata serialization
	Timestamp  time.Time
}

// Canonical returns the deterministic byte serialization that signatures are
// computed over. Fields are pipe-delimited with a version prefix; the
// timestamp is rendered in UTC RFC3339Nano so the same instant always
// serializes identically regardless of the writer's zone.
func (p Payload) Canonical() []byte {
	var b strings.Builder
	b.Grow(64 + len(p.Metadata))
	b.WriteString("v1|")
	b.WriteString(p.EventType)
	b.WriteByte('|')
	b.WriteString(p.ActorID)
	b.WriteByte('|')
	b.WriteString(p.ActorType)
	b.WriteByte('|')
	b.WriteString(p.TargetType)
	b.WriteByte('|')
	b.WriteString(p.TargetID)
	b.WriteByte('|')
	b.WriteString(p.Action)
	b.WriteByte('|')
	b.WriteString(p.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.Write(p.Metadata)
	return []byte(b.String())
}

// Sign computes the hex HMAC-SHA256 of the payload's canonical form under
// the given secret.
func Sign(secret []byte, p Payload) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(p.Canonical())
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySig reports whether sig is a valid signature of p under secret,
// using a constant-time comparison.
func VerifySig(secret []byte, p Payload, sig string) bool {
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(p.Canonical())
	return hmac.Equal(mac.Sum(nil), want)
}

// Key is one version of the ledger HMAC key as the keyring sees it.
type Key struct {
	Version   int
	Secret    []byte
	Active    bool
	RotatedAt *time.Time // set when the key was rotated out
}

// Keyring resolves "which key signs now" and "which keys verify at time T".
// Exactly one key is active; rotated keys verify until RotatedAt + Overlap.
type Keyring struct {
	keys    map[int]Key
	active  int
	Overlap time.Duration
}

// NewKeyring builds a keyring from a key set. Exactly one key must be
// active; otherwise an error is returned.
func NewKeyring(keys []Key, overlap time.Duration) (*Keyring, error) {
	kr := &Keyring{keys: make(map[int]Key, len(keys)), active: -1, Overlap: overlap}
	for _, k := range keys {
		kr.keys[k.Version] = k
		if k.Active {
			if kr.active >= 0 {
				return nil, errors.New("signing: multiple active keys")
			}
			kr.active = k.Version
		}
	}
	if kr.active < 0 {
		return nil, ErrNoActiveKey
	}
	return kr, nil
}

// ActiveKey returns the key that signs new records.
func (kr *Keyring) ActiveKey() Key { return kr.keys[kr.active] }

// KeyByVersion returns the key for a stored record's version, regardless of
// lifecycle state. Verification validity is decided by VerifiesAt.
func (kr *Keyring) KeyByVersion(version int) (Key, error) {
	k, ok := kr.keys[version]
	if !ok {
		return Key{}, ErrUnknownKeyVersion
	}
	return k, nil
}

// VerifiesAt reports whether the given key version is acceptable for
// verification at instant t: the active key always is; a rotated key is
// until its overlap window closes.
func (kr *Keyring) VerifiesAt(version int, t time.Time) bool {
	k, ok := kr.keys[version]
	if !ok {
		return false
	}
	if k.Active {
		return true
	}
	return k.RotatedAt != nil && t.Before(k.RotatedAt.Add(kr.Overlap))
}

// PartitionChecksum computes the aggregate checksum over a partition's
// record signatures. Callers must supply signatures in stable (insertion
// sequence) order; sealing the same unchanged partition then always yields
// the same digest.
func PartitionChecksum(orderedSignatures []string) string {
	h := sha256.New()
	for _, sig := range orderedSignatures {
		h.Write([]byte(sig))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ManifestPayload builds the signed payload for a partition manifest.
func ManifestPayload(partitionID string, recordCount int64, checksum string, sealedAt time.Time) Payload {
	return Payload{
		EventType:  "partition_manifest",
		ActorID:    "ledger",
		ActorType:  "system",
		TargetType: "audit_partition",
		TargetID:   partitionID,
		Action:     "seal",
		Metadata:   []byte(strconv.FormatInt(recordCount, 10) + "|" + checksum),
		Timestamp:  sealedAt,
	}
}

// SortedVersions returns the keyring's key versions in ascending order.
// Useful for diagnostics and tests.
func (kr *Keyring) SortedVersions() []int {
	out := make([]int, 0, len(kr.keys))
	for v := range kr.keys {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
