// Package ledger provides the append-only audit record store every scoring
// and adjudication event is written to. Entries are hash-chained so any
// tampering with history is detectable; no update or delete operation
// exists on any backend.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// genesisHash anchors the first entry of every chain.
const genesisHash = "GENESIS:0000000000000000000000000000000000000000000000000000000000000000"

// Action constants for the engine's event types.
const (
	ActionSubmissionScored = "submission.scored"
	ActionCycleAdjudicated = "cycle.adjudicated"
	ActionCreditMinted     = "credit.minted"
	ActionSignalGenerated  = "signal.generated"
	ActionImpactEstimated  = "impact.estimated"
	ActionNarrativeCreated = "narrative.created"
)

// ErrNotFound is returned when a record lookup matches nothing.
var ErrNotFound = eris.New("ledger: record not found")

// Record is one immutable audit entry.
type Record struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"` // "facility" or "village"
	EntityID   string    `json:"entity_id"`
	Method     string    `json:"method"` // scoring provenance: provider | deterministic
	Details    string    `json:"details"` // JSON blob of the full result
	PrevHash   string    `json:"prev_hash"`
	Hash       string    `json:"hash"`
}

// Filter selects records for Query. Zero values match everything.
type Filter struct {
	Action     string    `json:"action,omitempty"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	Method     string    `json:"method,omitempty"`
	Since      time.Time `json:"since,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

// Ledger is the persistence interface the engine writes through. It is
// deliberately append-only: history mutation is structurally impossible.
type Ledger interface {
	// Append stores a new record, assigning ID, timestamp and chain hashes.
	// Records for the same entity must be appended in submission-time order.
	Append(ctx context.Context, rec Record) (*Record, error)

	// Query returns records matching the filter, newest first.
	Query(ctx context.Context, filter Filter) ([]Record, error)

	// VerifyChain walks the full chain oldest-first and returns an error
	// describing the first broken link, if any.
	VerifyChain(ctx context.Context) error

	Close() error
}

// computeHash hashes the canonical JSON of a record, excluding the hash
// field itself.
func computeHash(rec *Record) string {
	canonical := struct {
		ID         string    `json:"id"`
		Timestamp  time.Time `json:"timestamp"`
		Action     string    `json:"action"`
		EntityType string    `json:"entity_type"`
		EntityID   string    `json:"entity_id"`
		Method     string    `json:"method"`
		Details    string    `json:"details"`
		PrevHash   string    `json:"prev_hash"`
	}{
		ID:         rec.ID,
		Timestamp:  rec.Timestamp,
		Action:     rec.Action,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Method:     rec.Method,
		Details:    rec.Details,
		PrevHash:   rec.PrevHash,
	}
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// verifyRecords checks a chain given records in oldest-first order.
func verifyRecords(records []Record) error {
	expectedPrev := genesisHash
	for i := range records {
		rec := &records[i]
		if rec.PrevHash != expectedPrev {
			return eris.Errorf("ledger: chain broken at entry %d (%s): expected prev_hash %.16s, got %.16s",
				i+1, rec.ID, expectedPrev, rec.PrevHash)
		}
		if got := computeHash(rec); got != rec.Hash {
			return eris.Errorf("ledger: hash mismatch at entry %d (%s): expected %.16s, got %.16s",
				i+1, rec.ID, got, rec.Hash)
		}
		expectedPrev = rec.Hash
	}
	return nil
}

// MarshalDetails serializes a result payload for the Details blob.
func MarshalDetails(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "ledger: marshal details")
	}
	return string(data), nil
}
