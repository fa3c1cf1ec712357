package resilience

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DLQEntry represents a failed operation payload that can be retried later.
// The engine parks audit records here when the ledger write fails, so a
// computed result is never silently dropped.
type DLQEntry struct {
	ID           string          `json:"id"`
	Operation    string          `json:"operation"`
	EntityID     string          `json:"entity_id"`
	Payload      json.RawMessage `json:"payload"`
	Error        string          `json:"error"`
	ErrorType    string          `json:"error_type"` // "transient" or "permanent"
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	NextRetryAt  time.Time       `json:"next_retry_at"`
	CreatedAt    time.Time       `json:"created_at"`
	LastFailedAt time.Time       `json:"last_failed_at"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// DLQ is an in-memory dead letter queue. Entries live until a replay
// succeeds or the process exits; the caller decides replay cadence.
type DLQ struct {
	mu      sync.Mutex
	entries map[string]*DLQEntry
}

func NewDLQ() *DLQ {
	return &DLQ{entries: make(map[string]*DLQEntry)}
}

// Add parks a failed payload. MaxRetries <= 0 means unlimited.
func (q *DLQ) Add(operation, entityID string, payload json.RawMessage, cause error, maxRetries int) *DLQEntry {
	now := time.Now().UTC()
	entry := &DLQEntry{
		ID:           uuid.New().String(),
		Operation:    operation,
		EntityID:     entityID,
		Payload:      payload,
		Error:        cause.Error(),
		ErrorType:    ClassifyError(cause),
		MaxRetries:   maxRetries,
		NextRetryAt:  now.Add(time.Minute),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	q.mu.Lock()
	q.entries[entry.ID] = entry
	q.mu.Unlock()
	return entry
}

// Len reports the number of parked entries.
func (q *DLQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a snapshot of all parked entries.
func (q *DLQ) Entries() []DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DLQEntry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, *e)
	}
	return out
}

// Replay attempts every due entry with fn. Successful entries leave the
// queue; failures are rescheduled with their retry count bumped. Entries
// past their retry budget stay parked for operator inspection.
func (q *DLQ) Replay(ctx context.Context, fn func(ctx context.Context, entry DLQEntry) error) (replayed, failed int) {
	now := time.Now().UTC()
	for _, entry := range q.Entries() {
		if now.Before(entry.NextRetryAt) {
			continue
		}
		if entry.MaxRetries > 0 && !entry.CanRetry() {
			continue
		}

		if err := fn(ctx, entry); err != nil {
			failed++
			q.mu.Lock()
			if live, ok := q.entries[entry.ID]; ok {
				live.RetryCount++
				live.Error = err.Error()
				live.ErrorType = ClassifyError(err)
				live.LastFailedAt = now
				live.NextRetryAt = now.Add(time.Duration(live.RetryCount+1) * time.Minute)
			}
			q.mu.Unlock()
			continue
		}

		replayed++
		q.mu.Lock()
		delete(q.entries, entry.ID)
		q.mu.Unlock()
	}
	return replayed, failed
}
