package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDLQEntry_CanRetry(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		want       bool
	}{
		{"below max", 0, 3, true},
		{"at max", 3, 3, false},
		{"above max", 5, 3, false},
		{"one below max", 2, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DLQEntry{
				RetryCount: tt.retryCount,
				MaxRetries: tt.maxRetries,
			}
			if got := e.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"locked sqlite writer", errors.New("database is locked (5) (SQLITE_BUSY)"), "transient"},
		{"permanent error", errors.New("invalid input"), "permanent"},
		{"connection reset", errors.New("connection reset by peer"), "transient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDLQ_AddAndLen(t *testing.T) {
	q := NewDLQ()
	entry := q.Add("cycle.adjudicated", "fac-001", json.RawMessage(`{"consensus_score":92}`), errors.New("disk full"), 3)

	if q.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", q.Len())
	}
	if entry.Operation != "cycle.adjudicated" {
		t.Errorf("unexpected operation %q", entry.Operation)
	}
	if entry.ErrorType != "permanent" {
		t.Errorf("expected permanent classification, got %q", entry.ErrorType)
	}
	if entry.ID == "" {
		t.Error("expected generated entry ID")
	}
}

func TestDLQ_Replay_RemovesSucceeded(t *testing.T) {
	q := NewDLQ()
	e := q.Add("submission.scored", "fac-001", json.RawMessage(`{}`), errors.New("timeout"), 3)

	// Force the entry to be due immediately.
	q.mu.Lock()
	q.entries[e.ID].NextRetryAt = time.Now().UTC().Add(-time.Second)
	q.mu.Unlock()

	replayed, failed := q.Replay(context.Background(), func(_ context.Context, _ DLQEntry) error {
		return nil
	})

	if replayed != 1 || failed != 0 {
		t.Fatalf("expected 1 replayed, 0 failed; got %d, %d", replayed, failed)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue after replay, got %d entries", q.Len())
	}
}

func TestDLQ_Replay_ReschedulesFailed(t *testing.T) {
	q := NewDLQ()
	e := q.Add("submission.scored", "fac-001", json.RawMessage(`{}`), errors.New("timeout"), 3)

	q.mu.Lock()
	q.entries[e.ID].NextRetryAt = time.Now().UTC().Add(-time.Second)
	q.mu.Unlock()

	replayed, failed := q.Replay(context.Background(), func(_ context.Context, _ DLQEntry) error {
		return errors.New("still down")
	})

	if replayed != 0 || failed != 1 {
		t.Fatalf("expected 0 replayed, 1 failed; got %d, %d", replayed, failed)
	}
	entries := q.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected entry retained, got %d", len(entries))
	}
	if entries[0].RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", entries[0].RetryCount)
	}
	if entries[0].Error != "still down" {
		t.Errorf("expected error updated, got %q", entries[0].Error)
	}
}

func TestDLQ_Replay_SkipsNotDue(t *testing.T) {
	q := NewDLQ()
	q.Add("submission.scored", "fac-001", json.RawMessage(`{}`), errors.New("timeout"), 3)

	replayed, failed := q.Replay(context.Background(), func(_ context.Context, _ DLQEntry) error {
		t.Error("entry should not be due yet")
		return nil
	})

	if replayed != 0 || failed != 0 {
		t.Errorf("expected nothing attempted, got %d replayed, %d failed", replayed, failed)
	}
}

func TestDLQ_Replay_SkipsExhausted(t *testing.T) {
	q := NewDLQ()
	e := q.Add("submission.scored", "fac-001", json.RawMessage(`{}`), errors.New("timeout"), 2)

	q.mu.Lock()
	q.entries[e.ID].NextRetryAt = time.Now().UTC().Add(-time.Second)
	q.entries[e.ID].RetryCount = 2
	q.mu.Unlock()

	replayed, failed := q.Replay(context.Background(), func(_ context.Context, _ DLQEntry) error {
		t.Error("exhausted entry should not be attempted")
		return nil
	})

	if replayed != 0 || failed != 0 {
		t.Errorf("expected nothing attempted, got %d replayed, %d failed", replayed, failed)
	}
	if q.Len() != 1 {
		t.Errorf("exhausted entry should stay parked, got %d", q.Len())
	}
}
