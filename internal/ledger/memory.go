package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger keeps the chain in memory. Used by tests and by the
// engine when no store is configured.
type MemoryLedger struct {
	mu      sync.Mutex
	records []Record
}

func NewMemory() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Close() error { return nil }

func (l *MemoryLedger) Append(_ context.Context, rec Record) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := genesisHash
	if n := len(l.records); n > 0 {
		prevHash = l.records[n-1].Hash
	}

	rec.ID = uuid.New().String()
	rec.Timestamp = time.Now().UTC()
	rec.PrevHash = prevHash
	rec.Hash = computeHash(&rec)

	l.records = append(l.records, rec)
	return &rec, nil
}

func (l *MemoryLedger) Query(_ context.Context, filter Filter) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var out []Record
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := l.records[i]
		if filter.Action != "" && rec.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && rec.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && rec.EntityID != filter.EntityID {
			continue
		}
		if filter.Method != "" && rec.Method != filter.Method {
			continue
		}
		if !filter.Since.IsZero() && rec.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (l *MemoryLedger) VerifyChain(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]Record, len(l.records))
	copy(records, l.records)
	return verifyRecords(records)
}

// tamper overwrites a stored record in place. Test hook for VerifyChain.
func (l *MemoryLedger) tamper(i int, mutate func(*Record)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	mutate(&l.records[i])
}
