package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryLedger is an in-memory, thread-safe Ledger implementation.
// Its contents are lost when the process exits.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemory creates an empty MemoryLedger.
func NewMemory() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]*Record)}
}

// Has implements Ledger.
func (l *MemoryLedger) Has(_ context.Context, hash string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[hash]
	return ok, nil
}

// Get implements Ledger.
func (l *MemoryLedger) Get(_ context.Context, hash string) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.clone(), nil
}

// Put implements Ledger.
func (l *MemoryLedger) Put(_ context.Context, rec *Record) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[rec.Hash]; exists {
		return false, nil
	}
	l.records[rec.Hash] = rec.clone()
	return true, nil
}

// List implements Ledger.
func (l *MemoryLedger) List(_ context.Context) ([]*Record, error) {
	l.mu.RLock()
	out := make([]*Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec.clone())
	}
	l.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

// sortRecords orders by IssuedAt, breaking ties on Hash so output is stable.
func sortRecords(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].IssuedAt.Equal(recs[j].IssuedAt) {
			return recs[i].IssuedAt.Before(recs[j].IssuedAt)
		}
		return recs[i].Hash < recs[j].Hash
	})
}
