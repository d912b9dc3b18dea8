package ledger

import (
	"context"
	"sync"

	"nexus-go/internal/nexus"
)

// MemoryLedger is an append-only in-memory ledger. It can simulate the
// indexing delay of a real anchoring backend: with a non-zero lag, a freshly
// appended record stays invisible to Query for that many calls.
type MemoryLedger struct {
	mu       sync.Mutex
	records  []*nexus.HashRecord
	lag      map[string]int // record ID -> queries remaining before visible
	indexLag int
	closed   bool
}

var _ nexus.Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{lag: make(map[string]int)}
}

// SetIndexLag makes each subsequently appended record invisible for the
// first n Query calls that would otherwise return it.
func (l *MemoryLedger) SetIndexLag(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.indexLag = n
}

func (l *MemoryLedger) Append(ctx context.Context, rec *nexus.HashRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nexus.E(nexus.ErrStorageUnavailable, "ledger is closed", nil)
	}

	stored := *rec
	l.records = append(l.records, &stored)
	if l.indexLag > 0 {
		l.lag[stored.ID] = l.indexLag
	}
	return nil
}

func (l *MemoryLedger) Query(ctx context.Context, filter nexus.LedgerFilter) ([]*nexus.HashRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "ledger is closed", nil)
	}

	var out []*nexus.HashRecord
	for _, rec := range l.records {
		if !matches(rec, filter) {
			continue
		}
		if remaining, ok := l.lag[rec.ID]; ok {
			if remaining > 1 {
				l.lag[rec.ID] = remaining - 1
			} else {
				delete(l.lag, rec.ID)
			}
			continue
		}
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

func (l *MemoryLedger) Ping(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nexus.E(nexus.ErrStorageUnavailable, "ledger is closed", nil)
	}
	return nil
}

// Close makes subsequent calls fail, for exercising degraded paths.
func (l *MemoryLedger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

// Len reports how many records have been appended, lagged ones included.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func matches(rec *nexus.HashRecord, filter nexus.LedgerFilter) bool {
	if filter.Kind != "" && rec.Kind != filter.Kind {
		return false
	}
	if filter.Owner != "" && rec.Owner != filter.Owner {
		return false
	}
	if filter.OriginalID != "" && rec.OriginalID != filter.OriginalID {
		return false
	}
	return true
}
