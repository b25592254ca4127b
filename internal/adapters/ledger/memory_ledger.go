package ledger

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/core"
)

// MemoryLedger is an in-memory implementation of the Ledger interface.
// Entries live only as long as the process.
type MemoryLedger struct {
	entries map[string]*core.LedgerEntry
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryLedger creates a new in-memory ledger
func NewMemoryLedger(logger *zap.Logger) *MemoryLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryLedger{
		entries: make(map[string]*core.LedgerEntry),
		logger:  logger,
	}
}

func entryKey(accountID, messageID string) string {
	return accountID + "\x00" + messageID
}

// Record stores an entry
func (l *MemoryLedger) Record(_ context.Context, entry *core.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := *entry
	l.entries[entryKey(entry.AccountID, entry.MessageID)] = &cp
	l.logger.Debug("Recorded ledger entry",
		zap.String("account", entry.AccountID),
		zap.String("message_id", entry.MessageID),
		zap.String("status", string(entry.Status)))
	return nil
}

// Get retrieves the entry for a message
func (l *MemoryLedger) Get(_ context.Context, accountID, messageID string) (*core.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[entryKey(accountID, messageID)]
	if !ok {
		return nil, core.ErrLedgerNotFound
	}
	cp := *entry
	return &cp, nil
}

// Recent lists the newest entries for an account
func (l *MemoryLedger) Recent(_ context.Context, accountID string, limit int) ([]*core.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*core.LedgerEntry
	for _, entry := range l.entries {
		if entry.AccountID != accountID {
			continue
		}
		cp := *entry
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProcessedAt.Equal(out[j].ProcessedAt) {
			return out[i].MessageID < out[j].MessageID
		}
		return out[i].ProcessedAt.After(out[j].ProcessedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op
func (l *MemoryLedger) Close() error {
	return nil
}
