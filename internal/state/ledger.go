// internal/state/ledger.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/casewatch/internal/types"
)

// FileLedger is a JSON-file-backed DedupLedger. Entries expire after the
// TTL and are purged whenever the file is rewritten.
type FileLedger struct {
	path string
	ttl  time.Duration
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileLedger creates a ledger stored at path.
func NewFileLedger(path string, ttl time.Duration) *FileLedger {
	return &FileLedger{path: path, ttl: ttl, now: time.Now}
}

func (l *FileLedger) load() (map[types.InboundID]time.Time, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.InboundID]time.Time), nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	entries := make(map[types.InboundID]time.Time)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		// The next save rewrites the file from scratch.
		slog.Warn("corrupt dedup ledger, starting empty", "path", l.path, "error", err)
		return make(map[types.InboundID]time.Time), nil
	}
	return entries, nil
}

func (l *FileLedger) save(entries map[types.InboundID]time.Time) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp ledger: %w", err)
	}
	return nil
}

func purgeExpired(entries map[types.InboundID]time.Time, now time.Time) int {
	removed := 0
	for id, expires := range entries {
		if !now.Before(expires) {
			delete(entries, id)
			removed++
		}
	}
	return removed
}

// Record inserts id unless an unexpired entry already exists.
func (l *FileLedger) Record(_ context.Context, id types.InboundID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return false, err
	}
	now := l.now()
	purgeExpired(entries, now)
	if _, seen := entries[id]; seen {
		return false, nil
	}
	entries[id] = now.Add(l.ttl)
	if err := l.save(entries); err != nil {
		return false, err
	}
	return true, nil
}

func (l *FileLedger) Purge(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return 0, err
	}
	removed := purgeExpired(entries, l.now())
	if removed == 0 {
		return 0, nil
	}
	return removed, l.save(entries)
}
