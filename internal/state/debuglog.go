// internal/state/debuglog.go
package state

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/casewatch/internal/types"
)

// DefaultDebugLogSize is how many entries the debug log keeps.
const DefaultDebugLogSize = 100

// DebugLogStore is a bounded JSONL log of inbound chat activity. Once it
// grows past its limit the oldest lines are dropped.
type DebugLogStore struct {
	path  string
	limit int
	mu    sync.Mutex
}

func NewDebugLogStore(path string, limit int) *DebugLogStore {
	if limit <= 0 {
		limit = DefaultDebugLogSize
	}
	return &DebugLogStore{path: path, limit: limit}
}

// readLines returns the raw lines of the log. Caller must hold the lock.
func (d *DebugLogStore) readLines() ([][]byte, error) {
	f, err := os.Open(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan debug log: %w", err)
	}
	return lines, nil
}

// Append adds an entry and trims the log back to its limit.
func (d *DebugLogStore) Append(_ context.Context, entry *types.DebugEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("create debug log dir: %w", err)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal debug entry: %w", err)
	}

	f, err := os.OpenFile(d.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	data = append(data, '\n')
	_, err = f.Write(data)
	f.Close()
	if err != nil {
		return fmt.Errorf("write debug entry: %w", err)
	}

	lines, err := d.readLines()
	if err != nil {
		return err
	}
	if len(lines) <= d.limit {
		return nil
	}
	lines = lines[len(lines)-d.limit:]
	buf := bytes.Join(lines, []byte{'\n'})
	buf = append(buf, '\n')
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("write temp debug log: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp debug log: %w", err)
	}
	return nil
}

// Tail returns the last N entries, oldest first.
func (d *DebugLogStore) Tail(_ context.Context, limit int) ([]*types.DebugEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	lines, err := d.readLines()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	entries := make([]*types.DebugEntry, 0, len(lines))
	for _, line := range lines {
		var entry types.DebugEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("unmarshal debug entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (d *DebugLogStore) Count(_ context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	lines, err := d.readLines()
	if err != nil {
		return 0, err
	}
	return int64(len(lines)), nil
}
