// internal/state/documents.go
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

// FileStore is a JSON-file-backed DocumentStore. Cases live in
// cases.json as rows, reminders and settings in their own files.
type FileStore struct {
	root string
	mu   sync.RWMutex
	now  func() time.Time
}

// NewFileStore creates a new file-backed store rooted at the given directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root, now: time.Now}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.root, name)
}

func (s *FileStore) read(name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// write marshals v with indentation and writes it atomically.
func (s *FileStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := s.path(name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", name, err)
	}
	if err := os.Rename(tmp, s.path(name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp %s: %w", name, err)
	}
	return nil
}

// LoadCases returns every stored case in row order.
func (s *FileStore) LoadCases(_ context.Context) ([]*types.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.read("cases.json")
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []*types.Case{}, nil
	}
	var rows []CaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		slog.Warn("cases file is corrupt, treating as empty", "error", err)
		return []*types.Case{}, nil
	}
	return decodeCaseRows(rows), nil
}

// SaveCases replaces all stored cases.
func (s *FileStore) SaveCases(_ context.Context, cases []*types.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := encodeCaseRows(cases, s.now())
	if err != nil {
		return err
	}
	return s.write("cases.json", rows)
}

func (s *FileStore) LoadReminders(_ context.Context) ([]*types.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.read("reminders.json")
	if err != nil {
		return nil, err
	}
	return decodeReminders(data), nil
}

func (s *FileStore) SaveReminders(_ context.Context, reminders []*types.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reminders == nil {
		reminders = []*types.Reminder{}
	}
	return s.write("reminders.json", reminders)
}

func (s *FileStore) LoadSettings(_ context.Context) (*types.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.read("settings.json")
	if err != nil {
		return nil, err
	}
	return decodeSettings(data), nil
}

func (s *FileStore) SaveSettings(_ context.Context, settings *types.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings == nil {
		settings = &types.Settings{}
	}
	return s.write("settings.json", settings)
}

func (s *FileStore) Close() error { return nil }
