// internal/state/sqlstore.go
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/user/casewatch/internal/types"
)

const (
	docKeyReminders = "reminders"
	docKeySettings  = "settings"
)

// SQLStore is a DocumentStore on sqlite or postgres. Cases are one row
// each; reminders and settings are single serialized documents.
type SQLStore struct {
	*sqlCore
	now func() time.Time
}

// NewSQLStore creates a store for driver "sqlite" or "postgres".
func NewSQLStore(driver, dsn string) *SQLStore {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS cases (
			seq INTEGER NOT NULL,
			id TEXT NOT NULL,
			date TEXT NOT NULL,
			name TEXT NOT NULL,
			plate TEXT NOT NULL,
			status TEXT NOT NULL,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			doc_key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	return &SQLStore{sqlCore: newSQLCore(driver, dsn, schema), now: time.Now}
}

func (s *SQLStore) LoadCases(ctx context.Context) ([]*types.Case, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT id, date, name, plate, status, payload FROM cases ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var caseRows []CaseRow
	for rows.Next() {
		var row CaseRow
		var payload string
		if err := rows.Scan(&row.ID, &row.Date, &row.Name, &row.Plate, &row.Status, &payload); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		row.JSON = json.RawMessage(payload)
		caseRows = append(caseRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return decodeCaseRows(caseRows), nil
}

// SaveCases replaces the whole table in one transaction.
func (s *SQLStore) SaveCases(ctx context.Context, cases []*types.Case) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	now := s.now()
	caseRows, err := encodeCaseRows(cases, now)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cases"); err != nil {
		return fmt.Errorf("clear cases: %w", err)
	}
	insert := s.bind("INSERT INTO cases (seq, id, date, name, plate, status, payload, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	stamp := now.UTC().Format(time.RFC3339)
	for i, row := range caseRows {
		if _, err := tx.ExecContext(ctx, insert, i, row.ID, row.Date, row.Name, row.Plate, row.Status, string(row.JSON), stamp); err != nil {
			return fmt.Errorf("insert case %s: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cases: %w", err)
	}
	return nil
}

func (s *SQLStore) loadDocument(ctx context.Context, key string) ([]byte, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	var payload string
	err := s.db.QueryRowContext(ctx, s.bind("SELECT payload FROM documents WHERE doc_key = ?"), key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return []byte(payload), nil
}

func (s *SQLStore) saveDocument(ctx context.Context, key string, v any) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	query := s.bind(`
		INSERT INTO documents (doc_key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (doc_key)
		DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, key, string(payload), s.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) LoadReminders(ctx context.Context) ([]*types.Reminder, error) {
	data, err := s.loadDocument(ctx, docKeyReminders)
	if err != nil {
		return nil, err
	}
	return decodeReminders(data), nil
}

func (s *SQLStore) SaveReminders(ctx context.Context, reminders []*types.Reminder) error {
	if reminders == nil {
		reminders = []*types.Reminder{}
	}
	return s.saveDocument(ctx, docKeyReminders, reminders)
}

func (s *SQLStore) LoadSettings(ctx context.Context) (*types.Settings, error) {
	data, err := s.loadDocument(ctx, docKeySettings)
	if err != nil {
		return nil, err
	}
	return decodeSettings(data), nil
}

func (s *SQLStore) SaveSettings(ctx context.Context, settings *types.Settings) error {
	if settings == nil {
		settings = &types.Settings{}
	}
	return s.saveDocument(ctx, docKeySettings, settings)
}
