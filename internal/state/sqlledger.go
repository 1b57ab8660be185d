// internal/state/sqlledger.go
package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/casewatch/internal/types"
)

const ledgerPurgeInterval = time.Hour

// SQLLedger is a DedupLedger on sqlite or postgres. Expiry is stored as
// unix seconds so both dialects compare it the same way.
type SQLLedger struct {
	*sqlCore
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	lastPurge time.Time
}

func NewSQLLedger(driver, dsn string, ttl time.Duration) *SQLLedger {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS dedup_ledger (
			id TEXT PRIMARY KEY,
			expires_at BIGINT NOT NULL
		)`,
	}
	return &SQLLedger{sqlCore: newSQLCore(driver, dsn, schema), ttl: ttl, now: time.Now}
}

// Record inserts id, or revives it when the stored entry has expired.
// A single conditional upsert keeps the check and the insert atomic.
func (l *SQLLedger) Record(ctx context.Context, id types.InboundID) (bool, error) {
	if err := l.ensureReady(ctx); err != nil {
		return false, err
	}
	now := l.now()
	l.maybePurge(ctx, now)

	opCtx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	query := l.bind(`
		INSERT INTO dedup_ledger (id, expires_at) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET expires_at = excluded.expires_at
		WHERE dedup_ledger.expires_at <= ?`)
	res, err := l.db.ExecContext(opCtx, query, string(id), now.Add(l.ttl).Unix(), now.Unix())
	if err != nil {
		return false, fmt.Errorf("record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record %s: %w", id, err)
	}
	return n == 1, nil
}

func (l *SQLLedger) Purge(ctx context.Context) (int, error) {
	if err := l.ensureReady(ctx); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	res, err := l.db.ExecContext(ctx, l.bind("DELETE FROM dedup_ledger WHERE expires_at <= ?"), l.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge ledger: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (l *SQLLedger) maybePurge(ctx context.Context, now time.Time) {
	l.mu.Lock()
	due := now.Sub(l.lastPurge) >= ledgerPurgeInterval
	if due {
		l.lastPurge = now
	}
	l.mu.Unlock()
	if !due {
		return
	}
	if n, err := l.Purge(ctx); err != nil {
		slog.Warn("ledger purge failed", "error", err)
	} else if n > 0 {
		slog.Debug("ledger purged", "removed", n)
	}
}
