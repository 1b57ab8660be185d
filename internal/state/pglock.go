// internal/state/pglock.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/casewatch/internal/types"
)

const advisoryPollInterval = 100 * time.Millisecond

// AdvisoryLocker is a cross-instance Locker backed by a postgres session
// advisory lock. The lock is held on a dedicated connection.
type AdvisoryLocker struct {
	*sqlCore
	key int64
}

func NewAdvisoryLocker(dsn, name string) *AdvisoryLocker {
	return &AdvisoryLocker{
		sqlCore: newSQLCore("postgres", dsn, nil),
		key:     advisoryLockKey(name),
	}
}

func (l *AdvisoryLocker) Acquire(ctx context.Context, timeout time.Duration) (func(), error) {
	if err := l.ensureReady(ctx); err != nil {
		return nil, err
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock connection: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		var ok bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
			conn.Close()
			return nil, fmt.Errorf("try advisory lock: %w", err)
		}
		if ok {
			return l.releaseFunc(conn), nil
		}
		if time.Now().After(deadline) {
			conn.Close()
			return nil, types.ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, ctx.Err()
		case <-time.After(advisoryPollInterval):
		}
	}
}

func (l *AdvisoryLocker) releaseFunc(conn *sql.Conn) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), sqlOperationTimeout)
		defer cancel()
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key); err != nil {
			slog.Warn("advisory unlock failed", "error", err)
		}
		conn.Close()
	}
}
