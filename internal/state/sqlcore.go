// internal/state/sqlcore.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const sqlOperationTimeout = 5 * time.Second

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// sqlCore opens a database lazily and creates its schema once.
type sqlCore struct {
	driver string
	dsn    string
	schema []string
	openDB sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func newSQLCore(driver, dsn string, schema []string) *sqlCore {
	if driver == "sqlite" && !strings.Contains(dsn, "?") {
		// store and ledger may share one file
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	return &sqlCore{driver: driver, dsn: dsn, schema: schema, openDB: sql.Open}
}

func (c *sqlCore) ensureReady(ctx context.Context) error {
	c.initOnce.Do(func() {
		db, err := c.openDB(c.driver, c.dsn)
		if err != nil {
			c.initErr = fmt.Errorf("open %s: %w", c.driver, err)
			return
		}
		if c.driver == "sqlite" {
			db.SetMaxOpenConns(1)
		}
		ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
		defer cancel()
		for _, stmt := range c.schema {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				_ = db.Close()
				c.initErr = fmt.Errorf("create schema: %w", err)
				return
			}
		}
		c.db = db
	})
	return c.initErr
}

// bind rewrites ? placeholders into $n for postgres.
func (c *sqlCore) bind(query string) string {
	if c.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *sqlCore) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func advisoryLockKey(name string) int64 {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte("casewatch"))
	_, _ = hasher.Write([]byte{0})
	_, _ = hasher.Write([]byte(strings.TrimSpace(name)))
	return int64(hasher.Sum64())
}
