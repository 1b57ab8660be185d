// internal/state/factory.go
package state

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/user/casewatch/internal/awsstore"
	"github.com/user/casewatch/internal/config"
	"github.com/user/casewatch/internal/types"
)

// ErrInvalidDSN is returned for a DSN that names no usable location.
var ErrInvalidDSN = errors.New("invalid dsn")

// Backends bundles the persistence pieces selected by configuration.
type Backends struct {
	Store    types.DocumentStore
	Ledger   types.DedupLedger
	Locker   types.Locker
	DebugLog types.DebugLog
}

func (b *Backends) Close() error {
	var errs []error
	if b.Store != nil {
		errs = append(errs, b.Store.Close())
	}
	if c, ok := b.Ledger.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := b.Locker.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Open builds the document store, dedup ledger, locker and debug log
// from cfg. Postgres stores also get a cross-instance advisory lock.
func Open(ctx context.Context, cfg *config.Config) (*Backends, error) {
	store, err := OpenStore(cfg.Store.DSN, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	ledgerDSN := cfg.Ledger.DSN
	if ledgerDSN == "" {
		ledgerDSN = cfg.Store.DSN
	}
	ledger, err := OpenLedger(ctx, cfg, ledgerDSN)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	var locker types.Locker = NewSemaphoreLocker()
	if scheme(cfg.Store.DSN) == "postgres" {
		locker = NewAdvisoryLocker(cfg.Store.DSN, "documents")
	}

	return &Backends{
		Store:    store,
		Ledger:   ledger,
		Locker:   locker,
		DebugLog: NewDebugLogStore(filepath.Join(cfg.DataDir, "debug.jsonl"), DefaultDebugLogSize),
	}, nil
}

// OpenStore selects a DocumentStore by DSN scheme: empty or file:// for
// JSON files, sqlite:// and postgres:// for SQL.
func OpenStore(dsn, dataDir string) (types.DocumentStore, error) {
	dsn = strings.TrimSpace(dsn)
	switch scheme(dsn) {
	case "":
		return NewFileStore(dataDir), nil
	case "file":
		dir, err := dsnPath(dsn)
		if err != nil {
			return nil, err
		}
		return NewFileStore(dir), nil
	case "sqlite":
		path, err := dsnPath(dsn)
		if err != nil {
			return nil, err
		}
		return NewSQLStore("sqlite", path), nil
	case "postgres":
		return NewSQLStore("postgres", dsn), nil
	default:
		return nil, fmt.Errorf("unsupported store scheme: %s", scheme(dsn))
	}
}

// OpenLedger selects a DedupLedger by DSN scheme. dynamodb://<table> uses
// the AWS settings from cfg.
func OpenLedger(ctx context.Context, cfg *config.Config, dsn string) (types.DedupLedger, error) {
	dsn = strings.TrimSpace(dsn)
	ttl := cfg.LedgerTTL()
	switch scheme(dsn) {
	case "":
		return NewFileLedger(filepath.Join(cfg.DataDir, "ledger.json"), ttl), nil
	case "file":
		path, err := dsnPath(dsn)
		if err != nil {
			return nil, err
		}
		return NewFileLedger(path, ttl), nil
	case "sqlite":
		path, err := dsnPath(dsn)
		if err != nil {
			return nil, err
		}
		return NewSQLLedger("sqlite", path, ttl), nil
	case "postgres":
		return NewSQLLedger("postgres", dsn, ttl), nil
	case "dynamodb":
		table, err := dsnPath(dsn)
		if err != nil {
			return nil, err
		}
		awsConf, _, err := awsstore.LoadConfig(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return awsstore.NewDynamoLedger(awsConf, strings.TrimPrefix(table, "/"), ttl), nil
	default:
		return nil, fmt.Errorf("unsupported ledger scheme: %s", scheme(dsn))
	}
}

func scheme(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return ""
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	s := strings.ToLower(parsed.Scheme)
	if s == "postgresql" {
		return "postgres"
	}
	return s
}

func dsnPath(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDSN, err)
	}
	path := strings.TrimSpace(parsed.Path)
	if parsed.Host != "" {
		path = parsed.Host + path
	}
	if path == "" {
		path = strings.TrimSpace(parsed.Opaque)
	}
	if path == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidDSN, raw)
	}
	return path, nil
}
