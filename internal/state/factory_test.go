// internal/state/factory_test.go
package state

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/user/casewatch/internal/config"
)

func TestOpenStoreSchemes(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		dsn  string
		want string
	}{
		{"", "*state.FileStore"},
		{"file://" + dir, "*state.FileStore"},
		{"sqlite://" + filepath.Join(dir, "x.db"), "*state.SQLStore"},
		{"postgres://u:p@localhost/casewatch?sslmode=disable", "*state.SQLStore"},
	}
	for _, tt := range tests {
		store, err := OpenStore(tt.dsn, dir)
		if err != nil {
			t.Errorf("OpenStore(%q): %v", tt.dsn, err)
			continue
		}
		if got := typeName(store); got != tt.want {
			t.Errorf("OpenStore(%q) = %s, want %s", tt.dsn, got, tt.want)
		}
	}

	if _, err := OpenStore("mongodb://x", dir); err == nil {
		t.Error("expected unsupported scheme error")
	}
	if _, err := OpenStore("sqlite://", dir); !errors.Is(err, ErrInvalidDSN) {
		t.Errorf("expected ErrInvalidDSN, got %v", err)
	}
}

func TestOpenDefaults(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()

	b, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if typeName(b.Store) != "*state.FileStore" {
		t.Errorf("unexpected store %s", typeName(b.Store))
	}
	if typeName(b.Ledger) != "*state.FileLedger" {
		t.Errorf("unexpected ledger %s", typeName(b.Ledger))
	}
	if typeName(b.Locker) != "*state.SemaphoreLocker" {
		t.Errorf("unexpected locker %s", typeName(b.Locker))
	}
}

func TestOpenPostgresUsesAdvisoryLock(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Store.DSN = "postgres://u:p@localhost/casewatch?sslmode=disable"

	b, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if typeName(b.Locker) != "*state.AdvisoryLocker" {
		t.Errorf("expected advisory locker, got %s", typeName(b.Locker))
	}
	if typeName(b.Ledger) != "*state.SQLLedger" {
		t.Errorf("expected ledger to follow store dsn, got %s", typeName(b.Ledger))
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
