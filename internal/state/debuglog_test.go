// internal/state/debuglog_test.go
package state

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/casewatch/internal/types"
)

func TestDebugLogStore(t *testing.T) {
	log := NewDebugLogStore(filepath.Join(t.TempDir(), "debug.jsonl"), 5)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		entry := &types.DebugEntry{At: time.Now(), Kind: "command", ChatID: "-100", Text: fmt.Sprintf("/today %d", i)}
		if err := log.Append(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}

	count, err := log.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("expected log bounded to 5, got %d", count)
	}

	tail, err := log.Tail(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(tail))
	}
	if tail[1].Text != "/today 7" {
		t.Errorf("expected newest last, got %q", tail[1].Text)
	}
}

func TestDebugLogStoreMissingFile(t *testing.T) {
	log := NewDebugLogStore(filepath.Join(t.TempDir(), "none.jsonl"), 0)
	entries, err := log.Tail(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}
