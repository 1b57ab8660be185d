// internal/types/interfaces.go
package types

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLockTimeout is returned by a Locker that could not acquire within the wait.
	ErrLockTimeout = errors.New("lock wait timed out")
	// ErrInvalidPayload marks a client write that failed validation.
	ErrInvalidPayload = errors.New("invalid payload")
)

// DocumentStore holds the three shared documents. Every save replaces the
// whole collection.
type DocumentStore interface {
	LoadCases(ctx context.Context) ([]*Case, error)
	SaveCases(ctx context.Context, cases []*Case) error
	LoadReminders(ctx context.Context) ([]*Reminder, error)
	SaveReminders(ctx context.Context, reminders []*Reminder) error
	LoadSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, settings *Settings) error
	Close() error
}

// DedupLedger remembers inbound chat deliveries for a bounded time.
type DedupLedger interface {
	// Record inserts id if it is not already present and reports whether
	// this call inserted it. The check and the insert are atomic.
	Record(ctx context.Context, id InboundID) (bool, error)
	// Purge drops expired entries and returns how many were removed.
	Purge(ctx context.Context) (int, error)
}

// Locker serializes mutations of the document store.
type Locker interface {
	// Acquire waits up to timeout. On success the returned func releases
	// the lock; on timeout it returns ErrLockTimeout.
	Acquire(ctx context.Context, timeout time.Duration) (func(), error)
}

// Dispatcher delivers chat notifications.
type Dispatcher interface {
	Send(ctx context.Context, msg OutboundMessage)
	AnswerInteraction(ctx context.Context, interactionID string)
}

// BlobStore hosts attachment binaries and returns a URL for each.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// DebugLog is a bounded log of inbound chat activity.
type DebugLog interface {
	Append(ctx context.Context, entry *DebugEntry) error
	Tail(ctx context.Context, limit int) ([]*DebugEntry, error)
	Count(ctx context.Context) (int64, error)
}
