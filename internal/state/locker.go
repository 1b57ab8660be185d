// internal/state/locker.go
package state

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/casewatch/internal/types"
)

// SemaphoreLocker is an in-process Locker.
type SemaphoreLocker struct {
	sem *semaphore.Weighted
}

func NewSemaphoreLocker() *SemaphoreLocker {
	return &SemaphoreLocker{sem: semaphore.NewWeighted(1)}
}

func (l *SemaphoreLocker) Acquire(ctx context.Context, timeout time.Duration) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, types.ErrLockTimeout
		}
		return nil, err
	}
	return func() { l.sem.Release(1) }, nil
}
