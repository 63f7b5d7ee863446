package concurrency

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Semaphore bounds concurrent access to a limited resource (e.g. the number
// of in-flight Claim attempts a single agent issues at once). It is a thin
// rename over golang.org/x/sync/semaphore.Weighted to keep the call sites
// in this package's own vocabulary.
type Semaphore struct {
	w *semaphore.Weighted
}

// NewSemaphore returns a Semaphore that permits up to limit concurrent units.
func NewSemaphore(limit int64) *Semaphore {
	return &Semaphore{w: semaphore.NewWeighted(limit)}
}

// Acquire blocks until n units are available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context, n int64) error {
	return s.w.Acquire(ctx, n)
}

// TryAcquire acquires n units without blocking, returning false if not
// immediately available.
func (s *Semaphore) TryAcquire(n int64) bool {
	return s.w.TryAcquire(n)
}

// Release returns n units to the semaphore.
func (s *Semaphore) Release(n int64) {
	s.w.Release(n)
}
