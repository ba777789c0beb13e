// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package driver

import "context"

// DefaultIOCeiling is the driver's I/O ceiling: the maximum number of
// simultaneous directory and file reads it issues, independent of the
// query engine's own worker pool sizing.
const DefaultIOCeiling = 500

// Semaphore is a counting semaphore bounding how many directory/file
// reads the driver has in flight at once. It wraps a buffered channel
// rather than golang.org/x/sync/semaphore so the driver carries no
// additional dependency beyond the channel primitive the rest of the
// engine already uses for the same purpose (pkg/query's worker pool).
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a Semaphore permitting up to n concurrent
// holders. n <= 0 is treated as DefaultIOCeiling.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		n = DefaultIOCeiling
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired via Acquire.
func (s *Semaphore) Release() {
	<-s.slots
}

// InUse returns the number of slots currently held, for diagnostics.
func (s *Semaphore) InUse() int {
	return len(s.slots)
}
