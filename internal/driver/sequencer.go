// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package driver

import (
	"container/heap"
	"sync"
)

// Result is one resolved driver line, ready to be flushed to stdout in
// its original input order.
type Result struct {
	Seq     int
	Matched bool
	Path    string
	Warning string // non-empty for a dropped line; Matched/Path are unused
}

// Sequencer re-serializes out-of-order completions back into the
// input's original line order. Filter work for line N+1 can finish
// before line N's — the async facade makes no completion-order
// guarantee — so Complete buffers early arrivals in a min-heap keyed
// by Seq and only emits a contiguous run starting at the next expected
// sequence number.
type Sequencer struct {
	mu       sync.Mutex
	next     int
	pending  resultHeap
	emit     func(Result)
}

// NewSequencer creates a Sequencer that calls emit, in order, for each
// Result as it becomes the next contiguous one in sequence.
func NewSequencer(emit func(Result)) *Sequencer {
	return &Sequencer{emit: emit}
}

// Complete records a finished line's result. If it is the next one due
// for emission, it (and any immediately-following buffered results)
// are emitted now; otherwise it is buffered until its turn comes.
func (s *Sequencer) Complete(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	heap.Push(&s.pending, r)
	for len(s.pending) > 0 && s.pending[0].Seq == s.next {
		ready := heap.Pop(&s.pending).(Result)
		s.emit(ready)
		s.next++
	}
}

// Pending returns the number of results currently buffered ahead of
// the next expected sequence number.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

type resultHeap []Result

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Seq < h[j].Seq }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)         { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
