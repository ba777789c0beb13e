// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrResultsNotReady is returned by AsyncMatcher.GetMatchedResults when
// it is called before the outstanding FindMatches future has resolved.
var ErrResultsNotReady = errors.New("query: attempted to get results before findMatches resolved")

// ErrCompilerFrozen is returned by AsyncCompiler.AddQuery once a matcher
// has been vended: the worker pool's CompiledQuery snapshot must not
// drift from what matchers advertise, so query registration is frozen
// at first vend.
var ErrCompilerFrozen = errors.New("query: addQuery called after an async matcher has been vended")

// AsyncCompiler mirrors Compiler's public surface but vends
// AsyncMatcher values backed by a lazily-created WorkerPool. Once the
// first async matcher has been vended, AddQuery is refused: see
// spec.md §4.5 and §9's "Worker snapshotting" design note.
type AsyncCompiler struct {
	mu       sync.Mutex
	compiler *Compiler
	pool     *WorkerPool
	vended   bool
	logger   *slog.Logger
}

// NewAsyncCompiler creates an empty AsyncCompiler.
func NewAsyncCompiler(logger *slog.Logger) *AsyncCompiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncCompiler{
		compiler: NewCompiler(logger),
		logger:   logger,
	}
}

// AddQuery registers a query, as Compiler.AddQuery does, but fails with
// ErrCompilerFrozen once a matcher has already been vended.
func (a *AsyncCompiler) AddQuery(q string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.vended {
		return ErrCompilerFrozen
	}
	a.compiler.AddQuery(q)
	return nil
}

// NewAsyncMatcher vends an AsyncMatcher and, on first call, lazily
// creates the WorkerPool from the current CompiledQuery snapshot.
// Subsequent AddQuery calls are refused after this point.
func (a *AsyncCompiler) NewAsyncMatcher() *AsyncMatcher {
	a.mu.Lock()
	a.vended = true
	if a.pool == nil {
		a.pool = NewWorkerPool(a.compiler.Queries(), a.logger)
	}
	pool := a.pool
	a.mu.Unlock()

	return &AsyncMatcher{pool: pool}
}

// Destroy tears down the worker pool. Pending futures left outstanding
// at the time of Destroy have undefined resolution, per spec.md §4.4
// shutdown semantics.
func (a *AsyncCompiler) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pool != nil {
		a.pool.Shutdown()
		a.pool = nil
	}
}

// AsyncMatcher mirrors Matcher's public surface except FindMatches
// returns a future (here, a channel that carries at most one error)
// resolved by a pooled worker. It does not perform its own comment
// stripping: the raw source texts are forwarded to the worker, which
// runs a full synchronous Matcher, comment stripping included.
type AsyncMatcher struct {
	pool *WorkerPool

	mu       sync.Mutex
	sources  []string
	matched  map[string]struct{}
	resolved bool
}

// AddSource queues a raw source text to be sent to the worker on the
// next FindMatches call.
func (m *AsyncMatcher) AddSource(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, text)
}

// FindMatches submits the accumulated source texts as one task to the
// worker pool and returns a future for the task's completion. The
// returned channel carries exactly one value (nil on success, the
// worker's error otherwise) and is then closed.
func (m *AsyncMatcher) FindMatches() <-chan error {
	m.mu.Lock()
	sources := append([]string(nil), m.sources...)
	m.mu.Unlock()

	resultC := m.pool.Submit(sources)

	done := make(chan error, 1)
	go func() {
		result := <-resultC
		m.mu.Lock()
		if result.err == nil {
			// The field is replaced wholesale on every successful
			// resolve, not mutated in place: GetMatchedResults does not
			// return a stable reference across FindMatches calls here,
			// unlike the synchronous Matcher. See spec.md §9 Open
			// Questions.
			m.matched = result.matched
			m.resolved = true
		}
		m.mu.Unlock()

		done <- result.err
		close(done)
	}()

	return done
}

// GetMatchedResults returns the most recently resolved matched-query
// set. It fails with ErrResultsNotReady if no FindMatches future has
// resolved yet.
func (m *AsyncMatcher) GetMatchedResults() (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.resolved {
		return nil, ErrResultsNotReady
	}
	return m.matched, nil
}
