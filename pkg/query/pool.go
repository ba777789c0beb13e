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
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/kraklabs/weapifinder/pkg/metrics"
)

// numThreadsEnvVar overrides the worker pool's size when set to a
// positive integer.
const numThreadsEnvVar = "WE_API_FINDER_NUM_THREADS"

// workerTask is one unit of pool work: a batch of source texts to run
// through a fresh Matcher, plus the channel its single result is
// delivered on.
type workerTask struct {
	sources []string
	resultC chan workerResult
}

// workerResult is what a worker sends back for a workerTask.
type workerResult struct {
	matched map[string]struct{}
	err     error
}

// poolWorker is one sandboxed worker: a preloaded CompiledQuery
// snapshot it builds a fresh Matcher from for every task, fed one task
// at a time over its own serial channel. A worker never reuses a
// Matcher across tasks: each task is a different extension's source
// set, and spec.md §8's "Compiler/matcher isolation" property (matchers
// vended from the same Compiler have independent matched sets) must
// hold across pooled tasks too, not just across Compiler.NewMatcher
// calls.
type poolWorker struct {
	id      int
	queries map[string]*CompiledQuery
	taskC   chan workerTask
	pool    *WorkerPool
	logger  *slog.Logger
}

func newPoolWorker(id int, queries map[string]*CompiledQuery, pool *WorkerPool, logger *slog.Logger) *poolWorker {
	w := &poolWorker{
		id:      id,
		queries: queries,
		// Buffered by one so the dispatcher can hand a worker its next
		// task from inside that same worker's own completion callback
		// (workerIdle/retireWorker run synchronously on the worker's
		// goroutine) without deadlocking against its own receive loop.
		taskC:  make(chan workerTask, 1),
		pool:   pool,
		logger: logger,
	}
	go w.run()
	return w
}

// run is the worker's goroutine body: it serially processes tasks
// handed to it by the pool's dispatcher, building a fresh Matcher for
// each one from its own CompiledQuery snapshot.
func (w *poolWorker) run() {
	for task := range w.taskC {
		result := w.process(task)

		// The worker rejoins the idle queue (or is retired) before the
		// result is delivered, so a caller that has received the result
		// and submits again finds this worker available for reuse.
		if result.err != nil {
			metrics.RecordWorkerCrash()
			w.logger.Warn("query.pool.worker.crashed", "worker_id", w.id, "err", result.err)
			w.pool.retireWorker(w)
		} else {
			w.pool.workerIdle(w)
		}

		task.resultC <- result
		close(task.resultC)
	}
}

// process runs one task against a freshly constructed Matcher,
// recovering from a panic inside pattern evaluation so that a single
// bad source text fails only that task instead of taking the worker
// pool down. The Matcher is scoped to this call: it never outlives the
// task, so one extension's matched sources can never leak into the
// next task this worker picks up.
func (w *poolWorker) process(task workerTask) (result workerResult) {
	defer func() {
		if r := recover(); r != nil {
			result = workerResult{err: fmt.Errorf("worker %d: %v", w.id, r)}
		}
	}()

	matcher := NewMatcher(w.queries)
	for _, src := range task.sources {
		matcher.AddSource(src)
	}
	matcher.FindMatches()

	matched := make(map[string]struct{}, len(matcher.GetMatchedResults()))
	for k := range matcher.GetMatchedResults() {
		matched[k] = struct{}{}
	}
	return workerResult{matched: matched}
}

// WorkerPool is a bounded pool of poolWorkers that offloads Matcher
// work in parallel. Workers are spawned lazily up to numThreads; an
// idle worker is always reused before a new one is spawned. The pool
// guarantees FIFO dispatch of tasks to workers, not FIFO completion
// (spec.md §4.4).
type WorkerPool struct {
	mu sync.Mutex

	queries    map[string]*CompiledQuery
	numThreads int
	logger     *slog.Logger

	workers []*poolWorker
	idle    []*poolWorker
	pending []workerTask

	nextWorkerID int
}

// NewWorkerPool creates a WorkerPool preloaded with a clone of the
// given CompiledQuery map. No workers are spawned until the first task
// is submitted.
func NewWorkerPool(queries map[string]*CompiledQuery, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		queries:    cloneQueries(queries),
		numThreads: resolveNumThreads(),
		logger:     logger,
	}
}

// resolveNumThreads implements spec.md §4.4's configuration rule:
// WE_API_FINDER_NUM_THREADS if set to a positive integer, else the
// host's available parallelism, else its CPU count, else 1.
func resolveNumThreads() int {
	if v := os.Getenv(numThreadsEnvVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

func cloneQueries(queries map[string]*CompiledQuery) map[string]*CompiledQuery {
	clone := make(map[string]*CompiledQuery, len(queries))
	for k, v := range queries {
		clone[k] = v
	}
	return clone
}

// Submit enqueues a task and returns the channel its single result will
// be delivered on. The dispatcher runs synchronously on the submitting
// goroutine before Submit returns, so a free worker (idle or newly
// spawned) picks up the task immediately when one is available;
// otherwise the task waits in the pending queue until a worker frees
// up.
func (p *WorkerPool) Submit(sources []string) <-chan workerResult {
	resultC := make(chan workerResult, 1)
	task := workerTask{sources: sources, resultC: resultC}

	p.mu.Lock()
	p.pending = append(p.pending, task)
	p.dispatchLocked()
	p.mu.Unlock()

	return resultC
}

// dispatchLocked pops pending tasks onto free workers until either the
// pending queue or the supply of free workers runs out. Callers must
// hold p.mu.
func (p *WorkerPool) dispatchLocked() {
	for len(p.pending) > 0 {
		w := p.obtainWorkerLocked()
		if w == nil {
			return
		}
		task := p.pending[0]
		p.pending = p.pending[1:]
		w.taskC <- task
	}
}

// obtainWorkerLocked returns an idle worker if one exists, else spawns
// a new one if the pool has room, else nil. Callers must hold p.mu.
func (p *WorkerPool) obtainWorkerLocked() *poolWorker {
	if len(p.idle) > 0 {
		w := p.idle[0]
		p.idle = p.idle[1:]
		return w
	}
	if len(p.workers) < p.numThreads {
		w := newPoolWorker(p.nextWorkerID, p.queries, p, p.logger)
		p.nextWorkerID++
		p.workers = append(p.workers, w)
		metrics.RecordWorkerSpawn()
		p.logger.Debug("query.pool.worker.spawned", "worker_id", w.id, "total_workers", len(p.workers))
		return w
	}
	return nil
}

// workerIdle returns a worker that finished its task successfully to
// the idle queue and re-runs the dispatcher.
func (p *WorkerPool) workerIdle(w *poolWorker) {
	p.mu.Lock()
	p.idle = append(p.idle, w)
	p.dispatchLocked()
	p.mu.Unlock()
}

// retireWorker removes a crashed worker from the pool entirely; it is
// not returned to the idle queue. A subsequent task can spawn a
// replacement worker up to numThreads.
func (p *WorkerPool) retireWorker(w *poolWorker) {
	p.mu.Lock()
	for i, existing := range p.workers {
		if existing == w {
			p.workers = append(p.workers[:i], p.workers[i+1:]...)
			break
		}
	}
	close(w.taskC)
	p.dispatchLocked()
	p.mu.Unlock()
}

// WorkerCount reports the number of spawned workers. Exposed for tests
// and metrics.
func (p *WorkerPool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// IdleCount reports the number of currently idle workers.
func (p *WorkerPool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Shutdown terminates all workers and clears the worker and idle lists.
// Pending tasks left dangling at shutdown have undefined resolution;
// callers are responsible for awaiting all outstanding futures first.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.workers {
		close(w.taskC)
	}
	p.workers = nil
	p.idle = nil
	p.pending = nil
}
