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
	"os"
	"testing"
	"time"
)

func TestWorkerPool_LazySpawnAndReuse(t *testing.T) {
	c := NewCompiler(nil)
	c.AddQuery("storage.local.get")
	pool := NewWorkerPool(c.Queries(), nil)
	defer pool.Shutdown()

	if n := pool.WorkerCount(); n != 0 {
		t.Fatalf("expected no workers before the first Submit, got %d", n)
	}

	resultC := pool.Submit([]string{`chrome.storage.local.get(["k"]);`})
	result := <-resultC
	if result.err != nil {
		t.Fatalf("unexpected worker error: %v", result.err)
	}
	if _, ok := result.matched["storage.local.get"]; !ok {
		t.Error("expected storage.local.get to match")
	}
	if pool.WorkerCount() != 1 {
		t.Fatalf("expected exactly one worker spawned, got %d", pool.WorkerCount())
	}

	// A second task submitted after the first completes must reuse the
	// idle worker rather than spawn a new one.
	resultC2 := pool.Submit([]string{`chrome.storage.local.get(["k"]);`})
	<-resultC2
	if pool.WorkerCount() != 1 {
		t.Errorf("expected the idle worker to be reused, got %d workers", pool.WorkerCount())
	}
}

func TestWorkerPool_BoundedByNumThreads(t *testing.T) {
	os.Setenv("WE_API_FINDER_NUM_THREADS", "2")
	defer os.Unsetenv("WE_API_FINDER_NUM_THREADS")

	c := NewCompiler(nil)
	c.AddQuery("tabs.query")
	pool := NewWorkerPool(c.Queries(), nil)
	defer pool.Shutdown()

	if pool.numThreads != 2 {
		t.Fatalf("expected numThreads 2 from env override, got %d", pool.numThreads)
	}

	// Submit more tasks than numThreads; nothing should ever spawn a
	// third worker, and every task must still complete.
	var channels []<-chan workerResult
	for i := 0; i < 5; i++ {
		channels = append(channels, pool.Submit([]string{`browser.tabs.query({});`}))
	}
	for _, ch := range channels {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("task never completed")
		}
	}
	if pool.WorkerCount() > 2 {
		t.Errorf("pool spawned %d workers, want at most 2", pool.WorkerCount())
	}
}

func TestWorkerPool_FIFODispatchOrder(t *testing.T) {
	os.Setenv("WE_API_FINDER_NUM_THREADS", "1")
	defer os.Unsetenv("WE_API_FINDER_NUM_THREADS")

	c := NewCompiler(nil)
	c.AddQuery("tabs.query")
	pool := NewWorkerPool(c.Queries(), nil)
	defer pool.Shutdown()

	// With a single worker, tasks are necessarily dispatched (and thus
	// completed) in submission order.
	var channels []<-chan workerResult
	for i := 0; i < 3; i++ {
		channels = append(channels, pool.Submit([]string{`browser.tabs.query({});`}))
	}
	for i, ch := range channels {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("task %d never completed", i)
		}
	}
}

// TestWorkerPool_TaskIsolationAcrossReusedWorker guards against a
// worker's Matcher state leaking from one task into the next. With a
// single worker, the second task necessarily reuses the first task's
// worker (TestWorkerPool_LazySpawnAndReuse covers the reuse itself);
// here the two tasks carry disjoint source texts, so a Matcher that
// wasn't reset between tasks would wrongly report the first task's
// query as matched in the second task's result too.
func TestWorkerPool_TaskIsolationAcrossReusedWorker(t *testing.T) {
	os.Setenv("WE_API_FINDER_NUM_THREADS", "1")
	defer os.Unsetenv("WE_API_FINDER_NUM_THREADS")

	c := NewCompiler(nil)
	c.AddQuery("storage.local.get")
	c.AddQuery("tabs.create")
	pool := NewWorkerPool(c.Queries(), nil)
	defer pool.Shutdown()

	first := <-pool.Submit([]string{`chrome.storage.local.get(["k"]);`})
	if first.err != nil {
		t.Fatalf("unexpected worker error: %v", first.err)
	}
	if _, ok := first.matched["storage.local.get"]; !ok {
		t.Fatal("expected first task to match storage.local.get")
	}
	if _, ok := first.matched["tabs.create"]; ok {
		t.Fatal("first task's source never mentions tabs.create")
	}

	second := <-pool.Submit([]string{`browser.tabs.create({});`})
	if second.err != nil {
		t.Fatalf("unexpected worker error: %v", second.err)
	}
	if _, ok := second.matched["tabs.create"]; !ok {
		t.Fatal("expected second task to match tabs.create")
	}
	if _, ok := second.matched["storage.local.get"]; ok {
		t.Fatal("second task's source never mentions storage.local.get; " +
			"a leaked Matcher from the first task would wrongly report it as matched")
	}
}

func TestWorkerPool_Shutdown(t *testing.T) {
	c := NewCompiler(nil)
	c.AddQuery("tabs.query")
	pool := NewWorkerPool(c.Queries(), nil)

	<-pool.Submit([]string{`browser.tabs.query({});`})
	pool.Shutdown()

	if pool.WorkerCount() != 0 {
		t.Errorf("expected 0 workers after Shutdown, got %d", pool.WorkerCount())
	}
	if pool.IdleCount() != 0 {
		t.Errorf("expected 0 idle workers after Shutdown, got %d", pool.IdleCount())
	}
}
