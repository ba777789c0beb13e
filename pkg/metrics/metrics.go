// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the Prometheus registry for the API Query
// Engine and its worker pool. It is deliberately separate from pkg/query
// so that the engine itself stays free of a hard Prometheus import for
// callers who only want the pure matching logic.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// engineMetrics holds the Prometheus metrics for query compilation and
// matching.
type engineMetrics struct {
	once sync.Once

	QueriesCompiled  prometheus.Counter
	QueriesDuplicate prometheus.Counter
	SourcesAdded     prometheus.Counter
	QueriesMatched   prometheus.Counter

	WorkerSpawns  prometheus.Counter
	WorkerCrashes prometheus.Counter

	CompileDuration prometheus.Histogram
	MatchDuration   prometheus.Histogram
}

var engine engineMetrics

func (m *engineMetrics) init() {
	m.once.Do(func() {
		m.QueriesCompiled = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weapifinder_queries_compiled_total",
			Help: "API queries compiled into CompiledQuery conditions.",
		})
		m.QueriesDuplicate = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weapifinder_queries_duplicate_total",
			Help: "Duplicate query strings ignored by the Compiler.",
		})
		m.SourcesAdded = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weapifinder_sources_added_total",
			Help: "Source texts added to matchers (raw plus comment-stripped copies).",
		})
		m.QueriesMatched = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weapifinder_queries_matched_total",
			Help: "Queries that transitioned into a matcher's matched set.",
		})
		m.WorkerSpawns = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weapifinder_pool_worker_spawns_total",
			Help: "Worker pool workers spawned.",
		})
		m.WorkerCrashes = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weapifinder_pool_worker_crashes_total",
			Help: "Worker pool tasks that failed their worker.",
		})

		buckets := []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
		m.CompileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weapifinder_compile_seconds",
			Help:    "Duration of Compiler.AddQuery calls.",
			Buckets: buckets,
		})
		m.MatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weapifinder_match_seconds",
			Help:    "Duration of Matcher.FindMatches calls.",
			Buckets: buckets,
		})

		prometheus.MustRegister(
			m.QueriesCompiled, m.QueriesDuplicate, m.SourcesAdded, m.QueriesMatched,
			m.WorkerSpawns, m.WorkerCrashes,
			m.CompileDuration, m.MatchDuration,
		)
	})
}

// RecordQueryCompiled increments the compiled-queries counter.
func RecordQueryCompiled() { engine.init(); engine.QueriesCompiled.Inc() }

// RecordQueryDuplicate increments the duplicate-query counter.
func RecordQueryDuplicate() { engine.init(); engine.QueriesDuplicate.Inc() }

// RecordSourceAdded increments the sources-added counter.
func RecordSourceAdded() { engine.init(); engine.SourcesAdded.Inc() }

// RecordQueryMatched increments the queries-matched counter.
func RecordQueryMatched() { engine.init(); engine.QueriesMatched.Inc() }

// RecordWorkerSpawn increments the worker-spawn counter.
func RecordWorkerSpawn() { engine.init(); engine.WorkerSpawns.Inc() }

// RecordWorkerCrash increments the worker-crash counter.
func RecordWorkerCrash() { engine.init(); engine.WorkerCrashes.Inc() }

// ObserveCompileDuration records one Compiler.AddQuery call's duration
// in seconds.
func ObserveCompileDuration(seconds float64) { engine.init(); engine.CompileDuration.Observe(seconds) }

// ObserveMatchDuration records one Matcher.FindMatches call's duration
// in seconds.
func ObserveMatchDuration(seconds float64) { engine.init(); engine.MatchDuration.Observe(seconds) }
