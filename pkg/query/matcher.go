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
	"regexp"
	"time"

	"github.com/kraklabs/weapifinder/pkg/metrics"
)

// Matcher accumulates source texts and evaluates a shared set of
// CompiledQuery values against them. It is single-threaded and fully
// deterministic: the matched-query set only ever grows across repeated
// addSource/findMatches calls (spec.md §8, "Monotonicity").
//
// Matchers hold a non-owning reference to the Compiler's CompiledQuery
// map and must not outlive the Compiler that vended them.
type Matcher struct {
	queries map[string]*CompiledQuery

	sources map[string]struct{}

	// matched is returned by a stable reference from GetMatchedResults:
	// callers see mutations made by later FindMatches calls, matching
	// spec.md §8 "Identity of result reference".
	matched map[string]struct{}
}

// NewMatcher creates a Matcher bound to the given CompiledQuery
// snapshot. Compiler.NewMatcher is the usual entry point; this
// constructor is exported so the worker pool can build a Matcher inside
// a spawned worker from its own cloned snapshot.
func NewMatcher(queries map[string]*CompiledQuery) *Matcher {
	return &Matcher{
		queries: queries,
		sources: make(map[string]struct{}),
		matched: make(map[string]struct{}),
	}
}

// NewMatcher vends a synchronous Matcher bound to this Compiler's
// current CompiledQuery map.
func (c *Compiler) NewMatcher() *Matcher {
	return NewMatcher(c.Queries())
}

// AddSource deduplicates and stores both the raw text and its
// comment-stripped companion. Both copies land in the same source set:
// the raw copy is kept because comment stripping is intentionally
// imperfect, and a pattern may match either copy.
func (m *Matcher) AddSource(text string) {
	m.sources[text] = struct{}{}
	m.sources[stripComments(text)] = struct{}{}
	metrics.RecordSourceAdded()
}

// FindMatches evaluates every query not yet in the matched set against
// the currently accumulated sources. A condition matches iff every
// pattern in it matches at least one stored source text; the first
// matching condition adds its query to the matched set and no further
// conditions are evaluated for that query. Safe to call repeatedly:
// sources added between calls may grow the matched set but never
// shrink it.
//
// Stray arguments some call sites pass (a holdover from test helpers
// that pass the just-added source text) are ignored; AddSource must
// have already been called.
func (m *Matcher) FindMatches(_ ...string) {
	start := time.Now()
	patternHits := make(map[*regexp.Regexp]bool)

	for name, cq := range m.queries {
		if _, done := m.matched[name]; done {
			continue
		}

		for _, cond := range cq.Conditions {
			if m.conditionMatches(cond, patternHits) {
				m.matched[name] = struct{}{}
				metrics.RecordQueryMatched()
				break
			}
		}
	}
	metrics.ObserveMatchDuration(time.Since(start).Seconds())
}

// conditionMatches reports whether every pattern in cond matches at
// least one of the matcher's stored source texts, memoizing each
// pattern's any-source result in hits for the duration of one
// FindMatches invocation.
func (m *Matcher) conditionMatches(cond Condition, hits map[*regexp.Regexp]bool) bool {
	for _, pat := range cond.patterns {
		matched, seen := hits[pat]
		if !seen {
			matched = m.patternMatchesAnySource(pat)
			hits[pat] = matched
		}
		if !matched {
			return false
		}
	}
	return true
}

func (m *Matcher) patternMatchesAnySource(pat *regexp.Regexp) bool {
	for src := range m.sources {
		if pat.MatchString(src) {
			return true
		}
	}
	return false
}

// GetMatchedResults returns a direct reference to the internal matched
// set. Callers must treat it as read-only; mutations from later
// FindMatches calls are visible through the same reference (spec.md §8,
// "Identity of result reference").
func (m *Matcher) GetMatchedResults() map[string]struct{} {
	return m.matched
}
