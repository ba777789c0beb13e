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
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kraklabs/weapifinder/pkg/metrics"
)

// Condition is a conjunction of compiled Patterns that together imply a
// query occurs in some source text. A query matches if any one of its
// Conditions has every Pattern in it match.
type Condition struct {
	patterns []*regexp.Regexp
}

// CompiledQuery is the ordered list of Conditions for one dotted API
// query. The query matches if any Condition matches; conditions are
// evaluated in order and the first hit short-circuits evaluation.
type CompiledQuery struct {
	// Query is the original dotted API name, preserved for reporting.
	Query string

	Conditions []Condition
}

// Compiler turns dotted API queries into CompiledQuery values and owns
// the process-local Pattern Cache that lets identical pattern source
// strings share a single compiled regexp and a single match result per
// source text (see Matcher.conditionMatches).
//
// A Compiler is safe for use from a single goroutine only; it is not
// meant to be shared across concurrent callers while addQuery is still
// being called. Once a matcher has been vended from the async facade
// (AsyncCompiler), further AddQuery calls are refused — see async.go.
type Compiler struct {
	mu      sync.Mutex
	order   []string
	queries map[string]*CompiledQuery
	cache   *patternCache
	logger  *slog.Logger
}

// NewCompiler creates an empty Compiler.
func NewCompiler(logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		queries: make(map[string]*CompiledQuery),
		cache:   newPatternCache(),
		logger:  logger,
	}
}

// AddQuery compiles and registers a dotted API query. Duplicate queries
// are ignored with a warning, never an error: the compiler never fails
// to accept a query string, however malformed.
func (c *Compiler) AddQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.queries[q]; exists {
		metrics.RecordQueryDuplicate()
		c.logger.Warn("query.compiler.duplicate_query", "query", q)
		return
	}

	start := time.Now()
	compiled := c.compile(q)
	metrics.ObserveCompileDuration(time.Since(start).Seconds())
	metrics.RecordQueryCompiled()

	c.queries[q] = compiled
	c.order = append(c.order, q)
}

// Queries returns a read-only snapshot of the compiled query map. The
// snapshot is a plain map, so iteration order is unspecified. Used by Matcher and WorkerPool to evaluate or
// clone the set of queries without holding a reference into the
// Compiler's internals.
func (c *Compiler) Queries() map[string]*CompiledQuery {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make(map[string]*CompiledQuery, len(c.queries))
	for k, v := range c.queries {
		snapshot[k] = v
	}
	return snapshot
}

// compile implements the Pattern Compiler design: it splits the query
// into dotted parts and emits an ordered list of Conditions, from most
// to least precise, capped at three-part alias chains to bound noise.
func (c *Compiler) compile(q string) *CompiledQuery {
	parts := strings.Split(q, ".")
	n := len(parts)
	hasRoot := parts[0] == "browser" || parts[0] == "chrome"

	body := func(k, m int) string {
		// body(k, m) joins parts[k-1:m] (1-indexed, inclusive) with the
		// member-access dot.
		return strings.Join(escapeParts(parts[k-1:m]), dotFragment)
	}

	cq := &CompiledQuery{Query: q}

	// 1. Literal — always emitted.
	cq.Conditions = append(cq.Conditions, c.condition(any(body(1, n))))

	// 2. First part aliased: only when n >= 2 and the query doesn't
	// already demand a known root (browser./chrome.), per the design
	// rationale in spec.md §4.1.
	if n >= 2 && !hasRoot {
		cq.Conditions = append(cq.Conditions, c.condition(
			rhs(hostDotFragment+body(1, 1)),
			dot(body(2, n)),
		))
	}

	// 3. First two parts aliased.
	if n >= 3 {
		cq.Conditions = append(cq.Conditions, c.condition(
			rhs(body(1, 2)),
			dot(body(3, n)),
		))
	}

	// 4. First three parts aliased.
	if n >= 4 {
		cq.Conditions = append(cq.Conditions, c.condition(
			rhs(body(1, 3)),
			dot(body(4, n)),
		))
	}

	return cq
}

// condition interns each pattern source string through the Compiler's
// Pattern Cache and assembles the resulting compiled patterns into a
// Condition.
func (c *Compiler) condition(patternSources ...string) Condition {
	patterns := make([]*regexp.Regexp, len(patternSources))
	for i, src := range patternSources {
		patterns[i] = c.cache.intern(src)
	}
	return Condition{patterns: patterns}
}

// escapeParts quotes every query-part string so that regex
// metacharacters occurring in a part (e.g. a literal "$" in a minified
// alias name) are taken literally rather than as regex syntax.
func escapeParts(parts []string) []string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = regexp.QuoteMeta(p)
	}
	return escaped
}

// String renders a CompiledQuery for debug logging.
func (cq *CompiledQuery) String() string {
	return fmt.Sprintf("CompiledQuery(%s, %d conditions)", cq.Query, len(cq.Conditions))
}
