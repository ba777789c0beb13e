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

import "testing"

func TestPatternCache_InternReusesCompiledPattern(t *testing.T) {
	c := newPatternCache()

	first := c.intern(`foo\.bar`)
	second := c.intern(`foo\.bar`)

	if first != second {
		t.Error("interning the same pattern source twice must return the same *regexp.Regexp")
	}
	if c.size() != 1 {
		t.Errorf("got cache size %d, want 1", c.size())
	}
}

func TestPatternCache_DistinctSourcesDistinctPatterns(t *testing.T) {
	c := newPatternCache()

	c.intern(`foo`)
	c.intern(`bar`)

	if c.size() != 2 {
		t.Errorf("got cache size %d, want 2", c.size())
	}
}
