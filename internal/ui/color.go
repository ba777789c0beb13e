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

// Package ui provides terminal output helpers for the weapifinder CLI:
// colorized warnings/errors for per-line driver diagnostics, and a
// summary line printed once scanning finishes. Color output follows
// the --no-color flag: InitColors sets fatih/color's global switch from
// it, replacing the library's own TTY and NO_COLOR detection.
package ui

import (
	"os"

	"github.com/fatih/color"
)

// colorStderr is where all ui output goes; the CLI never writes
// diagnostics to stdout, which is reserved for matched extension paths.
var colorStderr = os.Stderr

// Pre-configured color instances for consistent CLI output.
var (
	// Red is used for fatal errors.
	Red = color.New(color.FgRed)

	// Yellow is used for per-line warnings (unreadable file, missing
	// manifest, missing metadata entry).
	Yellow = color.New(color.FgYellow)

	// Green is used for the final "N of M extensions matched" summary.
	Green = color.New(color.FgGreen)

	// Dim is used for extension paths echoed alongside a warning.
	Dim = color.New(color.Faint)
)

// InitColors configures global color output based on the --no-color
// flag. The fatih/color library already respects NO_COLOR, but this
// gives the CLI flag explicit precedence.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

// Warning prints a yellow warning to stderr, used for the per-line I/O
// errors described in spec.md §7: a bad line is logged and dropped, it
// never aborts the run.
func Warning(msg string) {
	_, _ = Yellow.Fprintln(colorStderr, "⚠ "+msg)
}

// Error prints a red fatal-error line to stderr.
func Error(msg string) {
	_, _ = Red.Fprintln(colorStderr, "✗ "+msg)
}

// Summary prints a green completion summary to stderr.
func Summary(msg string) {
	_, _ = Green.Fprintln(colorStderr, "✓ "+msg)
}

// PathText returns a dim-formatted path for inline use alongside a
// warning or summary line.
func PathText(path string) string {
	return Dim.Sprint(path)
}
