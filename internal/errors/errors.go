// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the weapifinder
// CLI.
//
// This package defines UserError, a type that carries structured error
// information including what went wrong, why it happened, and how to
// fix it. It also defines the exit codes that correspond to spec.md
// §7's error taxonomy. Startup errors abort the whole run: misuse of
// the engine's async surface, a metadata-load failure, and invalid
// arguments or configuration (unknown filter name, missing or
// unreadable queries file, malformed weapifinder.yaml). Everything
// else (duplicate queries, a worker crash, a bad extension on one
// input line) is handled without aborting.
//
// # Usage Example
//
//	err := errors.NewMetadataError(
//	    "Cannot load AMO metadata",
//	    "AMO_METADATA_JSON points to a file that does not exist",
//	    "Run: weapifinder fetch-metadata --out /path/to/metadata.json",
//	    underlyingErr,
//	)
//	if err != nil {
//	    errors.FatalError(err, false)
//	}
//
// # Formatted Output
//
//	fmt.Fprint(os.Stderr, err.Format(false))
//	// Output (with colors):
//	// Error: Cannot load AMO metadata
//	// Cause: AMO_METADATA_JSON points to a file that does not exist
//	// Fix:   Run: weapifinder fetch-metadata --out /path/to/metadata.json
//
// For JSON output:
//
//	jsonData := err.ToJSON()
//	json.NewEncoder(os.Stderr).Encode(jsonData)
//
// # Exit Codes
//
//   - ExitSuccess (0): Successful execution
//   - ExitConfig (1): Configuration errors (missing queries file, bad metadata JSON)
//   - ExitInput (4): Invalid user input (unknown filter name, malformed arguments)
//   - ExitNotFound (6): Resource not found (extension root, manifest.json)
//   - ExitInternal (10): Internal errors (engine misuse, bugs, panics)
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitConfig indicates configuration errors (missing/invalid queries
	// file or metadata file).
	ExitConfig = 1

	// ExitInput indicates invalid user input (bad arguments, unknown
	// filter name, validation errors).
	ExitInput = 4

	// ExitNotFound indicates a resource could not be found (extension
	// root, manifest.json).
	ExitNotFound = 6

	// ExitInternal indicates internal errors (bugs, unexpected panics,
	// engine misuse such as calling AddQuery after a matcher has been
	// vended). Exit code 10 signals "this is a bug that should be
	// reported".
	ExitInternal = 10
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: What went wrong (user-facing error description)
//   - Cause: Why it happened (diagnostic information)
//   - Fix: How to fix it (actionable suggestion)
//
// UserError also carries an exit code for consistent CLI exit behavior
// and optionally wraps an underlying error for error chain compatibility.
type UserError struct {
	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred (diagnostic information).
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// ExitCode is the exit code that should be used when exiting due to
	// this error.
	ExitCode int

	// Err is the underlying error that caused this error (optional).
	Err error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error unwrapping for compatibility with errors.Is
// and errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a configuration error with exit code
// ExitConfig. Use this for a missing or malformed queries file.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitConfig, Err: err}
}

// NewMetadataError creates a fatal metadata-load error with exit code
// ExitConfig. Per spec.md §7, a missing or malformed
// AMO_METADATA_JSON is fatal at startup (the user-count filter cannot
// run at all without it), and the message must name a remediation
// command.
func NewMetadataError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitConfig, Err: err}
}

// NewInputError creates an input validation error with exit code
// ExitInput. Use this for bad command-line arguments, such as an
// unknown --filter name. Input errors typically do not wrap an
// underlying error.
func NewInputError(msg, cause, fix string) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitInput}
}

// NewNotFoundError creates a resource-not-found error with exit code
// ExitNotFound. Use this when an extension root or its manifest.json
// cannot be located.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitNotFound}
}

// NewInternalError creates an internal error with exit code
// ExitInternal. Use this for engine misuse (AddQuery after vend,
// GetMatchedResults before resolve) and other bugs.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitInternal, Err: err}
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// Example output:
//
//	Error: Cannot load AMO metadata
//	Cause: AMO_METADATA_JSON points to a file that does not exist
//	Fix:   Run: weapifinder fetch-metadata --out /path/to/metadata.json
//
// Empty Cause or Fix fields are omitted from the output.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format, suitable for
// --json mode.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints the error and exits with the appropriate code. For
// non-UserError types it prints a simple message and exits with
// ExitInternal. This function never returns.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitInternal)
}
