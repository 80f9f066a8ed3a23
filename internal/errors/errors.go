// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the cuenv CLI.
//
// It defines UserError, a type that carries structured error information
// including what went wrong, why it happened, and how to fix it, plus a
// fixed set of exit codes matching cuenv's error taxonomy.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for cuenv's error taxonomy.
const (
	ExitSuccess = 0

	// ExitConfiguration covers malformed or missing CUE modules, missing
	// projects, and invalid CLI arguments.
	ExitConfiguration = 1

	// ExitIo covers filesystem failures: can't read inputs, can't write
	// the cache, can't hardlink the working tree.
	ExitIo = 2

	// ExitDigest covers digest computation/serialization failures.
	ExitDigest = 3

	// ExitCacheUnavailable covers a cache backend that cannot be reached
	// or is misconfigured; graceful-degradable per pkg/cache.BackendError.
	ExitCacheUnavailable = 4

	// ExitSecretNotFound covers a referenced secret that no resolver
	// could produce.
	ExitSecretNotFound = 5

	// ExitMissingSalt covers a secret fingerprint request made without a
	// configured SaltConfig.
	ExitMissingSalt = 6

	// ExitProcessSpawn covers failure to spawn a task's process, and
	// non-zero task exit codes.
	ExitProcessSpawn = 7

	// ExitCycle covers a cyclic task dependency graph.
	ExitCycle = 8

	// ExitTimeout covers a task or coordinator operation exceeding its
	// deadline.
	ExitTimeout = 9

	// ExitInternal signals a bug: an invariant cuenv itself should have
	// upheld was violated.
	ExitInternal = 10
)

// UserError represents an error with structured context for end users.
//
// It carries what went wrong (Message), why (Cause), how to fix it (Fix),
// the exit code to use, and optionally the underlying error it wraps.
type UserError struct {
	Message  string
	Cause    string
	Fix      string
	ExitCode int
	Err      error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func newError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

// NewConfigurationError reports a malformed manifest, missing project, or
// bad CLI argument.
func NewConfigurationError(msg, cause, fix string, err error) *UserError {
	return newError(ExitConfiguration, msg, cause, fix, err)
}

// NewIoError reports a filesystem failure.
func NewIoError(msg, cause, fix string, err error) *UserError {
	return newError(ExitIo, msg, cause, fix, err)
}

// NewDigestError reports a digest computation or serialization failure.
func NewDigestError(msg, cause, fix string, err error) *UserError {
	return newError(ExitDigest, msg, cause, fix, err)
}

// NewCacheUnavailableError reports a cache backend that could not be
// reached or configured.
func NewCacheUnavailableError(msg, cause, fix string, err error) *UserError {
	return newError(ExitCacheUnavailable, msg, cause, fix, err)
}

// NewSecretNotFoundError reports a secret reference no resolver satisfied.
func NewSecretNotFoundError(msg, cause, fix string) *UserError {
	return newError(ExitSecretNotFound, msg, cause, fix, nil)
}

// NewMissingSaltError reports a fingerprint request made without a
// configured salt.
func NewMissingSaltError(msg, cause, fix string) *UserError {
	return newError(ExitMissingSalt, msg, cause, fix, nil)
}

// NewProcessSpawnError reports a failure to spawn or a non-zero exit from
// a task's process.
func NewProcessSpawnError(msg, cause, fix string, err error) *UserError {
	return newError(ExitProcessSpawn, msg, cause, fix, err)
}

// NewCycleError reports a cyclic task dependency graph.
func NewCycleError(msg, cause, fix string) *UserError {
	return newError(ExitCycle, msg, cause, fix, nil)
}

// NewTimeoutError reports a deadline exceeded on a task or coordinator
// operation.
func NewTimeoutError(msg, cause, fix string, err error) *UserError {
	return newError(ExitTimeout, msg, cause, fix, err)
}

// NewInternalError reports a violated invariant — a bug in cuenv itself.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newError(ExitInternal, msg, cause, fix, err)
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a colored, human-readable rendering of the error.
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

// ErrorJSON is the --json rendering of a UserError.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the error to its JSON-serializable shape.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{Error: e.Message, Cause: e.Cause, Fix: e.Fix, ExitCode: e.ExitCode}
}

// FatalError prints err (colored or JSON) and exits with its code. Never
// returns for a non-nil err.
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
