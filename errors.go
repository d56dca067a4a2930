package shakeout

import (
	"errors"
	"fmt"

	"github.com/shakeout/shakeout/exitcodes"
)

// The tool distinguishes two failure planes. A TestFailureError means
// the analyzers ran to completion and the verdict is bad: failing
// tests, flaky tests under --fail-on-flaky, a missed coverage
// threshold. A RuntimeError means the tool itself could not do its
// job: bad flags, an unreadable tracefile, a runner binary that never
// started. The split is the process exit-code contract, so both types
// carry their exit code and urfave/cli surfaces them directly.

// RuntimeError wraps an operational failure. Exit code 2.
type RuntimeError struct {
	Err error
}

// NewRuntimeError wraps err as an operational failure.
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// ExitCode implements cli.ExitCoder.
func (e *RuntimeError) ExitCode() int { return exitcodes.RuntimeErr }

// IsRuntimeError reports whether err is or wraps a RuntimeError.
func IsRuntimeError(err error) bool {
	var target *RuntimeError
	return errors.As(err, &target)
}

// TestFailureError reports a bad analyzer verdict. Exit code 1.
type TestFailureError struct {
	Message string
}

// NewTestFailureError records a failing verdict summary.
func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

func (e *TestFailureError) Error() string {
	return "test failure: " + e.Message
}

// ExitCode implements cli.ExitCoder.
func (e *TestFailureError) ExitCode() int { return exitcodes.TestFailure }

// IsTestFailureError reports whether err is or wraps a TestFailureError.
func IsTestFailureError(err error) bool {
	var target *TestFailureError
	return errors.As(err, &target)
}
