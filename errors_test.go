package shakeout

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"

	"github.com/shakeout/shakeout/exitcodes"
)

func TestRuntimeError(t *testing.T) {
	inner := errors.New("config missing")
	err := NewRuntimeError(inner)

	assert.True(t, IsRuntimeError(err))
	assert.False(t, IsTestFailureError(err))
	assert.ErrorIs(t, err, inner)

	wrapped := fmt.Errorf("context: %w", err)
	assert.True(t, IsRuntimeError(wrapped))
}

func TestTestFailureError(t *testing.T) {
	err := NewTestFailureError("2 of 10 tests failed")

	assert.True(t, IsTestFailureError(err))
	assert.False(t, IsRuntimeError(err))
	assert.Contains(t, err.Error(), "2 of 10 tests failed")

	wrapped := fmt.Errorf("context: %w", err)
	assert.True(t, IsTestFailureError(wrapped))
}

func TestIsCheckersHandleNil(t *testing.T) {
	assert.False(t, IsRuntimeError(nil))
	assert.False(t, IsTestFailureError(nil))
}

func TestErrorExitCodes(t *testing.T) {
	assert.Equal(t, exitcodes.RuntimeErr, NewRuntimeError(errors.New("bad flag")).ExitCode())
	assert.Equal(t, exitcodes.TestFailure, NewTestFailureError("2 flaky tests").ExitCode())

	// Both satisfy cli.ExitCoder so the app can exit on them directly.
	var coder cli.ExitCoder
	assert.True(t, errors.As(fmt.Errorf("wrap: %w", NewRuntimeError(errors.New("x"))), &coder))
	assert.Equal(t, exitcodes.RuntimeErr, coder.ExitCode())
}
