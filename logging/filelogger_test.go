package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakeout/shakeout/types"
)

func TestNewFileLogger_CreatesRunDirectoryTree(t *testing.T) {
	base := t.TempDir()
	logger, err := NewFileLogger(base, "abc123")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "testrun-abc123"), logger.RunDir())
	assert.DirExists(t, logger.FailedDir())
	assert.Equal(t, "abc123", logger.RunID())
}

func TestNewFileLogger_RejectsEmptyRunID(t *testing.T) {
	_, err := NewFileLogger(t.TempDir(), "")
	require.Error(t, err)
}

func TestLogFailure_WritesOneFilePerFailure(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run1")
	require.NoError(t, err)

	id := types.TestID{SuitePath: "test/calc_test.dart", TestName: "divides by zero"}
	record := types.FailureRecord{
		Category:   types.CategoryAssertion,
		Message:    "Expected: 5\nActual: 3",
		Location:   "test/calc_test.dart:12",
		Suggestion: types.CategoryAssertion.Suggestion(),
	}

	path, err := logger.LogFailure(id, record, "#0 main (test/calc_test.dart:12)")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(logger.FailedDir(), "test_calc_test.dart__divides_by_zero.log"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "Test:     divides by zero")
	assert.Contains(t, text, "Suite:    test/calc_test.dart")
	assert.Contains(t, text, "Category: Assertion Failure")
	assert.Contains(t, text, "Location: test/calc_test.dart:12")
	assert.Contains(t, text, "Expected: 5\nActual: 3")
	assert.Contains(t, text, "--- stack trace ---")
}

func TestLogFailure_OmitsEmptySections(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run1")
	require.NoError(t, err)

	id := types.TestID{TestName: "boom"}
	record := types.FailureRecord{
		Category: types.CategoryUnknown,
		Message:  "something odd",
		Location: types.UnknownLocation,
	}

	path, err := logger.LogFailure(id, record, "")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.NotContains(t, text, "Suite:")
	assert.NotContains(t, text, "stack trace")
	assert.Contains(t, text, "something odd")
}

func TestWriteSummary(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run1")
	require.NoError(t, err)

	path, err := logger.WriteSummary("2 failures in 1 category\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(logger.RunDir(), "summary.log"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2 failures in 1 category\n", string(content))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"test/calc_test.dart::adds", "test_calc_test.dart__adds"},
		{"has spaces and *stars*", "has_spaces_and__stars_"},
		{`win\path:case`, "win_path_case"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in))
	}
}

func TestRawEventSink_CapturesStreamVerbatim(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run1")
	require.NoError(t, err)

	sink, err := NewRawEventSink(logger)
	require.NoError(t, err)

	lines := "{\"type\":\"suite\"}\n{\"type\":\"done\",\"success\":true}\n"
	_, err = sink.Write([]byte(lines))
	require.NoError(t, err)
	require.NoError(t, logger.Complete())

	content, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, lines, string(content))
	assert.Equal(t, filepath.Join(logger.RunDir(), RawEventsFilename), sink.Path())
}

func TestComplete_ClosesWritersOnce(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run1")
	require.NoError(t, err)

	sink, err := NewRawEventSink(logger)
	require.NoError(t, err)
	_, err = sink.Write([]byte("x\n"))
	require.NoError(t, err)

	require.NoError(t, logger.Complete())
	// Writes after Complete fail instead of panicking.
	_, err = sink.Write([]byte("y\n"))
	require.Error(t, err)
	// A second Complete is a no-op.
	require.NoError(t, logger.Complete())
}
