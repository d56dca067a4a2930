package main

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/log"

	shakeout "github.com/shakeout/shakeout"
)

func TestNewApp_CommandSurface(t *testing.T) {
	app := newApp()

	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.ElementsMatch(t, []string{"reliability", "coverage", "failures", "suite"}, names)
}

func TestNewApp_EveryCommandHasFlags(t *testing.T) {
	app := newApp()
	for _, cmd := range app.Commands {
		require.NotEmpty(t, cmd.Flags, "command %q must define flags", cmd.Name)
	}
}

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "runtime error",
			err:  shakeout.NewRuntimeError(errors.New("binary not found")),
			want: 2,
		},
		{
			name: "wrapped runtime error",
			err:  errWrap{shakeout.NewRuntimeError(errors.New("boom"))},
			want: 2,
		},
		{
			name: "test failure",
			err:  shakeout.NewTestFailureError("2 of 10 tests failed"),
			want: 1,
		},
		{
			name: "plain error defaults to failure",
			err:  errors.New("something else"),
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeForError(tt.err))
		})
	}
}

type errWrap struct{ inner error }

func (e errWrap) Error() string { return e.inner.Error() }
func (e errWrap) Unwrap() error { return e.inner }

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", log.LevelTrace},
		{"debug", log.LevelDebug},
		{"info", log.LevelInfo},
		{"WARN", log.LevelWarn},
		{"error", log.LevelError},
		{"garbage", log.LevelInfo},
		{"", log.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), "level %q", tt.in)
	}
}
