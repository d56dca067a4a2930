package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakeout/shakeout/types"
)

const failureStream = `{"type":"suite","suite":{"id":0,"path":"test/calc_test.dart"},"time":0}
{"type":"testStart","test":{"id":1,"name":"adds","suiteID":0},"time":10}
{"type":"testDone","testID":1,"result":"success","time":40}
{"type":"testStart","test":{"id":2,"name":"divides","suiteID":0},"time":50}
{"type":"error","testID":2,"error":"Expected: 5\nActual: 3","stackTrace":"#0 main (test/calc_test.dart:12)","isFailure":true,"time":80}
{"type":"testDone","testID":2,"result":"failure","time":90}
{"type":"testStart","test":{"id":3,"name":"fetches","suiteID":0},"time":100}
{"type":"error","testID":3,"error":"SocketException: Connection refused","isFailure":false,"time":130}
{"type":"testDone","testID":3,"result":"error","time":140}
{"type":"done","success":false,"time":150}
`

func writeStream(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(failureStream), 0644))
	return path
}

func TestRun_FromFile(t *testing.T) {
	out := t.TempDir()
	result, err := Run(context.Background(), Config{
		FromFile:  writeStream(t),
		OutputDir: out,
		RunID:     "replay1",
	})
	require.NoError(t, err)

	assert.Equal(t, "replay1", result.RunID)
	assert.Equal(t, 3, result.TotalTests)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, filepath.Join(out, "testrun-replay1"), result.RunDir)
	assert.Empty(t, result.RawPath)

	// Sorted by identity: divides before fetches.
	assert.Equal(t, "divides", result.Failures[0].TestName)
	assert.Equal(t, types.CategoryAssertion, result.Failures[0].Record.Category)
	assert.Equal(t, "fetches", result.Failures[1].TestName)
	assert.Equal(t, types.CategoryNetwork, result.Failures[1].Record.Category)
}

func TestRun_WritesPerFailureLogs(t *testing.T) {
	result, err := Run(context.Background(), Config{
		FromFile:  writeStream(t),
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)

	for _, f := range result.Failures {
		require.NotEmpty(t, f.LogPath)
		content, err := os.ReadFile(f.LogPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), f.Record.Message)
	}

	failedDir := filepath.Join(result.RunDir, "failed")
	entries, err := os.ReadDir(failedDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRun_WritesSummaryGroupedByCategory(t *testing.T) {
	result, err := Run(context.Background(), Config{
		FromFile:  writeStream(t),
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)

	content, err := os.ReadFile(result.SummaryPath)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "3 tests, 2 failures")
	assert.Contains(t, text, types.CategoryAssertion.Name()+" (1)")
	assert.Contains(t, text, types.CategoryNetwork.Name()+" (1)")
	assert.Contains(t, text, "test/calc_test.dart::divides (test/calc_test.dart:12)")
}

func TestRun_GeneratesRunID(t *testing.T) {
	result, err := Run(context.Background(), Config{
		FromFile:  writeStream(t),
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
}

func TestRun_RequiresTargetOrFile(t *testing.T) {
	_, err := Run(context.Background(), Config{OutputDir: t.TempDir()})
	require.Error(t, err)
}

func TestRun_MissingStreamFile(t *testing.T) {
	_, err := Run(context.Background(), Config{
		FromFile:  filepath.Join(t.TempDir(), "nope.jsonl"),
		OutputDir: t.TempDir(),
	})
	require.Error(t, err)
}

func TestRun_LiveRunWithSaveRaw(t *testing.T) {
	// A stub runner binary replays the canned stream.
	bin := filepath.Join(t.TempDir(), "fakerunner")
	script := "#!/bin/sh\ncat <<'EOF'\n" + failureStream + "EOF\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0755))

	out := t.TempDir()
	result, err := Run(context.Background(), Config{
		Target:    "test/",
		Binary:    bin,
		Timeout:   30 * time.Second,
		SaveRaw:   true,
		OutputDir: out,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalTests)
	assert.Len(t, result.Failures, 2)

	require.NotEmpty(t, result.RawPath)
	raw, err := os.ReadFile(result.RawPath)
	require.NoError(t, err)
	assert.Equal(t, failureStream, string(raw))
}

func TestRun_LaunchFailure(t *testing.T) {
	_, err := Run(context.Background(), Config{
		Target:    "test/",
		Binary:    filepath.Join(t.TempDir(), "does-not-exist"),
		Timeout:   time.Second,
		OutputDir: t.TempDir(),
	})
	require.Error(t, err)
}
