package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_WritesMarkdownAndJSON(t *testing.T) {
	root := t.TempDir()
	sink := NewSink(root, 5, nil)

	data := NewReliabilityReport("myapp", QualifierFolder, sampleSession())
	data.GeneratedAt = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	mdPath, err := sink.Write(data)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, TypeReliability,
		"myapp-folder_shakeout_reliability@20260314-092653.md"), mdPath)

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "## Summary")

	jsonPath := mdPath[:len(mdPath)-len(".md")] + ".json"
	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	var decoded ReportData
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "run-123", decoded.RunID)
	assert.Equal(t, TypeReliability, decoded.Type)
	require.NotNil(t, decoded.Reliability)
	assert.InDelta(t, 66.7, decoded.Reliability.StabilityScore, 0.01)
}

func TestSink_RetentionDeletesOldestFirst(t *testing.T) {
	root := t.TempDir()
	sink := NewSink(root, 2, nil)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		data := NewReliabilityReport("myapp", QualifierFolder, sampleSession())
		data.GeneratedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := sink.Write(data)
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(filepath.Join(root, TypeReliability))
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	// Two newest survive, markdown plus JSON each.
	assert.Equal(t, []string{
		"myapp-folder_shakeout_reliability@20260314-090200.json",
		"myapp-folder_shakeout_reliability@20260314-090200.md",
		"myapp-folder_shakeout_reliability@20260314-090300.json",
		"myapp-folder_shakeout_reliability@20260314-090300.md",
	}, names)
}

func TestSink_RetentionIsPerType(t *testing.T) {
	root := t.TempDir()
	sink := NewSink(root, 1, nil)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	rel := NewReliabilityReport("myapp", QualifierFolder, sampleSession())
	rel.GeneratedAt = base
	_, err := sink.Write(rel)
	require.NoError(t, err)

	triage := NewTriageReport("myapp", QualifierFolder, "run-9", "test/", nil)
	triage.GeneratedAt = base.Add(time.Minute)
	_, err = sink.Write(triage)
	require.NoError(t, err)

	relEntries, err := os.ReadDir(filepath.Join(root, TypeReliability))
	require.NoError(t, err)
	triageEntries, err := os.ReadDir(filepath.Join(root, TypeTriage))
	require.NoError(t, err)

	// Different types never compete for the same retention window.
	assert.Len(t, relEntries, 2)
	assert.Len(t, triageEntries, 2)
}

func TestSink_IgnoresForeignFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, TypeReliability)
	require.NoError(t, os.MkdirAll(dir, 0755))
	foreign := filepath.Join(dir, "NOTES.md")
	require.NoError(t, os.WriteFile(foreign, []byte("keep me\n"), 0644))

	sink := NewSink(root, 1, nil)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		data := NewReliabilityReport("myapp", QualifierFolder, sampleSession())
		data.GeneratedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := sink.Write(data)
		require.NoError(t, err)
	}

	// The foreign file is untouched by retention.
	_, err := os.Stat(foreign)
	assert.NoError(t, err)
}

func TestNewSink_Defaults(t *testing.T) {
	sink := NewSink("reports", 0, nil)
	assert.Equal(t, DefaultKeepReports, sink.keep)
	assert.Equal(t, "reports", sink.Root())
}
