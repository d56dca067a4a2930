package coverage

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func lcovFor(file string, covered, uncovered int) string {
	data := "SF:" + file + "\n"
	line := 1
	for i := 0; i < covered; i++ {
		data += "DA:" + strconv.Itoa(line) + ",1\n"
		line++
	}
	for i := 0; i < uncovered; i++ {
		data += "DA:" + strconv.Itoa(line) + ",0\n"
		line++
	}
	return data + "end_of_record\n"
}

func TestAnalyzer_ThresholdEvaluation(t *testing.T) {
	dir := t.TempDir()
	lcov := writeFile(t, dir, "lcov.info", lcovFor("lib/a.dart", 62, 38))

	tests := []struct {
		name       string
		min        float64
		wantPassed bool
	}{
		{name: "below threshold fails", min: 80, wantPassed: false},
		{name: "above threshold passes", min: 50, wantPassed: true},
		{name: "no threshold passes", min: 0, wantPassed: true},
		{name: "exactly at threshold passes", min: 62, wantPassed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer, err := NewAnalyzer(AnalyzerConfig{LCOVPath: lcov, MinCoverage: tt.min, Log: log.Root()})
			require.NoError(t, err)

			analysis, err := analyzer.Analyze()
			require.NoError(t, err)
			assert.InDelta(t, 62.0, analysis.TotalPercent, 0.0001)
			assert.Equal(t, tt.wantPassed, analysis.Passed())
		})
	}
}

func TestAnalyzer_BaselineDelta(t *testing.T) {
	dir := t.TempDir()
	current := writeFile(t, dir, "lcov.info", lcovFor("lib/a.dart", 60, 40))
	baseline := writeFile(t, dir, "base.info", lcovFor("lib/a.dart", 70, 30))

	analyzer, err := NewAnalyzer(AnalyzerConfig{
		LCOVPath:     current,
		BaselinePath: baseline,
		Log:          log.Root(),
	})
	require.NoError(t, err)

	analysis, err := analyzer.Analyze()
	require.NoError(t, err)
	assert.True(t, analysis.BaselineGiven)
	assert.InDelta(t, -10.0, analysis.Delta, 0.0001)
	assert.True(t, analysis.Decreased)
	// Without fail-on-decrease a negative delta still passes.
	assert.True(t, analysis.Passed())
}

func TestAnalyzer_FailOnDecrease(t *testing.T) {
	dir := t.TempDir()
	current := writeFile(t, dir, "lcov.info", lcovFor("lib/a.dart", 89, 11))
	baseline := writeFile(t, dir, "base.info", lcovFor("lib/a.dart", 90, 10))

	analyzer, err := NewAnalyzer(AnalyzerConfig{
		LCOVPath:       current,
		BaselinePath:   baseline,
		FailOnDecrease: true,
		MinCoverage:    50, // threshold itself is met
		Log:            log.Root(),
	})
	require.NoError(t, err)

	analysis, err := analyzer.Analyze()
	require.NoError(t, err)
	assert.True(t, analysis.ThresholdMet)
	assert.True(t, analysis.Decreased)
	assert.False(t, analysis.Passed(), "any decrease is a hard failure with fail-on-decrease")
}

func TestAnalyzer_UntestedFileDiscovery(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "lib")
	writeFile(t, srcDir, "covered.dart", "// covered\n")
	writeFile(t, srcDir, "orphan.dart", "// never touched by tests\n")
	writeFile(t, srcDir, "helper_test.dart", "// test file, not a target\n")
	writeFile(t, srcDir, "notes.txt", "not source\n")
	lcov := writeFile(t, dir, "lcov.info", lcovFor("covered.dart", 3, 0))

	analyzer, err := NewAnalyzer(AnalyzerConfig{
		LCOVPath:  lcov,
		SourceDir: srcDir,
		Log:       log.Root(),
	})
	require.NoError(t, err)

	analysis, err := analyzer.Analyze()
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan.dart"}, analysis.UntestedFiles)
}

func TestStubGenerator_Generate(t *testing.T) {
	dir := t.TempDir()
	lcov := writeFile(t, dir, "lcov.info",
		"SF:lib/parser.dart\nDA:1,1\nDA:2,0\nDA:3,0\nDA:7,0\nend_of_record\n")

	analyzer, err := NewAnalyzer(AnalyzerConfig{LCOVPath: lcov, Log: log.Root()})
	require.NoError(t, err)
	analysis, err := analyzer.Analyze()
	require.NoError(t, err)

	stubDir := filepath.Join(dir, "stubs")
	gen := NewStubGenerator(stubDir, log.Root())
	written, err := gen.Generate(analysis)
	require.NoError(t, err)
	require.Len(t, written, 1)

	content, err := os.ReadFile(written[0])
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "lib/parser.dart")
	assert.Contains(t, text, "covers lines 2-3")
	assert.Contains(t, text, "covers lines 7")
	assert.Contains(t, text, "group('parser'")
	assert.Equal(t, "lib_parser_test.dart", filepath.Base(written[0]))
}

func TestStubGenerator_UntestedFiles(t *testing.T) {
	dir := t.TempDir()
	analysis := &Analysis{UntestedFiles: []string{"lib/orphan.dart"}}

	gen := NewStubGenerator(filepath.Join(dir, "stubs"), log.Root())
	written, err := gen.Generate(analysis)
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, "lib_orphan_test.dart", filepath.Base(written[0]))
}

func TestAnalyzer_MissingFileIsError(t *testing.T) {
	analyzer, err := NewAnalyzer(AnalyzerConfig{LCOVPath: "/does/not/exist.info", Log: log.Root()})
	require.NoError(t, err)
	_, err = analyzer.Analyze()
	require.Error(t, err)
}
