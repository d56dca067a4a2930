package coverage

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/shakeout/shakeout/types"
)

// Analysis is the outcome of one coverage evaluation.
type Analysis struct {
	Records       []types.CoverageRecord
	TotalPercent  float64
	UntestedFiles []string // source files with no coverage record at all

	Threshold      float64
	ThresholdMet   bool
	BaselineGiven  bool
	BaselinePct    float64
	Delta          float64
	Decreased      bool
	FailOnDecrease bool
}

// Passed reports whether the analysis satisfies its configured policy:
// the minimum threshold, and no decrease when fail-on-decrease is set.
func (a *Analysis) Passed() bool {
	if !a.ThresholdMet {
		return false
	}
	if a.FailOnDecrease && a.Decreased {
		return false
	}
	return true
}

// String summarizes the analysis for console and error output.
func (a *Analysis) String() string {
	s := fmt.Sprintf("coverage %.1f%% across %d files", a.TotalPercent, len(a.Records))
	if a.Threshold > 0 {
		s += fmt.Sprintf(" (minimum %.1f%%)", a.Threshold)
	}
	if a.BaselineGiven {
		s += fmt.Sprintf(", delta %+.1f%% vs baseline", a.Delta)
	}
	if len(a.UntestedFiles) > 0 {
		s += fmt.Sprintf(", %d files untested", len(a.UntestedFiles))
	}
	return s
}

// AnalyzerConfig configures a coverage Analyzer.
type AnalyzerConfig struct {
	LCOVPath       string
	BaselinePath   string  // optional second tracefile to diff against
	MinCoverage    float64 // 0 disables the threshold
	FailOnDecrease bool
	SourceDir      string   // optional, enables untested-file discovery
	SourceExts     []string // defaults to .dart
	Log            log.Logger
}

// Analyzer evaluates parsed coverage against thresholds and the tree.
type Analyzer struct {
	cfg    AnalyzerConfig
	parser *Parser
	log    log.Logger
}

// NewAnalyzer creates a coverage analyzer.
func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	if cfg.LCOVPath == "" {
		return nil, fmt.Errorf("coverage data path cannot be empty")
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	if len(cfg.SourceExts) == 0 {
		cfg.SourceExts = []string{".dart"}
	}
	return &Analyzer{cfg: cfg, parser: NewParser(cfg.Log), log: cfg.Log}, nil
}

// Analyze builds an Analyzer from cfg and runs it.
func Analyze(cfg AnalyzerConfig) (*Analysis, error) {
	a, err := NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	return a.Analyze()
}

// Analyze parses the tracefile and evaluates coverage policy.
func (a *Analyzer) Analyze() (*Analysis, error) {
	records, err := a.parser.ParseFile(a.cfg.LCOVPath)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		Records:        records,
		TotalPercent:   TotalPercent(records),
		Threshold:      a.cfg.MinCoverage,
		FailOnDecrease: a.cfg.FailOnDecrease,
	}
	analysis.ThresholdMet = a.cfg.MinCoverage <= 0 || analysis.TotalPercent >= a.cfg.MinCoverage

	if a.cfg.BaselinePath != "" {
		baseline, err := a.parser.ParseFile(a.cfg.BaselinePath)
		if err != nil {
			return nil, fmt.Errorf("parsing baseline: %w", err)
		}
		analysis.BaselineGiven = true
		analysis.BaselinePct = TotalPercent(baseline)
		analysis.Delta = analysis.TotalPercent - analysis.BaselinePct
		analysis.Decreased = analysis.Delta < 0
	}

	if a.cfg.SourceDir != "" {
		untested, err := a.findUntestedFiles(records)
		if err != nil {
			return nil, err
		}
		analysis.UntestedFiles = untested
	}

	a.log.Info("Coverage analysis complete",
		"percent", fmt.Sprintf("%.1f%%", analysis.TotalPercent),
		"files", len(records), "untested", len(analysis.UntestedFiles),
		"passed", analysis.Passed())
	return analysis, nil
}

// findUntestedFiles walks the source tree and reports files that have no
// coverage record at all, distinct from partially covered files.
func (a *Analyzer) findUntestedFiles(records []types.CoverageRecord) ([]string, error) {
	recorded := make(map[string]bool, len(records))
	for _, r := range records {
		recorded[filepath.Clean(r.File)] = true
		// Tracefiles may use paths relative to a different root; index
		// the basename-suffixed form too so lib/a.dart matches a.dart.
		recorded[filepath.Base(r.File)] = true
	}

	var untested []string
	err := filepath.WalkDir(a.cfg.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if name == ".git" || name == "build" || strings.HasPrefix(name, ".") && name != "." {
				return filepath.SkipDir
			}
			return nil
		}
		if !a.isSourceFile(path) {
			return nil
		}
		rel, relErr := filepath.Rel(a.cfg.SourceDir, path)
		if relErr != nil {
			rel = path
		}
		if !recorded[filepath.Clean(rel)] && !recorded[filepath.Base(path)] {
			untested = append(untested, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking source tree %s: %w", a.cfg.SourceDir, err)
	}
	sort.Strings(untested)
	return untested, nil
}

func (a *Analyzer) isSourceFile(path string) bool {
	ext := filepath.Ext(path)
	for _, want := range a.cfg.SourceExts {
		if ext == want {
			// Test files are not expected to appear in coverage data.
			base := filepath.Base(path)
			if strings.HasSuffix(base, "_test"+ext) {
				return false
			}
			return true
		}
	}
	return false
}
