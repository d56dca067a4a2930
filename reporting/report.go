package reporting

import (
	"time"

	"github.com/shakeout/shakeout/coverage"
	"github.com/shakeout/shakeout/runner"
	"github.com/shakeout/shakeout/types"
)

// Tool is the token every report filename carries for the producing
// binary.
const Tool = "shakeout"

// Report type tokens. Each type gets its own subdirectory under the
// report root and its own retention window.
const (
	TypeReliability = "reliability"
	TypeCoverage    = "coverage"
	TypeTriage      = "triage"
	TypeSuite       = "suite"
)

// ReportData is the single payload every sink renders. The markdown
// renderer and the JSON artifact serialize the same struct so the two
// files can never drift apart.
type ReportData struct {
	RunID       string    `json:"run_id,omitempty"`
	Module      string    `json:"module"`
	Target      string    `json:"target,omitempty"`
	Tool        string    `json:"tool"`
	Type        string    `json:"type"`
	Qualifier   Qualifier `json:"qualifier"`
	GeneratedAt time.Time `json:"generated_at"`

	Reliability *ReliabilitySection `json:"reliability,omitempty"`
	Coverage    *CoverageSection    `json:"coverage,omitempty"`
	Failures    *FailureSection     `json:"failures,omitempty"`
}

// ReliabilitySection summarizes a repeated-run session.
type ReliabilitySection struct {
	AttemptedRuns       int                       `json:"attempted_runs"`
	CompletedRuns       int                       `json:"completed_runs"`
	FailedRuns          int                       `json:"failed_runs"`
	Duration            time.Duration             `json:"duration"`
	StabilityScore      float64                   `json:"stability_score"`
	Status              types.TestStatus          `json:"status"`
	FlakyCount          int                       `json:"flaky_count"`
	ConsistentFailCount int                       `json:"consistent_fail_count"`
	ConsistentPassCount int                       `json:"consistent_pass_count"`
	SkippedCount        int                       `json:"skipped_count"`
	Metrics             []types.ReliabilityMetric `json:"metrics"`
}

// CoverageSection summarizes an LCOV analysis.
type CoverageSection struct {
	TotalPercent   float64                `json:"total_percent"`
	Threshold      float64                `json:"threshold,omitempty"`
	ThresholdMet   bool                   `json:"threshold_met"`
	BaselineGiven  bool                   `json:"baseline_given"`
	BaselinePct    float64                `json:"baseline_percent,omitempty"`
	Delta          float64                `json:"delta,omitempty"`
	Decreased      bool                   `json:"decreased"`
	Records        []types.CoverageRecord `json:"records"`
	UntestedFiles  []string               `json:"untested_files,omitempty"`
	FailOnDecrease bool                   `json:"fail_on_decrease"`
}

// ClassifiedFailure is one classified test failure attributed to its
// test, as collected by the failure extractor.
type ClassifiedFailure struct {
	TestName  string              `json:"test_name"`
	SuitePath string              `json:"suite_path"`
	Record    types.FailureRecord `json:"record"`
	LogPath   string              `json:"log_path,omitempty"`
}

// CategoryGroup holds all failures of one category, in the classifier's
// precedence order so rendering stays deterministic.
type CategoryGroup struct {
	Category string              `json:"category"`
	Failures []ClassifiedFailure `json:"failures"`
}

// FailureSection is the triage payload: every collected failure grouped
// by category.
type FailureSection struct {
	Total  int             `json:"total"`
	Groups []CategoryGroup `json:"groups"`
}

// NewReliabilityReport builds the report payload for a repeated-run
// session.
func NewReliabilityReport(module string, q Qualifier, result *runner.SessionResult) ReportData {
	return ReportData{
		RunID:       result.RunID,
		Module:      module,
		Target:      result.Target,
		Tool:        Tool,
		Type:        TypeReliability,
		Qualifier:   q,
		GeneratedAt: time.Now(),
		Reliability: reliabilitySection(result),
	}
}

// NewCoverageReport builds the report payload for an LCOV analysis.
func NewCoverageReport(module string, q Qualifier, target string, analysis *coverage.Analysis) ReportData {
	return ReportData{
		Module:      module,
		Target:      target,
		Tool:        Tool,
		Type:        TypeCoverage,
		Qualifier:   q,
		GeneratedAt: time.Now(),
		Coverage:    coverageSection(analysis),
	}
}

// NewTriageReport builds the report payload for a failure-extraction
// run.
func NewTriageReport(module string, q Qualifier, runID, target string, failures []ClassifiedFailure) ReportData {
	return ReportData{
		RunID:       runID,
		Module:      module,
		Target:      target,
		Tool:        Tool,
		Type:        TypeTriage,
		Qualifier:   q,
		GeneratedAt: time.Now(),
		Failures:    GroupFailures(failures),
	}
}

// NewSuiteReport combines the individual analyzer payloads into the
// unified report the suite command writes. Any section may be nil when
// the corresponding analyzer was disabled.
func NewSuiteReport(module string, q Qualifier, target string, result *runner.SessionResult, analysis *coverage.Analysis, failures []ClassifiedFailure) ReportData {
	data := ReportData{
		Module:      module,
		Target:      target,
		Tool:        Tool,
		Type:        TypeSuite,
		Qualifier:   q,
		GeneratedAt: time.Now(),
	}
	if result != nil {
		data.RunID = result.RunID
		data.Reliability = reliabilitySection(result)
	}
	if analysis != nil {
		data.Coverage = coverageSection(analysis)
	}
	if len(failures) > 0 {
		data.Failures = GroupFailures(failures)
	}
	return data
}

func reliabilitySection(result *runner.SessionResult) *ReliabilitySection {
	return &ReliabilitySection{
		AttemptedRuns:       result.AttemptedRuns,
		CompletedRuns:       result.CompletedRuns,
		FailedRuns:          result.FailedRuns,
		Duration:            result.Duration,
		StabilityScore:      result.StabilityScore,
		Status:              result.Status,
		FlakyCount:          result.FlakyCount,
		ConsistentFailCount: result.ConsistentFailCount,
		ConsistentPassCount: result.ConsistentPassCount,
		SkippedCount:        result.SkippedCount,
		Metrics:             result.Metrics,
	}
}

func coverageSection(analysis *coverage.Analysis) *CoverageSection {
	return &CoverageSection{
		TotalPercent:   analysis.TotalPercent,
		Threshold:      analysis.Threshold,
		ThresholdMet:   analysis.ThresholdMet,
		BaselineGiven:  analysis.BaselineGiven,
		BaselinePct:    analysis.BaselinePct,
		Delta:          analysis.Delta,
		Decreased:      analysis.Decreased,
		Records:        analysis.Records,
		UntestedFiles:  analysis.UntestedFiles,
		FailOnDecrease: analysis.FailOnDecrease,
	}
}

// GroupFailures partitions failures by category in the classifier's
// precedence order. Categories with no failures are omitted.
func GroupFailures(failures []ClassifiedFailure) *FailureSection {
	section := &FailureSection{Total: len(failures)}
	for _, cat := range types.AllCategories {
		var group []ClassifiedFailure
		for _, f := range failures {
			if f.Record.Category == cat {
				group = append(group, f)
			}
		}
		if len(group) > 0 {
			section.Groups = append(section.Groups, CategoryGroup{
				Category: cat.Name(),
				Failures: group,
			})
		}
	}
	return section
}
