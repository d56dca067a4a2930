package shakeout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/shakeout/shakeout/coverage"
	"github.com/shakeout/shakeout/logging"
	"github.com/shakeout/shakeout/reporting"
	"github.com/shakeout/shakeout/runner"
	"github.com/shakeout/shakeout/types"
)

// SuiteResult bundles the outcome of one full suite run: the repeated-
// run reliability session, the coverage analysis, and the classified
// failures, plus the unified report written from them.
type SuiteResult struct {
	Session    *runner.SessionResult
	Coverage   *coverage.Analysis
	Failures   []reporting.ClassifiedFailure
	ReportPath string
	Status     types.TestStatus
	Duration   time.Duration
}

// String returns a one-line human summary of the suite run.
func (r *SuiteResult) String() string {
	var parts []string
	if r.Session != nil {
		parts = append(parts, r.Session.String())
	}
	if r.Coverage != nil {
		parts = append(parts, r.Coverage.String())
	}
	parts = append(parts, fmt.Sprintf("status=%s duration=%s", r.Status, formatDuration(r.Duration)))
	return strings.Join(parts, "; ")
}

// Shakeout drives the unified suite: reliability, coverage, and failure
// triage in one invocation, repeated on an interval when configured.
type Shakeout struct {
	config    *Config
	version   string
	module    string
	sink      *reporting.Sink
	scheduler *Scheduler
	reporter  MetricsReporter
	result    *SuiteResult

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates a Shakeout suite service from a validated config.
func New(config *Config, version string, shutdownCallback func(error)) (*Shakeout, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", config.Runs)
	}

	config.Log.Debug("Creating suite service",
		"target", config.Target,
		"runs", config.Runs,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	s := &Shakeout{
		config:           config,
		version:          version,
		module:           reporting.ModuleName("."),
		sink:             reporting.NewSink(config.OutputDir, config.KeepReports, config.Log),
		reporter:         NewDefaultMetricsReporter(),
		shutdownCallback: shutdownCallback,
	}
	s.scheduler = NewScheduler(config.RunInterval, s.runSuite, config.Log)
	return s, nil
}

// Result returns the most recent suite result, nil before the first run.
func (s *Shakeout) Result() *SuiteResult {
	return s.result
}

// Start runs the suite immediately and then periodically at the
// configured interval.
func (s *Shakeout) Start(ctx context.Context) error {
	s.running.Store(true)

	if s.config.RunOnce {
		s.config.Log.Info("Starting shakeout in run-once mode", "target", s.config.Target)
	} else {
		s.config.Log.Info("Starting shakeout in continuous mode",
			"target", s.config.Target, "interval", s.config.RunInterval)
	}

	err := s.scheduler.Start(ctx)

	if s.config.RunOnce {
		if err != nil {
			return err
		}
		s.config.Log.Info("Suite completed, exiting (run-once mode)")

		if s.result != nil && s.result.Status == types.TestStatusFail {
			return NewTestFailureError(s.result.String())
		}

		// Only need to call this when we're in run-once mode and everything passed
		go func() {
			s.shutdownCallback(nil)
		}()
		return nil
	}
	if err != nil {
		return err
	}

	s.config.Log.Debug("shakeout started successfully")
	return nil
}

// Stop stops the suite service.
func (s *Shakeout) Stop(ctx context.Context) error {
	s.config.Log.Info("Stopping shakeout")

	if !s.running.Load() {
		s.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	s.running.Store(false)
	s.scheduler.Stop()

	s.config.Log.Info("shakeout stopped successfully")
	return nil
}

// Stopped returns true if the suite service is stopped.
func (s *Shakeout) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
func (s *Shakeout) WaitForShutdown(ctx context.Context) error {
	return s.scheduler.WaitForShutdown(ctx)
}

// runSuite performs one full pass: reliability session, coverage
// analysis, failure triage, unified report, metrics.
func (s *Shakeout) runSuite(ctx context.Context) (*SuiteResult, error) {
	ctx, span := otel.Tracer("shakeout").Start(ctx, "suite-run",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	start := time.Now()
	runID := uuid.New().String()[:8]
	s.config.Log.Info("Running suite", "runID", runID, "target", s.config.Target)

	session, err := s.runReliability(ctx, runID)
	if err != nil {
		s.config.Log.Error("Runtime error running suite", "error", err)
		return nil, NewRuntimeError(err)
	}

	analysis, err := s.runCoverage()
	if err != nil {
		s.config.Log.Error("Runtime error analyzing coverage", "error", err)
		return nil, NewRuntimeError(err)
	}

	failures, err := s.collectFailures(runID, session)
	if err != nil {
		return nil, NewRuntimeError(err)
	}

	result := &SuiteResult{
		Session:  session,
		Coverage: analysis,
		Failures: failures,
		Duration: time.Since(start),
		Status:   s.overallStatus(session, analysis),
	}

	data := reporting.NewSuiteReport(s.module, reporting.QualifierFor(s.config.Target),
		s.config.Target, session, analysis, failures)
	reportPath, err := s.sink.Write(data)
	if err != nil {
		s.config.Log.Error("Runtime error writing suite report", "error", err)
		return nil, NewRuntimeError(err)
	}
	result.ReportPath = reportPath

	s.reporter.ReportResults(s.module, result)
	s.result = result

	printSuiteTable(result)
	fmt.Println(result.String())
	s.config.Log.Info("Suite run completed", "runID", runID, "status", result.Status, "report", reportPath)
	return result, nil
}

// runReliability executes the repeated-run session.
func (s *Shakeout) runReliability(ctx context.Context, runID string) (*runner.SessionResult, error) {
	executor, err := runner.NewRunExecutor(runner.ExecutorConfig{
		Target:  s.config.Target,
		Binary:  s.config.RunnerBinary,
		Timeout: s.config.Timeout,
		Log:     s.config.Log,
	})
	if err != nil {
		return nil, err
	}

	aggregator, err := runner.NewAggregator(runner.AggregatorConfig{
		Executor:    executor,
		Runs:        s.config.Runs,
		Concurrency: s.config.Concurrency,
		Log:         s.config.Log,
	})
	if err != nil {
		return nil, err
	}

	session, err := aggregator.Run(ctx, s.config.Target)
	if err != nil {
		return nil, err
	}
	session.RunID = runID
	return session, nil
}

// runCoverage analyzes the configured LCOV tracefile. Returns nil when
// no tracefile exists and no threshold demands one.
func (s *Shakeout) runCoverage() (*coverage.Analysis, error) {
	if s.config.LCOVFile == "" {
		return nil, nil
	}
	if _, err := os.Stat(s.config.LCOVFile); err != nil {
		if s.config.MinCoverage > 0 {
			return nil, fmt.Errorf("coverage threshold configured but tracefile is missing: %w", err)
		}
		s.config.Log.Debug("No coverage tracefile found, skipping coverage analysis",
			"path", s.config.LCOVFile)
		return nil, nil
	}

	return coverage.Analyze(coverage.AnalyzerConfig{
		LCOVPath:       s.config.LCOVFile,
		BaselinePath:   s.config.BaselineFile,
		MinCoverage:    s.config.MinCoverage,
		FailOnDecrease: s.config.FailOnDecrease,
		SourceDir:      s.config.SourceDir,
		Log:            s.config.Log,
	})
}

// collectFailures turns the session's failure samples into triage
// artifacts: one log file per failing test under testrun-<runID>/failed/.
func (s *Shakeout) collectFailures(runID string, session *runner.SessionResult) ([]reporting.ClassifiedFailure, error) {
	var failing []types.ReliabilityMetric
	for _, m := range session.Metrics {
		if m.Failures > 0 && len(m.FailureSamples) > 0 {
			failing = append(failing, m)
		}
	}
	if len(failing) == 0 {
		return nil, nil
	}

	logger, err := logging.NewFileLogger(s.config.OutputDir, runID)
	if err != nil {
		return nil, err
	}

	var failures []reporting.ClassifiedFailure
	for _, m := range failing {
		record := *m.FailureSamples[0]
		logPath, err := logger.LogFailure(m.ID, record, "")
		if err != nil {
			_ = logger.Complete()
			return nil, err
		}
		failures = append(failures, reporting.ClassifiedFailure{
			TestName:  m.TestName,
			SuitePath: m.SuitePath,
			Record:    record,
			LogPath:   logPath,
		})
	}
	if err := logger.Complete(); err != nil {
		return nil, err
	}
	return failures, nil
}

// overallStatus folds the analyzer verdicts into one suite status.
func (s *Shakeout) overallStatus(session *runner.SessionResult, analysis *coverage.Analysis) types.TestStatus {
	status := session.Status
	if s.config.FailOnFlaky && session.FlakyCount > 0 {
		status = types.TestStatusFail
	}
	if analysis != nil && !analysis.Passed() {
		status = types.TestStatusFail
	}
	return status
}

// printSuiteTable prints the suite results to the console.
func printSuiteTable(result *SuiteResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Shakeout Suite Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Runs", "Passes", "Failures", "Reliability", "Status", "Detail",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Runs", Align: text.AlignRight},
		{Name: "Passes", Align: text.AlignRight},
		{Name: "Failures", Align: text.AlignRight},
		{Name: "Reliability", Align: text.AlignRight},
		{Name: "Detail", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	session := result.Session
	if session != nil {
		for _, m := range session.Metrics {
			detail := ""
			if len(m.FailureSamples) > 0 {
				detail = firstErrorLine(m.FailureSamples[0])
			}
			t.AppendRow(table.Row{
				"Test",
				m.ID.String(),
				m.TotalRuns,
				m.Passes,
				m.Failures,
				fmt.Sprintf("%.1f%%", m.Reliability),
				verdictString(m.Verdict),
				detail,
			})
		}
		t.AppendSeparator()
		t.AppendRow(table.Row{
			"Session",
			fmt.Sprintf("%d tests over %d runs", len(session.Metrics), session.CompletedRuns),
			session.CompletedRuns,
			session.ConsistentPassCount,
			session.ConsistentFailCount,
			fmt.Sprintf("%.1f%%", session.StabilityScore),
			getResultString(session.Status),
			fmt.Sprintf("%d flaky, %d skipped", session.FlakyCount, session.SkippedCount),
		})
	}

	if cov := result.Coverage; cov != nil {
		detail := ""
		if cov.Threshold > 0 {
			detail = fmt.Sprintf("threshold %.1f%%", cov.Threshold)
		}
		if cov.BaselineGiven {
			detail = strings.TrimSpace(detail + fmt.Sprintf(" delta %+.1f%%", cov.Delta))
		}
		covStatus := types.TestStatusPass
		if !cov.Passed() {
			covStatus = types.TestStatusFail
		}
		t.AppendRow(table.Row{
			"Coverage",
			"total line coverage",
			"-", "-", "-",
			fmt.Sprintf("%.1f%%", cov.TotalPercent),
			getResultString(covStatus),
			detail,
		})
	}

	t.Render()
}

// firstErrorLine extracts the leading line of a failure message for the
// table's detail column.
func firstErrorLine(record *types.FailureRecord) string {
	msg := record.Message
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	return msg
}

// getResultString returns a colored string representing the result
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusSkip:
		return "- skip"
	default:
		return "✗ fail"
	}
}

// verdictString renders a per-test verdict for the console table.
func verdictString(v types.Verdict) string {
	switch v {
	case types.VerdictConsistentPass:
		return "✓ stable"
	case types.VerdictFlaky:
		return "~ flaky"
	case types.VerdictSkipped:
		return "- skip"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
