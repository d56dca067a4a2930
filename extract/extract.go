// Package extract runs the test suite once (or replays a saved event
// stream) and turns every failure into a classified, triage-ready
// artifact: per-failure log files under testrun-<runID>/failed/ plus a
// grouped failure payload for the report renderer.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/shakeout/shakeout/logging"
	"github.com/shakeout/shakeout/reporting"
	"github.com/shakeout/shakeout/runner"
	"github.com/shakeout/shakeout/types"
)

// Config configures a failure-extraction run.
type Config struct {
	Target  string
	Binary  string        // runner binary, defaults inside the executor
	Timeout time.Duration // per-run timeout

	// FromFile replays a saved event stream instead of executing the
	// runner.
	FromFile string

	// SaveRaw tees the live event stream verbatim into the run
	// directory. Ignored when replaying from a file.
	SaveRaw bool

	OutputDir string // base directory for testrun-<runID>/
	RunID     string // optional, generated when empty
	Log       log.Logger
}

// Result is what one extraction run produced.
type Result struct {
	RunID       string
	RunDir      string
	TotalTests  int
	Failures    []reporting.ClassifiedFailure
	SummaryPath string
	RawPath     string // empty unless SaveRaw captured a stream
}

// Run performs one extraction: execute (or replay), classify, and write
// the per-failure logs and run summary.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Target == "" && cfg.FromFile == "" {
		return nil, fmt.Errorf("either a target or an event-stream file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.New().String()[:8]
	}

	logger, err := logging.NewFileLogger(cfg.OutputDir, runID)
	if err != nil {
		return nil, err
	}

	outcome, rawPath, err := collectOutcome(ctx, cfg, logger)
	if err != nil {
		// Close writers even when the run never produced events.
		_ = logger.Complete()
		return nil, err
	}

	result := &Result{
		RunID:      runID,
		RunDir:     logger.RunDir(),
		TotalTests: len(outcome.Observations),
		RawPath:    rawPath,
	}

	for _, obs := range outcome.SortedObservations() {
		if !obs.Failed() || obs.Failure == nil {
			continue
		}
		logPath, err := logger.LogFailure(obs.ID, *obs.Failure, "")
		if err != nil {
			_ = logger.Complete()
			return nil, err
		}
		result.Failures = append(result.Failures, reporting.ClassifiedFailure{
			TestName:  obs.ID.TestName,
			SuitePath: obs.ID.SuitePath,
			Record:    *obs.Failure,
			LogPath:   logPath,
		})
	}

	summary := summarize(result)
	if result.SummaryPath, err = logger.WriteSummary(summary); err != nil {
		_ = logger.Complete()
		return nil, err
	}
	if err := logger.Complete(); err != nil {
		return nil, err
	}

	cfg.Log.Info("Extraction complete", "runID", runID,
		"tests", result.TotalTests, "failures", len(result.Failures))
	return result, nil
}

// collectOutcome either replays a saved stream or executes the runner
// live, optionally teeing the raw stream to disk.
func collectOutcome(ctx context.Context, cfg Config, logger *logging.FileLogger) (*runner.RunOutcome, string, error) {
	if cfg.FromFile != "" {
		f, err := os.Open(cfg.FromFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open event-stream file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		outcome, err := runner.NewOutputParser(cfg.Log).Parse(f, 0)
		if err != nil {
			return nil, "", fmt.Errorf("failed to parse event-stream file %s: %w", cfg.FromFile, err)
		}
		return outcome, "", nil
	}

	execCfg := runner.ExecutorConfig{
		Target:  cfg.Target,
		Binary:  cfg.Binary,
		Timeout: cfg.Timeout,
		Log:     cfg.Log,
	}
	var rawPath string
	if cfg.SaveRaw {
		sink, err := logging.NewRawEventSink(logger)
		if err != nil {
			return nil, "", err
		}
		execCfg.Tee = sink
		rawPath = sink.Path()
	}

	executor, err := runner.NewRunExecutor(execCfg)
	if err != nil {
		return nil, "", err
	}
	outcome, err := executor.ExecuteRun(ctx, 0)
	if err != nil {
		return nil, "", err
	}
	return outcome, rawPath, nil
}

// summarize renders the human-oriented summary.log content.
func summarize(result *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %d tests, %d failures\n", result.RunID, result.TotalTests, len(result.Failures))
	section := reporting.GroupFailures(result.Failures)
	for _, group := range section.Groups {
		fmt.Fprintf(&b, "\n%s (%d)\n", group.Category, len(group.Failures))
		for _, f := range group.Failures {
			name := f.TestName
			if f.SuitePath != "" {
				name = f.SuitePath + "::" + f.TestName
			}
			loc := f.Record.Location
			if loc == "" {
				loc = types.UnknownLocation
			}
			fmt.Fprintf(&b, "  %s (%s)\n", name, loc)
		}
	}
	return b.String()
}
