package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/shakeout/shakeout/types"
)

// SessionResult is the aggregate of a multi-run reliability session.
type SessionResult struct {
	RunID          string
	Target         string
	AttemptedRuns  int
	CompletedRuns  int
	FailedRuns     int // runs excluded because the runner never started or produced no events
	Duration       time.Duration
	Metrics        []types.ReliabilityMetric
	StabilityScore float64
	Status         types.TestStatus

	FlakyCount          int
	ConsistentFailCount int
	ConsistentPassCount int
	SkippedCount        int
}

// FlakyTests returns the metrics flagged flaky, in report order.
func (r *SessionResult) FlakyTests() []types.ReliabilityMetric {
	var flaky []types.ReliabilityMetric
	for _, m := range r.Metrics {
		if m.IsFlaky() {
			flaky = append(flaky, m)
		}
	}
	return flaky
}

// String summarizes the session for console and error output.
func (r *SessionResult) String() string {
	return fmt.Sprintf("%d/%d runs completed, %d tests, stability %.1f%%, %d flaky, %d consistently failing",
		r.CompletedRuns, r.AttemptedRuns, len(r.Metrics), r.StabilityScore, r.FlakyCount, r.ConsistentFailCount)
}

// Aggregator runs the same target N times and folds the per-run
// observations into per-test reliability metrics.
type Aggregator struct {
	executor    RunExecutor
	runs        int
	concurrency int
	log         log.Logger
}

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	Executor    RunExecutor
	Runs        int
	Concurrency int // <=1 runs iterations sequentially
	Log         log.Logger
}

// NewAggregator creates a multi-run aggregator.
func NewAggregator(cfg AggregatorConfig) (*Aggregator, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	if cfg.Runs < 1 {
		return nil, fmt.Errorf("run count must be at least 1, got %d", cfg.Runs)
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	if cfg.Concurrency > MaxReasonableConcurrency {
		cfg.Log.Warn("Capping concurrency", "requested", cfg.Concurrency, "cap", MaxReasonableConcurrency)
		cfg.Concurrency = MaxReasonableConcurrency
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Aggregator{
		executor:    cfg.Executor,
		runs:        cfg.Runs,
		concurrency: cfg.Concurrency,
		log:         cfg.Log,
	}, nil
}

// Run executes all iterations and aggregates the results. Aggregation
// does not begin until every run has resolved; each run's outcome map is
// privately owned until merged here. If every run fails to launch, the
// session is a tool-level error rather than a reliability report.
func (a *Aggregator) Run(ctx context.Context, target string) (*SessionResult, error) {
	start := time.Now()
	result := &SessionResult{
		RunID:         uuid.New().String(),
		Target:        target,
		AttemptedRuns: a.runs,
	}

	a.log.Info("Starting reliability session",
		"target", target, "runs", a.runs, "concurrency", a.concurrency, "run_id", result.RunID)

	var outcomes []*RunOutcome
	var runErrs []error
	if a.concurrency > 1 {
		outcomes, runErrs = a.runParallel(ctx)
	} else {
		outcomes, runErrs = a.runSerial(ctx)
	}

	result.CompletedRuns = len(outcomes)
	result.FailedRuns = len(runErrs)
	for _, err := range runErrs {
		a.log.Error("Run excluded from statistics", "error", err)
	}

	if result.CompletedRuns == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(runErrs) == 0 {
			return nil, fmt.Errorf("no runs were executed")
		}
		return nil, fmt.Errorf("all %d runs failed to produce results: %v", a.runs, runErrs[0])
	}

	a.merge(result, outcomes)
	result.Duration = time.Since(start)

	a.log.Info("Reliability session complete",
		"run_id", result.RunID, "completed", result.CompletedRuns,
		"flaky", result.FlakyCount, "stability", fmt.Sprintf("%.1f%%", result.StabilityScore))
	return result, nil
}

// runSerial executes the iterations one after another.
func (a *Aggregator) runSerial(ctx context.Context) ([]*RunOutcome, []error) {
	var outcomes []*RunOutcome
	var errs []error
	for i := 0; i < a.runs; i++ {
		if ctx.Err() != nil {
			break
		}
		a.log.Info("Running iteration", "iteration", i+1, "total", a.runs)
		outcome, err := a.executor.ExecuteRun(ctx, i)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, errs
}

// merge folds all completed runs into per-test metrics and the
// suite-level stability score.
func (a *Aggregator) merge(result *SessionResult, outcomes []*RunOutcome) {
	byTest := make(map[string][]types.TestObservation)
	ids := make(map[string]types.TestID)
	for _, outcome := range outcomes {
		for key, obs := range outcome.Observations {
			byTest[key] = append(byTest[key], obs)
			ids[key] = obs.ID
		}
	}

	keys := make([]string, 0, len(byTest))
	for k := range byTest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var stabilityTotal float64
	var observed int
	for _, key := range keys {
		m := types.ComputeReliability(ids[key], byTest[key])
		result.Metrics = append(result.Metrics, m)

		switch m.Verdict {
		case types.VerdictFlaky:
			result.FlakyCount++
		case types.VerdictConsistentFail:
			result.ConsistentFailCount++
		case types.VerdictConsistentPass:
			result.ConsistentPassCount++
		case types.VerdictSkipped:
			result.SkippedCount++
		}
		if m.Verdict != types.VerdictSkipped {
			stabilityTotal += m.Reliability
			observed++
		}
	}

	if observed > 0 {
		result.StabilityScore = stabilityTotal / float64(observed)
	}

	// Flakiness alone does not fail the session; treating flaky tests
	// as failures is the caller's policy (--fail-on-flaky).
	switch {
	case result.ConsistentFailCount > 0:
		result.Status = types.TestStatusFail
	case observed == 0 && result.SkippedCount > 0:
		result.Status = types.TestStatusSkip
	default:
		result.Status = types.TestStatusPass
	}
}
