package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakeout/shakeout/types"
)

// stubExecutor returns scripted outcomes per run index.
type stubExecutor struct {
	mu       sync.Mutex
	outcomes map[int]*RunOutcome
	errs     map[int]error
	calls    int
}

func (s *stubExecutor) ExecuteRun(ctx context.Context, runIndex int) (*RunOutcome, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if err, ok := s.errs[runIndex]; ok {
		return nil, err
	}
	if o, ok := s.outcomes[runIndex]; ok {
		return o, nil
	}
	return &RunOutcome{RunIndex: runIndex, Observations: map[string]types.TestObservation{}, ValidEvents: 1}, nil
}

func scriptedOutcome(runIndex int, statuses map[string]types.TestStatus) *RunOutcome {
	o := &RunOutcome{
		RunIndex:     runIndex,
		Observations: make(map[string]types.TestObservation),
		ValidEvents:  len(statuses),
		Duration:     time.Second,
	}
	for name, status := range statuses {
		id := types.TestID{SuitePath: "test/app_test.dart", TestName: name}
		obs := types.TestObservation{ID: id, RunIndex: runIndex, Status: status, Duration: 10 * time.Millisecond}
		if obs.Failed() {
			obs.Failure = &types.FailureRecord{Category: types.CategoryAssertion, Message: "Expected: 5\nActual: 3", Location: types.UnknownLocation}
		}
		o.Observations[id.String()] = obs
	}
	return o
}

func TestAggregator_ConsistentResults(t *testing.T) {
	// One test passing every run, one failing every run: both consistent,
	// zero flaky.
	stub := &stubExecutor{outcomes: map[int]*RunOutcome{}}
	for i := 0; i < 3; i++ {
		stub.outcomes[i] = scriptedOutcome(i, map[string]types.TestStatus{
			"test A": types.TestStatusPass,
			"test B": types.TestStatusFail,
		})
	}

	agg, err := NewAggregator(AggregatorConfig{Executor: stub, Runs: 3, Log: log.Root()})
	require.NoError(t, err)

	result, err := agg.Run(context.Background(), "test/app_test.dart")
	require.NoError(t, err)

	require.Len(t, result.Metrics, 2)
	a, b := result.Metrics[0], result.Metrics[1]
	assert.Equal(t, "test A", a.TestName)
	assert.Equal(t, 100.0, a.Reliability)
	assert.Equal(t, types.VerdictConsistentPass, a.Verdict)
	assert.Equal(t, "test B", b.TestName)
	assert.Equal(t, 0.0, b.Reliability)
	assert.Equal(t, types.VerdictConsistentFail, b.Verdict)

	assert.Zero(t, result.FlakyCount)
	assert.Equal(t, 1, result.ConsistentFailCount)
	assert.Equal(t, types.TestStatusFail, result.Status)
	assert.Equal(t, 50.0, result.StabilityScore)
}

func TestAggregator_FlakyDetection(t *testing.T) {
	stub := &stubExecutor{outcomes: map[int]*RunOutcome{}}
	for i := 0; i < 4; i++ {
		status := types.TestStatusPass
		if i%2 == 1 {
			status = types.TestStatusFail
		}
		stub.outcomes[i] = scriptedOutcome(i, map[string]types.TestStatus{"wobbly": status})
	}

	agg, err := NewAggregator(AggregatorConfig{Executor: stub, Runs: 4, Log: log.Root()})
	require.NoError(t, err)

	result, err := agg.Run(context.Background(), "test/app_test.dart")
	require.NoError(t, err)

	require.Len(t, result.Metrics, 1)
	m := result.Metrics[0]
	assert.True(t, m.IsFlaky())
	assert.Equal(t, 50.0, m.Reliability)
	assert.Equal(t, 1, result.FlakyCount)
	require.Len(t, result.FlakyTests(), 1)

	// Flaky-only sessions stay green; failing on flakiness is the
	// caller's opt-in policy.
	assert.Zero(t, result.ConsistentFailCount)
	assert.Equal(t, types.TestStatusPass, result.Status)
}

func TestAggregator_LaunchFailuresExcluded(t *testing.T) {
	// Run 1 fails to launch; its absence must not count against test A.
	stub := &stubExecutor{
		outcomes: map[int]*RunOutcome{
			0: scriptedOutcome(0, map[string]types.TestStatus{"test A": types.TestStatusPass}),
			2: scriptedOutcome(2, map[string]types.TestStatus{"test A": types.TestStatusPass}),
		},
		errs: map[int]error{
			1: &LaunchError{RunIndex: 1, Err: fmt.Errorf("binary not found")},
		},
	}

	agg, err := NewAggregator(AggregatorConfig{Executor: stub, Runs: 3, Log: log.Root()})
	require.NoError(t, err)

	result, err := agg.Run(context.Background(), "test/app_test.dart")
	require.NoError(t, err)

	assert.Equal(t, 2, result.CompletedRuns)
	assert.Equal(t, 1, result.FailedRuns)
	require.Len(t, result.Metrics, 1)
	assert.Equal(t, 2, result.Metrics[0].TotalRuns)
	assert.Equal(t, 100.0, result.Metrics[0].Reliability)
	assert.Equal(t, types.VerdictConsistentPass, result.Metrics[0].Verdict)
}

func TestAggregator_AllRunsFailToLaunch(t *testing.T) {
	stub := &stubExecutor{
		errs: map[int]error{
			0: &LaunchError{RunIndex: 0, Err: fmt.Errorf("no such binary")},
			1: &LaunchError{RunIndex: 1, Err: fmt.Errorf("no such binary")},
		},
		outcomes: map[int]*RunOutcome{},
	}

	agg, err := NewAggregator(AggregatorConfig{Executor: stub, Runs: 2, Log: log.Root()})
	require.NoError(t, err)

	_, err = agg.Run(context.Background(), "test/app_test.dart")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 runs failed")
}

func TestAggregator_SkippedEveryRun(t *testing.T) {
	stub := &stubExecutor{outcomes: map[int]*RunOutcome{}}
	for i := 0; i < 2; i++ {
		stub.outcomes[i] = scriptedOutcome(i, map[string]types.TestStatus{"ci only": types.TestStatusSkip})
	}

	agg, err := NewAggregator(AggregatorConfig{Executor: stub, Runs: 2, Log: log.Root()})
	require.NoError(t, err)

	result, err := agg.Run(context.Background(), "test/app_test.dart")
	require.NoError(t, err)

	require.Len(t, result.Metrics, 1)
	assert.Equal(t, types.VerdictSkipped, result.Metrics[0].Verdict)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, types.TestStatusSkip, result.Status)
}

func TestAggregator_PartialObservation(t *testing.T) {
	// A test that appears only in later runs reports totals for the runs
	// where it was observed.
	stub := &stubExecutor{outcomes: map[int]*RunOutcome{
		0: scriptedOutcome(0, map[string]types.TestStatus{"old": types.TestStatusPass}),
		1: scriptedOutcome(1, map[string]types.TestStatus{"old": types.TestStatusPass, "new": types.TestStatusPass}),
		2: scriptedOutcome(2, map[string]types.TestStatus{"old": types.TestStatusPass, "new": types.TestStatusPass}),
	}}

	agg, err := NewAggregator(AggregatorConfig{Executor: stub, Runs: 3, Log: log.Root()})
	require.NoError(t, err)

	result, err := agg.Run(context.Background(), "test/app_test.dart")
	require.NoError(t, err)

	require.Len(t, result.Metrics, 2)
	byName := map[string]types.ReliabilityMetric{}
	for _, m := range result.Metrics {
		byName[m.TestName] = m
	}
	assert.Equal(t, 2, byName["new"].TotalRuns)
	assert.Equal(t, 3, byName["old"].TotalRuns)
}

func TestAggregator_ParallelMatchesSerial(t *testing.T) {
	build := func() *stubExecutor {
		stub := &stubExecutor{outcomes: map[int]*RunOutcome{}}
		for i := 0; i < 6; i++ {
			status := types.TestStatusPass
			if i >= 4 {
				status = types.TestStatusFail
			}
			stub.outcomes[i] = scriptedOutcome(i, map[string]types.TestStatus{"wobbly": status})
		}
		return stub
	}

	serial, err := NewAggregator(AggregatorConfig{Executor: build(), Runs: 6, Concurrency: 1, Log: log.Root()})
	require.NoError(t, err)
	parallel, err := NewAggregator(AggregatorConfig{Executor: build(), Runs: 6, Concurrency: 3, Log: log.Root()})
	require.NoError(t, err)

	serialResult, err := serial.Run(context.Background(), "t")
	require.NoError(t, err)
	parallelResult, err := parallel.Run(context.Background(), "t")
	require.NoError(t, err)

	require.Len(t, parallelResult.Metrics, 1)
	assert.Equal(t, serialResult.Metrics[0].Reliability, parallelResult.Metrics[0].Reliability)
	assert.Equal(t, serialResult.Metrics[0].Verdict, parallelResult.Metrics[0].Verdict)
	assert.Equal(t, serialResult.FlakyCount, parallelResult.FlakyCount)
}

func TestNewAggregator_Validation(t *testing.T) {
	_, err := NewAggregator(AggregatorConfig{Runs: 1})
	assert.Error(t, err, "nil executor")

	_, err = NewAggregator(AggregatorConfig{Executor: &stubExecutor{}, Runs: 0})
	assert.Error(t, err, "zero runs")
}

func TestAggregator_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubExecutor{outcomes: map[int]*RunOutcome{}}
	agg, err := NewAggregator(AggregatorConfig{Executor: stub, Runs: 3, Log: log.Root()})
	require.NoError(t, err)

	_, err = agg.Run(ctx, "t")
	require.Error(t, err)
}
