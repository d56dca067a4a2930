package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/shakeout/shakeout/types"
)

// LaunchError marks a run where the external runner never produced a
// parseable event stream: the binary was missing, refused to start, or
// crashed before reporting. These runs are excluded from per-test
// statistics rather than being treated as all-tests-failed.
type LaunchError struct {
	RunIndex int
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("run %d failed to launch test runner: %v", e.RunIndex, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// IsLaunchError checks if the error is or wraps a LaunchError.
func IsLaunchError(err error) bool {
	var launchErr *LaunchError
	return err != nil && errors.As(err, &launchErr)
}

// RunExecutor runs the external test runner once and parses its stream.
type RunExecutor interface {
	// ExecuteRun performs one run against the target and returns the
	// parsed outcome. A per-run timeout forcibly terminates a hung
	// subprocess.
	ExecuteRun(ctx context.Context, runIndex int) (*RunOutcome, error)
}

// executor implements RunExecutor by spawning the runner subprocess.
type executor struct {
	target     string
	binary     string
	extraArgs  []string
	timeout    time.Duration
	parser     OutputParser
	log        log.Logger
	tee        io.Writer
	cmdBuilder func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// ExecutorConfig configures a RunExecutor.
type ExecutorConfig struct {
	Target    string
	Binary    string
	ExtraArgs []string
	Timeout   time.Duration
	Log       log.Logger

	// Tee, when set, receives a verbatim copy of the runner's stdout
	// stream as it is captured.
	Tee io.Writer

	// CmdBuilder is overridable in tests to avoid spawning processes.
	CmdBuilder func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewRunExecutor creates an executor for the given target.
func NewRunExecutor(cfg ExecutorConfig) (RunExecutor, error) {
	if cfg.Target == "" {
		return nil, fmt.Errorf("target cannot be empty")
	}
	if cfg.Binary == "" {
		cfg.Binary = DefaultRunnerBinary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRunTimeout
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = exec.CommandContext
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	return &executor{
		target:     cfg.Target,
		binary:     cfg.Binary,
		extraArgs:  cfg.ExtraArgs,
		timeout:    cfg.Timeout,
		parser:     NewOutputParser(cfg.Log),
		log:        cfg.Log,
		tee:        cfg.Tee,
		cmdBuilder: cfg.CmdBuilder,
	}, nil
}

// ExecuteRun spawns one runner subprocess and parses its output.
func (e *executor) ExecuteRun(ctx context.Context, runIndex int) (*RunOutcome, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append([]string{TestCommand, ReporterFlag, JSONReporter}, e.extraArgs...)
	args = append(args, e.target)

	cmd := e.cmdBuilder(runCtx, e.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if e.tee != nil {
		cmd.Stdout = io.MultiWriter(&stdout, e.tee)
	}
	cmd.Stderr = &stderr

	e.log.Debug("Executing test run", "run", runIndex, "binary", e.binary, "args", args)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{RunIndex: runIndex, Err: err}
	}

	runErr := cmd.Wait()
	elapsed := time.Since(start)

	timedOut := runCtx.Err() == context.DeadlineExceeded
	if timedOut {
		e.log.Warn("Run exceeded timeout, subprocess terminated", "run", runIndex, "timeout", e.timeout)
	}

	outcome, parseErr := e.parser.Parse(bytes.NewReader(stdout.Bytes()), runIndex)
	if parseErr != nil {
		// A non-zero exit is expected when tests fail; it only becomes a
		// launch failure when no parseable events came out at all.
		if timedOut {
			return nil, &LaunchError{RunIndex: runIndex, Err: fmt.Errorf("timed out after %v with no parseable output", e.timeout)}
		}
		if runErr != nil {
			return nil, &LaunchError{RunIndex: runIndex, Err: fmt.Errorf("%v: %s", runErr, truncate(stderr.String(), 200))}
		}
		return nil, &LaunchError{RunIndex: runIndex, Err: parseErr}
	}

	if outcome.Duration == 0 {
		outcome.Duration = elapsed
	}
	if timedOut {
		markTimedOut(outcome, e.timeout)
	}

	e.log.Debug("Run completed", "run", runIndex, "tests", len(outcome.Observations),
		"duration", elapsed, "skippedLines", outcome.SkippedLines)
	return outcome, nil
}

// markTimedOut records every incomplete test of a terminated run as a
// timeout-class failure instead of dropping it silently.
func markTimedOut(outcome *RunOutcome, timeout time.Duration) {
	for _, id := range outcome.Incomplete {
		outcome.Observations[id.String()] = types.TestObservation{
			ID:       id,
			RunIndex: outcome.RunIndex,
			Status:   types.TestStatusFail,
			Duration: timeout,
			Failure: &types.FailureRecord{
				Category:   types.CategoryTimeout,
				Message:    fmt.Sprintf("test did not complete before the %v run timeout", timeout),
				Location:   types.UnknownLocation,
				Suggestion: types.CategoryTimeout.Suggestion(),
			},
		}
	}
	outcome.Incomplete = nil
}
