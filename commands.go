package shakeout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/shakeout/shakeout/coverage"
	"github.com/shakeout/shakeout/extract"
	"github.com/shakeout/shakeout/reporting"
	"github.com/shakeout/shakeout/runner"
	"github.com/shakeout/shakeout/types"
)

// RunReliability implements the reliability subcommand: run the suite
// N times, compute per-test reliability, and write the report.
func RunReliability(cliCtx *cli.Context, logger log.Logger) error {
	target := cliCtx.Args().First()
	if target == "" {
		return NewRuntimeError(errors.New("a test target is required (e.g. 'shakeout reliability test/')"))
	}
	cfg, err := NewConfig(cliCtx, logger, target)
	if err != nil {
		return NewRuntimeError(err)
	}

	executor, err := runner.NewRunExecutor(runner.ExecutorConfig{
		Target:  cfg.Target,
		Binary:  cfg.RunnerBinary,
		Timeout: cfg.Timeout,
		Log:     logger,
	})
	if err != nil {
		return NewRuntimeError(err)
	}
	aggregator, err := runner.NewAggregator(runner.AggregatorConfig{
		Executor:    executor,
		Runs:        cfg.Runs,
		Concurrency: cfg.Concurrency,
		Log:         logger,
	})
	if err != nil {
		return NewRuntimeError(err)
	}

	session, err := aggregator.Run(cliCtx.Context, cfg.Target)
	if err != nil {
		return NewRuntimeError(err)
	}

	module := reporting.ModuleName(".")
	sink := reporting.NewSink(cfg.OutputDir, cfg.KeepReports, logger)
	data := reporting.NewReliabilityReport(module, reporting.QualifierFor(cfg.Target), session)
	reportPath, err := sink.Write(data)
	if err != nil {
		return NewRuntimeError(err)
	}

	printSuiteTable(&SuiteResult{Session: session, Duration: session.Duration, Status: session.Status})
	fmt.Println(session.String())
	logger.Info("Reliability report written", "path", reportPath)

	if session.Status == types.TestStatusFail || (cfg.FailOnFlaky && session.FlakyCount > 0) {
		return NewTestFailureError(session.String())
	}
	return nil
}

// RunCoverage implements the coverage subcommand: parse LCOV, evaluate
// thresholds and baselines, optionally generate test stubs.
func RunCoverage(cliCtx *cli.Context, logger log.Logger) error {
	target := cliCtx.Args().First()
	cfg, err := NewConfig(cliCtx, logger, target)
	if err != nil {
		return NewRuntimeError(err)
	}

	if _, err := os.Stat(cfg.LCOVFile); err != nil {
		return NewRuntimeError(fmt.Errorf("cannot read LCOV tracefile %s: %w", cfg.LCOVFile, err))
	}

	analysis, err := coverage.Analyze(coverage.AnalyzerConfig{
		LCOVPath:       cfg.LCOVFile,
		BaselinePath:   cfg.BaselineFile,
		MinCoverage:    cfg.MinCoverage,
		FailOnDecrease: cfg.FailOnDecrease,
		SourceDir:      cfg.SourceDir,
		Log:            logger,
	})
	if err != nil {
		return NewRuntimeError(err)
	}

	module := reporting.ModuleName(".")
	sink := reporting.NewSink(cfg.OutputDir, cfg.KeepReports, logger)
	data := reporting.NewCoverageReport(module, reporting.QualifierFor(cfg.Target), cfg.Target, analysis)
	reportPath, err := sink.Write(data)
	if err != nil {
		return NewRuntimeError(err)
	}

	if cfg.Fix {
		// Generated stubs live apart from the report category dirs.
		gen := coverage.NewStubGenerator(filepath.Join(cfg.OutputDir, "stubs"), logger)
		stubs, err := gen.Generate(analysis)
		if err != nil {
			return NewRuntimeError(err)
		}
		logger.Info("Generated test stubs", "count", len(stubs))
	}

	fmt.Println(analysis.String())
	logger.Info("Coverage report written", "path", reportPath)

	if !analysis.Passed() {
		return NewTestFailureError(analysis.String())
	}
	return nil
}

// RunFailures implements the failures subcommand: run once (or replay a
// saved stream), classify every failure, and write the triage report.
func RunFailures(cliCtx *cli.Context, logger log.Logger) error {
	target := cliCtx.Args().First()
	cfg, err := NewConfig(cliCtx, logger, target)
	if err != nil {
		return NewRuntimeError(err)
	}

	result, err := extract.Run(cliCtx.Context, extract.Config{
		Target:    cfg.Target,
		Binary:    cfg.RunnerBinary,
		Timeout:   cfg.Timeout,
		FromFile:  cfg.FromFile,
		SaveRaw:   cfg.SaveRaw,
		OutputDir: cfg.OutputDir,
		Log:       logger,
	})
	if err != nil {
		return NewRuntimeError(err)
	}

	module := reporting.ModuleName(".")
	sink := reporting.NewSink(cfg.OutputDir, cfg.KeepReports, logger)
	data := reporting.NewTriageReport(module, reporting.QualifierFor(cfg.Target), result.RunID, cfg.Target, result.Failures)
	reportPath, err := sink.Write(data)
	if err != nil {
		return NewRuntimeError(err)
	}

	logger.Info("Triage report written", "path", reportPath,
		"tests", result.TotalTests, "failures", len(result.Failures))
	fmt.Printf("%d tests, %d failures (run %s)\n", result.TotalTests, len(result.Failures), result.RunID)

	if len(result.Failures) > 0 {
		return NewTestFailureError(fmt.Sprintf("%d of %d tests failed", len(result.Failures), result.TotalTests))
	}
	return nil
}
