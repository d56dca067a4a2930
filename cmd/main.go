package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	shakeout "github.com/shakeout/shakeout"
	"github.com/shakeout/shakeout/exitcodes"
	"github.com/shakeout/shakeout/flags"
	"github.com/shakeout/shakeout/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := newApp()

	// Telemetry is opt-in via the standard OTLP env vars.
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
			otelconfig.WithServiceName(app.Name),
			otelconfig.WithServiceVersion(app.Version),
		)
		if err != nil {
			log.Warn("Failed to set up OpenTelemetry, continuing without it", "error", err)
		} else {
			defer otelShutdown()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		// The ExitErrHandler maps typed errors to exit codes; anything
		// reaching here is unexpected.
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "shakeout"
	app.Usage = "Test reliability, coverage, and failure triage analyzer"
	app.Description = "shakeout reruns test suites to flush out flaky tests, analyzes LCOV coverage against thresholds, and classifies failures for triage"
	app.Commands = []*cli.Command{
		{
			Name:      "reliability",
			Usage:     "Run the suite repeatedly and report per-test reliability",
			ArgsUsage: "<target>",
			Flags:     flags.ReliabilityFlags(),
			Action: func(ctx *cli.Context) error {
				return shakeout.RunReliability(ctx, setupLogger(ctx))
			},
		},
		{
			Name:      "coverage",
			Usage:     "Analyze an LCOV tracefile against thresholds and baselines",
			ArgsUsage: "[<target>]",
			Flags:     flags.CoverageFlags(),
			Action: func(ctx *cli.Context) error {
				return shakeout.RunCoverage(ctx, setupLogger(ctx))
			},
		},
		{
			Name:      "failures",
			Usage:     "Run once (or replay a saved stream) and triage every failure",
			ArgsUsage: "[<target>]",
			Flags:     flags.FailureFlags(),
			Action: func(ctx *cli.Context) error {
				return shakeout.RunFailures(ctx, setupLogger(ctx))
			},
		},
		{
			Name:      "suite",
			Usage:     "Run reliability, coverage, and triage together, optionally on an interval",
			ArgsUsage: "[<target>]",
			Flags:     flags.SuiteFlags(),
			Action:    runSuite,
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
			return
		}
		cli.HandleExitCoder(cli.Exit(err.Error(), exitCodeForError(err)))
	}
	return app
}

// exitCodeForError maps typed errors to process exit codes: 2 for
// runtime errors, 1 for test failures and anything unspecified.
func exitCodeForError(err error) int {
	if shakeout.IsRuntimeError(err) {
		return exitcodes.RuntimeErr
	}
	return exitcodes.TestFailure
}

// runSuite drives the long-running suite service.
func runSuite(cliCtx *cli.Context) error {
	logger := setupLogger(cliCtx)

	cfg, err := shakeout.NewConfig(cliCtx, logger, cliCtx.Args().First())
	if err != nil {
		return shakeout.NewRuntimeError(err)
	}

	appCtx, cancel := context.WithCancelCause(cliCtx.Context)
	defer cancel(nil)

	app, err := shakeout.New(cfg, Version, func(err error) { cancel(err) })
	if err != nil {
		return shakeout.NewRuntimeError(err)
	}

	if cfg.MetricsEnabled {
		svc := service.New(func() service.HealthStatus { return healthStatus(app) })
		svc.Start(cliCtx.Context)
		defer svc.Shutdown()
	}
	if err := app.Start(appCtx); err != nil {
		return err
	}
	if cfg.RunOnce {
		return nil
	}

	// Continuous mode: block until a signal or a shutdown callback.
	<-appCtx.Done()
	if err := app.Stop(context.Background()); err != nil {
		logger.Error("Error stopping suite service", "error", err)
	}
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	return app.WaitForShutdown(waitCtx)
}

// healthStatus summarizes the latest suite pass for /healthz.
func healthStatus(app *shakeout.Shakeout) service.HealthStatus {
	st := service.HealthStatus{Status: "ok"}
	res := app.Result()
	if res == nil {
		return st
	}
	st.LastStatus = string(res.Status)
	st.LastReport = res.ReportPath
	if res.Session != nil {
		st.LastRunID = res.Session.RunID
	}
	return st
}

// setupLogger builds the terminal logger at the configured level and
// installs it as the process default.
func setupLogger(ctx *cli.Context) log.Logger {
	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, parseLogLevel(ctx.String(flags.LogLevel.Name)), true))
	log.SetDefault(logger)
	return logger
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
