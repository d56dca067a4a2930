package flags

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/shakeout/shakeout/reporting"
	"github.com/shakeout/shakeout/runner"
)

const EnvVarPrefix = "SHAKEOUT"

// prefixEnvVars prepends the app prefix to an env var name.
func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + strings.ReplaceAll(strings.ToUpper(name), ".", "_")}
}

// Flags shared by every subcommand.
var (
	LogLevel = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level: trace, debug, info, warn, error",
	}
	OutputDir = &cli.StringFlag{
		Name:    "output",
		Value:   "reports",
		EnvVars: prefixEnvVars("OUTPUT"),
		Usage:   "Directory where reports and run logs are written",
	}
	KeepReports = &cli.IntFlag{
		Name:    "keep",
		Value:   reporting.DefaultKeepReports,
		EnvVars: prefixEnvVars("KEEP"),
		Usage:   "Number of reports of each type to retain",
	}
	RunnerBinary = &cli.StringFlag{
		Name:    "runner",
		Value:   runner.DefaultRunnerBinary,
		EnvVars: prefixEnvVars("RUNNER"),
		Usage:   "Test runner binary to invoke",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   runner.DefaultRunTimeout,
		EnvVars: prefixEnvVars("TIMEOUT"),
		Usage:   "Per-run timeout; hung runner subprocesses are terminated",
	}
)

// Flags for the reliability subcommand.
var (
	Runs = &cli.IntFlag{
		Name:    "runs",
		Value:   3,
		EnvVars: prefixEnvVars("RUNS"),
		Usage:   "Number of times to run the suite",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   0,
		EnvVars: prefixEnvVars("CONCURRENCY"),
		Usage:   "Number of parallel runner subprocesses (0 = serial)",
	}
	Serial = &cli.BoolFlag{
		Name:    "serial",
		Value:   false,
		EnvVars: prefixEnvVars("SERIAL"),
		Usage:   "Run iterations one at a time",
	}
	FailOnFlaky = &cli.BoolFlag{
		Name:    "fail-on-flaky",
		Value:   false,
		EnvVars: prefixEnvVars("FAIL_ON_FLAKY"),
		Usage:   "Exit with code 1 when any flaky test is found",
	}
)

// Flags for the coverage subcommand.
var (
	LCOVFile = &cli.StringFlag{
		Name:    "lcov",
		Value:   "coverage/lcov.info",
		EnvVars: prefixEnvVars("LCOV"),
		Usage:   "Path to the LCOV tracefile to analyze",
	}
	MinCoverage = &cli.Float64Flag{
		Name:    "min-coverage",
		Value:   0,
		EnvVars: prefixEnvVars("MIN_COVERAGE"),
		Usage:   "Fail when total coverage is below this percentage (0 disables)",
	}
	Baseline = &cli.StringFlag{
		Name:    "baseline",
		Value:   "",
		EnvVars: prefixEnvVars("BASELINE"),
		Usage:   "LCOV tracefile to diff the current coverage against",
	}
	FailOnDecrease = &cli.BoolFlag{
		Name:    "fail-on-decrease",
		Value:   false,
		EnvVars: prefixEnvVars("FAIL_ON_DECREASE"),
		Usage:   "Fail when coverage decreased against the baseline",
	}
	Fix = &cli.BoolFlag{
		Name:    "fix",
		Value:   false,
		EnvVars: prefixEnvVars("FIX"),
		Usage:   "Generate test stubs targeting the uncovered line ranges",
	}
	SourceDir = &cli.StringFlag{
		Name:    "source",
		Value:   "",
		EnvVars: prefixEnvVars("SOURCE"),
		Usage:   "Source directory to cross-reference for files with no coverage record",
	}
)

// Flags for the failures subcommand.
var (
	FromFile = &cli.StringFlag{
		Name:    "from-file",
		Value:   "",
		EnvVars: prefixEnvVars("FROM_FILE"),
		Usage:   "Replay a saved event-stream file instead of running the suite",
	}
	SaveRaw = &cli.BoolFlag{
		Name:    "save-raw",
		Value:   false,
		EnvVars: prefixEnvVars("SAVE_RAW"),
		Usage:   "Preserve the verbatim runner event stream in the run directory",
	}
)

// Flags for the suite subcommand.
var (
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: prefixEnvVars("CONFIG"),
		Usage:   "Path to a shakeout.yaml project configuration file",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between suite runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	MetricsEnabled = &cli.BoolFlag{
		Name:    "metrics.enabled",
		Value:   false,
		EnvVars: prefixEnvVars("METRICS_ENABLED"),
		Usage:   "Serve Prometheus metrics and healthz endpoints while running",
	}
)

var commonFlags = []cli.Flag{
	LogLevel,
	OutputDir,
	KeepReports,
	RunnerBinary,
	Timeout,
}

// ReliabilityFlags returns the flag set for the reliability subcommand.
func ReliabilityFlags() []cli.Flag {
	return appendCommon(Runs, Concurrency, Serial, FailOnFlaky)
}

// CoverageFlags returns the flag set for the coverage subcommand.
func CoverageFlags() []cli.Flag {
	return appendCommon(LCOVFile, MinCoverage, Baseline, FailOnDecrease, Fix, SourceDir)
}

// FailureFlags returns the flag set for the failures subcommand.
func FailureFlags() []cli.Flag {
	return appendCommon(FromFile, SaveRaw)
}

// SuiteFlags returns the flag set for the suite subcommand, which
// accepts every analyzer's flags plus its own.
func SuiteFlags() []cli.Flag {
	flags := appendCommon(Runs, Concurrency, Serial, FailOnFlaky,
		LCOVFile, MinCoverage, Baseline, FailOnDecrease, SourceDir,
		ConfigFile, RunInterval, MetricsEnabled)
	return flags
}

func appendCommon(flags ...cli.Flag) []cli.Flag {
	out := make([]cli.Flag, 0, len(commonFlags)+len(flags))
	out = append(out, commonFlags...)
	out = append(out, flags...)
	return out
}

// AllFlags returns every flag defined by any subcommand, deduplicated.
// Used by tests to enforce naming conventions.
func AllFlags() []cli.Flag {
	seen := make(map[string]struct{})
	var out []cli.Flag
	for _, set := range [][]cli.Flag{ReliabilityFlags(), CoverageFlags(), FailureFlags(), SuiteFlags()} {
		for _, f := range set {
			name := f.Names()[0]
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// CheckRequired validates flag combinations that cli cannot express.
func CheckRequired(ctx *cli.Context) error {
	if ctx.IsSet(Serial.Name) && ctx.IsSet(Concurrency.Name) && ctx.Int(Concurrency.Name) > 1 {
		return fmt.Errorf("--%s and --%s > 1 are mutually exclusive", Serial.Name, Concurrency.Name)
	}
	if ctx.IsSet(Runs.Name) && ctx.Int(Runs.Name) < 1 {
		return fmt.Errorf("--%s must be at least 1", Runs.Name)
	}
	if ctx.IsSet(RunInterval.Name) && ctx.Duration(RunInterval.Name) < 0 {
		return fmt.Errorf("--%s cannot be negative", RunInterval.Name)
	}
	return nil
}
