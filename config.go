package shakeout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/shakeout/shakeout/flags"
)

// ProjectConfig mirrors the optional shakeout.yaml file committed next
// to a project's test suite. Command-line flags override anything set
// here.
type ProjectConfig struct {
	Target      string  `yaml:"target"`
	Runner      string  `yaml:"runner"`
	Runs        int     `yaml:"runs"`
	LCOVFile    string  `yaml:"lcov_file"`
	MinCoverage float64 `yaml:"min_coverage"`
	SourceDir   string  `yaml:"source_dir"`
	OutputDir   string  `yaml:"output_dir"`
	KeepReports int     `yaml:"keep_reports"`
	FailOnFlaky bool    `yaml:"fail_on_flaky"`
}

// LoadProjectConfig reads and parses a shakeout.yaml file.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project config %s: %w", path, err)
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse project config %s: %w", path, err)
	}
	return &cfg, nil
}

// Config holds the application configuration
type Config struct {
	Target       string
	RunnerBinary string
	Runs         int
	Concurrency  int // <=1 runs iterations one at a time
	Serial       bool
	Timeout      time.Duration // Per-run timeout for the runner subprocess
	FailOnFlaky  bool

	LCOVFile       string
	MinCoverage    float64
	BaselineFile   string
	FailOnDecrease bool
	Fix            bool
	SourceDir      string

	FromFile string // Saved event stream to replay instead of running
	SaveRaw  bool   // Preserve the verbatim event stream

	OutputDir   string // Directory for reports and run logs
	KeepReports int

	RunInterval    time.Duration // Interval between suite runs
	RunOnce        bool          // Indicates if the service should exit after one suite run
	MetricsEnabled bool

	Log log.Logger
}

// NewConfig creates a new Config from cli context. The target argument
// comes from the subcommand's positional argument and may be empty for
// project-wide analysis.
func NewConfig(ctx *cli.Context, logger log.Logger, target string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	// Start from the project file when one is configured, then let
	// flags override.
	var project ProjectConfig
	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		loaded, err := LoadProjectConfig(path)
		if err != nil {
			return nil, err
		}
		project = *loaded
	}

	if target == "" {
		target = project.Target
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)

	cfg := &Config{
		Target:       target,
		RunnerBinary: stringOr(ctx, flags.RunnerBinary, project.Runner),
		Runs:         intOr(ctx, flags.Runs, project.Runs),
		Concurrency:  ctx.Int(flags.Concurrency.Name),
		Serial:       ctx.Bool(flags.Serial.Name),
		Timeout:      ctx.Duration(flags.Timeout.Name),
		FailOnFlaky:  ctx.Bool(flags.FailOnFlaky.Name) || project.FailOnFlaky,

		LCOVFile:       stringOr(ctx, flags.LCOVFile, project.LCOVFile),
		MinCoverage:    floatOr(ctx, flags.MinCoverage, project.MinCoverage),
		BaselineFile:   ctx.String(flags.Baseline.Name),
		FailOnDecrease: ctx.Bool(flags.FailOnDecrease.Name),
		Fix:            ctx.Bool(flags.Fix.Name),
		SourceDir:      stringOr(ctx, flags.SourceDir, project.SourceDir),

		FromFile: ctx.String(flags.FromFile.Name),
		SaveRaw:  ctx.Bool(flags.SaveRaw.Name),

		OutputDir:   stringOr(ctx, flags.OutputDir, project.OutputDir),
		KeepReports: intOr(ctx, flags.KeepReports, project.KeepReports),

		RunInterval:    runInterval,
		RunOnce:        runInterval == 0,
		MetricsEnabled: ctx.Bool(flags.MetricsEnabled.Name),

		Log: logger,
	}

	if cfg.Serial {
		cfg.Concurrency = 1
	}

	// Resolve the output directory so run logs and reports stay
	// findable when the tool is invoked from a subdirectory.
	absOutput, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for output directory '%s': %w", cfg.OutputDir, err)
	}
	cfg.OutputDir = absOutput

	return cfg, nil
}

// stringOr prefers an explicitly set flag, then the project file, then
// the flag's default.
func stringOr(ctx *cli.Context, flag *cli.StringFlag, fromProject string) string {
	if ctx.IsSet(flag.Name) || fromProject == "" {
		return ctx.String(flag.Name)
	}
	return fromProject
}

func intOr(ctx *cli.Context, flag *cli.IntFlag, fromProject int) int {
	if ctx.IsSet(flag.Name) || fromProject == 0 {
		return ctx.Int(flag.Name)
	}
	return fromProject
}

func floatOr(ctx *cli.Context, flag *cli.Float64Flag, fromProject float64) float64 {
	if ctx.IsSet(flag.Name) || fromProject == 0 {
		return ctx.Float64(flag.Name)
	}
	return fromProject
}
