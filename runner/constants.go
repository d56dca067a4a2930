package runner

import "time"

// Execution constants
const (
	// DefaultRunTimeout bounds a single iteration of the external runner.
	DefaultRunTimeout = 10 * time.Minute

	// DefaultRunnerBinary is the external test runner invoked per run.
	DefaultRunnerBinary = "dart"

	// Runner command arguments
	TestCommand  = "test"
	ReporterFlag = "--reporter"
	JSONReporter = "json"

	// MaxReasonableConcurrency caps auto-determined worker counts to
	// avoid resource exhaustion from concurrent runner subprocesses.
	MaxReasonableConcurrency = 8
)
