// Package exitcodes defines the standard exit codes used by shakeout.
package exitcodes

// Exit code constants used by shakeout
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when all analyzers pass
// * TestFailure (1): Used when tests fail, flaky tests are found with
//   --fail-on-flaky, or a coverage threshold is violated
// * RuntimeErr (2): Used for runtime errors such as launch failures,
//   unparseable event streams, or bad configuration
const (
	Success     = 0 // All analyzers pass
	TestFailure = 1 // Test failures or threshold violations
	RuntimeErr  = 2 // Runtime errors or timeouts
)
