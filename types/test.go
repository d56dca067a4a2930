package types

import (
	"fmt"
	"strings"
	"time"
)

// TestStatus represents the possible states of a test execution
type TestStatus string

const (
	TestStatusPass  TestStatus = "pass"
	TestStatusFail  TestStatus = "fail"
	TestStatusSkip  TestStatus = "skip"
	TestStatusError TestStatus = "error"
)

// TestID identifies a test stably across repeated runs.
// The runner protocol's numeric ids are only valid within a single run,
// so cross-run identity is the suite path plus the full (group-qualified)
// test name.
type TestID struct {
	SuitePath string
	TestName  string
}

// String returns the canonical "suite::test" form used as a map key and
// in report output.
func (id TestID) String() string {
	if id.SuitePath == "" {
		return id.TestName
	}
	return fmt.Sprintf("%s::%s", id.SuitePath, id.TestName)
}

// DisplayName returns a short human-readable name for the test.
func (id TestID) DisplayName() string {
	if id.TestName != "" {
		return id.TestName
	}
	// Suite-level entry with no test name; fall back to the suite file.
	parts := strings.Split(id.SuitePath, "/")
	return parts[len(parts)-1]
}

// TestObservation captures the outcome of one test in one run.
// Observations are append-only: the aggregator collects one per
// (test, run) pair and never mutates them afterwards.
type TestObservation struct {
	ID       TestID
	RunIndex int
	Status   TestStatus
	Duration time.Duration
	Failure  *FailureRecord // nil unless Status is fail or error
}

// Passed reports whether the observation counts as a pass.
func (o TestObservation) Passed() bool {
	return o.Status == TestStatusPass
}

// Failed reports whether the observation counts as a failure.
// Both assertion failures and runner-reported errors count.
func (o TestObservation) Failed() bool {
	return o.Status == TestStatusFail || o.Status == TestStatusError
}
