package types

import (
	"fmt"
	"time"
)

// Verdict classifies a test's behavior across repeated runs.
type Verdict string

const (
	VerdictConsistentPass Verdict = "consistent-pass"
	VerdictConsistentFail Verdict = "consistent-fail"
	VerdictFlaky          Verdict = "flaky"
	VerdictSkipped        Verdict = "skipped"
)

// ReliabilityMetric aggregates the observations for one test across a
// multi-run session. Computed once after all runs complete; read-only
// thereafter.
type ReliabilityMetric struct {
	ID          TestID        `json:"-"`
	TestName    string        `json:"test_name"`
	SuitePath   string        `json:"suite_path"`
	TotalRuns   int           `json:"total_runs"`
	Passes      int           `json:"passes"`
	Failures    int           `json:"failures"`
	Skips       int           `json:"skips"`
	Reliability float64       `json:"reliability"`
	Verdict     Verdict       `json:"verdict"`
	MinDuration time.Duration `json:"min_duration"`
	AvgDuration time.Duration `json:"avg_duration"`
	MaxDuration time.Duration `json:"max_duration"`

	// Failures observed across runs, in run order. Error messages may
	// vary between runs without affecting the verdict.
	FailureSamples []*FailureRecord `json:"failure_samples,omitempty"`
}

// ComputeReliability derives a ReliabilityMetric from the full set of
// observations for one test. Observations must all share the same TestID.
// Tests observed in fewer runs than the session attempted (added/removed
// between runs, or excluded failed-to-start iterations) get a TotalRuns
// reflecting only the runs where they appeared.
func ComputeReliability(id TestID, observations []TestObservation) ReliabilityMetric {
	m := ReliabilityMetric{
		ID:        id,
		TestName:  id.TestName,
		SuitePath: id.SuitePath,
		TotalRuns: len(observations),
	}

	var totalDur time.Duration
	var timed int
	for _, o := range observations {
		switch {
		case o.Passed():
			m.Passes++
		case o.Failed():
			m.Failures++
			if o.Failure != nil {
				m.FailureSamples = append(m.FailureSamples, o.Failure)
			}
		case o.Status == TestStatusSkip:
			m.Skips++
		}
		if o.Duration > 0 {
			if m.MinDuration == 0 || o.Duration < m.MinDuration {
				m.MinDuration = o.Duration
			}
			if o.Duration > m.MaxDuration {
				m.MaxDuration = o.Duration
			}
			totalDur += o.Duration
			timed++
		}
	}
	if timed > 0 {
		m.AvgDuration = totalDur / time.Duration(timed)
	}

	// Reliability is pass/observed over the non-skip observations.
	observed := m.Passes + m.Failures
	if observed > 0 {
		m.Reliability = float64(m.Passes) / float64(observed) * 100
	}

	m.Verdict = verdictFor(m.Passes, m.Failures, m.Skips)
	return m
}

// verdictFor pins down the flakiness contract: a test is flaky iff its
// pass count is strictly between zero and the number of non-skip
// observations. Error-message variation between failing runs does not
// make a consistently failing test flaky.
func verdictFor(passes, failures, skips int) Verdict {
	switch {
	case passes > 0 && failures > 0:
		return VerdictFlaky
	case failures > 0:
		return VerdictConsistentFail
	case passes > 0:
		return VerdictConsistentPass
	case skips > 0:
		return VerdictSkipped
	default:
		return VerdictSkipped
	}
}

// IsFlaky reports whether the metric's verdict is flaky.
func (m ReliabilityMetric) IsFlaky() bool {
	return m.Verdict == VerdictFlaky
}

// Validate checks the metric's internal invariants. Used by tests and by
// the report builder as a cheap consistency gate before rendering.
func (m ReliabilityMetric) Validate() error {
	if m.Reliability < 0 || m.Reliability > 100 {
		return fmt.Errorf("reliability %.2f out of range for %s", m.Reliability, m.ID)
	}
	if m.Passes+m.Failures+m.Skips != m.TotalRuns {
		return fmt.Errorf("observation counts do not sum to total runs for %s", m.ID)
	}
	if m.IsFlaky() && (m.Passes == 0 || m.Failures == 0) {
		return fmt.Errorf("flaky verdict requires mixed outcomes for %s", m.ID)
	}
	return nil
}
