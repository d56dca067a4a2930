package shakeout

import (
	"github.com/shakeout/shakeout/metrics"
)

// MetricsReporter is responsible for reporting metrics from suite results.
type MetricsReporter interface {
	ReportResults(module string, result *SuiteResult)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults reports the suite results to metrics systems.
func (r *DefaultMetricsReporter) ReportResults(module string, result *SuiteResult) {
	if session := result.Session; session != nil {
		metrics.RecordSession(
			module,
			session.RunID,
			session.AttemptedRuns,
			session.FailedRuns,
			session.FlakyCount,
			session.StabilityScore,
			session.Duration,
		)
		for _, metric := range session.Metrics {
			metrics.RecordTestReliability(module, session.RunID, metric)
		}
	}
	if result.Coverage != nil {
		metrics.RecordCoverage(module, result.Coverage.TotalPercent)
	}
}
