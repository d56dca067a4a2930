package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shakeout/shakeout/types"
)

const (
	MetricsNamespace = "shakeout"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of test runner invocations",
	}, []string{
		"module",
		"run_id",
	})

	runFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_failures_total",
		Help:      "Count of runs where the runner never produced parseable output",
	}, []string{
		"module",
		"run_id",
	})

	flakyTests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "flaky_tests",
		Help:      "Number of flaky tests found in the latest session",
	}, []string{
		"module",
		"run_id",
	})

	stabilityScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "stability_score",
		Help:      "Mean reliability over non-skipped tests",
	}, []string{
		"module",
		"run_id",
	})

	testReliability = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "test_reliability",
		Help:      "Per-test pass percentage over the session's runs",
	}, []string{
		"module",
		"run_id",
		"test",
		"verdict",
	})

	coveragePercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "coverage_percent",
		Help:      "Total line coverage percentage",
	}, []string{
		"module",
	})

	sessionDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "session_duration_seconds",
		Help:      "Wall-clock duration of the latest session",
	}, []string{
		"module",
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordSession records the aggregate outcome of one repeated-run
// session.
func RecordSession(module, runID string, attempted, failed, flaky int, stability float64, duration time.Duration) {
	if Debug {
		log.Debug("metric set",
			"m", "session",
			"module", module,
			"run_id", runID,
			"attempted", attempted,
			"failed", failed,
			"flaky", flaky,
			"stability", stability)
	}
	runsTotal.WithLabelValues(module, runID).Add(float64(attempted))
	runFailuresTotal.WithLabelValues(module, runID).Add(float64(failed))
	flakyTests.WithLabelValues(module, runID).Set(float64(flaky))
	stabilityScore.WithLabelValues(module, runID).Set(stability)
	sessionDuration.WithLabelValues(module, runID).Set(duration.Seconds())
}

// RecordTestReliability records one test's pass percentage and verdict.
func RecordTestReliability(module, runID string, metric types.ReliabilityMetric) {
	if Debug {
		log.Debug("metric set",
			"m", "test_reliability",
			"module", module,
			"run_id", runID,
			"test", metric.ID.String(),
			"verdict", metric.Verdict)
	}
	testReliability.WithLabelValues(module, runID, metric.ID.String(), string(metric.Verdict)).Set(metric.Reliability)
}

// RecordCoverage records the latest total coverage percentage.
func RecordCoverage(module string, percent float64) {
	if Debug {
		log.Debug("metric set",
			"m", "coverage_percent",
			"module", module,
			"percent", percent)
	}
	coveragePercent.WithLabelValues(module).Set(percent)
}
