package runner

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/shakeout/shakeout/classify"
	"github.com/shakeout/shakeout/types"
)

// RunOutcome holds everything parsed from one run of the event stream.
// The observation map is privately owned by the run that produced it
// until the aggregator merges it after the join.
type RunOutcome struct {
	RunIndex     int
	Observations map[string]types.TestObservation // keyed by TestID.String()
	ValidEvents  int
	SkippedLines int
	Duration     time.Duration

	// Incomplete lists tests that started but never reported done,
	// which happens when a hung subprocess is terminated.
	Incomplete []types.TestID
}

// OutputParser turns a runner event stream into per-test observations.
type OutputParser interface {
	Parse(output io.Reader, runIndex int) (*RunOutcome, error)
}

// outputParser implements OutputParser
type outputParser struct {
	log log.Logger
}

// NewOutputParser creates a new event stream parser.
func NewOutputParser(logger log.Logger) OutputParser {
	return &outputParser{log: logger}
}

// pendingTest tracks an in-flight test between its start and done events.
type pendingTest struct {
	id        types.TestID
	startTime int64
	errMsg    string
	stack     string
}

// Parse consumes the line-delimited JSON event stream of a single run.
// Malformed lines are skipped with a warning; if no valid event at all
// was parsed the whole run is a tool error, not an all-tests-failed run.
func (p *outputParser) Parse(output io.Reader, runIndex int) (*RunOutcome, error) {
	outcome := &RunOutcome{
		RunIndex:     runIndex,
		Observations: make(map[string]types.TestObservation),
	}

	suites := make(map[int64]string)        // suite id -> path
	pending := make(map[int64]*pendingTest) // test id -> in-flight state

	scanner := bufio.NewScanner(output)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil || event.Type == "" {
			outcome.SkippedLines++
			p.log.Warn("Skipping malformed event line", "run", runIndex, "line", truncate(string(line), 120))
			continue
		}
		outcome.ValidEvents++

		switch event.Type {
		case EventSuite:
			if event.Suite != nil {
				suites[event.Suite.ID] = event.Suite.Path
			}
		case EventTestStart:
			if event.Test == nil {
				continue
			}
			id := types.TestID{SuitePath: suites[event.Test.SuiteID], TestName: event.Test.Name}
			pending[event.Test.ID] = &pendingTest{id: id, startTime: event.Time}
		case EventError:
			pt, ok := pending[event.TestID]
			if !ok {
				continue
			}
			// First error wins; later output tends to be cascade noise.
			if pt.errMsg == "" {
				pt.errMsg = stripansi.Strip(event.Error)
				pt.stack = stripansi.Strip(event.StackTrace)
			}
		case EventTestDone:
			pt, ok := pending[event.TestID]
			if !ok {
				continue
			}
			delete(pending, event.TestID)
			// Hidden entries are the reporter's synthetic load/setup
			// tests. They complete like any other test but must not
			// become observations or linger as incomplete.
			if event.Hidden {
				continue
			}
			obs := p.buildObservation(pt, event, runIndex)
			outcome.Observations[obs.ID.String()] = obs
		case EventDone:
			outcome.Duration = time.Duration(event.Time) * time.Millisecond
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading event stream: %w", err)
	}

	if outcome.ValidEvents == 0 {
		return nil, fmt.Errorf("no valid events parsed from run %d (%d lines skipped)", runIndex, outcome.SkippedLines)
	}

	for _, pt := range pending {
		outcome.Incomplete = append(outcome.Incomplete, pt.id)
	}
	sort.Slice(outcome.Incomplete, func(i, j int) bool {
		return outcome.Incomplete[i].String() < outcome.Incomplete[j].String()
	})
	return outcome, nil
}

// buildObservation folds a testDone event and any recorded error into a
// final observation, classifying the failure when there is one.
func (p *outputParser) buildObservation(pt *pendingTest, done Event, runIndex int) types.TestObservation {
	obs := types.TestObservation{
		ID:       pt.id,
		RunIndex: runIndex,
	}
	if done.Time > pt.startTime {
		obs.Duration = time.Duration(done.Time-pt.startTime) * time.Millisecond
	}

	switch {
	case done.Skipped:
		obs.Status = types.TestStatusSkip
	case done.Result == ResultSuccess:
		obs.Status = types.TestStatusPass
	case done.Result == ResultError:
		obs.Status = types.TestStatusError
	default:
		obs.Status = types.TestStatusFail
	}

	if obs.Failed() {
		rec := classify.Classify(pt.errMsg, pt.stack)
		obs.Failure = &rec
	}
	return obs
}

// SortedObservations returns the run's observations ordered by test id,
// for deterministic iteration in reports and tests.
func (o *RunOutcome) SortedObservations() []types.TestObservation {
	keys := make([]string, 0, len(o.Observations))
	for k := range o.Observations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	result := make([]types.TestObservation, 0, len(keys))
	for _, k := range keys {
		result = append(result, o.Observations[k])
	}
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
