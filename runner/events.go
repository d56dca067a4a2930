package runner

// Event kinds the parser acts on. The stream is line-delimited JSON
// with a "type" discriminator; ids are only valid within a single run.
// It also carries "group" records, which are structural only (test
// names arrive already group-qualified) and fall through the parse
// loop as counted-but-ignored events.
const (
	EventSuite     = "suite"
	EventTestStart = "testStart"
	EventTestDone  = "testDone"
	EventError     = "error"
	EventDone      = "done"
)

// testDone result values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Event is one record of the runner's event stream. Only the fields for
// the discriminated kind are populated; the rest stay zero.
type Event struct {
	Type string `json:"type"`
	Time int64  `json:"time"` // milliseconds since run start

	// type == "suite"
	Suite *SuiteInfo `json:"suite,omitempty"`

	// type == "testStart"
	Test *TestInfo `json:"test,omitempty"`

	// type == "testDone" / "error"
	TestID int64 `json:"testID,omitempty"`

	// type == "testDone"
	Result  string `json:"result,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Hidden  bool   `json:"hidden,omitempty"`

	// type == "error"
	Error      string `json:"error,omitempty"`
	StackTrace string `json:"stackTrace,omitempty"`

	// type == "done"
	Success *bool `json:"success,omitempty"`
}

// SuiteInfo describes a test suite (one test file).
type SuiteInfo struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
}

// TestInfo describes a test at its start event. The name is already
// group-qualified by the reporter.
type TestInfo struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	SuiteID int64  `json:"suiteID"`
}
