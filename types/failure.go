package types

import "fmt"

// FailureCategory is the closed set of failure kinds the classifier can
// produce. The set is exhaustive: every failed test resolves to exactly
// one category, with CategoryUnknown as the total fallback.
type FailureCategory int

const (
	CategoryAssertion FailureCategory = iota
	CategoryTimeout
	CategoryNullReference
	CategoryRange
	CategoryType
	CategoryNetwork
	CategoryIO
	CategoryUnknown
)

// AllCategories lists every category in classifier precedence order.
var AllCategories = []FailureCategory{
	CategoryAssertion,
	CategoryTimeout,
	CategoryNullReference,
	CategoryRange,
	CategoryType,
	CategoryNetwork,
	CategoryIO,
	CategoryUnknown,
}

// Name returns the static human-readable category name.
// The switch is exhaustive over the closed set; an unrecognized tag is a
// programming error and panics rather than degrading silently.
func (c FailureCategory) Name() string {
	switch c {
	case CategoryAssertion:
		return "Assertion Failure"
	case CategoryTimeout:
		return "Timeout"
	case CategoryNullReference:
		return "Null Reference"
	case CategoryRange:
		return "Range Error"
	case CategoryType:
		return "Type Error"
	case CategoryNetwork:
		return "Network Error"
	case CategoryIO:
		return "I/O Error"
	case CategoryUnknown:
		return "Unknown Failure"
	default:
		panic(fmt.Sprintf("unhandled failure category %d", int(c)))
	}
}

// Suggestion returns the generic fix suggestion for the category, or ""
// when there is nothing useful to say.
func (c FailureCategory) Suggestion() string {
	switch c {
	case CategoryAssertion:
		return "Compare the expected and actual values; the assertion encodes the intended behavior."
	case CategoryTimeout:
		return "Increase the test timeout or remove the dependency on wall-clock timing."
	case CategoryNullReference:
		return "Guard the dereference or ensure the value is initialized before use."
	case CategoryRange:
		return "Check collection bounds before indexing."
	case CategoryType:
		return "Verify the runtime type matches the declared or expected type."
	case CategoryNetwork:
		return "Stub the network dependency or make the test tolerant of transient connectivity."
	case CategoryIO:
		return "Verify the path exists and the test has permission to access it."
	case CategoryUnknown:
		return ""
	default:
		panic(fmt.Sprintf("unhandled failure category %d", int(c)))
	}
}

// String implements fmt.Stringer with a stable lowercase token suitable
// for JSON payloads and metrics labels.
func (c FailureCategory) String() string {
	switch c {
	case CategoryAssertion:
		return "assertion"
	case CategoryTimeout:
		return "timeout"
	case CategoryNullReference:
		return "null_reference"
	case CategoryRange:
		return "range"
	case CategoryType:
		return "type"
	case CategoryNetwork:
		return "network"
	case CategoryIO:
		return "io"
	case CategoryUnknown:
		return "unknown"
	default:
		panic(fmt.Sprintf("unhandled failure category %d", int(c)))
	}
}

// UnknownLocation is the sentinel used when no file:line token could be
// extracted from a stack trace.
const UnknownLocation = "unknown"

// FailureRecord is one classified failure. It is immutable once built;
// the category-specific fields are populated only when the category's
// extraction patterns matched, and stay zero otherwise.
type FailureRecord struct {
	Category FailureCategory `json:"category"`
	Message  string          `json:"message"`

	// Assertion
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`

	// Timeout
	DurationValue string `json:"duration_value,omitempty"`
	DurationUnit  string `json:"duration_unit,omitempty"`

	// Null reference
	Member string `json:"member,omitempty"`

	// Range
	Index  string `json:"index,omitempty"`
	Length string `json:"length,omitempty"`

	// Type
	ActualType   string `json:"actual_type,omitempty"`
	ExpectedType string `json:"expected_type,omitempty"`

	// Network
	Method     string `json:"method,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	StatusCode string `json:"status_code,omitempty"`

	// I/O
	Path string `json:"path,omitempty"`

	Location   string `json:"location"`
	Suggestion string `json:"suggestion,omitempty"`
}
