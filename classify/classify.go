// Package classify maps raw test failure output to the closed failure
// taxonomy. Classification is total: any input, including empty strings,
// resolves to exactly one category, with the raw message preserved.
package classify

import (
	"strings"

	"github.com/shakeout/shakeout/types"
)

// rule pairs a category's detection predicate with its field extractor.
// Rules are evaluated top to bottom and the first match wins, so the
// order of the table below is a fixed contract, not an accident:
//
//  1. assertion: "Expected:"/"Actual:" shapes beat everything, so an
//     assertion comparing against null stays an assertion
//  2. timeout
//  3. null reference
//  4. range / index
//  5. type
//  6. network: checked before i/o, so "connection refused reading
//     socket file" resolves as network
//  7. i/o
//  8. unknown: unconditional fallback
type rule struct {
	category types.FailureCategory
	match    func(msg string) bool
	extract  func(msg string, rec *types.FailureRecord)
}

var rules = []rule{
	{types.CategoryAssertion, matchAssertion, extractAssertion},
	{types.CategoryTimeout, matchTimeout, extractTimeout},
	{types.CategoryNullReference, matchNullReference, extractNullReference},
	{types.CategoryRange, matchRange, extractRange},
	{types.CategoryType, matchType, extractType},
	{types.CategoryNetwork, matchNetwork, extractNetwork},
	{types.CategoryIO, matchIO, extractIO},
}

// Classify resolves an error message and stack trace to a FailureRecord.
// It never fails; malformed or empty input yields the unknown category
// with the original message carried through.
func Classify(message, stackTrace string) types.FailureRecord {
	rec := types.FailureRecord{
		Category: types.CategoryUnknown,
		Message:  message,
		Location: extractLocation(stackTrace),
	}

	for _, r := range rules {
		if r.match(message) {
			rec.Category = r.category
			if r.extract != nil {
				r.extract(message, &rec)
			}
			break
		}
	}

	rec.Suggestion = rec.Category.Suggestion()
	return rec
}

func matchAssertion(msg string) bool {
	if strings.Contains(msg, "Expected:") || strings.Contains(msg, "Actual:") {
		return true
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "assertion failed") || strings.Contains(lower, "expect(") {
		return true
	}
	// "expected ... but got/was ..." prose assertions
	return strings.Contains(lower, "expected") &&
		(strings.Contains(lower, "but got") || strings.Contains(lower, "but was") || strings.Contains(lower, "actual"))
}

func matchTimeout(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded")
}

func matchNullReference(msg string) bool {
	lower := strings.ToLower(msg)
	if strings.Contains(msg, "NoSuchMethodError") {
		return true
	}
	return strings.Contains(lower, "called on null") ||
		strings.Contains(lower, "null pointer") ||
		strings.Contains(lower, "nil pointer dereference") ||
		strings.Contains(lower, "null check operator") ||
		strings.Contains(lower, "null reference") ||
		strings.Contains(lower, "nullpointerexception")
}

func matchRange(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(msg, "RangeError") ||
		strings.Contains(lower, "index out of range") ||
		strings.Contains(lower, "out of bounds") ||
		strings.Contains(lower, "index out of bounds")
}

func matchType(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(msg, "TypeError") ||
		strings.Contains(lower, "is not a subtype of") ||
		strings.Contains(lower, "type mismatch") ||
		strings.Contains(lower, "cannot cast") ||
		strings.Contains(lower, "invalid cast")
}

func matchNetwork(msg string) bool {
	lower := strings.ToLower(msg)
	if strings.Contains(msg, "SocketException") || strings.Contains(msg, "HttpException") {
		return true
	}
	if strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "name resolution") ||
		strings.Contains(lower, "status code") {
		return true
	}
	return httpRequestPattern.MatchString(msg)
}

func matchIO(msg string) bool {
	lower := strings.ToLower(msg)
	if strings.Contains(msg, "FileSystemException") || strings.Contains(msg, "PathNotFoundException") {
		return true
	}
	return strings.Contains(lower, "no such file") ||
		strings.Contains(lower, "file not found") ||
		strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "cannot open file") ||
		strings.Contains(lower, "disk full") ||
		strings.Contains(lower, "broken pipe")
}
