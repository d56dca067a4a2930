package classify

import (
	"regexp"
	"strings"

	"github.com/shakeout/shakeout/types"
)

// Field extraction is best effort: a pattern that does not match leaves
// its fields zero rather than failing the classification.
var (
	expectedPattern = regexp.MustCompile(`Expected:\s*(.+)`)
	actualPattern   = regexp.MustCompile(`Actual:\s*(.+)`)

	durationPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(milliseconds|millisecond|ms|seconds|second|secs|sec|s|minutes|minute|mins|min|m)\b`)

	memberPattern = regexp.MustCompile(`(?:getter|method|setter) '([^']+)' was called on null`)

	indexPattern  = regexp.MustCompile(`(?i)index[^\d-]{0,16}(-?\d+)`)
	lengthPattern = regexp.MustCompile(`(?i)(?:length[:\s]+|inclusive range\s+)(\d+(?:\.\.\d+)?)`)

	subtypePattern = regexp.MustCompile(`type '([^']+)' is not a subtype of type '([^']+)'`)

	httpRequestPattern = regexp.MustCompile(`\b(GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS)\s+(\S+)`)
	statusCodePattern  = regexp.MustCompile(`(?i)status(?:\s*code)?[:\s]+(\d{3})`)

	quotedPathPattern = regexp.MustCompile(`['"]([^'"]*[/\\][^'"]*)['"]`)
	barePathPattern   = regexp.MustCompile(`(?:file|path)[:\s]+(\S+)`)

	// A file.ext:line token, e.g. "parser.dart:42" or "lib/a/b.go:7".
	locationPattern = regexp.MustCompile(`([\w./\\-]+\.\w+):(\d+)`)
)

func extractAssertion(msg string, rec *types.FailureRecord) {
	if m := expectedPattern.FindStringSubmatch(msg); m != nil {
		rec.Expected = strings.TrimSpace(m[1])
	}
	if m := actualPattern.FindStringSubmatch(msg); m != nil {
		rec.Actual = strings.TrimSpace(m[1])
	}
}

func extractTimeout(msg string, rec *types.FailureRecord) {
	if m := durationPattern.FindStringSubmatch(msg); m != nil {
		rec.DurationValue = m[1]
		rec.DurationUnit = normalizeUnit(m[2])
	}
}

func normalizeUnit(unit string) string {
	switch strings.ToLower(unit) {
	case "ms", "millisecond", "milliseconds":
		return "ms"
	case "s", "sec", "secs", "second", "seconds":
		return "s"
	case "m", "min", "mins", "minute", "minutes":
		return "m"
	default:
		return unit
	}
}

func extractNullReference(msg string, rec *types.FailureRecord) {
	if m := memberPattern.FindStringSubmatch(msg); m != nil {
		rec.Member = m[1]
	}
}

func extractRange(msg string, rec *types.FailureRecord) {
	if m := indexPattern.FindStringSubmatch(msg); m != nil {
		rec.Index = m[1]
	}
	if m := lengthPattern.FindStringSubmatch(msg); m != nil {
		rec.Length = m[1]
	}
}

func extractType(msg string, rec *types.FailureRecord) {
	if m := subtypePattern.FindStringSubmatch(msg); m != nil {
		rec.ActualType = m[1]
		rec.ExpectedType = m[2]
	}
}

func extractNetwork(msg string, rec *types.FailureRecord) {
	if m := httpRequestPattern.FindStringSubmatch(msg); m != nil {
		rec.Method = m[1]
		rec.Endpoint = m[2]
	}
	if m := statusCodePattern.FindStringSubmatch(msg); m != nil {
		rec.StatusCode = m[1]
	}
}

func extractIO(msg string, rec *types.FailureRecord) {
	if m := quotedPathPattern.FindStringSubmatch(msg); m != nil {
		rec.Path = m[1]
		return
	}
	if m := barePathPattern.FindStringSubmatch(msg); m != nil {
		rec.Path = strings.TrimRight(m[1], ".,;:)")
	}
}

// extractLocation pulls the first file.ext:line token from a stack trace,
// scanning line by line so the topmost frame wins. Returns the sentinel
// when nothing matches.
func extractLocation(stackTrace string) string {
	if stackTrace == "" {
		return types.UnknownLocation
	}
	for _, line := range strings.Split(stackTrace, "\n") {
		if m := locationPattern.FindStringSubmatch(line); m != nil {
			return shortenPath(m[1]) + ":" + m[2]
		}
	}
	return types.UnknownLocation
}

// shortenPath trims absolute and file:// paths down to a package-relative
// form, anchoring on conventional source roots when one is present.
func shortenPath(path string) string {
	path = strings.TrimPrefix(path, "file://")
	for _, root := range []string{"test/", "lib/", "src/", "bin/", "internal/", "cmd/"} {
		if idx := strings.Index(path, "/"+root); idx != -1 {
			return path[idx+1:]
		}
		if strings.HasPrefix(path, root) {
			return path
		}
	}
	return strings.TrimLeft(path, "/")
}
