package types

import (
	"fmt"
	"sort"
)

// LineRange is an inclusive range of uncovered source lines.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r LineRange) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// CoverageRecord holds line coverage for one source file, derived from a
// single parse of the coverage data. Immutable per analysis run.
type CoverageRecord struct {
	File           string      `json:"file"`
	TotalLines     int         `json:"total_lines"`
	CoveredLines   int         `json:"covered_lines"`
	UncoveredLines []int       `json:"uncovered_lines,omitempty"`
	UncoveredSpans []LineRange `json:"uncovered_spans,omitempty"`

	BranchesFound int `json:"branches_found,omitempty"`
	BranchesHit   int `json:"branches_hit,omitempty"`
}

// Percent returns the line coverage percentage for the file.
func (c CoverageRecord) Percent() float64 {
	if c.TotalLines == 0 {
		return 0
	}
	return float64(c.CoveredLines) / float64(c.TotalLines) * 100
}

// GroupRanges partitions a set of line numbers into sorted, contiguous,
// non-overlapping inclusive ranges. The input is not mutated.
func GroupRanges(lines []int) []LineRange {
	if len(lines) == 0 {
		return nil
	}
	sorted := make([]int, len(lines))
	copy(sorted, lines)
	sort.Ints(sorted)

	var ranges []LineRange
	cur := LineRange{Start: sorted[0], End: sorted[0]}
	for _, n := range sorted[1:] {
		if n == cur.End {
			continue // duplicate
		}
		if n == cur.End+1 {
			cur.End = n
			continue
		}
		ranges = append(ranges, cur)
		cur = LineRange{Start: n, End: n}
	}
	return append(ranges, cur)
}
