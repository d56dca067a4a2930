// Package coverage parses LCOV tracefiles and evaluates line coverage
// against thresholds and baselines.
package coverage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/shakeout/shakeout/types"
)

// LCOV directives understood by the parser. Unknown directives are
// ignored so newer tracefile extensions do not break parsing.
const (
	directiveSourceFile    = "SF"
	directiveLineData      = "DA"
	directiveLinesFound    = "LF"
	directiveLinesHit      = "LH"
	directiveBranchData    = "BRDA"
	directiveBranchesFound = "BRF"
	directiveBranchesHit   = "BRH"
	endOfRecord            = "end_of_record"
)

// Parser reads LCOV tracefiles into CoverageRecords.
type Parser struct {
	log log.Logger
}

// NewParser creates an LCOV parser.
func NewParser(logger log.Logger) *Parser {
	if logger == nil {
		logger = log.Root()
	}
	return &Parser{log: logger}
}

// ParseFile parses the tracefile at path.
func (p *Parser) ParseFile(path string) ([]types.CoverageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening coverage data %s: %w", path, err)
	}
	defer f.Close()
	return p.Parse(f)
}

// Parse reads records from an LCOV stream. Per-file blocks run from an
// SF: directive to end_of_record; DA lines carry "line,hitcount". LF/LH
// are recomputed from the DA set when absent or inconsistent.
func (p *Parser) Parse(r io.Reader) ([]types.CoverageRecord, error) {
	var records []types.CoverageRecord

	var cur *types.CoverageRecord
	hits := make(map[int]int)
	var declaredLF, declaredLH int
	lineNo := 0

	flush := func() {
		if cur == nil {
			return
		}
		var uncovered []int
		covered := 0
		for line, count := range hits {
			if count > 0 {
				covered++
			} else {
				uncovered = append(uncovered, line)
			}
		}
		sort.Ints(uncovered)

		cur.TotalLines = len(hits)
		cur.CoveredLines = covered
		if len(hits) == 0 && declaredLF > 0 {
			// Block carried only summary counters.
			cur.TotalLines = declaredLF
			cur.CoveredLines = declaredLH
		} else if declaredLF != 0 && declaredLF != len(hits) {
			p.log.Warn("LF disagrees with DA line count, trusting DA",
				"file", cur.File, "lf", declaredLF, "da", len(hits))
		}
		cur.UncoveredLines = uncovered
		cur.UncoveredSpans = types.GroupRanges(uncovered)

		records = append(records, *cur)
		cur = nil
		hits = make(map[int]int)
		declaredLF, declaredLH = 0, 0
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == endOfRecord {
			flush()
			continue
		}

		directive, value, found := strings.Cut(line, ":")
		if !found {
			p.log.Warn("Skipping malformed coverage line", "line", lineNo, "content", line)
			continue
		}

		switch directive {
		case directiveSourceFile:
			flush() // tolerate a missing end_of_record
			cur = &types.CoverageRecord{File: value}
		case directiveLineData:
			if cur == nil {
				continue
			}
			lineStr, hitStr, ok := strings.Cut(value, ",")
			if !ok {
				p.log.Warn("Skipping malformed DA entry", "line", lineNo, "content", line)
				continue
			}
			ln, err1 := strconv.Atoi(lineStr)
			count, err2 := strconv.Atoi(strings.TrimSpace(hitStr))
			if err1 != nil || err2 != nil || ln < 1 {
				p.log.Warn("Skipping malformed DA entry", "line", lineNo, "content", line)
				continue
			}
			hits[ln] += count
		case directiveLinesFound:
			declaredLF, _ = strconv.Atoi(value)
		case directiveLinesHit:
			declaredLH, _ = strconv.Atoi(value)
		case directiveBranchesFound:
			if cur != nil {
				cur.BranchesFound, _ = strconv.Atoi(value)
			}
		case directiveBranchesHit:
			if cur != nil {
				cur.BranchesHit, _ = strconv.Atoi(value)
			}
		case directiveBranchData:
			// Branch detail is summarized via BRF/BRH only.
		default:
			// Unknown directive (TN, FN, FNDA, ...); ignore.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading coverage data: %w", err)
	}
	flush()

	if len(records) == 0 {
		return nil, fmt.Errorf("no coverage records found")
	}
	return records, nil
}

// TotalPercent computes the aggregate line coverage over all records.
func TotalPercent(records []types.CoverageRecord) float64 {
	var total, covered int
	for _, r := range records {
		total += r.TotalLines
		covered += r.CoveredLines
	}
	if total == 0 {
		return 0
	}
	return float64(covered) / float64(total) * 100
}
