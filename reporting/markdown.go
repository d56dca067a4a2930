package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shakeout/shakeout/types"
)

// RenderMarkdown produces the markdown document for a report payload.
// Section order is fixed (summary, details, suggestions, embedded JSON)
// and the output is byte-identical for identical payloads, so only the
// GeneratedAt field varies between otherwise equal reports.
func RenderMarkdown(data ReportData) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s %s report\n\n", data.Tool, data.Type)
	writeSummary(&b, data)
	writeDetails(&b, data)
	writeSuggestions(&b, data)

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report payload: %w", err)
	}
	b.WriteString("## Data\n\n```json\n")
	b.Write(payload)
	b.WriteString("\n```\n")

	return []byte(b.String()), nil
}

func writeSummary(b *strings.Builder, data ReportData) {
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(b, "- Module: `%s`\n", data.Module)
	if data.Target != "" {
		fmt.Fprintf(b, "- Target: `%s` (%s)\n", data.Target, data.Qualifier)
	}
	if data.RunID != "" {
		fmt.Fprintf(b, "- Run ID: `%s`\n", data.RunID)
	}
	fmt.Fprintf(b, "- Generated: %s\n", data.GeneratedAt.Format(time.RFC3339))

	if rel := data.Reliability; rel != nil {
		fmt.Fprintf(b, "- Runs: %d completed of %d attempted", rel.CompletedRuns, rel.AttemptedRuns)
		if rel.FailedRuns > 0 {
			fmt.Fprintf(b, " (%d failed to start)", rel.FailedRuns)
		}
		b.WriteString("\n")
		fmt.Fprintf(b, "- Stability score: %.1f%%\n", rel.StabilityScore)
		fmt.Fprintf(b, "- Verdicts: %d consistent-pass, %d consistent-fail, %d flaky, %d skipped\n",
			rel.ConsistentPassCount, rel.ConsistentFailCount, rel.FlakyCount, rel.SkippedCount)
	}
	if cov := data.Coverage; cov != nil {
		fmt.Fprintf(b, "- Coverage: %.1f%%", cov.TotalPercent)
		if cov.Threshold > 0 {
			verdict := "met"
			if !cov.ThresholdMet {
				verdict = "NOT met"
			}
			fmt.Fprintf(b, " (threshold %.1f%% %s)", cov.Threshold, verdict)
		}
		b.WriteString("\n")
		if cov.BaselineGiven {
			fmt.Fprintf(b, "- Baseline delta: %+.1f%% (baseline %.1f%%)\n", cov.Delta, cov.BaselinePct)
		}
		if n := len(cov.UntestedFiles); n > 0 {
			fmt.Fprintf(b, "- Source files without any coverage record: %d\n", n)
		}
	}
	if fs := data.Failures; fs != nil {
		fmt.Fprintf(b, "- Failures collected: %d across %d categories\n", fs.Total, len(fs.Groups))
	}
	b.WriteString("\n")
}

func writeDetails(b *strings.Builder, data ReportData) {
	b.WriteString("## Details\n\n")

	if rel := data.Reliability; rel != nil {
		b.WriteString("### Test reliability\n\n")
		b.WriteString("| Test | Runs | Passes | Failures | Reliability | Verdict | Avg duration |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, m := range rel.Metrics {
			fmt.Fprintf(b, "| %s | %d | %d | %d | %.1f%% | %s | %s |\n",
				m.ID.String(), m.TotalRuns, m.Passes, m.Failures,
				m.Reliability, m.Verdict, m.AvgDuration.Round(time.Millisecond))
		}
		b.WriteString("\n")
	}

	if cov := data.Coverage; cov != nil {
		b.WriteString("### File coverage\n\n")
		b.WriteString("| File | Covered | Total | Percent | Uncovered lines |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, rec := range cov.Records {
			fmt.Fprintf(b, "| %s | %d | %d | %.1f%% | %s |\n",
				rec.File, rec.CoveredLines, rec.TotalLines, rec.Percent(), spanList(rec.UncoveredSpans))
		}
		b.WriteString("\n")
		if len(cov.UntestedFiles) > 0 {
			b.WriteString("### Untested source files\n\n")
			for _, f := range cov.UntestedFiles {
				fmt.Fprintf(b, "- `%s`\n", f)
			}
			b.WriteString("\n")
		}
	}

	if fs := data.Failures; fs != nil {
		b.WriteString("### Failures by category\n\n")
		for _, group := range fs.Groups {
			fmt.Fprintf(b, "#### %s (%d)\n\n", group.Category, len(group.Failures))
			for _, f := range group.Failures {
				name := f.TestName
				if f.SuitePath != "" {
					name = f.SuitePath + "::" + f.TestName
				}
				fmt.Fprintf(b, "- **%s** at `%s`\n", name, f.Record.Location)
				if f.Record.Message != "" {
					fmt.Fprintf(b, "  - %s\n", firstLine(f.Record.Message))
				}
				if f.LogPath != "" {
					fmt.Fprintf(b, "  - log: `%s`\n", f.LogPath)
				}
			}
			b.WriteString("\n")
		}
	}
}

func writeSuggestions(b *strings.Builder, data ReportData) {
	b.WriteString("## Suggestions\n\n")
	var wrote bool

	if rel := data.Reliability; rel != nil {
		for _, m := range rel.Metrics {
			if m.Verdict != types.VerdictFlaky {
				continue
			}
			fmt.Fprintf(b, "- `%s` is flaky (%.1f%% reliable): rerun in isolation and look for order or timing dependence.\n",
				m.ID.String(), m.Reliability)
			wrote = true
		}
	}
	if cov := data.Coverage; cov != nil {
		if cov.Threshold > 0 && !cov.ThresholdMet {
			fmt.Fprintf(b, "- Coverage %.1f%% is below the %.1f%% threshold: add tests for the uncovered ranges listed above.\n",
				cov.TotalPercent, cov.Threshold)
			wrote = true
		}
		if cov.Decreased {
			fmt.Fprintf(b, "- Coverage dropped %.1f%% against the baseline: cover the newly untested lines before merging.\n",
				-cov.Delta)
			wrote = true
		}
	}
	if fs := data.Failures; fs != nil {
		for _, group := range fs.Groups {
			suggestion := group.Failures[0].Record.Suggestion
			if suggestion == "" {
				continue
			}
			fmt.Fprintf(b, "- %s (%d): %s\n", group.Category, len(group.Failures), suggestion)
			wrote = true
		}
	}
	if !wrote {
		b.WriteString("Nothing actionable.\n")
	}
	b.WriteString("\n")
}

func spanList(spans []types.LineRange) string {
	if len(spans) == 0 {
		return "-"
	}
	parts := make([]string, len(spans))
	for i, s := range spans {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
