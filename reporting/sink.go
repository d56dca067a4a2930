package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// DefaultKeepReports is how many reports of each type survive retention
// when no explicit limit is configured.
const DefaultKeepReports = 5

// Sink writes report artifacts under an explicit root directory. The
// root is a constructor parameter rather than process-wide state so
// tests can point each sink at its own temp directory.
type Sink struct {
	root string
	keep int
	log  log.Logger
}

// NewSink creates a sink rooted at dir, keeping the newest keep reports
// of each type. keep <= 0 selects the default.
func NewSink(dir string, keep int, logger log.Logger) *Sink {
	if keep <= 0 {
		keep = DefaultKeepReports
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Sink{root: dir, keep: keep, log: logger}
}

// Root returns the sink's report root directory.
func (s *Sink) Root() string {
	return s.root
}

// Write renders the payload to markdown plus a companion JSON artifact
// in the type's category directory, then prunes reports older than the
// retention window. Returns the markdown path.
func (s *Sink) Write(data ReportData) (string, error) {
	dir := filepath.Join(s.root, data.Type)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	md, err := RenderMarkdown(data)
	if err != nil {
		return "", err
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report payload: %w", err)
	}

	base := FileName(data.Module, data.Qualifier, data.Tool, data.Type, data.GeneratedAt, "md")
	mdPath := filepath.Join(dir, base)
	if err := os.WriteFile(mdPath, md, 0644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", mdPath, err)
	}
	jsonPath := filepath.Join(dir, FileName(data.Module, data.Qualifier, data.Tool, data.Type, data.GeneratedAt, "json"))
	if err := os.WriteFile(jsonPath, payload, 0644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", jsonPath, err)
	}
	s.log.Info("Wrote report", "type", data.Type, "path", mdPath)

	if err := s.prune(dir); err != nil {
		return "", err
	}
	return mdPath, nil
}

// prune enforces the retention window inside one category directory,
// deleting the oldest reports first. Markdown and JSON artifacts are
// counted per extension so a md/json pair ages out together.
func (s *Sink) prune(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list report directory %s: %w", dir, err)
	}

	byExt := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, ok := timestampOf(name); !ok {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		byExt[ext] = append(byExt[ext], name)
	}

	for _, names := range byExt {
		if len(names) <= s.keep {
			continue
		}
		// Oldest first. Timestamps are lexicographic, so sorting by the
		// token compares chronologically; names disambiguate ties.
		sort.Slice(names, func(i, j int) bool {
			ti, _ := timestampOf(names[i])
			tj, _ := timestampOf(names[j])
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return names[i] < names[j]
		})
		for _, name := range names[:len(names)-s.keep] {
			path := filepath.Join(dir, name)
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to prune old report %s: %w", path, err)
			}
			s.log.Debug("Pruned old report", "path", path)
		}
	}
	return nil
}
