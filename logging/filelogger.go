package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shakeout/shakeout/types"
)

// RunDirectoryPrefix is the standardized prefix for per-run log
// directories.
const RunDirectoryPrefix = "testrun-"

const (
	failedDirName   = "failed"
	summaryFilename = "summary.log"
)

// FileLogger owns the on-disk layout for one extraction run:
//
//	<baseDir>/testrun-<runID>/
//	    summary.log
//	    raw_events.jsonl          (optional, via RawEventSink)
//	    failed/<test>.log         (one file per classified failure)
type FileLogger struct {
	baseDir   string
	runDir    string
	failedDir string
	runID     string

	mu           sync.Mutex
	asyncWriters map[string]*AsyncFile
}

// NewFileLogger creates the run directory tree under baseDir.
func NewFileLogger(baseDir, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	runDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	failedDir := filepath.Join(runDir, failedDirName)
	if err := os.MkdirAll(failedDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", failedDir, err)
	}
	return &FileLogger{
		baseDir:      baseDir,
		runDir:       runDir,
		failedDir:    failedDir,
		runID:        runID,
		asyncWriters: make(map[string]*AsyncFile),
	}, nil
}

// RunID returns the run this logger writes for.
func (l *FileLogger) RunID() string { return l.runID }

// RunDir returns the testrun-<runID> directory path.
func (l *FileLogger) RunDir() string { return l.runDir }

// FailedDir returns the directory holding per-failure logs.
func (l *FileLogger) FailedDir() string { return l.failedDir }

// LogFailure writes one classified failure to its own log file under
// failed/ and returns the path. File names derive from the test name so
// a human can find a failure without opening the report.
func (l *FileLogger) LogFailure(id types.TestID, record types.FailureRecord, stackTrace string) (string, error) {
	path := filepath.Join(l.failedDir, sanitizeFilename(id.String())+".log")

	var b strings.Builder
	fmt.Fprintf(&b, "Test:     %s\n", id.TestName)
	if id.SuitePath != "" {
		fmt.Fprintf(&b, "Suite:    %s\n", id.SuitePath)
	}
	fmt.Fprintf(&b, "Category: %s\n", record.Category.Name())
	fmt.Fprintf(&b, "Location: %s\n", record.Location)
	if record.Suggestion != "" {
		fmt.Fprintf(&b, "Hint:     %s\n", record.Suggestion)
	}
	b.WriteString("\n")
	b.WriteString(record.Message)
	if !strings.HasSuffix(record.Message, "\n") {
		b.WriteString("\n")
	}
	if stackTrace != "" {
		b.WriteString("\n--- stack trace ---\n")
		b.WriteString(stackTrace)
		if !strings.HasSuffix(stackTrace, "\n") {
			b.WriteString("\n")
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write failure log %s: %w", path, err)
	}
	return path, nil
}

// WriteSummary writes the run's summary file and returns its path.
func (l *FileLogger) WriteSummary(content string) (string, error) {
	path := filepath.Join(l.runDir, summaryFilename)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write summary %s: %w", path, err)
	}
	return path, nil
}

// getAsyncWriter returns the shared async writer for a path, creating
// it on first use.
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.asyncWriters[path]; ok {
		return w, nil
	}
	w, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = w
	return w, nil
}

// Complete flushes and closes every async writer. The logger must not
// be written to afterwards.
func (l *FileLogger) Complete() error {
	l.mu.Lock()
	writers := l.asyncWriters
	l.asyncWriters = make(map[string]*AsyncFile)
	l.mu.Unlock()

	var firstErr error
	for path, w := range writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", path, err)
		}
	}
	return firstErr
}

// sanitizeFilename makes a test identity safe to use as a file name.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	out := replacer.Replace(name)
	const maxLen = 200
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}
