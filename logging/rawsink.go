package logging

import (
	"path/filepath"
)

// RawEventsFilename is the verbatim event-stream capture inside a run
// directory.
const RawEventsFilename = "raw_events.jsonl"

// RawEventSink preserves the runner's line-delimited JSON output
// exactly as received, so a run can be re-analyzed later without
// re-executing the suite. It implements io.Writer and is meant to be
// used as an io.MultiWriter tee alongside the live parser.
type RawEventSink struct {
	path   string
	writer *AsyncFile
}

// NewRawEventSink opens the capture file inside the logger's run
// directory.
func NewRawEventSink(logger *FileLogger) (*RawEventSink, error) {
	path := filepath.Join(logger.RunDir(), RawEventsFilename)
	writer, err := logger.getAsyncWriter(path)
	if err != nil {
		return nil, err
	}
	return &RawEventSink{path: path, writer: writer}, nil
}

// Path returns the capture file location.
func (s *RawEventSink) Path() string { return s.path }

// Write tees a chunk of the event stream to disk.
func (s *RawEventSink) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}
