package coverage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/ethereum/go-ethereum/log"

	"github.com/shakeout/shakeout/types"
)

// stubTemplate is the minimal test skeleton emitted per uncovered file.
// One test block per uncovered span keeps the human edit small: fill in
// the body, delete the skip.
var stubTemplate = template.Must(template.New("stub").Parse(`// Generated test stub for {{.Source}}.
// Fill in each case and remove its skip marker.
import 'package:test/test.dart';

void main() {
  group('{{.GroupName}}', () {
{{- range .Spans}}
    test('covers lines {{.}}', () {
      // TODO: exercise {{$.Source}} lines {{.}}
    }, skip: 'generated stub');
{{- end}}
  });
}
`))

type stubData struct {
	Source    string
	GroupName string
	Spans     []types.LineRange
}

// StubGenerator writes test-stub skeletons for uncovered code.
type StubGenerator struct {
	outDir string
	log    log.Logger
}

// NewStubGenerator creates a generator writing under outDir.
func NewStubGenerator(outDir string, logger log.Logger) *StubGenerator {
	if logger == nil {
		logger = log.Root()
	}
	return &StubGenerator{outDir: outDir, log: logger}
}

// Generate writes one stub file per coverage record that has uncovered
// spans, plus one per fully untested source file. Returns the written
// paths in deterministic order.
func (g *StubGenerator) Generate(analysis *Analysis) ([]string, error) {
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating stub directory: %w", err)
	}

	var written []string
	for _, rec := range analysis.Records {
		if len(rec.UncoveredSpans) == 0 {
			continue
		}
		path, err := g.writeStub(rec.File, rec.UncoveredSpans)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	for _, src := range analysis.UntestedFiles {
		// Fully untested files have no record; stub the whole file.
		path, err := g.writeStub(src, []types.LineRange{{Start: 1, End: 1}})
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	g.log.Info("Generated test stubs", "count", len(written), "dir", g.outDir)
	return written, nil
}

func (g *StubGenerator) writeStub(source string, spans []types.LineRange) (string, error) {
	name := stubFileName(source)
	path := filepath.Join(g.outDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating stub %s: %w", path, err)
	}
	defer f.Close()

	data := stubData{
		Source:    source,
		GroupName: strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)),
		Spans:     spans,
	}
	if err := stubTemplate.Execute(f, data); err != nil {
		return "", fmt.Errorf("rendering stub for %s: %w", source, err)
	}
	return path, nil
}

// stubFileName flattens a source path into a test stub filename, e.g.
// lib/src/parser.dart -> lib_src_parser_test.dart.
func stubFileName(source string) string {
	ext := filepath.Ext(source)
	flat := strings.ReplaceAll(strings.TrimSuffix(source, ext), string(filepath.Separator), "_")
	flat = strings.ReplaceAll(flat, "/", "_")
	return flat + "_test" + ext
}
