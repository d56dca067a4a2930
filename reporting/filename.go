package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
)

// Qualifier records the scope an analysis covered, encoded into the
// report filename so a directory of reports stays self-describing.
type Qualifier string

const (
	QualifierProject Qualifier = "project"
	QualifierFolder  Qualifier = "folder"
	QualifierFile    Qualifier = "file"
)

// TimestampLayout is the wall-clock token embedded in report filenames.
// Lexicographic order on the token matches chronological order, which is
// what retention relies on.
const TimestampLayout = "20060102-150405"

// ModuleName resolves the project identity used as the filename prefix.
// It prefers the module path basename from go.mod and falls back to the
// directory name when no parseable go.mod is present.
func ModuleName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err == nil {
		if path := modfile.ModulePath(data); path != "" {
			return filepath.Base(path)
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	name := filepath.Base(abs)
	if name == "." || name == string(filepath.Separator) {
		return "project"
	}
	return name
}

// QualifierFor classifies a target path as project-wide, a folder, or a
// single file. An empty or "." target means the whole project.
func QualifierFor(target string) Qualifier {
	if target == "" || target == "." {
		return QualifierProject
	}
	info, err := os.Stat(target)
	if err != nil {
		// Unresolvable targets still get a stable name; a path with an
		// extension is treated as a file.
		if filepath.Ext(target) != "" {
			return QualifierFile
		}
		return QualifierFolder
	}
	if info.IsDir() {
		return QualifierFolder
	}
	return QualifierFile
}

// FileName builds the canonical report filename:
//
//	{module}-{qualifier}_{tool}_{type}@{timestamp}.{ext}
func FileName(module string, q Qualifier, tool, reportType string, ts time.Time, ext string) string {
	return fmt.Sprintf("%s-%s_%s_%s@%s.%s",
		sanitizeToken(module), q, sanitizeToken(tool), sanitizeToken(reportType),
		ts.Format(TimestampLayout), ext)
}

// timestampOf extracts the timestamp token from a report filename.
// Returns false for files that do not follow the naming scheme, so
// retention never deletes foreign files.
func timestampOf(name string) (time.Time, bool) {
	at := strings.LastIndex(name, "@")
	if at < 0 {
		return time.Time{}, false
	}
	rest := name[at+1:]
	dot := strings.LastIndex(rest, ".")
	if dot < 0 {
		return time.Time{}, false
	}
	ts, err := time.Parse(TimestampLayout, rest[:dot])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// sanitizeToken keeps filename tokens free of the separators the naming
// scheme itself uses.
func sanitizeToken(s string) string {
	s = strings.NewReplacer("_", "-", "@", "-", string(filepath.Separator), "-").Replace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
