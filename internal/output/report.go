package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rpgo/finplan/internal/domain"
)

// ErrUnsupportedFormat is returned when no formatter matches the requested name.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// GenerateReport writes the results to a timestamped file in dir using the named
// formatter. "all" writes the verbose console report and the detailed CSV.
func GenerateReport(results *domain.ScenarioComparison, format, dir string) ([]string, error) {
	if NormalizeFormatName(format) == "all" {
		var files []string
		for _, f := range []Formatter{ConsoleVerboseFormatter{}, CSVDetailedExporter{}} {
			name, err := WriteFormatted(f, results, dir)
			if err != nil {
				return files, err
			}
			files = append(files, name)
		}
		return files, nil
	}
	f, err := Lookup(format)
	if err != nil {
		return nil, err
	}
	name, err := WriteFormatted(f, results, dir)
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}

// Lookup resolves a formatter by name or alias.
func Lookup(format string) (Formatter, error) {
	if f := GetFormatterByName(format); f != nil {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %q. Try one of: %s (aliases: %s)", ErrUnsupportedFormat, format, strings.Join(AvailableFormatterNames(), ", "), strings.Join(availableFormatAliases(), ", "))
}

// Extension is the file extension for a formatter's output.
func Extension(f Formatter) string {
	switch f.Name() {
	case "csv", "detailed-csv":
		return "csv"
	case "json":
		return "json"
	case "html":
		return "html"
	default:
		return "txt"
	}
}

// ContentType is the MIME type for a formatter's output.
func ContentType(f Formatter) string {
	switch Extension(f) {
	case "csv":
		return "text/csv; charset=utf-8"
	case "json":
		return "application/json"
	case "html":
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
