package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rpgo/finplan/internal/domain"
)

// Formatter renders a scenario comparison. Implementations are pure.
type Formatter interface {
	Format(results *domain.ScenarioComparison) ([]byte, error)
	// Name is the canonical format name used by --format and ?format=.
	Name() string
}

// reportTime stamps report file names.
var reportTime = time.Now

// WriteFormatted renders results with f into dir and returns the written path.
// Files are named finplan_report_<timestamp>_<format>.<ext>; dir is created if missing.
func WriteFormatted(f Formatter, results *domain.ScenarioComparison, dir string) (string, error) {
	data, err := f.Format(results)
	if err != nil {
		return "", fmt.Errorf("%s report: %w", f.Name(), err)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	name := fmt.Sprintf("finplan_report_%s_%s.%s", reportTime().Format("20060102_150405"), f.Name(), Extension(f))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// registry maps canonical names to the built-in formatters.
var registry = map[string]Formatter{}

func register(fs ...Formatter) {
	for _, f := range fs {
		registry[f.Name()] = f
	}
}

func init() {
	register(
		ConsoleVerboseFormatter{},
		ConsoleFormatter{},
		CSVSummarizer{},
		CSVDetailedExporter{},
		HTMLFormatter{},
		JSONFormatter{},
	)
}

// GetFormatterByName fetches a registered formatter by name or alias, nil if none matches.
func GetFormatterByName(name string) Formatter {
	return registry[NormalizeFormatName(name)]
}

var aliasMap = map[string]string{
	"console-verbose": "console",
	"verbose":         "console",
	"text":            "console",
	"csv-detailed":    "detailed-csv",
	"yearly-csv":      "detailed-csv",
	"csv-summary":     "csv",
	"html-report":     "html",
	"chart":           "html",
	"json-pretty":     "json",
	"summary":         "console-lite",
	"lite":            "console-lite",
}

// NormalizeFormatName lowers and resolves aliases.
func NormalizeFormatName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if mapped, ok := aliasMap[n]; ok {
		return mapped
	}
	return n
}

// AvailableFormatterNames returns the canonical formatter names, sorted.
func AvailableFormatterNames() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func availableFormatAliases() []string {
	keys := make([]string, 0, len(aliasMap))
	for k := range aliasMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
