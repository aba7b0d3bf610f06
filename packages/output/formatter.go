package output

import (
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/assertions"
	"github.com/abdul-hamid-achik/restdd/packages/core/runner"
)

// Formatter renders run results.
type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
}

// Flushable is implemented by formatters that write everything at the end.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Formats lists the names accepted by New.
var Formats = []string{"console", "json", "junit", "tap"}

// New returns the formatter for format writing to w.
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch format {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	}
	return nil, fmt.Errorf("unknown output format %q (want one of %v)", format, Formats)
}

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

func failedChecks(step *runner.StepResult) []string {
	var out []string
	for _, a := range assertions.Failed(step.BodyCheck) {
		out = append(out, fmt.Sprintf("%s %s: expected %s, got %s",
			a.Subject, a.Operator, formatValue(a.Expected, 100), formatValue(a.Actual, 100)))
	}
	return out
}
