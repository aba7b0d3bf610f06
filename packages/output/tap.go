package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/core/runner"
	"gopkg.in/yaml.v3"
)

// TAPFormatter formats test results in TAP (Test Anything Protocol) format,
// one test point per scenario.
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
}

type tapResult struct {
	number     int
	name       string
	passed     bool
	skipped    bool
	skipReason string
	diagnostic *tapDiagnostic
}

// tapDiagnostic is the YAML block written under a failed test point.
type tapDiagnostic struct {
	Message  string   `yaml:"message"`
	Severity string   `yaml:"severity"`
	Step     string   `yaml:"step,omitempty"`
	Failures []string `yaml:"failures,omitempty"`
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, scn := range result.Scenarios {
		f.testCount++
		tr := tapResult{
			number:     f.testCount,
			name:       scn.Name,
			passed:     scn.Passed,
			skipped:    scn.Skipped,
			skipReason: scn.SkipReason,
		}

		if !scn.Passed && !scn.Skipped {
			diag := &tapDiagnostic{Message: fmt.Sprint(scn.Error), Severity: "fail"}
			if !isFailure(scn.Error) {
				diag.Severity = "error"
			}
			for _, step := range scn.Steps {
				if !step.Passed && !step.Skipped {
					diag.Step = step.Name
					diag.Failures = failedChecks(step)
				}
			}
			tr.diagnostic = diag
		}

		f.results = append(f.results, tr)
	}
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		if r.skipped {
			if r.skipReason == "" || r.skipReason == "filtered out" {
				fmt.Fprintf(f.writer, "ok %d - %s # SKIP\n", r.number, r.name)
			} else {
				fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", r.number, r.name, r.skipReason)
			}
			continue
		}

		if r.passed {
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
			continue
		}

		fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
		if r.diagnostic != nil {
			data, err := yaml.Marshal(r.diagnostic)
			if err != nil {
				return err
			}
			fmt.Fprintf(f.writer, "  ---\n")
			for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
				fmt.Fprintf(f.writer, "  %s\n", line)
			}
			fmt.Fprintf(f.writer, "  ...\n")
		}
	}

	fmt.Fprintf(f.writer, "# time=%dms\n", totalDuration.Milliseconds())
	return nil
}
