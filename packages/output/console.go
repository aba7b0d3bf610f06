package output

import (
	"fmt"
	"io"
	"os"

	"github.com/abdul-hamid-achik/restdd/packages/core/runner"
	"github.com/fatih/color"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+result.File))

	for _, scn := range result.Scenarios {
		if scn.Skipped {
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), scn.Name)
			if scn.SkipReason != "" && scn.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " (%s)", scn.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		symbol := green("✓")
		if !scn.Passed {
			symbol = red("✗")
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, scn.Name, cyan(fmt.Sprintf("(%dms)", scn.Duration.Milliseconds())))
		if f.verbose && scn.Description != "" {
			fmt.Fprintf(f.writer, "    %s\n", scn.Description)
		}

		for _, step := range scn.Steps {
			if !f.verbose && scn.Passed {
				break
			}
			f.formatStep(step)
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Scenarios: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:      %dms\n", result.Duration.Milliseconds())
	if f.verbose && result.Latency != nil && result.Latency.Count > 0 {
		fmt.Fprintf(f.writer, "Latency:   p50 %v, p95 %v, p99 %v, max %v\n",
			result.Latency.P50, result.Latency.P95, result.Latency.P99, result.Latency.Max)
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) formatStep(step *runner.StepResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	switch {
	case step.Skipped:
		fmt.Fprintf(f.writer, "    %s %s (%s)\n", yellow("-"), step.Name, step.SkipReason)
		return
	case step.Passed:
		fmt.Fprintf(f.writer, "    %s %s", green("✓"), step.Name)
	default:
		fmt.Fprintf(f.writer, "    %s %s", red("✗"), step.Name)
	}
	if step.Response != nil {
		fmt.Fprintf(f.writer, " [%d]", step.Response.StatusCode)
	}
	fmt.Fprintf(f.writer, " %dms\n", step.Duration.Milliseconds())

	if step.Error != nil {
		fmt.Fprintf(f.writer, "      %s %v\n", red("→"), step.Error)
	}
	for _, check := range failedChecks(step) {
		fmt.Fprintf(f.writer, "      %s\n", check)
	}
	if f.verbose && step.Request != nil {
		if url, err := step.Request.URL(); err == nil {
			fmt.Fprintf(f.writer, "      %s %s\n", step.Request.Method, url)
		}
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("restdd"), version)
}
