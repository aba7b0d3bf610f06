package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/core/runner"
	"github.com/abdul-hamid-achik/restdd/packages/http"
	"github.com/abdul-hamid-achik/restdd/packages/metrics"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Files    []JSONFile  `json:"files"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type JSONFile struct {
	File      string           `json:"file"`
	Scenarios []JSONScenario   `json:"scenarios"`
	Latency   *metrics.Summary `json:"latency,omitempty"`
}

type JSONScenario struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Passed      bool       `json:"passed"`
	Skipped     bool       `json:"skipped,omitempty"`
	SkipReason  string     `json:"skipReason,omitempty"`
	Duration    float64    `json:"duration"`
	Error       string     `json:"error,omitempty"`
	Steps       []JSONStep `json:"steps,omitempty"`
}

type JSONStep struct {
	Name       string          `json:"name"`
	Passed     bool            `json:"passed"`
	Skipped    bool            `json:"skipped,omitempty"`
	Duration   float64         `json:"duration"`
	Error      string          `json:"error,omitempty"`
	Request    *JSONRequest    `json:"request,omitempty"`
	Response   *JSONResponse   `json:"response,omitempty"`
	Assertions []JSONAssertion `json:"assertions,omitempty"`
}

type JSONRequest struct {
	Method  string        `json:"method"`
	URL     string        `json:"url"`
	Headers []http.Header `json:"headers,omitempty"`
}

type JSONResponse struct {
	StatusCode int           `json:"statusCode"`
	Status     string        `json:"status,omitempty"`
	Headers    []http.Header `json:"headers,omitempty"`
	Duration   float64       `json:"duration"`
}

type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter formats test results as JSON
type JSONFormatter struct {
	writer io.Writer
	files  []JSONFile
	now    func() time.Time
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		files:  make([]JSONFile, 0),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	file := JSONFile{File: result.File, Latency: result.Latency}

	for _, scn := range result.Scenarios {
		js := JSONScenario{
			Name:        scn.Name,
			Description: scn.Description,
			Passed:      scn.Passed,
			Skipped:     scn.Skipped,
			Duration:    float64(scn.Duration.Milliseconds()),
		}
		if scn.SkipReason != "filtered out" {
			js.SkipReason = scn.SkipReason
		}
		if scn.Error != nil {
			js.Error = scn.Error.Error()
		}
		for _, step := range scn.Steps {
			js.Steps = append(js.Steps, jsonStep(step))
		}
		file.Scenarios = append(file.Scenarios, js)
	}

	f.files = append(f.files, file)
}

func jsonStep(step *runner.StepResult) JSONStep {
	out := JSONStep{
		Name:     step.Name,
		Passed:   step.Passed,
		Skipped:  step.Skipped,
		Duration: float64(step.Duration.Milliseconds()),
	}
	if step.Error != nil {
		out.Error = step.Error.Error()
	}
	if step.Request != nil {
		url, _ := step.Request.URL()
		out.Request = &JSONRequest{
			Method:  step.Request.Method,
			URL:     url,
			Headers: step.Request.Headers,
		}
	}
	if step.Response != nil {
		out.Response = &JSONResponse{
			StatusCode: step.Response.StatusCode,
			Status:     step.Response.Status,
			Headers:    step.Response.Headers,
			Duration:   float64(step.Response.Duration.Milliseconds()),
		}
	}
	for _, a := range step.BodyCheck {
		out.Assertions = append(out.Assertions, JSONAssertion{
			Subject:  a.Subject,
			Operator: a.Operator,
			Expected: a.Expected,
			Actual:   a.Actual,
			Passed:   a.Passed,
			Message:  a.Message,
		})
	}
	return out
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual scenario results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var summary JSONSummary
	for _, file := range f.files {
		for _, s := range file.Scenarios {
			summary.Total++
			switch {
			case s.Skipped:
				summary.Skipped++
			case s.Passed:
				summary.Passed++
			default:
				summary.Failed++
			}
		}
	}

	output := JSONOutput{
		Summary:  summary,
		Files:    f.files,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     f.now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
