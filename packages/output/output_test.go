package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/assertions"
	"github.com/abdul-hamid-achik/restdd/packages/core/runner"
	"github.com/abdul-hamid-achik/restdd/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *runner.RunResult {
	req := http.NewRequest("GET", "http://localhost:8080")
	req.SetPath("/quotes/1")

	return &runner.RunResult{
		File:     "dd/quotes/quotes.json",
		Duration: 120 * time.Millisecond,
		Passed:   1,
		Failed:   2,
		Skipped:  1,
		Scenarios: []*runner.ScenarioResult{
			{
				Name:     "get quote",
				Passed:   true,
				Duration: 40 * time.Millisecond,
				Steps: []*runner.StepResult{
					{Name: "get", Passed: true, Request: req, Response: &http.Response{StatusCode: 200}},
				},
			},
			{
				Name:  "missing quote",
				Error: &runner.AssertionError{Scenario: "missing quote", Step: "get", Expected: 200, Actual: 404},
				Steps: []*runner.StepResult{
					{
						Name:     "get",
						Response: &http.Response{StatusCode: 404},
						Error:    &runner.AssertionError{Scenario: "missing quote", Step: "get", Expected: 200, Actual: 404},
					},
					{Name: "update", Skipped: true, SkipReason: "previous step failed"},
				},
			},
			{
				Name:  "server down",
				Error: fmt.Errorf("step get: %w", runner.ErrNoResponse),
				Steps: []*runner.StepResult{
					{
						Name:  "get",
						Error: errors.New("connection refused"),
						BodyCheck: []*assertions.Result{
							{Subject: "body.total", Operator: "==", Expected: 10, Actual: 12},
						},
					},
				},
			},
			{Name: "other", Skipped: true, SkipReason: "filtered out"},
		},
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	for _, format := range Formats {
		f, err := New(format, &buf, false, true)
		require.NoError(t, err, format)
		assert.NotNil(t, f)
	}

	f, err := New("", &buf, false, true)
	require.NoError(t, err)
	assert.IsType(t, &ConsoleFormatter{}, f)

	_, err = New("html", &buf, false, true)
	assert.Error(t, err)
}

func TestConsoleFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatHeader("1.0.0")
	f.FormatResult(sampleResult())

	out := buf.String()
	assert.Contains(t, out, "restdd 1.0.0")
	assert.Contains(t, out, "Running: dd/quotes/quotes.json")
	assert.Contains(t, out, "✓ get quote")
	assert.Contains(t, out, "✗ missing quote")
	assert.Contains(t, out, "expected status code 200 but was 404")
	assert.Contains(t, out, "update (previous step failed)")
	assert.Contains(t, out, "body.total ==: expected 10, got 12")
	assert.Contains(t, out, "1 passed, 2 failed, 1 skipped, 4 total")
	assert.NotContains(t, out, "filtered out")
}

func TestConsoleFormatter_Verbose(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))
	f.FormatResult(sampleResult())

	assert.Contains(t, buf.String(), "GET http://localhost:8080/quotes/1")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	f.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(200*time.Millisecond))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, JSONSummary{Total: 4, Passed: 1, Failed: 2, Skipped: 1}, out.Summary)
	assert.Equal(t, "2024-03-01T12:00:00Z", out.Time)
	require.Len(t, out.Files, 1)

	scenarios := out.Files[0].Scenarios
	require.Len(t, scenarios, 4)
	assert.Equal(t, "http://localhost:8080/quotes/1", scenarios[0].Steps[0].Request.URL)
	assert.Equal(t, 404, scenarios[1].Steps[0].Response.StatusCode)
	assert.True(t, scenarios[1].Steps[1].Skipped)
	require.Len(t, scenarios[2].Steps[0].Assertions, 1)
	assert.False(t, scenarios[2].Steps[0].Assertions[0].Passed)
	assert.Empty(t, scenarios[3].SkipReason)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(time.Second))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "<?xml"))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	assert.Equal(t, "restdd", suites.Name)
	assert.Equal(t, 4, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	assert.Equal(t, 1, suites.Skipped)

	require.Len(t, suites.TestSuites, 1)
	cases := suites.TestSuites[0].TestCases
	require.Len(t, cases, 4)
	assert.Nil(t, cases[0].Failure)
	require.NotNil(t, cases[1].Failure)
	assert.Contains(t, cases[1].Failure.Content, "update: skipped")
	require.NotNil(t, cases[2].Error)
	assert.Contains(t, cases[2].Error.Content, "body.total ==")
	assert.NotNil(t, cases[3].Skipped)
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(150*time.Millisecond))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "TAP version 13", lines[0])
	assert.Equal(t, "1..4", lines[1])
	assert.Equal(t, "ok 1 - get quote", lines[2])
	assert.Equal(t, "not ok 2 - missing quote", lines[3])
	assert.Equal(t, "  ---", lines[4])

	out := buf.String()
	assert.Contains(t, out, "  severity: fail\n")
	assert.Contains(t, out, "  severity: error\n")
	assert.Contains(t, out, "ok 4 - other # SKIP\n")
	assert.Contains(t, out, "# time=150ms")
}
