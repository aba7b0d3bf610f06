package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/assertions"
	"github.com/abdul-hamid-achik/restdd/packages/http"
	"github.com/abdul-hamid-achik/restdd/packages/metrics"
	"github.com/abdul-hamid-achik/restdd/packages/scenario"
)

const (
	// DefaultConcurrency is the default number of scenarios run at once in parallel mode
	DefaultConcurrency = 5
)

// ErrBodyMismatch is returned when VerifyBody is set and a response does
// not contain the expected response.
var ErrBodyMismatch = errors.New("response body does not match expected response")

type Config struct {
	BaseURI     string
	Parallel    bool
	Concurrency int
	// Bail stops after the first failed scenario. Only honoured when
	// running sequentially.
	Bail       bool
	NameFilter string
	VerifyBody bool
}

// Suite runs scenarios, each with its own Runner.
type Suite struct {
	config *Config
	opts   []Option
	logger *slog.Logger
}

// NewSuite builds a suite. The options are applied to every Runner it
// creates; the transport, auth provider and loader are shared.
func NewSuite(cfg *Config, opts ...Option) *Suite {
	if cfg == nil {
		cfg = &Config{}
	}

	probe := New(&scenario.Scenario{}, opts...)
	shared := append([]Option{}, opts...)
	shared = append(shared,
		WithTransport(probe.transport),
		WithAuth(probe.auth),
		WithLoader(probe.loader),
	)
	if cfg.BaseURI != "" {
		shared = append(shared, WithBaseURI(cfg.BaseURI))
	}

	return &Suite{config: cfg, opts: shared, logger: probe.logger}
}

type RunResult struct {
	File      string
	Scenarios []*ScenarioResult
	Duration  time.Duration
	Passed    int
	Failed    int
	Skipped   int
	Latency   *metrics.Summary
}

type ScenarioResult struct {
	Name        string
	File        string
	Description string
	Passed      bool
	Skipped     bool
	SkipReason  string
	Duration    time.Duration
	Steps       []*StepResult
	Error       error
}

type StepResult struct {
	Name       string
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Request    *http.Request
	Response   *http.Response
	BodyCheck  []*assertions.Result
	Error      error
}

// Run executes the scenarios of one file.
func (s *Suite) Run(ctx context.Context, file string, scenarios []*scenario.Scenario) *RunResult {
	start := time.Now()
	result := &RunResult{File: file}
	latency := metrics.New()
	latency.Start()

	var selected []*scenario.Scenario
	for _, scn := range scenarios {
		if !matchesPattern(scn.Name, s.config.NameFilter) {
			result.Scenarios = append(result.Scenarios, skipped(scn, "filtered out"))
			result.Skipped++
			continue
		}
		selected = append(selected, scn)
	}

	if s.config.Parallel {
		for _, sr := range s.runParallel(ctx, selected, latency) {
			result.add(sr)
		}
	} else {
		failed := false
		for _, scn := range selected {
			if failed && s.config.Bail {
				result.add(skipped(scn, "bail after failure"))
				continue
			}
			sr := s.runScenario(ctx, scn, latency)
			result.add(sr)
			failed = failed || !sr.Passed
		}
	}

	latency.Stop()
	result.Latency = latency.Summary()
	result.Duration = time.Since(start)
	return result
}

func (r *RunResult) add(sr *ScenarioResult) {
	r.Scenarios = append(r.Scenarios, sr)
	switch {
	case sr.Skipped:
		r.Skipped++
	case sr.Passed:
		r.Passed++
	default:
		r.Failed++
	}
}

func (s *Suite) runParallel(ctx context.Context, scenarios []*scenario.Scenario, latency *metrics.Metrics) []*ScenarioResult {
	concurrency := s.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*ScenarioResult, len(scenarios))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, scn := range scenarios {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, scn *scenario.Scenario) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = s.runScenario(ctx, scn, latency)
		}(i, scn)
	}

	wg.Wait()
	return results
}

func (s *Suite) runScenario(ctx context.Context, scn *scenario.Scenario, latency *metrics.Metrics) *ScenarioResult {
	start := time.Now()
	result := &ScenarioResult{
		Name:        scn.Name,
		File:        scn.File,
		Description: scn.Description,
		Passed:      true,
	}
	r := New(scn, s.opts...)

	for _, step := range scn.Steps {
		if result.Error != nil {
			result.Steps = append(result.Steps, &StepResult{
				Name:       step.Name(),
				Skipped:    true,
				SkipReason: "previous step failed",
			})
			continue
		}

		sr := s.runStep(ctx, r, step)
		result.Steps = append(result.Steps, sr)
		if sr.Response != nil {
			latency.Record(scn.Name+"/"+sr.Name, sr.Response.Duration, sr.Error)
		}
		if sr.Error != nil {
			result.Passed = false
			result.Error = sr.Error
			s.logger.Warn("scenario failed", "scenario", scn.ID(), "step", sr.Name, "error", sr.Error)
		}
	}

	result.Duration = time.Since(start)
	return result
}

func (s *Suite) runStep(ctx context.Context, r *Runner, step *scenario.Step) *StepResult {
	start := time.Now()
	name := step.Name()
	result := &StepResult{Name: name}

	resp, err := r.Send(ctx, step)
	result.Duration = time.Since(start)
	result.Response = resp
	result.Request = r.requests[name]
	if err == nil && s.config.VerifyBody {
		err = s.verifyBody(r, name, resp, result)
	}

	result.Error = err
	result.Passed = err == nil
	return result
}

func (s *Suite) verifyBody(r *Runner, name string, resp *http.Response, result *StepResult) error {
	expected, err := r.ExpectedResponse(name)
	if err != nil {
		return err
	}
	result.BodyCheck = assertions.MatchExpected(resp, expected)

	failed := assertions.Failed(result.BodyCheck)
	if len(failed) == 0 {
		return nil
	}
	msgs := make([]string, len(failed))
	for i, f := range failed {
		msgs[i] = f.Subject + ": " + f.Message
	}
	return r.stepError(name, fmt.Errorf("%w: %s", ErrBodyMismatch, strings.Join(msgs, "; ")))
}

func skipped(scn *scenario.Scenario, reason string) *ScenarioResult {
	return &ScenarioResult{
		Name:        scn.Name,
		File:        scn.File,
		Description: scn.Description,
		Skipped:     true,
		SkipReason:  reason,
	}
}

// matchesPattern supports a single leading and/or trailing * wildcard.
func matchesPattern(name, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	switch {
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		return strings.Contains(name, pattern[1:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(name, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}
	return name == pattern
}
