package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/auth"
	"github.com/abdul-hamid-achik/restdd/packages/cache"
	"github.com/abdul-hamid-achik/restdd/packages/expression"
	"github.com/abdul-hamid-achik/restdd/packages/http"
	"github.com/abdul-hamid-achik/restdd/packages/scenario"
	"github.com/abdul-hamid-achik/restdd/packages/testdata"
)

var ErrNoResponse = errors.New("response is nil: server down or response not received")

// AssertionError reports an unexpected status code. It aborts the scenario.
type AssertionError struct {
	Scenario string
	Step     string
	Expected int
	Actual   int
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("scenario %s, step %s: expected status code %d but was %d", e.Scenario, e.Step, e.Expected, e.Actual)
}

// TransportError is a failure raised by the transport before any response
// arrived: connection refused, timeout or cancellation. The cause stays
// reachable through errors.Is and errors.As.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "sending request: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StepError wraps any other failure of a step with its location.
type StepError struct {
	Scenario string
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("scenario %s, step %s: %v", e.Scenario, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner sends the steps of one scenario in order. Each step is resolved
// against the responses of the steps sent before it, so a Runner must not
// be shared between scenarios or goroutines.
type Runner struct {
	scenario  *scenario.Scenario
	transport http.Transport
	baseURI   string
	auth      auth.Provider
	loader    expression.Loader
	logger    *slog.Logger
	clock     func() time.Time

	snapshot  cache.Snapshot
	responses map[string]*http.Response
	requests  map[string]*http.Request
	order     []string

	// expected holds expected responses after the general pass, so
	// generated values stay the same for every read of a step.
	expected map[string]string
}

type Option func(*Runner)

func WithTransport(t http.Transport) Option {
	return func(r *Runner) {
		r.transport = t
	}
}

// WithBaseURI sets the base URI used by steps that do not name one.
func WithBaseURI(uri string) Option {
	return func(r *Runner) {
		r.baseURI = uri
	}
}

func WithAuth(p auth.Provider) Option {
	return func(r *Runner) {
		r.auth = p
	}
}

// WithLoader sets where testdata references are read from.
func WithLoader(l expression.Loader) Option {
	return func(r *Runner) {
		r.loader = l
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		r.clock = clock
	}
}

func New(scn *scenario.Scenario, opts ...Option) *Runner {
	r := &Runner{
		scenario:  scn,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:     time.Now,
		snapshot:  cache.Empty(),
		responses: make(map[string]*http.Response),
		requests:  make(map[string]*http.Request),
		expected:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.transport == nil {
		r.transport = http.NewClient()
	}
	if r.auth == nil {
		r.auth = auth.NewRegistry()
	}
	if r.loader == nil {
		r.loader = testdata.New("", testdata.WithClock(r.clock), testdata.WithLogger(r.logger))
	}
	return r
}

// Send resolves the placeholders of step against the responses recorded
// so far, sends it and records the response under the step name. The
// response of a step failing its status check is recorded before the
// AssertionError is returned.
func (r *Runner) Send(ctx context.Context, step *scenario.Step) (*http.Response, error) {
	name := step.Name()

	resolved, err := r.resolveStep(step)
	if err != nil {
		return nil, r.stepError(name, err)
	}
	if err := resolved.Validate(); err != nil {
		return nil, r.stepError(name, err)
	}

	req, err := r.buildRequest(ctx, resolved.Request)
	if err != nil {
		return nil, r.stepError(name, err)
	}

	target, _ := req.URL()
	r.logger.Info("step sent", "scenario", r.scenario.Name, "step", name, "method", req.Method, "url", target)

	resp, err := r.transport.Do(ctx, req)
	if err != nil {
		return nil, r.stepError(name, &TransportError{Err: err})
	}
	if resp == nil {
		return nil, r.stepError(name, ErrNoResponse)
	}
	r.logger.Info("response received", "scenario", r.scenario.Name, "step", name, "status", resp.StatusCode, "duration", resp.Duration)

	r.record(name, req, resp)

	expected, check, err := resolved.ExpectedStatus()
	if err != nil {
		return resp, r.stepError(name, err)
	}
	if check && expected != resp.StatusCode {
		return resp, &AssertionError{
			Scenario: r.scenario.Name,
			Step:     name,
			Expected: expected,
			Actual:   resp.StatusCode,
		}
	}
	return resp, nil
}

// SendAll sends every step in declaration order and stops at the first
// failure. The responses recorded so far are returned either way.
func (r *Runner) SendAll(ctx context.Context) (map[string]*http.Response, error) {
	for _, step := range r.scenario.Steps {
		if _, err := r.Send(ctx, step); err != nil {
			return r.Responses(), err
		}
	}
	return r.Responses(), nil
}

func (r *Runner) resolveStep(step *scenario.Step) (*scenario.Step, error) {
	text, err := step.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encoding step: %w", err)
	}
	text, err = r.resolve(text,
		expression.CacheMode(r.snapshot),
		expression.HeadersCacheMode(r.snapshot),
		expression.General(r.loader, r.clock),
	)
	if err != nil {
		return nil, err
	}

	resolved, err := scenario.DecodeStep(text)
	if err != nil {
		return nil, fmt.Errorf("decoding resolved step: %w", err)
	}
	return resolved, nil
}

func (r *Runner) resolve(text string, sets ...expression.Set) (string, error) {
	var err error
	for _, set := range sets {
		if text, err = expression.Parse(text, set); err != nil {
			return "", err
		}
	}
	return text, nil
}

func (r *Runner) buildRequest(ctx context.Context, rq *scenario.Request) (*http.Request, error) {
	base := r.baseURI
	if rq.BaseURI != nil {
		base = *rq.BaseURI
	}

	req := http.NewRequest(rq.MethodName(), base)
	if rq.Endpoint != nil {
		req.SetPath(*rq.Endpoint)
	}
	if rq.ContentType != nil {
		req.SetContentType(*rq.ContentType)
	}
	if rq.HasBody() {
		req.SetBody(rq.BodyText())
	}

	keys, headers := scenario.StringMap(rq.Headers)
	for _, k := range keys {
		req.AddHeader(k, headers[k])
	}
	copyParams(rq.Params, req.SetParam)
	copyParams(rq.QueryParams, req.SetQueryParam)
	copyParams(rq.PathParams, req.SetPathParam)
	copyParams(rq.FormParams, req.SetFormParam)

	if !rq.IsAuthRequired() {
		return req, nil
	}
	if rq.AuthFunctionName != nil && *rq.AuthFunctionName != "" {
		token, err := r.auth.Token(ctx, *rq.AuthFunctionName)
		if err != nil {
			return nil, err
		}
		req.SetHeader("Authorization", token)
	}
	if rq.AuthToken != nil && *rq.AuthToken != "" {
		req.SetHeader("Authorization", *rq.AuthToken)
	}
	return req, nil
}

func copyParams(params map[string]any, set func(k, v string) *http.Request) {
	keys, values := scenario.StringMap(params)
	for _, k := range keys {
		set(k, values[k])
	}
}

func (r *Runner) record(name string, req *http.Request, resp *http.Response) {
	r.snapshot = r.snapshot.With(name, resp.BodyString(), resp.Headers)
	r.responses[name] = resp
	r.requests[name] = req

	kept := r.order[:0]
	for _, n := range r.order {
		if n != name {
			kept = append(kept, n)
		}
	}
	r.order = append(kept, name)
}

func (r *Runner) stepError(step string, err error) error {
	return &StepError{Scenario: r.scenario.Name, Step: step, Err: err}
}

// LastResponse is the response of the most recently sent step, nil before
// the first send.
func (r *Runner) LastResponse() *http.Response {
	if len(r.order) == 0 {
		return nil
	}
	return r.responses[r.order[len(r.order)-1]]
}

func (r *Runner) Responses() map[string]*http.Response {
	out := make(map[string]*http.Response, len(r.responses))
	for k, v := range r.responses {
		out[k] = v
	}
	return out
}

func (r *Runner) Requests() map[string]*http.Request {
	out := make(map[string]*http.Request, len(r.requests))
	for k, v := range r.requests {
		out[k] = v
	}
	return out
}

// Order lists sent steps, least recently sent first.
func (r *Runner) Order() []string {
	return append([]string(nil), r.order...)
}

func (r *Runner) Snapshot() cache.Snapshot {
	return r.snapshot
}

func (r *Runner) Scenario() *scenario.Scenario {
	return r.scenario
}

func (r *Runner) Description() string {
	return r.scenario.Description
}

// ExpectedResponse returns the expected response of a step with every
// placeholder resolved. Dates, rx and testdata references are resolved once
// per step; cache references are resolved against the responses recorded
// so far. Nothing is sent.
func (r *Runner) ExpectedResponse(stepName string) (string, error) {
	step, ok := r.scenario.Step(stepName)
	if !ok {
		return "", r.stepError(stepName, scenario.ErrUnknownStep)
	}

	text, ok := r.expected[stepName]
	if !ok {
		var err error
		text, err = r.resolve(step.ExpectedResponseString(), expression.General(r.loader, r.clock))
		if err != nil {
			return "", r.stepError(stepName, err)
		}
		r.expected[stepName] = text
	}

	text, err := r.resolve(text,
		expression.CacheMode(r.snapshot),
		expression.HeadersCacheMode(r.snapshot),
	)
	if err != nil {
		return "", r.stepError(stepName, err)
	}
	return text, nil
}

// StatusCode returns the expected status code of a step. ok is false when
// the step does not check it.
func (r *Runner) StatusCode(stepName string) (code int, ok bool, err error) {
	step, found := r.scenario.Step(stepName)
	if !found {
		return 0, false, r.stepError(stepName, scenario.ErrUnknownStep)
	}
	return step.ExpectedStatus()
}
