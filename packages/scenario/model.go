package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/restdd/packages/http"
)

// NoCheck is the expected status code that disables the status assertion.
const NoCheck = "-1"

var (
	ErrNoSteps       = errors.New("no steps identified, please check test data")
	ErrNoRequest     = errors.New("step has no request")
	ErrInvalidMethod = errors.New("invalid HTTP method")
	ErrUnknownStep   = errors.New("unknown step")
)

// Scenario is an ordered list of steps loaded from one member of a file.
type Scenario struct {
	Name             string
	Description      string
	File             string
	CustomParameters map[string]string
	Steps            []*Step
}

func (s *Scenario) Step(name string) (*Step, bool) {
	for _, step := range s.Steps {
		if step.Name() == name {
			return step, true
		}
	}
	return nil, false
}

func (s *Scenario) StepNames() []string {
	names := make([]string, len(s.Steps))
	for i, step := range s.Steps {
		names[i] = step.Name()
	}
	return names
}

func (s *Scenario) LastStep() *Step {
	if len(s.Steps) == 0 {
		return nil
	}
	return s.Steps[len(s.Steps)-1]
}

// ID is file and scenario name joined, unique across a run.
func (s *Scenario) ID() string {
	if s.File == "" {
		return s.Name
	}
	return s.File + "#" + s.Name
}

// StatusCode accepts both "200" and 200 in JSON.
type StatusCode string

func (c *StatusCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = StatusCode(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expectedStatusCode must be a string or a number: %w", err)
	}
	*c = StatusCode(n.String())
	return nil
}

// Step is one request and its expected outcome. Nil pointers, nil maps and
// empty raw messages are unset; everything else counts as set, even when
// empty.
type Step struct {
	StepName           *string         `json:"stepName,omitempty"`
	StepDescription    *string         `json:"stepDescription,omitempty"`
	Request            *Request        `json:"request,omitempty"`
	ExpectedStatusCode *StatusCode     `json:"expectedStatusCode,omitempty"`
	ExpectedResponse   json.RawMessage `json:"expectedResponse,omitempty"`
}

func (s *Step) Name() string {
	if s == nil || s.StepName == nil {
		return ""
	}
	return *s.StepName
}

func (s *Step) Description() string {
	if s.StepDescription == nil {
		return ""
	}
	return *s.StepDescription
}

// ExpectedStatus returns the expected status code. ok is false when no
// check is wanted.
func (s *Step) ExpectedStatus() (code int, ok bool, err error) {
	if s.ExpectedStatusCode == nil || *s.ExpectedStatusCode == NoCheck {
		return 0, false, nil
	}
	code, err = strconv.Atoi(string(*s.ExpectedStatusCode))
	if err != nil {
		return 0, false, fmt.Errorf("step %s: expected status code %q is not a number", s.Name(), *s.ExpectedStatusCode)
	}
	return code, true, nil
}

// ExpectedResponseString serializes the expected response, "null" when
// unset.
func (s *Step) ExpectedResponseString() string {
	if !rawSet(s.ExpectedResponse) {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, s.ExpectedResponse); err != nil {
		return string(s.ExpectedResponse)
	}
	return buf.String()
}

// Validate checks what the runner needs before it can send the step.
func (s *Step) Validate() error {
	if s.Request == nil {
		return fmt.Errorf("%w: %s", ErrNoRequest, s.Name())
	}
	if !http.ValidMethod(s.Request.MethodName()) {
		return fmt.Errorf("%w %q in step %s", ErrInvalidMethod, s.Request.MethodName(), s.Name())
	}
	if _, _, err := s.ExpectedStatus(); err != nil {
		return err
	}
	return nil
}

func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	return &Step{
		StepName:           clonePtr(s.StepName),
		StepDescription:    clonePtr(s.StepDescription),
		Request:            s.Request.Clone(),
		ExpectedStatusCode: clonePtr(s.ExpectedStatusCode),
		ExpectedResponse:   cloneRaw(s.ExpectedResponse),
	}
}

// Marshal renders the step as JSON without HTML escaping, so placeholders
// such as $<cache:a:b> survive as written.
func (s *Step) Marshal() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// DecodeStep decodes a step, keeping numbers in maps as json.Number.
func DecodeStep(text string) (*Step, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	step := &Step{}
	if err := dec.Decode(step); err != nil {
		return nil, err
	}
	return step, nil
}

// Request describes the HTTP call of a step.
type Request struct {
	BaseURI          *string         `json:"baseUri,omitempty"`
	Endpoint         *string         `json:"endpoint,omitempty"`
	Method           *string         `json:"method,omitempty"`
	Headers          map[string]any  `json:"headers,omitzero"`
	Body             json.RawMessage `json:"body,omitempty"`
	Params           map[string]any  `json:"params,omitzero"`
	QueryParams      map[string]any  `json:"queryParams,omitzero"`
	PathParams       map[string]any  `json:"pathParams,omitzero"`
	FormParams       map[string]any  `json:"formParams,omitzero"`
	ContentType      *string         `json:"contentType,omitempty"`
	AuthRequired     *bool           `json:"authRequired,omitempty"`
	AuthToken        *string         `json:"authToken,omitempty"`
	AuthFunctionName *string         `json:"authFunctionName,omitempty"`
}

// IsAuthRequired defaults to true when unset.
func (r *Request) IsAuthRequired() bool {
	return r.AuthRequired == nil || *r.AuthRequired
}

func (r *Request) MethodName() string {
	if r.Method == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(*r.Method))
}

func (r *Request) HasBody() bool {
	return rawSet(r.Body)
}

// BodyText is the payload to send: a JSON string body is sent unquoted,
// anything else as compact JSON.
func (r *Request) BodyText() string {
	if !r.HasBody() {
		return ""
	}
	body := bytes.TrimSpace(r.Body)
	if body[0] == '"' {
		var s string
		if err := json.Unmarshal(body, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return string(body)
	}
	return buf.String()
}

func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	return &Request{
		BaseURI:          clonePtr(r.BaseURI),
		Endpoint:         clonePtr(r.Endpoint),
		Method:           clonePtr(r.Method),
		Headers:          cloneMap(r.Headers),
		Body:             cloneRaw(r.Body),
		Params:           cloneMap(r.Params),
		QueryParams:      cloneMap(r.QueryParams),
		PathParams:       cloneMap(r.PathParams),
		FormParams:       cloneMap(r.FormParams),
		ContentType:      clonePtr(r.ContentType),
		AuthRequired:     clonePtr(r.AuthRequired),
		AuthToken:        clonePtr(r.AuthToken),
		AuthFunctionName: clonePtr(r.AuthFunctionName),
	}
}

// StringMap renders map values as text, keys sorted.
func StringMap(m map[string]any) ([]string, map[string]string) {
	keys := make([]string, 0, len(m))
	out := make(map[string]string, len(m))
	for k, v := range m {
		keys = append(keys, k)
		out[k] = Stringify(v)
	}
	sort.Strings(keys)
	return keys, out
}

// Stringify renders a decoded JSON value as request text.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func rawSet(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

// String returns a pointer to s, for building steps in code.
func String(s string) *string {
	return &s
}

func Bool(b bool) *bool {
	return &b
}

func Code(code string) *StatusCode {
	c := StatusCode(code)
	return &c
}
