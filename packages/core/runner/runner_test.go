package runner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/auth"
	"github.com/abdul-hamid-achik/restdd/packages/expression"
	"github.com/abdul-hamid-achik/restdd/packages/http"
	"github.com/abdul-hamid-achik/restdd/packages/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, doc string) *scenario.Scenario {
	t.Helper()
	scenarios, err := scenario.Parse([]byte(doc), "dd/quotes.json")
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	return scenarios[0]
}

type fakeTransport struct {
	mu       sync.Mutex
	requests []*http.Request
	respond  func(req *http.Request) (*http.Response, error)
}

func (f *fakeTransport) Do(_ context.Context, req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.respond == nil {
		return &http.Response{StatusCode: 200, Body: []byte(`{}`)}, nil
	}
	return f.respond(req)
}

func TestRunner_SendAllResolvesAgainstEarlierSteps(t *testing.T) {
	var created atomic.Value
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case "POST":
			var in struct {
				Code string `json:"code"`
			}
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &in))
			created.Store(in.Code)
			w.Header().Set("X-Trace", "t-1")
			w.WriteHeader(nethttp.StatusCreated)
			_, _ = w.Write([]byte(`{"id": "Q-1", "code": "` + in.Code + `"}`))
		case "GET":
			assert.Equal(t, created.Load(), r.URL.Query().Get("code"))
			assert.Equal(t, "t-1", r.Header.Get("X-Trace"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			_, _ = w.Write([]byte(`{"code": "` + r.URL.Query().Get("code") + `"}`))
		}
	}))
	defer server.Close()

	scn := parseOne(t, `{
		"globalConfig": {"request": {"headers": {"Accept": "application/json"}}},
		"createAndFetch": {
			"testDescription": "create then fetch",
			"steps": {
				"create": {
					"request": {"method": "post", "endpoint": "/quotes", "body": {"code": "$<rx:\\d{4}>"}},
					"expectedStatusCode": 201
				},
				"fetch": {
					"request": {
						"method": "GET",
						"endpoint": "/quotes",
						"queryParams": {"code": "$<cache:create:code>"},
						"headers": {"X-Trace": "$<cache_headers:create:x-trace>"}
					},
					"expectedStatusCode": "200",
					"expectedResponse": {"code": "$<cache:create:code>"}
				}
			}
		}
	}`)

	r := New(scn, WithBaseURI(server.URL))
	responses, err := r.SendAll(context.Background())
	require.NoError(t, err)

	require.Len(t, responses, 2)
	code, _ := created.Load().(string)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}$`), code)
	assert.Equal(t, []string{"create", "fetch"}, r.Order())
	assert.Same(t, responses["fetch"], r.LastResponse())
	assert.Equal(t, "create then fetch", r.Description())

	expected, err := r.ExpectedResponse("fetch")
	require.NoError(t, err)
	assert.JSONEq(t, `{"code": "`+code+`"}`, expected)
}

func TestRunner_StatusMismatchStopsScenario(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	scn := parseOne(t, `{
		"missing": {
			"steps": {
				"first": {"request": {"method": "GET", "endpoint": "/a"}, "expectedStatusCode": 404},
				"second": {"request": {"method": "GET", "endpoint": "/b"}}
			}
		}
	}`)

	r := New(scn, WithBaseURI(server.URL))
	responses, err := r.SendAll(context.Background())

	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, 404, assertErr.Expected)
	assert.Equal(t, 200, assertErr.Actual)
	assert.Equal(t, "missing", assertErr.Scenario)
	assert.Equal(t, "first", assertErr.Step)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "200")

	assert.Equal(t, int32(1), hits.Load())
	assert.Len(t, responses, 1)
	assert.NotNil(t, r.LastResponse())
	_, cached := r.Snapshot().Body("first")
	assert.True(t, cached)
}

func TestRunner_SpliceObjectsKeepStrings(t *testing.T) {
	transport := &fakeTransport{}
	transport.respond = func(req *http.Request) (*http.Response, error) {
		if req.Path == "/one" {
			return &http.Response{StatusCode: 200, Body: []byte(`{"obj": {"x": 1}, "s": "hello"}`)}, nil
		}
		return &http.Response{StatusCode: 200, Body: []byte(`{}`)}, nil
	}

	scn := parseOne(t, `{
		"splice": {
			"steps": {
				"one": {"request": {"method": "GET", "endpoint": "/one"}},
				"two": {"request": {"method": "POST", "endpoint": "/two", "body": {"o": "$<cache:one:obj>", "s": "$<cache:one:s>"}}}
			}
		}
	}`)

	_, err := New(scn, WithTransport(transport), WithBaseURI("http://api")).SendAll(context.Background())
	require.NoError(t, err)

	require.Len(t, transport.requests, 2)
	assert.JSONEq(t, `{"o": {"x": 1}, "s": "hello"}`, transport.requests[1].Body)
}

func TestRunner_Auth(t *testing.T) {
	registry := auth.NewRegistry()
	registry.RegisterStatic("service", "Bearer from-function")

	tests := []struct {
		name    string
		request string
		want    string
		sent    bool
	}{
		{"function", `{"method": "GET", "authFunctionName": "SERVICE"}`, "Bearer from-function", true},
		{"explicit token overrides function", `{"method": "GET", "authFunctionName": "service", "authToken": "Bearer explicit"}`, "Bearer explicit", true},
		{"not required", `{"method": "GET", "authRequired": false, "authToken": "Bearer explicit"}`, "", false},
		{"empty function sends an empty header", `{"method": "GET", "authFunctionName": "EMPTY"}`, "", true},
		{"no function", `{"method": "GET"}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{}
			scn := parseOne(t, `{"auth": {"steps": {"call": {"request": `+tt.request+`}}}}`)

			_, err := New(scn, WithTransport(transport), WithAuth(registry), WithBaseURI("http://api")).SendAll(context.Background())
			require.NoError(t, err)
			require.Len(t, transport.requests, 1)
			req := transport.requests[0]
			assert.Equal(t, tt.want, req.Header("Authorization"))
			assert.Equal(t, tt.sent, hasHeader(req, "Authorization"))
		})
	}
}

func hasHeader(req *http.Request, name string) bool {
	for _, h := range req.Headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

func TestRunner_UnknownAuthFunction(t *testing.T) {
	scn := parseOne(t, `{"auth": {"steps": {"call": {"request": {"method": "GET", "authFunctionName": "nope"}}}}}`)

	_, err := New(scn, WithTransport(&fakeTransport{}), WithBaseURI("http://api")).SendAll(context.Background())
	assert.ErrorIs(t, err, auth.ErrNotImplemented)
}

func TestRunner_BuildsRequestFromStep(t *testing.T) {
	transport := &fakeTransport{}
	scn := parseOne(t, `{
		"build": {
			"steps": {
				"call": {
					"request": {
						"baseUri": "http://other/v2",
						"method": "DELETE",
						"endpoint": "/quotes/{id}",
						"pathParams": {"id": 42},
						"params": {"force": true},
						"contentType": "application/json",
						"body": "raw text"
					}
				}
			}
		}
	}`)

	_, err := New(scn, WithTransport(transport), WithBaseURI("http://api")).SendAll(context.Background())
	require.NoError(t, err)

	req := transport.requests[0]
	url, err := req.URL()
	require.NoError(t, err)
	assert.Equal(t, "http://other/v2/quotes/42?force=true", url)
	assert.Equal(t, "raw text", req.Body)
	assert.Equal(t, "application/json", req.ContentType)
}

func TestRunner_Errors(t *testing.T) {
	t.Run("cache before any step", func(t *testing.T) {
		scn := parseOne(t, `{"s": {"steps": {"a": {"request": {"method": "GET", "endpoint": "$<cache:x:y>"}}}}}`)

		_, err := New(scn, WithTransport(&fakeTransport{})).SendAll(context.Background())

		var stepErr *StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, "a", stepErr.Step)
		assert.ErrorIs(t, err, expression.ErrNoCachedSteps)
	})

	t.Run("transport failure", func(t *testing.T) {
		transport := &fakeTransport{respond: func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}}
		scn := parseOne(t, `{"s": {"steps": {"a": {"request": {"method": "GET"}}}}}`)

		_, err := New(scn, WithTransport(transport), WithBaseURI("http://api")).SendAll(context.Background())
		var transportErr *TransportError
		assert.ErrorAs(t, err, &transportErr)
		assert.NotErrorIs(t, err, ErrNoResponse)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("timeout keeps its cause", func(t *testing.T) {
		transport := &fakeTransport{respond: func(*http.Request) (*http.Response, error) {
			return nil, context.DeadlineExceeded
		}}
		scn := parseOne(t, `{"s": {"steps": {"a": {"request": {"method": "GET"}}}}}`)

		_, err := New(scn, WithTransport(transport), WithBaseURI("http://api")).SendAll(context.Background())
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		var stepErr *StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, "a", stepErr.Step)
	})

	t.Run("nil response", func(t *testing.T) {
		transport := &fakeTransport{respond: func(*http.Request) (*http.Response, error) {
			return nil, nil
		}}
		scn := parseOne(t, `{"s": {"steps": {"a": {"request": {"method": "GET"}}}}}`)

		_, err := New(scn, WithTransport(transport), WithBaseURI("http://api")).SendAll(context.Background())
		assert.ErrorIs(t, err, ErrNoResponse)
	})

	t.Run("invalid method", func(t *testing.T) {
		scn := parseOne(t, `{"s": {"steps": {"a": {"request": {"method": "FETCH"}}}}}`)

		_, err := New(scn, WithTransport(&fakeTransport{})).SendAll(context.Background())
		assert.ErrorIs(t, err, scenario.ErrInvalidMethod)
	})
}

func TestRunner_ExpectedValuesWithoutSending(t *testing.T) {
	transport := &fakeTransport{}
	scn := parseOne(t, `{
		"s": {
			"steps": {
				"a": {"request": {"method": "GET"}, "expectedStatusCode": "-1", "expectedResponse": {"when": "$<today:yyyy>"}},
				"b": {"request": {"method": "GET"}, "expectedStatusCode": 204}
			}
		}
	}`)
	clock := func() time.Time { return time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC) }
	r := New(scn, WithTransport(transport), WithClock(clock))

	_, ok, err := r.StatusCode("a")
	require.NoError(t, err)
	assert.False(t, ok)

	code, ok, err := r.StatusCode("b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 204, code)

	expected, err := r.ExpectedResponse("a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"when": "2024"}`, expected)

	_, err = r.ExpectedResponse("zzz")
	assert.ErrorIs(t, err, scenario.ErrUnknownStep)
	assert.Empty(t, transport.requests)
	assert.Nil(t, r.LastResponse())
}

func TestRunner_ExpectedResponseResolvesGeneratedValues(t *testing.T) {
	scn := parseOne(t, `{
		"s": {
			"steps": {
				"create": {"request": {"method": "POST"}},
				"check": {
					"request": {"method": "GET"},
					"expectedResponse": {"d": "$<today>", "m": "$<BOM:yyyy-MM-dd>", "code": "$<rx:[a-z]{16}>", "id": "$<cache:create:id>"}
				}
			}
		}
	}`)
	transport := &fakeTransport{respond: func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: []byte(`{"id": "Q-9"}`)}, nil
	}}
	clock := func() time.Time { return time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC) }
	r := New(scn, WithTransport(transport), WithBaseURI("http://api"), WithClock(clock))

	_, err := r.Send(context.Background(), scn.Steps[0])
	require.NoError(t, err)

	first, err := r.ExpectedResponse("check")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(first), &got))
	assert.Equal(t, "05/17/2024", got["d"])
	assert.Equal(t, "2024-05-01", got["m"])
	assert.Equal(t, "Q-9", got["id"])
	assert.Regexp(t, `^[a-z]{16}$`, got["code"])

	second, err := r.ExpectedResponse("check")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunner_StepIsNotMutated(t *testing.T) {
	scn := parseOne(t, `{"s": {"steps": {"a": {"request": {"method": "GET", "endpoint": "/$<rx:[a-z]{3}>"}}}}}`)
	before, err := scn.Steps[0].Marshal()
	require.NoError(t, err)

	_, err = New(scn, WithTransport(&fakeTransport{}), WithBaseURI("http://api")).SendAll(context.Background())
	require.NoError(t, err)

	after, err := scn.Steps[0].Marshal()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunners_DoNotShareCaches(t *testing.T) {
	scn := parseOne(t, `{"s": {"steps": {"a": {"request": {"method": "GET"}}}}}`)

	first := New(scn, WithTransport(&fakeTransport{}), WithBaseURI("http://api"))
	_, err := first.SendAll(context.Background())
	require.NoError(t, err)

	second := New(scn, WithTransport(&fakeTransport{}))
	assert.Zero(t, second.Snapshot().Len())
	assert.Nil(t, second.LastResponse())
}
