package http

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Header is a single response or request header. Lists of headers keep
// duplicates and their order.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SameName reports whether both headers carry the same name, ignoring case.
func (h Header) SameName(other Header) bool {
	return strings.EqualFold(h.Name, other.Name)
}

func (h Header) String() string {
	return h.Name + "=" + h.Value
}

var methods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"PATCH":   true,
	"DELETE":  true,
	"HEAD":    true,
	"OPTIONS": true,
	"TRACE":   true,
}

// ValidMethod reports whether method names a standard HTTP verb, ignoring case.
func ValidMethod(method string) bool {
	return methods[strings.ToUpper(method)]
}

// Request is a fully resolved request ready to be handed to a Transport.
type Request struct {
	Method      string
	BaseURI     string
	Path        string
	Headers     []Header
	QueryParams map[string]string
	PathParams  map[string]string
	FormParams  map[string]string
	// Params go to the query string for body-less methods and to the form
	// body otherwise.
	Params      map[string]string
	Body        string
	ContentType string
	Timeout     time.Duration
}

func NewRequest(method, baseURI string) *Request {
	return &Request{
		Method:      strings.ToUpper(method),
		BaseURI:     baseURI,
		QueryParams: make(map[string]string),
		PathParams:  make(map[string]string),
		FormParams:  make(map[string]string),
		Params:      make(map[string]string),
	}
}

// SetHeader replaces every header named key with a single value.
func (r *Request) SetHeader(key, value string) *Request {
	kept := r.Headers[:0]
	for _, h := range r.Headers {
		if !strings.EqualFold(h.Name, key) {
			kept = append(kept, h)
		}
	}
	r.Headers = append(kept, Header{Name: key, Value: value})
	return r
}

func (r *Request) AddHeader(key, value string) *Request {
	r.Headers = append(r.Headers, Header{Name: key, Value: value})
	return r
}

// Header returns the first header named key.
func (r *Request) Header(key string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, key) {
			return h.Value
		}
	}
	return ""
}

func (r *Request) SetPath(path string) *Request {
	r.Path = path
	return r
}

func (r *Request) SetBody(body string) *Request {
	r.Body = body
	return r
}

func (r *Request) SetContentType(contentType string) *Request {
	r.ContentType = contentType
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) SetQueryParam(key, value string) *Request {
	r.QueryParams[key] = value
	return r
}

func (r *Request) SetPathParam(key, value string) *Request {
	r.PathParams[key] = value
	return r
}

func (r *Request) SetFormParam(key, value string) *Request {
	r.FormParams[key] = value
	return r
}

func (r *Request) SetParam(key, value string) *Request {
	r.Params[key] = value
	return r
}

func (r *Request) paramsInQuery() bool {
	switch r.Method {
	case "GET", "HEAD", "DELETE", "OPTIONS", "TRACE":
		return true
	}
	return false
}

// URL joins the base URI and path, expands {name} path parameters and
// appends query parameters.
func (r *Request) URL() (string, error) {
	raw := joinURL(r.BaseURI, r.Path)

	for _, k := range sortedKeys(r.PathParams) {
		raw = strings.ReplaceAll(raw, "{"+k+"}", url.PathEscape(r.PathParams[k]))
	}

	query := make(map[string]string, len(r.QueryParams)+len(r.Params))
	for k, v := range r.QueryParams {
		query[k] = v
	}
	if r.paramsInQuery() {
		for k, v := range r.Params {
			query[k] = v
		}
	}
	if len(query) == 0 {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// EncodedBody returns the payload and its content type. An explicit body
// wins over form parameters.
func (r *Request) EncodedBody() (string, string) {
	if r.Body != "" {
		return r.Body, r.ContentType
	}

	form := url.Values{}
	for k, v := range r.FormParams {
		form.Set(k, v)
	}
	if !r.paramsInQuery() {
		for k, v := range r.Params {
			form.Set(k, v)
		}
	}
	if len(form) == 0 {
		return "", r.ContentType
	}

	contentType := r.ContentType
	if contentType == "" {
		contentType = "application/x-www-form-urlencoded"
	}
	return form.Encode(), contentType
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ParseFormBody(body string) map[string]string {
	result := make(map[string]string)
	pairs := strings.Split(body, "&")
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			key, _ := url.QueryUnescape(kv[0])
			value, _ := url.QueryUnescape(kv[1])
			result[key] = value
		}
	}
	return result
}
