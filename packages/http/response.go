package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Response struct {
	StatusCode int
	Status     string
	Headers    []Header
	Body       []byte
	Duration   time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Header returns the first header named key, ignoring case.
func (r *Response) Header(key string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, key) {
			return h.Value
		}
	}
	return ""
}

// HeaderValues returns every value of the headers named key, in order.
func (r *Response) HeaderValues(key string) []string {
	var values []string
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, key) {
			values = append(values, h.Value)
		}
	}
	return values
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// AsModel decodes a successful body into v. A failed response is decoded
// as a RestError and returned as the error.
func (r *Response) AsModel(v any) error {
	if !r.IsSuccess() {
		restErr, err := r.decodeError()
		if err != nil {
			return err
		}
		return restErr
	}
	return json.Unmarshal(r.Body, v)
}

// AsSuccess decodes the body into v and fails when the response is not 2xx.
func (r *Response) AsSuccess(v any) error {
	if !r.IsSuccess() {
		return fmt.Errorf("the response was not successful, expected success here: %s", r.BodyString())
	}
	return json.Unmarshal(r.Body, v)
}

// AsError decodes the body of a failed response.
func (r *Response) AsError() (*RestError, error) {
	if r.IsSuccess() {
		return nil, errors.New("the response is not failed, expected failure here")
	}
	return r.decodeError()
}

func (r *Response) decodeError() (*RestError, error) {
	restErr := &RestError{}
	if err := json.Unmarshal(r.Body, restErr); err != nil {
		return nil, fmt.Errorf("decoding error body (status %d): %w", r.StatusCode, err)
	}
	return restErr, nil
}
