// Package cache holds the per-scenario registers of response bodies and
// headers recorded by earlier steps.
package cache

import (
	"github.com/abdul-hamid-achik/restdd/packages/http"
)

// Snapshot is an immutable view of the registers as of one point in a run.
// With returns a new Snapshot, leaving the receiver untouched, so each step
// sees exactly the state produced by the steps before it.
type Snapshot struct {
	bodies  map[string]string
	headers map[string][]http.Header
	order   []string
}

// Empty returns a snapshot with no recorded steps.
func Empty() Snapshot {
	return Snapshot{}
}

// With records the body and headers of step on a copy of the snapshot.
func (s Snapshot) With(step, body string, headers []http.Header) Snapshot {
	next := Snapshot{
		bodies:  make(map[string]string, len(s.bodies)+1),
		headers: make(map[string][]http.Header, len(s.headers)+1),
		order:   make([]string, 0, len(s.order)+1),
	}
	for k, v := range s.bodies {
		next.bodies[k] = v
	}
	for k, v := range s.headers {
		next.headers[k] = v
	}
	for _, name := range s.order {
		if name != step {
			next.order = append(next.order, name)
		}
	}

	next.bodies[step] = body
	next.headers[step] = append([]http.Header(nil), headers...)
	next.order = append(next.order, step)
	return next
}

// Body returns the cached response body of step.
func (s Snapshot) Body(step string) (string, bool) {
	body, ok := s.bodies[step]
	return body, ok
}

// Headers returns the cached response headers of step.
func (s Snapshot) Headers(step string) ([]http.Header, bool) {
	headers, ok := s.headers[step]
	return headers, ok
}

// Len is the number of distinct steps recorded.
func (s Snapshot) Len() int {
	return len(s.order)
}

// Steps lists recorded step names, least recently recorded first.
func (s Snapshot) Steps() []string {
	return append([]string(nil), s.order...)
}
