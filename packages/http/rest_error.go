package http

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RestError is the conventional error body returned by the services under test.
type RestError struct {
	ErrorCode string         `json:"errorCode,omitempty"`
	Message   string         `json:"message,omitempty"`
	Field     string         `json:"field,omitempty"`
	Errors    []RestError    `json:"errors,omitempty"`
	Unknown   map[string]any `json:"-"`
}

func (e *RestError) UnmarshalJSON(data []byte) error {
	type plain RestError
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range []string{"errorCode", "message", "field", "errors"} {
		delete(all, k)
	}
	if len(all) > 0 {
		known.Unknown = all
	}

	*e = RestError(known)
	return nil
}

func (e *RestError) Error() string {
	var parts []string
	if e.ErrorCode != "" && e.Message != "" {
		parts = append(parts, fmt.Sprintf("ErrorCode: %s - Message: %s", e.ErrorCode, e.Message))
	} else if e.Message != "" {
		parts = append(parts, "Message: "+e.Message)
	}
	if e.Field != "" {
		parts = append(parts, "Field: "+e.Field)
	}
	for _, nested := range e.Errors {
		parts = append(parts, fmt.Sprintf("ErrorCode: %s - Message: %s", nested.ErrorCode, nested.Message))
	}
	return "RestError[" + strings.Join(parts, "; ") + "]"
}
