package assertions

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/abdul-hamid-achik/restdd/packages/http"
	"github.com/tidwall/gjson"
)

// MatchExpected compares a response body with an expected response. Every
// member of expected must be present in the body with an equal value; the
// body may carry more. An object of the form {"operator": op, "value": v}
// applies op instead of equality. A null or empty expectation matches
// anything.
func MatchExpected(resp *http.Response, expected string) []*Result {
	exp := gjson.Parse(expected)
	if expected == "" || exp.Type == gjson.Null {
		return nil
	}

	var actual any
	if gjson.ValidBytes(resp.Body) {
		actual = gjson.ParseBytes(resp.Body).Value()
	} else {
		actual = resp.BodyString()
	}

	var results []*Result
	match("body", exp.Value(), actual, &results)
	return results
}

// Failed returns the failed results.
func Failed(results []*Result) []*Result {
	var failed []*Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func match(path string, expected, actual any, results *[]*Result) {
	switch exp := expected.(type) {
	case map[string]any:
		if op, value, ok := operatorSpec(exp); ok {
			passed, msg := applyOperator(actual, op, value)
			*results = append(*results, &Result{Subject: path, Operator: op, Expected: value, Actual: actual, Passed: passed, Message: msg})
			return
		}
		obj, ok := actual.(map[string]any)
		if !ok {
			*results = append(*results, mismatch(path, expected, actual, fmt.Sprintf("expected object, got %s", kind(actual))))
			return
		}
		keys := make([]string, 0, len(exp))
		for k := range exp {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := path + "." + k
			got, present := obj[k]
			if !present {
				*results = append(*results, mismatch(child, exp[k], nil, "missing in response"))
				continue
			}
			match(child, exp[k], got, results)
		}
	case []any:
		arr, ok := actual.([]any)
		if !ok {
			*results = append(*results, mismatch(path, expected, actual, fmt.Sprintf("expected array, got %s", kind(actual))))
			return
		}
		if len(arr) != len(exp) {
			*results = append(*results, mismatch(path, len(exp), len(arr), fmt.Sprintf("expected %d items, got %d", len(exp), len(arr))))
			return
		}
		for i := range exp {
			match(path+"["+strconv.Itoa(i)+"]", exp[i], arr[i], results)
		}
	default:
		passed, msg := equals(actual, expected)
		if expected == nil {
			passed = actual == nil
			if !passed {
				msg = fmt.Sprintf("expected null, got %v", actual)
			}
		}
		*results = append(*results, &Result{Subject: path, Operator: "==", Expected: expected, Actual: actual, Passed: passed, Message: msg})
	}
}

func operatorSpec(m map[string]any) (string, any, bool) {
	if len(m) != 2 {
		return "", nil, false
	}
	op, hasOp := m["operator"].(string)
	value, hasValue := m["value"]
	return op, value, hasOp && hasValue
}

func mismatch(path string, expected, actual any, msg string) *Result {
	return &Result{Subject: path, Operator: "==", Expected: expected, Actual: actual, Message: msg}
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	return "number"
}
