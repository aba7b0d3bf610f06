package capture

import (
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/restdd/packages/http"
	"github.com/tidwall/gjson"
)

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

// Path converts a dotted path with bracket indexes (items[0].id) into gjson
// syntax (items.0.id).
func Path(path string) string {
	path = strings.TrimSpace(path)
	path = indexPattern.ReplaceAllString(path, ".$1")
	path = strings.TrimPrefix(path, ".")
	path = strings.TrimPrefix(path, "$.")
	if path == "$" {
		return ""
	}
	return path
}

type Extractor struct {
	raw      string
	bodyJSON gjson.Result
	valid    bool
}

func NewExtractor(body string) *Extractor {
	e := &Extractor{raw: body}
	if gjson.Valid(body) {
		e.bodyJSON = gjson.Parse(body)
		e.valid = true
	}
	return e
}

// Extract returns the value at path as text. Strings come back without their
// surrounding quotes (escape sequences are kept); objects, arrays, numbers,
// booleans and null come back as JSON. An empty path selects the whole body.
func (e *Extractor) Extract(path string) (string, bool) {
	path = Path(path)
	if path == "" {
		return strings.TrimSpace(e.raw), true
	}
	if !e.valid {
		return "", false
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return "", false
	}
	return rawText(result), true
}

// Value returns the decoded value at path.
func (e *Extractor) Value(path string) (any, bool) {
	if !e.valid {
		if Path(path) == "" {
			return e.raw, true
		}
		return nil, false
	}
	path = Path(path)
	if path == "" {
		return e.bodyJSON.Value(), true
	}
	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func rawText(result gjson.Result) string {
	raw := strings.TrimSpace(result.Raw)
	if result.Type == gjson.String && len(raw) >= 2 && strings.HasPrefix(raw, `"`) {
		return raw[1 : len(raw)-1]
	}
	return raw
}

// ExtractHeader returns the value of the first header named name, ignoring case.
func ExtractHeader(headers []http.Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// ExtractAll reads every named path out of body, skipping missing ones.
func ExtractAll(body string, paths map[string]string) map[string]any {
	extractor := NewExtractor(body)
	results := make(map[string]any)

	for name, path := range paths {
		if value, ok := extractor.Value(path); ok {
			results[name] = value
		}
	}

	return results
}
