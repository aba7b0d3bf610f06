package expression

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var expressionPattern = regexp.MustCompile(`("?)\$<(\w+)([^>]*)>("?)`)

var (
	ErrBadDateUnit      = errors.New("cannot parse temporal unit")
	ErrBadDateFormat    = errors.New("invalid date format pattern")
	ErrBadReference     = errors.New("wrong reference")
	ErrNoCachedSteps    = errors.New("no step executed yet")
	ErrNoSuchCachedData = errors.New("no such cached data")
	ErrHeaderNotFound   = errors.New("no such cached header")
	ErrPathNotFound     = errors.New("path not found")
	ErrNoRegexMatch     = errors.New("could not generate a matching string")
)

// Resolver turns the arguments of one placeholder into its replacement.
// args is everything after the type name, trimmed, so "$<cache:a:b>" passes
// ":a:b" and "$<today+1d>" passes "+1d".
type Resolver func(args string) (string, error)

// Set is an immutable mapping from expression type to resolver. The zero
// value is an empty set.
type Set struct {
	resolvers map[string]Resolver
}

func NewSet(resolvers map[string]Resolver) Set {
	s := Set{resolvers: make(map[string]Resolver, len(resolvers))}
	for name, r := range resolvers {
		s.resolvers[name] = r
	}
	return s
}

// With returns a copy of the set with name bound to r.
func (s Set) With(name string, r Resolver) Set {
	next := NewSet(s.resolvers)
	next.resolvers[name] = r
	return next
}

// Merge returns a copy of the set extended with other. Bindings in other
// win on conflict.
func (s Set) Merge(other Set) Set {
	next := NewSet(s.resolvers)
	for name, r := range other.resolvers {
		next.resolvers[name] = r
	}
	return next
}

func (s Set) Lookup(name string) (Resolver, bool) {
	r, ok := s.resolvers[name]
	return r, ok
}

func (s Set) Names() []string {
	names := make([]string, 0, len(s.resolvers))
	for name := range s.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Error reports a placeholder that failed to resolve.
type Error struct {
	Type string
	Args string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("expression $<%s%s>: %v", e.Type, e.Args, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Parse replaces every placeholder in text whose type is registered in set.
// Unregistered placeholders are kept exactly as written, so text can be run
// through several sets in turn.
//
// A cache or testdata value that is a JSON object or array replaces the
// placeholder together with its surrounding quotes. Every other value is
// written between the quotes the placeholder had. Cache and testdata values
// are already JSON text; the rest are escaped as a JSON string body.
func Parse(text string, set Set) (string, error) {
	matches := expressionPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var sb strings.Builder
	sb.Grow(len(text))
	last := 0

	for _, m := range matches {
		sb.WriteString(text[last:m[0]])
		last = m[1]

		exprType := text[m[4]:m[5]]
		resolve, ok := set.Lookup(exprType)
		if !ok {
			sb.WriteString(text[m[0]:m[1]])
			continue
		}

		args := strings.TrimSpace(strings.ReplaceAll(text[m[6]:m[7]], `\\`, `\`))
		value, err := resolve(args)
		if err != nil {
			return "", &Error{Type: exprType, Args: args, Err: err}
		}

		if splicesStructure(exprType) {
			if strings.HasPrefix(value, "{") || strings.HasPrefix(value, "[") {
				sb.WriteString(value)
				continue
			}
		} else {
			value = escapeString(value)
		}
		sb.WriteString(text[m[2]:m[3]])
		sb.WriteString(value)
		sb.WriteString(text[m[8]:m[9]])
	}

	sb.WriteString(text[last:])
	return sb.String(), nil
}

// escapeString returns s encoded as the body of a JSON string.
func escapeString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return s
	}
	quoted := strings.TrimSuffix(buf.String(), "\n")
	return quoted[1 : len(quoted)-1]
}

func splicesStructure(exprType string) bool {
	return exprType == "cache" || exprType == "testdata"
}

// Contains reports whether text still holds any placeholder.
func Contains(text string) bool {
	return expressionPattern.MatchString(text)
}

func stripColon(args string) string {
	return strings.TrimPrefix(args, ":")
}
