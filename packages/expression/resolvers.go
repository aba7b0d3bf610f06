package expression

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/builtin"
	"github.com/abdul-hamid-achik/restdd/packages/cache"
	"github.com/abdul-hamid-achik/restdd/packages/capture"
	"github.com/lucasjones/reggen"
)

const (
	// regexAttempts bounds how often a generated string is retried when it
	// does not match its own expression.
	regexAttempts = 20
	// regexRepeatLimit caps unbounded quantifiers such as * and +.
	regexRepeatLimit = 10
)

// Regex registers rx, producing a random string matching the expression.
func Regex() Set {
	return NewSet(map[string]Resolver{
		"rx": func(args string) (string, error) {
			return GenerateRegex(stripColon(args))
		},
	})
}

// GenerateRegex returns a random string that fully matches pattern.
func GenerateRegex(pattern string) (string, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return "", fmt.Errorf("invalid regular expression %q: %w", pattern, err)
	}
	gen, err := reggen.NewGenerator(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regular expression %q: %w", pattern, err)
	}

	for i := 0; i < regexAttempts; i++ {
		s := gen.Generate(regexRepeatLimit)
		if re.MatchString(s) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoRegexMatch, pattern)
}

// Loader returns the text of a test-data document by relative path.
type Loader interface {
	Load(path string) (string, error)
}

// TestData registers testdata:<file>:<path>.
func TestData(loader Loader) Set {
	return NewSet(map[string]Resolver{
		"testdata": func(args string) (string, error) {
			parts := strings.Split(stripColon(args), ":")
			if len(parts) != 2 {
				return "", fmt.Errorf("%w %s: only a file and one path are allowed, e.g. $<testdata:path_to_file:path_to_element>",
					ErrBadReference, args)
			}
			file, path := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

			text, err := loader.Load(file)
			if err != nil {
				return "", err
			}
			value, ok := capture.NewExtractor(text).Extract(path)
			if !ok {
				return "", fmt.Errorf("%w: %s in %s", ErrPathNotFound, path, file)
			}
			return value, nil
		},
	})
}

// Cache registers cache:<step>:<path>, reading bodies recorded in snapshot.
func Cache(snapshot cache.Snapshot) Set {
	return NewSet(map[string]Resolver{
		"cache": func(args string) (string, error) {
			step, path, err := cacheReference(snapshot, args)
			if err != nil {
				return "", err
			}
			body, ok := snapshot.Body(step)
			if !ok || body == "" {
				return "", fmt.Errorf("%w: %s", ErrNoSuchCachedData, step)
			}
			value, ok := capture.NewExtractor(body).Extract(path)
			if !ok {
				return "", fmt.Errorf("%w: %s in response of %s", ErrPathNotFound, path, step)
			}
			return value, nil
		},
	})
}

// CacheHeaders registers cache_headers:<step>:<header>. Header names match
// ignoring case and the first match wins.
func CacheHeaders(snapshot cache.Snapshot) Set {
	return NewSet(map[string]Resolver{
		"cache_headers": func(args string) (string, error) {
			step, name, err := cacheReference(snapshot, args)
			if err != nil {
				return "", err
			}
			headers, ok := snapshot.Headers(step)
			if !ok || len(headers) == 0 {
				return "", fmt.Errorf("%w: %s", ErrNoSuchCachedData, step)
			}
			value, ok := capture.ExtractHeader(headers, name)
			if !ok {
				return "", fmt.Errorf("%w: %s in response of %s", ErrHeaderNotFound, name, step)
			}
			return value, nil
		},
	})
}

func cacheReference(snapshot cache.Snapshot, args string) (string, string, error) {
	step, rest, found := strings.Cut(stripColon(args), ":")
	step = strings.TrimSpace(step)
	if snapshot.Len() == 0 {
		return "", "", fmt.Errorf("%w: check that %s is not referenced by the first step and that earlier responses were received",
			ErrNoCachedSteps, step)
	}
	if !found {
		return "", "", fmt.Errorf("%w %s: expected <step>:<path>", ErrBadReference, args)
	}
	return step, strings.TrimSpace(rest), nil
}

// Builtins registers the helper functions of package builtin under their
// own names.
func Builtins(clock func() time.Time) Set {
	var opts []builtin.Option
	if clock != nil {
		opts = append(opts, builtin.WithClock(clock))
	}
	registry := builtin.NewRegistry(opts...)

	resolvers := make(map[string]Resolver)
	for _, name := range registry.Names() {
		name := name
		resolvers[name] = func(args string) (string, error) {
			return registry.Call(name, args)
		}
	}
	return NewSet(resolvers)
}
