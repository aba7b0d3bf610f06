// Package auth resolves named auth functions to Authorization header values.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/restdd/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/restdd/packages/builtin"
)

var ErrNotImplemented = errors.New("auth function not implemented")

// Provider turns an auth function name into a header value.
type Provider interface {
	Token(ctx context.Context, name string) (string, error)
}

// Func produces the Authorization header value for one auth function.
type Func func(ctx context.Context) (string, error)

// Registry maps auth function names, compared case-insensitively, to Funcs.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns a registry with EMPTY (no token) and FAKE (a random
// bearer value) registered.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.Register("EMPTY", func(context.Context) (string, error) {
		return "", nil
	})
	r.Register("FAKE", func(context.Context) (string, error) {
		return "Bearer:" + builtin.RandomString(50, builtin.Alphanumeric), nil
	})
	return r
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[strings.ToUpper(strings.TrimSpace(name))] = fn
}

// RegisterStatic binds name to a fixed header value.
func (r *Registry) RegisterStatic(name, value string) {
	r.Register(name, func(context.Context) (string, error) {
		return value, nil
	})
}

// RegisterOAuth2 binds name to tokens from an OAuth2 token endpoint.
func (r *Registry) RegisterOAuth2(name string, cfg *oauth2.Config, opts ...oauth2.Option) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	provider := oauth2.NewProvider(cfg, opts...)
	r.Register(name, provider.AuthorizationHeader)
	return nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Token(ctx context.Context, name string) (string, error) {
	r.mu.RLock()
	fn, ok := r.funcs[strings.ToUpper(strings.TrimSpace(name))]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotImplemented, name)
	}

	token, err := fn(ctx)
	if err != nil {
		return "", fmt.Errorf("not possible to get authentication data for auth function %s: %w", name, err)
	}
	return token, nil
}
