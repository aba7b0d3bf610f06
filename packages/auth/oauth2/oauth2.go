// Package oauth2 acquires OAuth2 access tokens for auth functions.
package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	// ClientCredentials is the client_credentials grant type
	ClientCredentials GrantType = "client_credentials"
	// Password is the password (resource owner) grant type
	Password GrantType = "password"
)

// Config holds OAuth2 configuration
type Config struct {
	TokenURL       string            `json:"tokenUrl" yaml:"tokenUrl"`
	ClientID       string            `json:"clientId" yaml:"clientId"`
	ClientSecret   string            `json:"clientSecret" yaml:"clientSecret"`
	Scopes         []string          `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Username       string            `json:"username,omitempty" yaml:"username,omitempty"`
	Password       string            `json:"password,omitempty" yaml:"password,omitempty"`
	GrantType      GrantType         `json:"grantType,omitempty" yaml:"grantType,omitempty"`
	EndpointParams map[string]string `json:"endpointParams,omitempty" yaml:"endpointParams,omitempty"`
}

func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("oauth2: tokenUrl is required")
	}
	switch c.GrantType {
	case "", ClientCredentials:
	case Password:
		if c.Username == "" {
			return fmt.Errorf("oauth2: password grant requires a username")
		}
	default:
		return fmt.Errorf("unsupported OAuth2 grant type: %s", c.GrantType)
	}
	return nil
}

// Provider handles OAuth2 token acquisition
type Provider struct {
	config     *Config
	httpClient *http.Client
	cache      *TokenCache
}

type Option func(*Provider)

// WithHTTPClient sets the client used to call the token endpoint.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithCache shares a token cache between providers.
func WithCache(c *TokenCache) Option {
	return func(p *Provider) {
		p.cache = c
	}
}

// NewProvider creates a new OAuth2 provider
func NewProvider(config *Config, opts ...Option) *Provider {
	p := &Provider{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: NewTokenCache(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns a valid access token, fetching a new one if necessary.
func (p *Provider) Token(ctx context.Context) (*xoauth2.Token, error) {
	cacheKey := p.cacheKey()
	if token := p.cache.Get(cacheKey); token != nil {
		return token, nil
	}

	token, err := p.fetchToken(context.WithValue(ctx, xoauth2.HTTPClient, p.httpClient))
	if err != nil {
		return nil, err
	}

	p.cache.Set(cacheKey, token)
	return token, nil
}

// AuthorizationHeader returns the token formatted as "<type> <token>".
func (p *Provider) AuthorizationHeader(ctx context.Context) (string, error) {
	token, err := p.Token(ctx)
	if err != nil {
		return "", err
	}
	return token.Type() + " " + token.AccessToken, nil
}

func (p *Provider) cacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%s", p.config.TokenURL, p.config.ClientID, p.config.Username, strings.Join(p.config.Scopes, ","))
}

func (p *Provider) fetchToken(ctx context.Context) (*xoauth2.Token, error) {
	if err := p.config.Validate(); err != nil {
		return nil, err
	}

	var (
		token *xoauth2.Token
		err   error
	)
	switch p.config.GrantType {
	case Password:
		cfg := &xoauth2.Config{
			ClientID:     p.config.ClientID,
			ClientSecret: p.config.ClientSecret,
			Scopes:       p.config.Scopes,
			Endpoint:     xoauth2.Endpoint{TokenURL: p.config.TokenURL},
		}
		token, err = cfg.PasswordCredentialsToken(ctx, p.config.Username, p.config.Password)
	default:
		cfg := &clientcredentials.Config{
			ClientID:       p.config.ClientID,
			ClientSecret:   p.config.ClientSecret,
			TokenURL:       p.config.TokenURL,
			Scopes:         p.config.Scopes,
			EndpointParams: endpointParams(p.config.EndpointParams),
		}
		token, err = cfg.Token(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	return token, nil
}

func endpointParams(m map[string]string) map[string][]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = []string{v}
	}
	return out
}
