package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/restdd/packages/auth/oauth2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()

	token, err := r.Token(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, "", token)

	token, err = r.Token(context.Background(), "Fake")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "Bearer:"))
	assert.Len(t, token, len("Bearer:")+50)

	_, err = r.Token(context.Background(), "OKTA")
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestRegistry_StaticAndCustom(t *testing.T) {
	r := NewRegistry()
	r.RegisterStatic("service", "Basic dXNlcjpwYXNz")
	r.Register("broken", func(context.Context) (string, error) {
		return "", errors.New("boom")
	})

	token, err := r.Token(context.Background(), "SERVICE")
	require.NoError(t, err)
	assert.Equal(t, "Basic dXNlcjpwYXNz", token)

	_, err = r.Token(context.Background(), "broken")
	assert.ErrorContains(t, err, "boom")

	assert.Equal(t, []string{"BROKEN", "EMPTY", "FAKE", "SERVICE"}, r.Names())
}

func TestRegistry_OAuth2(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "abc", "token_type": "Bearer", "expires_in": 60}`))
	}))
	defer server.Close()

	r := NewRegistry()
	require.NoError(t, r.RegisterOAuth2("OAUTH2", &oauth2.Config{TokenURL: server.URL, ClientID: "id", ClientSecret: "s"}))

	token, err := r.Token(context.Background(), "oauth2")
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", token)

	assert.Error(t, r.RegisterOAuth2("bad", &oauth2.Config{}))
}
