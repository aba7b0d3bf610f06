package oauth2

import (
	"sync"

	xoauth2 "golang.org/x/oauth2"
)

// TokenCache provides thread-safe caching for OAuth2 tokens
type TokenCache struct {
	tokens map[string]*xoauth2.Token
	mutex  sync.RWMutex
}

// NewTokenCache creates a new token cache
func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens: make(map[string]*xoauth2.Token),
	}
}

// Get returns the cached token for key while it is still valid.
func (c *TokenCache) Get(key string) *xoauth2.Token {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	token := c.tokens[key]
	if token == nil || !token.Valid() {
		return nil
	}
	return token
}

// Set stores a token in the cache
func (c *TokenCache) Set(key string, token *xoauth2.Token) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tokens[key] = token
}

// Delete removes a token from the cache
func (c *TokenCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.tokens, key)
}

// Clear removes all tokens from the cache
func (c *TokenCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tokens = make(map[string]*xoauth2.Token)
}
