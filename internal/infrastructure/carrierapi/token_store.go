package carrierapi

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshBuffer is subtracted from a token's lifetime so we refresh before
// the vendor-side expiry. UPS tokens live ~4 hours, FedEx tokens ~1 hour;
// five minutes of slack covers clock skew and in-flight request latency.
const refreshBuffer = 5 * time.Minute

// CachedToken is one cached OAuth2 bearer token
type CachedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// usable reports whether the token is still fresh enough to send
func (t *CachedToken) usable(now time.Time) bool {
	return t != nil && t.AccessToken != "" && now.Before(t.ExpiresAt.Add(-refreshBuffer))
}

// exchangeFunc performs one OAuth2 client-credentials exchange and returns
// the bearer token plus its lifetime as reported by the vendor
type exchangeFunc func(ctx context.Context) (token string, expiresIn time.Duration, err error)

// TokenStore caches OAuth2 bearer tokens per client identity, in process
// memory only. Tokens are never persisted: a credential leak through storage
// is worse than the cost of a re-auth on restart.
//
// Concurrent requests for the same expired identity are coalesced into a
// single vendor exchange; the losers wait and share the winner's token.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*CachedToken
	group  singleflight.Group

	// now is swappable for tests
	now func() time.Time
}

// NewTokenStore creates an empty token store
func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens: make(map[string]*CachedToken),
		now:    time.Now,
	}
}

// Get returns a usable bearer token for the client identity, performing the
// OAuth2 exchange through exchange if no fresh token is cached. The key must
// uniquely identify the credential and environment, e.g. "ups:sandbox:<id>".
func (s *TokenStore) Get(ctx context.Context, key string, exchange exchangeFunc) (string, error) {
	s.mu.RLock()
	cached := s.tokens[key]
	s.mu.RUnlock()

	if cached.usable(s.now()) {
		return cached.AccessToken, nil
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		// Re-check under the flight: another goroutine may have refreshed
		// between our cache miss and winning the flight.
		s.mu.RLock()
		cached := s.tokens[key]
		s.mu.RUnlock()
		if cached.usable(s.now()) {
			return cached.AccessToken, nil
		}

		token, expiresIn, err := exchange(ctx)
		if err != nil {
			// Drop any stale entry so the next caller retries the exchange
			s.mu.Lock()
			delete(s.tokens, key)
			s.mu.Unlock()
			return "", err
		}

		s.mu.Lock()
		s.tokens[key] = &CachedToken{
			AccessToken: token,
			ExpiresAt:   s.now().Add(expiresIn),
		}
		s.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Invalidate drops the cached token for one client identity. Used when a
// vendor rejects a token mid-lifetime or before a connectivity self-test.
func (s *TokenStore) Invalidate(key string) {
	s.mu.Lock()
	delete(s.tokens, key)
	s.mu.Unlock()
}

// InvalidateAll drops every cached token
func (s *TokenStore) InvalidateAll() {
	s.mu.Lock()
	s.tokens = make(map[string]*CachedToken)
	s.mu.Unlock()
}

// Peek returns the cached token for a key without triggering an exchange,
// regardless of freshness. Intended for diagnostics and tests.
func (s *TokenStore) Peek(key string) (*CachedToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[key]
	return token, ok
}
