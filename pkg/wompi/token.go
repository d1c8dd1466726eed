package wompi

import (
	"context"
	"sync"
	"time"
)

// Token is a cached bearer token from the client-credentials grant.
type Token struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// refreshWindow is how long before expiry a cached token is considered stale.
const refreshWindow = 30 * time.Second

// Usable reports whether the token is still good at the given instant,
// leaving the refresh window as slack.
func (t *Token) Usable(now time.Time) bool {
	return t != nil && t.Value != "" && now.Before(t.ExpiresAt.Add(-refreshWindow))
}

// TokenCache stores the single processor bearer token. Implementations need
// not serialize refreshes: concurrent token requests are idempotent, at worst
// redundant.
type TokenCache interface {
	Get(ctx context.Context) (*Token, error)
	Put(ctx context.Context, tok *Token) error
}

// MemoryTokenCache is the in-process single-slot cache.
type MemoryTokenCache struct {
	mu  sync.Mutex
	tok *Token
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{}
}

func (c *MemoryTokenCache) Get(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tok, nil
}

func (c *MemoryTokenCache) Put(ctx context.Context, tok *Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tok = tok
	return nil
}
