package keys

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tokengate/tokengate/token"
)

// Client fetches the provider's JWKS and caches keys by key id for the
// lifetime of the process. There is no TTL: the set is re-fetched only when
// a lookup misses the cache, and at most one refresh runs at a time.
type Client struct {
	jwksURL string
	http    *http.Client

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

// NewClient creates a key client for the given JWKS endpoint.
func NewClient(jwksURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		jwksURL: jwksURL,
		http:    httpClient,
		keys:    make(map[string]*rsa.PublicKey),
	}
}

// Lookup returns the public key for kid. On a cache miss the key set is
// re-fetched exactly once; if the kid is still unknown the lookup fails with
// token.ErrKeyNotFound.
func (c *Client) Lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if key, ok := c.keys[kid]; ok {
		return key, nil
	}

	if err := c.refreshLocked(ctx); err != nil {
		return nil, err
	}

	key, ok = c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", token.ErrKeyNotFound, kid)
	}
	return key, nil
}

// refreshLocked fetches the JWKS and replaces the cache. Callers must hold
// the write lock.
func (c *Client) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("build JWKS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch JWKS: unexpected status %d", resp.StatusCode)
	}

	var set JWKS
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kid == "" {
			continue
		}
		pub, err := jwk.PublicKey()
		if err != nil {
			log.Warn().Str("kid", jwk.Kid).Err(err).Msg("skipping unusable JWK")
			continue
		}
		keys[jwk.Kid] = pub
	}

	c.keys = keys
	log.Debug().Int("keys", len(keys)).Msg("refreshed signing key set")
	return nil
}
