package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/taskorbit/taskchat/internal/cache"
)

const completionCacheTTL = 10 * time.Minute

// CachedClient caches non-streaming completions keyed by a digest of
// (prompt, model, options). Streaming completions and embeddings pass
// through uncached; the embedding client keeps its own cache.
type CachedClient struct {
	Client
	completions *cache.TTLMap[string]

	// salt is mixed into every cache key. When context-keyed caching is
	// enabled, the orchestrator derives a per-request salt from the
	// retrieved context digest to avoid cross-session answer leakage.
	salt string
}

func NewCachedClient(inner Client) *CachedClient {
	return &CachedClient{
		Client:      inner,
		completions: cache.NewTTLMap[string](completionCacheTTL),
	}
}

// WithSalt returns a shallow copy whose cache keys are salted with s.
// The copy shares the underlying cache, so differently-salted entries
// coexist without invalidating each other.
func (c *CachedClient) WithSalt(s string) *CachedClient {
	clone := *c
	clone.salt = s
	return &clone
}

func (c *CachedClient) cacheKey(prompt string, opts Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%.3f|%d|%s|%s", prompt, opts.Model, opts.Temperature, opts.MaxTokens, opts.System, c.salt)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	key := c.cacheKey(prompt, opts)
	if cached, ok := c.completions.Get(key); ok {
		return cached, nil
	}

	out, err := c.Client.Complete(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	c.completions.Set(key, out)
	return out, nil
}

var _ Client = (*CachedClient)(nil)
