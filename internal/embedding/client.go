// Package embedding wraps an LLM backend's embedding endpoint with
// preprocessing, validation and a process-local TTL cache.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/taskorbit/taskchat/internal/cache"
	"github.com/taskorbit/taskchat/internal/domain"
)

const (
	// MaxChars caps preprocessed input length.
	MaxChars = 32000

	cacheTTL  = time.Hour
	batchSize = 10
)

// Embedder is the narrow LLM-side interface the client needs.
type Embedder interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// Client generates validated, cached embeddings of dimension Dim.
type Client struct {
	backend Embedder
	model   string
	dim     int
	cache   *cache.TTLMap[[]float32]
}

func NewClient(backend Embedder, model string, dim int) *Client {
	return &Client{
		backend: backend,
		model:   model,
		dim:     dim,
		cache:   cache.NewTTLMap[[]float32](cacheTTL),
	}
}

// Dim returns the expected embedding dimension.
func (c *Client) Dim() int {
	return c.dim
}

// Preprocess normalises text before embedding: trim, NFC composition,
// control characters stripped (newline and tab survive), whitespace runs
// collapsed, truncated to MaxChars. Empty input yields the empty string.
func Preprocess(text string) string {
	text = norm.NFC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	out := strings.TrimSpace(strings.Join(lines, "\n"))

	if len(out) > MaxChars {
		cut := MaxChars
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// validate enforces the vector contract: exactly dim finite elements,
// not all zero.
func (c *Client) validate(vec []float32) error {
	if len(vec) != c.dim {
		return domain.ErrEmbeddingInvalid
	}
	allZero := true
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return domain.ErrEmbeddingInvalid
		}
		if v != 0 {
			allZero = false
		}
	}
	if allZero {
		return domain.ErrEmbeddingInvalid
	}
	return nil
}

// Embed returns the embedding of text. Validation failure fails the call.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	pre := Preprocess(text)
	if pre == "" {
		return nil, domain.ErrEmbeddingInvalid
	}

	key := cacheKey(pre)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.backend.Embed(ctx, pre, c.model)
	if err != nil {
		return nil, err
	}
	if err := c.validate(vec); err != nil {
		return nil, err
	}

	c.cache.Set(key, vec)
	return vec, nil
}

// EmbedBatch embeds texts in bounded batches. A failing item degrades to a
// zero vector with a logged warning rather than failing the whole batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		for i := start; i < end; i++ {
			vec, err := c.Embed(ctx, texts[i])
			if err != nil {
				log.Printf("embedding: item %d failed, using zero vector: %v", i, err)
				vec = make([]float32, c.dim)
			}
			out[i] = vec
		}
	}
	return out, nil
}
