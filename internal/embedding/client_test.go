package embedding

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorbit/taskchat/internal/domain"
)

type stubBackend struct {
	calls int
	vec   []float32
	err   error
}

func (s *stubBackend) Embed(ctx context.Context, text, model string) ([]float32, error) {
	s.calls++
	return s.vec, s.err
}

func validVec(dim int) []float32 {
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(i+1) * 0.01
	}
	return vec
}

func TestPreprocess(t *testing.T) {
	assert.Equal(t, "", Preprocess("   "))
	assert.Equal(t, "a b", Preprocess("  a    b  "))
	assert.Equal(t, "line one\nline two", Preprocess("line \t one\nline two"))
	assert.Equal(t, "ab", Preprocess("a\x00\x07b"))

	long := strings.Repeat("x", MaxChars+500)
	assert.Len(t, Preprocess(long), MaxChars)
}

func TestEmbed_EmptyInputFails(t *testing.T) {
	c := NewClient(&stubBackend{}, "m", 4)

	_, err := c.Embed(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, domain.CodeEmbeddingInvalid, domain.CodeOf(err))

	_, err = c.Embed(context.Background(), "  \n\t ")
	assert.Equal(t, domain.CodeEmbeddingInvalid, domain.CodeOf(err))
}

func TestEmbed_ValidatesDimension(t *testing.T) {
	backend := &stubBackend{vec: []float32{1, 2}}
	c := NewClient(backend, "m", 4)

	_, err := c.Embed(context.Background(), "text")
	assert.Equal(t, domain.CodeEmbeddingInvalid, domain.CodeOf(err))
}

func TestEmbed_RejectsNonFinite(t *testing.T) {
	backend := &stubBackend{vec: []float32{1, float32(math.NaN()), 3, 4}}
	c := NewClient(backend, "m", 4)

	_, err := c.Embed(context.Background(), "text")
	assert.Equal(t, domain.CodeEmbeddingInvalid, domain.CodeOf(err))
}

func TestEmbed_RejectsAllZero(t *testing.T) {
	backend := &stubBackend{vec: make([]float32, 4)}
	c := NewClient(backend, "m", 4)

	_, err := c.Embed(context.Background(), "text")
	assert.Equal(t, domain.CodeEmbeddingInvalid, domain.CodeOf(err))
}

func TestEmbed_CachesByPreprocessedText(t *testing.T) {
	backend := &stubBackend{vec: validVec(4)}
	c := NewClient(backend, "m", 4)
	ctx := context.Background()

	_, err := c.Embed(ctx, "hello   world")
	require.NoError(t, err)
	// Different raw text, same preprocessed form.
	_, err = c.Embed(ctx, "  hello world  ")
	require.NoError(t, err)

	assert.Equal(t, 1, backend.calls)
}

func TestEmbedBatch_ZeroVectorFallback(t *testing.T) {
	backend := &stubBackend{vec: validVec(4)}
	c := NewClient(backend, "m", 4)

	vecs, err := c.EmbedBatch(context.Background(), []string{"ok", ""})

	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, validVec(4), vecs[0])
	assert.Equal(t, make([]float32, 4), vecs[1])
}
