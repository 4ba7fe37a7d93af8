package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorbit/taskchat/internal/domain"
	"github.com/taskorbit/taskchat/internal/llm"
)

type promptCapturingLLM struct {
	prompt   string
	opts     llm.Options
	response string
	err      error
}

func (p *promptCapturingLLM) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	p.prompt = prompt
	p.opts = opts
	return p.response, p.err
}

func (p *promptCapturingLLM) CompleteStream(ctx context.Context, prompt string, opts llm.Options, onChunk func(string)) (string, error) {
	p.prompt = prompt
	p.opts = opts
	if p.err == nil {
		onChunk(p.response)
	}
	return p.response, p.err
}

func (p *promptCapturingLLM) Embed(ctx context.Context, text, model string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func TestGenerate_PromptAssembly(t *testing.T) {
	client := &promptCapturingLLM{response: "  K1 is in progress. [1] "}
	g := NewGenerator(client, "main")
	history := []domain.Turn{
		{Role: domain.RoleUser, Content: "older turn"},
		{Role: domain.RoleUser, Content: "who owns K1?"},
		{Role: domain.RoleAssistant, Content: "Sara does."},
	}

	out, err := g.Generate(context.Background(), "status of K1?", "[1] TASK: K1 details\n\n", history, "status")

	require.NoError(t, err)
	assert.Equal(t, "K1 is in progress. [1]", out)
	assert.Contains(t, client.prompt, "[1] TASK: K1 details")
	assert.Contains(t, client.prompt, "State the current status plainly")
	assert.Contains(t, client.prompt, "who owns K1?")
	// Only the last two turns are included.
	assert.NotContains(t, client.prompt, "older turn")
	assert.InDelta(t, 0.7, client.opts.Temperature, 0.001)
}

func TestGenerate_StatisticsRunsCold(t *testing.T) {
	client := &promptCapturingLLM{response: "5 tasks"}
	g := NewGenerator(client, "main")

	_, err := g.Generate(context.Background(), "how many tasks", "", nil, "statistics")

	require.NoError(t, err)
	assert.InDelta(t, 0.3, client.opts.Temperature, 0.001)
	assert.Contains(t, client.prompt, "Report the numbers from the context exactly")
}

func TestGenerate_UnknownTypeUsesDefault(t *testing.T) {
	client := &promptCapturingLLM{response: "ok"}
	g := NewGenerator(client, "main")

	_, err := g.Generate(context.Background(), "q", "", nil, "question")

	require.NoError(t, err)
	assert.Contains(t, client.prompt, "Answer based on context. Be concise.")
}

func TestGenerateStream_CapsTokensAndStreams(t *testing.T) {
	client := &promptCapturingLLM{response: "streamed answer"}
	g := NewGenerator(client, "main")

	var chunks []string
	out, err := g.GenerateStream(context.Background(), "q", "", nil, "question", func(c string) {
		chunks = append(chunks, c)
	})

	require.NoError(t, err)
	assert.Equal(t, "streamed answer", out)
	assert.Equal(t, []string{"streamed answer"}, chunks)
	assert.Equal(t, 500, client.opts.MaxTokens)
}

func TestCheckGrounding_Threshold(t *testing.T) {
	docs := []domain.RetrievedDoc{{Text: "alpha beta gamma delta"}}

	// 2 of 4 unique answer tokens overlap: 0.5 > 0.30.
	assert.True(t, CheckGrounding("alpha beta nope nada", docs))

	// 1 of 4: 0.25, not grounded.
	assert.False(t, CheckGrounding("alpha nope nada zilch", docs))

	// Exactly 0.30 is not strictly greater.
	tenDocs := []domain.RetrievedDoc{{Text: "t1 t2 t3"}}
	assert.False(t, CheckGrounding("t1 t2 t3 x4 x5 x6 x7 x8 x9 x10", tenDocs))

	assert.False(t, CheckGrounding("", docs))
}

func TestConfidence(t *testing.T) {
	docs := []domain.RetrievedDoc{{Score: 0.6}, {Score: 0.8}}

	assert.InDelta(t, 0.7, Confidence(docs, false), 1e-9)
	assert.InDelta(t, 0.9, Confidence(docs, true), 1e-9)

	high := []domain.RetrievedDoc{{Score: 0.95}}
	assert.InDelta(t, 1.0, Confidence(high, true), 1e-9)

	assert.Zero(t, Confidence(nil, true))
}

func TestFriendlyError_FallsBackOnLLMFailure(t *testing.T) {
	g := NewGenerator(&promptCapturingLLM{err: errors.New("down")}, "main")

	msg := g.FriendlyError(context.Background(), "q", errors.New("boom"))

	assert.Contains(t, msg, "Sorry")
}

type countingLLM struct {
	promptCapturingLLM
	calls int
}

func (c *countingLLM) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	c.calls++
	return c.promptCapturingLLM.Complete(ctx, prompt, opts)
}

func TestGenerate_ContextSaltedCache(t *testing.T) {
	inner := &countingLLM{promptCapturingLLM: promptCapturingLLM{response: "answer"}}
	g := NewGenerator(llm.NewCachedClient(inner), "main").WithContextSaltedCache()

	_, err := g.Generate(context.Background(), "q", "ctx A", nil, "question")
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "q", "ctx A", nil, "question")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "repeat with identical context should hit the cache")

	_, err = g.Generate(context.Background(), "q", "ctx B", nil, "question")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "different context must not reuse the cached answer")
}
