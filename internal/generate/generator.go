// Package generate turns retrieved context into grounded answers.
package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/taskorbit/taskchat/internal/domain"
	"github.com/taskorbit/taskchat/internal/llm"
)

const (
	defaultTemperature    = 0.7
	statisticsTemperature = 0.3
	streamMaxTokens       = 500

	groundingThreshold = 0.30
	groundedBonus      = 0.2

	historyTurns = 2
)

// intentInstructions keys on the classified query type.
var intentInstructions = map[string]string{
	"requirements": "Explain what information is needed to complete the request, step by step.",
	"statistics":   "Report the numbers from the context exactly. Do not estimate.",
	"status":       "State the current status plainly, including who is responsible.",
	"list":         "Enumerate the matching items as a short list with their key fields.",
	"analysis":     "Compare the relevant items and point out anything notable.",
	"help":         "Describe what this assistant can do, based on the context.",
}

const defaultInstruction = "Answer based on context. Be concise."

// Generator renders final answers with the main LLM.
type Generator struct {
	llm   llm.Client
	model string

	// contextSalt keys the completion cache on the retrieved context as
	// well as the prompt, so two sessions with different context never
	// share a cached answer.
	contextSalt bool
}

func NewGenerator(client llm.Client, model string) *Generator {
	return &Generator{llm: client, model: model}
}

// WithContextSaltedCache enables per-context completion cache keys. It
// only has an effect when the underlying client is a caching wrapper.
func (g *Generator) WithContextSaltedCache() *Generator {
	g.contextSalt = true
	return g
}

func (g *Generator) client(contextBlock string) llm.Client {
	if !g.contextSalt {
		return g.llm
	}
	cc, ok := g.llm.(*llm.CachedClient)
	if !ok {
		return g.llm
	}
	sum := sha256.Sum256([]byte(contextBlock))
	return cc.WithSalt(hex.EncodeToString(sum[:8]))
}

func instructionFor(queryType string) string {
	if inst, ok := intentInstructions[queryType]; ok {
		return inst
	}
	return defaultInstruction
}

func temperatureFor(queryType string) float32 {
	if queryType == "statistics" {
		return statisticsTemperature
	}
	return defaultTemperature
}

// buildPrompt assembles role, rules, context, compact history and query.
func buildPrompt(query, contextBlock string, history []domain.Turn, queryType string) string {
	var sb strings.Builder
	sb.WriteString("You are an assistant for a task management system.\n")
	sb.WriteString(instructionFor(queryType))
	sb.WriteString("\nCite sources with their [n] markers when you use them.\n")

	if contextBlock != "" {
		sb.WriteString("\nContext:\n")
		sb.WriteString(contextBlock)
	}

	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	if len(history) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		for _, t := range history {
			fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
		}
	}

	sb.WriteString("\nQuestion: " + query + "\nAnswer:")
	return sb.String()
}

// Generate produces a complete answer.
func (g *Generator) Generate(ctx context.Context, query, contextBlock string, history []domain.Turn, queryType string) (string, error) {
	out, err := g.client(contextBlock).Complete(ctx, buildPrompt(query, contextBlock, history, queryType), llm.Options{
		Model:       g.model,
		Temperature: temperatureFor(queryType),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// GenerateStream produces the answer as a token stream, returning the
// full text once the stream completes.
func (g *Generator) GenerateStream(ctx context.Context, query, contextBlock string, history []domain.Turn, queryType string, onChunk func(string)) (string, error) {
	out, err := g.llm.CompleteStream(ctx, buildPrompt(query, contextBlock, history, queryType), llm.Options{
		Model:       g.model,
		Temperature: temperatureFor(queryType),
		MaxTokens:   streamMaxTokens,
	}, onChunk)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CheckGrounding reports whether the answer reuses enough vocabulary
// from the retrieved documents. The overlap ratio must strictly exceed
// 0.30.
func CheckGrounding(answer string, docs []domain.RetrievedDoc) bool {
	answerTokens := strings.Fields(strings.ToLower(answer))
	if len(answerTokens) == 0 {
		return false
	}

	docTokens := map[string]struct{}{}
	for _, d := range docs {
		for _, tok := range strings.Fields(strings.ToLower(d.Text)) {
			docTokens[tok] = struct{}{}
		}
	}

	seen := map[string]struct{}{}
	matched := 0
	total := 0
	for _, tok := range answerTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		total++
		if _, ok := docTokens[tok]; ok {
			matched++
		}
	}
	return float64(matched)/float64(total) > groundingThreshold
}

// Confidence scores the answer from mean document score plus a
// grounding bonus, clamped to 1. No documents means no confidence.
func Confidence(docs []domain.RetrievedDoc, grounded bool) float64 {
	if len(docs) == 0 {
		return 0
	}
	var sum float64
	for _, d := range docs {
		sum += d.Score
	}
	c := sum / float64(len(docs))
	if grounded {
		c += groundedBonus
	}
	if c > 1 {
		c = 1
	}
	return c
}

// FriendlyError converts an internal failure into a short user-facing
// message, falling back to a canned line when the LLM itself fails.
func (g *Generator) FriendlyError(ctx context.Context, query string, cause error) string {
	out, err := g.llm.Complete(ctx,
		"The assistant hit an internal problem while handling a request. Write one short, apologetic sentence for the user. Do not mention technical details.\n\nRequest: "+query,
		llm.Options{Model: g.model, Temperature: defaultTemperature, MaxTokens: 60},
	)
	if err != nil || strings.TrimSpace(out) == "" {
		return "Sorry, something went wrong while handling your request. Please try again."
	}
	return strings.TrimSpace(out)
}
