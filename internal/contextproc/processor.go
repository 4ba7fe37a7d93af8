// Package contextproc reranks, diversifies and compresses retrieved
// documents into a citation-annotated prompt context.
package contextproc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/taskorbit/taskchat/internal/domain"
)

const (
	// rerankLimit caps the documents considered after score sort.
	rerankLimit = 10
	// diverseLimit is the MMR selection size.
	diverseLimit = 5
	// mmrLambda balances relevance against redundancy.
	mmrLambda = 0.85

	// DefaultMaxTokens drives the character compression budget.
	DefaultMaxTokens = 3000
	// charsPerToken approximates tokens as characters.
	charsPerToken = 4

	snippetLen = 200
)

// Source is one cited document in the final answer.
type Source struct {
	EntityType string  `json:"entityType"`
	EntityID   string  `json:"entityId"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Citation   string  `json:"citation"`
}

// Result carries each processing stage's output.
type Result struct {
	Reranked   []domain.RetrievedDoc
	Diverse    []domain.RetrievedDoc
	Compressed []domain.RetrievedDoc
	Sources    []Source
	Context    string
}

// Processor shapes retrieved documents for generation.
type Processor struct {
	maxTokens int
}

func New() *Processor {
	return &Processor{maxTokens: DefaultMaxTokens}
}

func NewWithBudget(maxTokens int) *Processor {
	return &Processor{maxTokens: maxTokens}
}

// Process runs rerank, MMR diversification, compression and citation
// assembly in order.
func (p *Processor) Process(docs []domain.RetrievedDoc, query string) Result {
	reranked := append([]domain.RetrievedDoc(nil), docs...)
	sort.SliceStable(reranked, func(i, j int) bool { return reranked[i].Score > reranked[j].Score })
	if len(reranked) > rerankLimit {
		reranked = reranked[:rerankLimit]
	}

	diverse := reranked
	if len(reranked) >= diverseLimit {
		diverse = mmr(reranked, diverseLimit)
	}

	compressed := compress(diverse, p.maxTokens)

	sources := make([]Source, 0, len(compressed))
	var sb strings.Builder
	for i, d := range compressed {
		citation := fmt.Sprintf("[%d]", i+1)
		sources = append(sources, Source{
			EntityType: d.EntityType,
			EntityID:   d.EntityID,
			Text:       snippet(d.Text),
			Score:      d.Score,
			Citation:   citation,
		})
		fmt.Fprintf(&sb, "%s %s: %s\n\n", citation, strings.ToUpper(d.EntityType), d.Text)
	}

	return Result{
		Reranked:   reranked,
		Diverse:    diverse,
		Compressed: compressed,
		Sources:    sources,
		Context:    sb.String(),
	}
}

// mmr selects limit documents maximising relevance while penalising
// similarity to those already picked.
func mmr(docs []domain.RetrievedDoc, limit int) []domain.RetrievedDoc {
	selected := []domain.RetrievedDoc{docs[0]}
	remaining := append([]domain.RetrievedDoc(nil), docs[1:]...)

	tokensOf := make(map[uint64]map[string]struct{}, len(docs))
	for _, d := range docs {
		tokensOf[d.ID] = tokenSet(d.Text)
	}

	for len(selected) < limit && len(remaining) > 0 {
		bestIdx := 0
		bestScore := -1.0
		for i, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				sim := jaccard(tokensOf[cand.ID], tokensOf[sel.ID])
				if sim > maxSim {
					maxSim = sim
				}
			}
			score := mmrLambda*cand.Score - (1-mmrLambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func tokenSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// compress keeps documents in order while the cumulative text length
// fits the character budget. A zero budget keeps nothing.
func compress(docs []domain.RetrievedDoc, maxTokens int) []domain.RetrievedDoc {
	budget := maxTokens * charsPerToken
	var out []domain.RetrievedDoc
	used := 0
	for _, d := range docs {
		if used+len(d.Text) > budget {
			break
		}
		used += len(d.Text)
		out = append(out, d)
	}
	return out
}

func snippet(text string) string {
	if len(text) <= snippetLen {
		return text
	}
	return text[:snippetLen] + "..."
}
