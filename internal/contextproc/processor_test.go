package contextproc

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorbit/taskchat/internal/domain"
)

func rdoc(id uint64, score float64, text string) domain.RetrievedDoc {
	return domain.RetrievedDoc{
		ID: id, Score: score, Text: text,
		EntityType: "task", EntityID: fmt.Sprintf("K%d", id),
	}
}

func TestProcess_RerankSortsAndCaps(t *testing.T) {
	var docs []domain.RetrievedDoc
	for i := 1; i <= 12; i++ {
		docs = append(docs, rdoc(uint64(i), float64(i)/100, fmt.Sprintf("unique text %d about topic %d", i, i)))
	}

	res := New().Process(docs, "q")

	require.Len(t, res.Reranked, 10)
	assert.EqualValues(t, 12, res.Reranked[0].ID)
	for i := 1; i < len(res.Reranked); i++ {
		assert.GreaterOrEqual(t, res.Reranked[i-1].Score, res.Reranked[i].Score)
	}
}

func TestProcess_MMRKeepsTopDocFirst(t *testing.T) {
	docs := []domain.RetrievedDoc{
		rdoc(1, 0.95, "database optimization for postgres indexes"),
		rdoc(2, 0.94, "database optimization for postgres indexes"),
		rdoc(3, 0.90, "frontend login page styling"),
		rdoc(4, 0.85, "team standup meeting notes"),
		rdoc(5, 0.80, "quarterly budget planning sheet"),
		rdoc(6, 0.75, "kubernetes cluster upgrade steps"),
	}

	res := New().Process(docs, "q")

	require.Len(t, res.Diverse, 5)
	assert.EqualValues(t, 1, res.Diverse[0].ID)

	// The near-duplicate of the top doc is penalised below distinct docs.
	assert.NotEqualValues(t, 2, res.Diverse[1].ID)
}

func TestProcess_FewDocsSkipMMR(t *testing.T) {
	docs := []domain.RetrievedDoc{
		rdoc(1, 0.9, "alpha"),
		rdoc(2, 0.8, "beta"),
	}

	res := New().Process(docs, "q")

	assert.Equal(t, res.Reranked, res.Diverse)
	assert.Len(t, res.Diverse, 2)
}

func TestProcess_CitationsAndContext(t *testing.T) {
	long := strings.Repeat("x", 250)
	docs := []domain.RetrievedDoc{
		rdoc(1, 0.9, "Task \"Database Optimization\" has status in progress."),
		rdoc(2, 0.8, long),
	}

	res := New().Process(docs, "q")

	require.Len(t, res.Sources, 2)
	assert.Equal(t, "[1]", res.Sources[0].Citation)
	assert.Equal(t, "K1", res.Sources[0].EntityID)
	assert.Len(t, res.Sources[1].Text, 203)
	assert.True(t, strings.HasSuffix(res.Sources[1].Text, "..."))

	assert.Contains(t, res.Context, "[1] TASK: Task \"Database Optimization\"")
	assert.Contains(t, res.Context, "[2] TASK: ")
}

func TestProcess_ZeroBudgetKeepsNothing(t *testing.T) {
	docs := []domain.RetrievedDoc{rdoc(1, 0.9, "text")}

	res := NewWithBudget(0).Process(docs, "q")

	assert.Empty(t, res.Compressed)
	assert.Empty(t, res.Sources)
	assert.Empty(t, res.Context)
}

func TestProcess_BudgetCutsTail(t *testing.T) {
	// Budget of 10 tokens = 40 chars admits only the first document.
	docs := []domain.RetrievedDoc{
		rdoc(1, 0.9, strings.Repeat("a", 30)),
		rdoc(2, 0.8, strings.Repeat("b", 30)),
	}

	res := NewWithBudget(10).Process(docs, "q")

	require.Len(t, res.Compressed, 1)
	assert.EqualValues(t, 1, res.Compressed[0].ID)
}

func TestJaccard(t *testing.T) {
	a := tokenSet("database optimization work")
	b := tokenSet("database optimization play")
	assert.InDelta(t, 0.5, jaccard(a, b), 1e-9)
	assert.InDelta(t, 0, jaccard(a, tokenSet("")), 1e-9)
	assert.InDelta(t, 1, jaccard(a, a), 1e-9)
}
