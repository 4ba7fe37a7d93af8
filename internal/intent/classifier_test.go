package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorbit/taskchat/internal/llm"
	"github.com/taskorbit/taskchat/internal/vectorstore"
)

type stubLLM struct {
	calls    int
	response string
	err      error
}

func (s *stubLLM) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	s.calls++
	return s.response, s.err
}

func (s *stubLLM) CompleteStream(ctx context.Context, prompt string, opts llm.Options, onChunk func(string)) (string, error) {
	return s.Complete(ctx, prompt, opts)
}

func (s *stubLLM) Embed(ctx context.Context, text, model string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func TestQuickIntent_RegexBeforeLLM(t *testing.T) {
	client := &stubLLM{}
	c := NewClassifier(client, "m", "fast")
	ctx := context.Background()

	assert.Equal(t, QuickGreeting, c.QuickIntent(ctx, "hello"))
	assert.Equal(t, QuickGreeting, c.QuickIntent(ctx, "Good morning!"))
	assert.Equal(t, QuickGoodbye, c.QuickIntent(ctx, "ok bye"))
	assert.Equal(t, QuickThank, c.QuickIntent(ctx, "thanks a lot"))
	assert.Equal(t, 0, client.calls)
}

func TestQuickIntent_CrudVerbSkipsLLM(t *testing.T) {
	client := &stubLLM{response: "greeting"}
	c := NewClassifier(client, "m", "fast")
	ctx := context.Background()

	assert.Equal(t, QuickNone, c.QuickIntent(ctx, "create a task"))
	assert.Equal(t, QuickNone, c.QuickIntent(ctx, strings.Repeat("what about the project status ", 3)))
	assert.Equal(t, 0, client.calls)
}

func TestQuickIntent_AmbiguousShortQueryUsesLLM(t *testing.T) {
	client := &stubLLM{response: " Greeting \n"}
	c := NewClassifier(client, "m", "fast")

	got := c.QuickIntent(context.Background(), "yo")

	assert.Equal(t, QuickGreeting, got)
	assert.Equal(t, 1, client.calls)

	// LLM failures are silent.
	failing := NewClassifier(&stubLLM{err: errors.New("down")}, "m", "fast")
	assert.Equal(t, QuickNone, failing.QuickIntent(context.Background(), "yo"))
}

func TestClassify_ParsesJSON(t *testing.T) {
	client := &stubLLM{response: `Sure! {"type": "list", "entities": ["task"]} extra text`}
	c := NewClassifier(client, "m", "fast")

	got := c.Classify(context.Background(), "show me all overdue tasks", "")

	assert.Equal(t, TypeList, got.Type)
	assert.Equal(t, []string{"task"}, got.Entities)
}

func TestClassify_FallsBackOnGarbage(t *testing.T) {
	cases := []string{
		"not json at all",
		`{"type": "banana", "entities": []}`,
		`{"type": "list", "entities": ["task"`,
	}
	for _, response := range cases {
		c := NewClassifier(&stubLLM{response: response}, "m", "fast")
		got := c.Classify(context.Background(), "q", "")
		assert.Equal(t, TypeQuestion, got.Type, "response %q", response)
		assert.Empty(t, got.Entities)
	}

	c := NewClassifier(&stubLLM{err: errors.New("down")}, "m", "fast")
	got := c.Classify(context.Background(), "q", "")
	assert.Equal(t, TypeQuestion, got.Type)
}

func TestClassify_FiltersUnknownEntities(t *testing.T) {
	client := &stubLLM{response: `{"type": "question", "entities": ["Task", "dragon", "user"]}`}
	c := NewClassifier(client, "m", "fast")

	got := c.Classify(context.Background(), "q", "")
	assert.Equal(t, []string{"task", "user"}, got.Entities)
}

func TestDeriveIntent(t *testing.T) {
	assert.Equal(t, "task_management", DeriveIntent(TypeCreate, []string{"task"}))
	assert.Equal(t, "user_management", DeriveIntent(TypeUpdate, []string{"user", "task"}))
	assert.Equal(t, "task_info", DeriveIntent(TypeList, []string{"task"}))
	assert.Equal(t, "general", DeriveIntent(TypeDelete, nil))
	assert.Equal(t, "general", DeriveIntent(TypeHelp, []string{"task"}))

	// Pure: repeated invocation yields the same result.
	assert.Equal(t, DeriveIntent(TypeList, []string{"task"}), DeriveIntent(TypeList, []string{"task"}))
}

func TestReformulate_ShortQuerySkipsLLM(t *testing.T) {
	client := &stubLLM{response: "variant one\nvariant two"}
	c := NewClassifier(client, "m", "fast")

	got := c.Reformulate(context.Background(), "overdue?", "")

	assert.Equal(t, []string{"overdue?"}, got)
	assert.Equal(t, 0, client.calls)
}

func TestReformulate_OriginalFirstCapFive(t *testing.T) {
	client := &stubLLM{response: "1. overdue tasks\n2. \"late tasks\"\n- past deadline tasks\nmissed deadline tasks\nextra variant here\nanother one more"}
	c := NewClassifier(client, "m", "fast")

	got := c.Reformulate(context.Background(), "show me all overdue tasks", "")

	require.NotEmpty(t, got)
	assert.Equal(t, "show me all overdue tasks", got[0])
	assert.LessOrEqual(t, len(got), 5)
	assert.Contains(t, got, "overdue tasks")
	assert.Contains(t, got, "late tasks")
}

func TestReformulate_LLMFailureReturnsOriginal(t *testing.T) {
	c := NewClassifier(&stubLLM{err: errors.New("down")}, "m", "fast")
	got := c.Reformulate(context.Background(), "show me all overdue tasks", "")
	assert.Equal(t, []string{"show me all overdue tasks"}, got)
}

func TestExtractFilters_SpecialTypes(t *testing.T) {
	f := ExtractFilters("how many tasks", TypeStatistics, nil)
	require.NotNil(t, f)
	assert.Equal(t, []vectorstore.Condition{{Field: "entity_type", Value: "statistics"}}, f.Must)

	f = ExtractFilters("what can you do", TypeHelp, []string{"task"})
	require.NotNil(t, f)
	assert.Equal(t, "system_info", f.Must[0].Value)
}

func TestExtractFilters_EntityCardinality(t *testing.T) {
	f := ExtractFilters("q", TypeList, []string{"task"})
	require.NotNil(t, f)
	assert.Equal(t, []vectorstore.Condition{{Field: "entity_type", Value: "task"}}, f.Must)
	assert.Empty(t, f.Should)

	f = ExtractFilters("q", TypeList, []string{"task", "user"})
	require.NotNil(t, f)
	assert.Empty(t, f.Must)
	assert.Len(t, f.Should, 2)

	// Set semantics survive reordering.
	g := ExtractFilters("q", TypeList, []string{"user", "task"})
	values := func(conds []vectorstore.Condition) map[any]bool {
		m := map[any]bool{}
		for _, c := range conds {
			m[c.Value] = true
		}
		return m
	}
	assert.Equal(t, values(f.Should), values(g.Should))

	assert.Nil(t, ExtractFilters("q", TypeQuestion, nil))
}

func TestExtractFilters_LexicalScan(t *testing.T) {
	f := ExtractFilters("show overdue tasks", TypeList, []string{"task"})
	require.NotNil(t, f)
	require.Len(t, f.Must, 2)
	assert.Equal(t, "metadata.is_overdue", f.Must[1].Field)
	assert.Equal(t, true, f.Must[1].Value)

	f = ExtractFilters("tasks in progress", TypeList, []string{"task"})
	assert.Equal(t, "in_progress", f.Must[1].Value)

	f = ExtractFilters("what is done", TypeQuestion, nil)
	require.NotNil(t, f)
	assert.Equal(t, "metadata.task_status", f.Must[0].Field)
	assert.Equal(t, "done", f.Must[0].Value)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, ExtractJSON(`prefix {"a": 1} suffix`))
	assert.Equal(t, `{"a": {"b": "}"}}`, ExtractJSON(`{"a": {"b": "}"}}}}`))
	assert.Empty(t, ExtractJSON("no json"))
	assert.Empty(t, ExtractJSON(`{"unterminated": `))
}
