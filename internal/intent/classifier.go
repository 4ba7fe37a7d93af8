// Package intent classifies queries, derives retrieval intents and
// builds search filter specs.
package intent

import (
	"context"
	"encoding/json"
	"log"
	"regexp"
	"strings"

	"github.com/taskorbit/taskchat/internal/domain"
	"github.com/taskorbit/taskchat/internal/llm"
	"github.com/taskorbit/taskchat/internal/vectorstore"
)

// Query types.
const (
	TypeCreate       = "create"
	TypeUpdate       = "update"
	TypeDelete       = "delete"
	TypeQuestion     = "question"
	TypeSearch       = "search"
	TypeList         = "list"
	TypeStatistics   = "statistics"
	TypeHelp         = "help"
	TypeRequirements = "requirements"
)

// Quick intents.
const (
	QuickGreeting = "greeting"
	QuickGoodbye  = "goodbye"
	QuickThank    = "thank"
	QuickNone     = "none"
)

// Classification is the typed result of Classify.
type Classification struct {
	Type     string   `json:"type"`
	Entities []string `json:"entities"`
}

var knownTypes = map[string]bool{
	TypeCreate: true, TypeUpdate: true, TypeDelete: true,
	TypeQuestion: true, TypeSearch: true, TypeList: true,
	TypeStatistics: true, TypeHelp: true, TypeRequirements: true,
}

var knownEntities = map[string]bool{
	"user": true, "task": true, "team": true, "project": true,
}

var (
	greetingRe = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good\s+(morning|afternoon|evening))\b`)
	goodbyeRe  = regexp.MustCompile(`(?i)\b(bye|goodbye|see\s+you|farewell)\b`)
	thankRe    = regexp.MustCompile(`(?i)\b(thanks?|thank\s+you|thx)\b`)
	crudVerbRe = regexp.MustCompile(`(?i)\b(create|add|new|update|change|edit|modify|assign|delete|remove|mark|set|rename|complete|finish)\b`)
)

const quickIntentMaxLen = 50

// Classifier performs the LLM-backed intent operations.
type Classifier struct {
	llm       llm.Client
	model     string
	fastModel string
}

func NewClassifier(client llm.Client, model, fastModel string) *Classifier {
	return &Classifier{llm: client, model: model, fastModel: fastModel}
}

// QuickIntent detects conversational niceties. Regexes first; a short
// ambiguous query without CRUD verbs gets one constrained LLM call.
// LLM failures are silent and fall through to none.
func (c *Classifier) QuickIntent(ctx context.Context, query string) string {
	switch {
	case greetingRe.MatchString(query):
		return QuickGreeting
	case goodbyeRe.MatchString(query):
		return QuickGoodbye
	case thankRe.MatchString(query):
		return QuickThank
	}

	if len(query) >= quickIntentMaxLen || crudVerbRe.MatchString(query) {
		return QuickNone
	}

	out, err := c.llm.Complete(ctx,
		"Classify this message as exactly one word from: greeting, goodbye, thank, none.\n\nMessage: "+query+"\n\nAnswer with one word only.",
		llm.Options{Model: c.fastModel, Temperature: 0, MaxTokens: 5},
	)
	if err != nil {
		return QuickNone
	}
	switch strings.ToLower(strings.TrimSpace(out)) {
	case QuickGreeting:
		return QuickGreeting
	case QuickGoodbye:
		return QuickGoodbye
	case QuickThank:
		return QuickThank
	}
	return QuickNone
}

const classifyPrompt = `You classify queries for a task management assistant.

Return JSON only: {"type": "...", "entities": [...]}

type is one of: create, update, delete, question, search, list, statistics, help, requirements.
entities is a subset of: user, task, team, project.

Rules:
- Distinguish COMMAND from QUESTION: "assign the task to Bob" is update, "when was the task created" is question.
- If the query mentions a personal name, include "user" in entities.
- "how many" or counting queries are statistics.
- "what can you do" style queries are help.
`

// Classify determines the query type and involved entity kinds. Parse
// failures degrade to a generic question classification.
func (c *Classifier) Classify(ctx context.Context, query, history string) Classification {
	var sb strings.Builder
	sb.WriteString(classifyPrompt)
	if history != "" {
		sb.WriteString("\nConversation so far:\n" + history)
	}
	sb.WriteString("\nQuery: " + query + "\n\nJSON:")

	fallback := Classification{Type: TypeQuestion, Entities: []string{}}

	out, err := c.llm.Complete(ctx, sb.String(), llm.Options{
		Model:       c.model,
		Temperature: 0.1,
		MaxTokens:   100,
	})
	if err != nil {
		log.Printf("intent: classify failed: %v", err)
		return fallback
	}

	raw := ExtractJSON(out)
	if raw == "" {
		return fallback
	}
	var parsed Classification
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fallback
	}
	if !knownTypes[parsed.Type] {
		return fallback
	}

	entities := make([]string, 0, len(parsed.Entities))
	for _, e := range parsed.Entities {
		e = strings.ToLower(strings.TrimSpace(e))
		if knownEntities[e] {
			entities = append(entities, e)
		}
	}
	parsed.Entities = entities
	return parsed
}

// DeriveIntent maps (type, entities) to a retrieval intent. Pure.
func DeriveIntent(queryType string, entities []string) string {
	primary := ""
	if len(entities) > 0 {
		primary = entities[0]
	}
	switch queryType {
	case TypeCreate, TypeUpdate, TypeDelete:
		if primary == "" {
			return "general"
		}
		return primary + "_management"
	case TypeQuestion, TypeSearch, TypeList, TypeStatistics:
		if primary == "" {
			return "general"
		}
		return primary + "_info"
	default:
		return "general"
	}
}

const reformulateMinLen = 15
const maxQueries = 5

// Reformulate produces up to four short search variants of the query.
// The original query is always first. Queries under 15 characters skip
// the LLM entirely.
func (c *Classifier) Reformulate(ctx context.Context, query, history string) []string {
	if len(query) < reformulateMinLen {
		return []string{query}
	}

	var sb strings.Builder
	sb.WriteString("Rewrite this query as up to 4 short search phrases (2-5 words each), one per line. Keep entity names. Expand abbreviations.\n")
	if history != "" {
		sb.WriteString("\nConversation so far:\n" + history)
	}
	sb.WriteString("\nQuery: " + query + "\n\nPhrases:")

	out, err := c.llm.Complete(ctx, sb.String(), llm.Options{
		Model:       c.model,
		Temperature: 0.3,
		MaxTokens:   100,
	})
	if err != nil {
		log.Printf("intent: reformulate failed: %v", err)
		return []string{query}
	}

	queries := []string{query}
	seen := map[string]bool{strings.ToLower(query): true}
	for _, line := range strings.Split(out, "\n") {
		variant := cleanVariant(line)
		if variant == "" || seen[strings.ToLower(variant)] {
			continue
		}
		seen[strings.ToLower(variant)] = true
		queries = append(queries, variant)
		if len(queries) == maxQueries {
			break
		}
	}
	return queries
}

var variantPrefixRe = regexp.MustCompile(`^\s*(?:[-*\d.)]+\s*)?`)

func cleanVariant(line string) string {
	line = variantPrefixRe.ReplaceAllString(line, "")
	line = strings.Trim(strings.TrimSpace(line), `"'`)
	if line == "" || len(strings.Fields(line)) > 6 {
		return ""
	}
	return line
}

// ExtractFilters builds the vector store filter spec for a classified
// query. Statistics and help queries target the synthetic documents;
// otherwise entity kinds narrow the search, with multiple kinds OR-ed.
// A lexical scan of the query adds task metadata conditions.
func ExtractFilters(query, queryType string, entities []string) *vectorstore.Filter {
	f := &vectorstore.Filter{}

	switch queryType {
	case TypeStatistics:
		f.Must = append(f.Must, vectorstore.Condition{Field: "entity_type", Value: string(domain.DocTypeStatistics)})
	case TypeHelp, TypeRequirements:
		f.Must = append(f.Must, vectorstore.Condition{Field: "entity_type", Value: string(domain.DocTypeSystemInfo)})
	default:
		switch len(entities) {
		case 0:
		case 1:
			f.Must = append(f.Must, vectorstore.Condition{Field: "entity_type", Value: entities[0]})
		default:
			for _, e := range entities {
				f.Should = append(f.Should, vectorstore.Condition{Field: "entity_type", Value: e})
			}
		}
	}

	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "overdue"):
		f.Must = append(f.Must, vectorstore.Condition{Field: "metadata.is_overdue", Value: true})
	case strings.Contains(q, "urgent"):
		f.Must = append(f.Must, vectorstore.Condition{Field: "metadata.is_urgent", Value: true})
	case strings.Contains(q, "in progress") || strings.Contains(q, "in_progress"):
		f.Must = append(f.Must, vectorstore.Condition{Field: "metadata.task_status", Value: string(domain.TaskStatusInProgress)})
	case strings.Contains(q, "done") || strings.Contains(q, "completed") || strings.Contains(q, "finished"):
		f.Must = append(f.Must, vectorstore.Condition{Field: "metadata.task_status", Value: string(domain.TaskStatusDone)})
	case strings.Contains(q, "todo") || strings.Contains(q, "to do"):
		f.Must = append(f.Must, vectorstore.Condition{Field: "metadata.task_status", Value: string(domain.TaskStatusTodo)})
	}

	if f.Empty() {
		return nil
	}
	return f
}

// ExtractJSON returns the first balanced JSON object in s, tolerating
// trailing garbage after it.
func ExtractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
