// Package pipeline orchestrates one chat request end to end: caching,
// quick intents, classification, action dispatch, retrieval and answer
// generation.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/taskorbit/taskchat/internal/action"
	"github.com/taskorbit/taskchat/internal/cache"
	"github.com/taskorbit/taskchat/internal/contextproc"
	"github.com/taskorbit/taskchat/internal/conversation"
	"github.com/taskorbit/taskchat/internal/domain"
	"github.com/taskorbit/taskchat/internal/generate"
	"github.com/taskorbit/taskchat/internal/intent"
	"github.com/taskorbit/taskchat/internal/telemetry"
	"github.com/taskorbit/taskchat/internal/vectorstore"
)

const (
	responseCacheTTL  = 5 * time.Minute
	shortcutThreshold = 0.80
	shortcutCiteLimit = 5
	reformulateMinLen = 50
)

// Pipeline step names reported in response metadata.
const (
	StepQuickIntent      = "quick_intent"
	StepShortcut         = "shortcut_exact_match"
	StepHybridSearch     = "hybrid_search"
	StepContextCompress  = "context_compression"
	StepAnswerGeneration = "answer_generation"
	StepActionExecution  = "action_execution"
)

// Request is one chat turn from the client.
type Request struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId,omitempty"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	ProcessingMs        int64                 `json:"processingMs"`
	StepsExecuted       []string              `json:"stepsExecuted"`
	RetrievedDocuments  int                   `json:"retrievedDocuments"`
	QueryClassification string                `json:"queryClassification"`
	FromCache           bool                  `json:"fromCache"`
	FunctionCalls       []action.FunctionCall `json:"functionCalls,omitempty"`
}

// Response is the full chat answer returned to the client.
type Response struct {
	Answer     string               `json:"answer"`
	Sources    []contextproc.Source `json:"sources"`
	Confidence float64              `json:"confidence"`
	SessionID  string               `json:"sessionId"`
	Metadata   Metadata             `json:"metadata"`
}

// Classifier is the intent surface the pipeline needs.
type Classifier interface {
	QuickIntent(ctx context.Context, query string) string
	Classify(ctx context.Context, query, history string) intent.Classification
	Reformulate(ctx context.Context, query, history string) []string
}

// Retriever is the search surface the pipeline needs.
type Retriever interface {
	VectorSearch(ctx context.Context, query string, filter *vectorstore.Filter) ([]domain.RetrievedDoc, error)
	HybridSearch(ctx context.Context, queries []string, filter *vectorstore.Filter) ([]domain.RetrievedDoc, error)
}

// AnswerGenerator renders final answers and friendly errors.
type AnswerGenerator interface {
	Generate(ctx context.Context, query, contextBlock string, history []domain.Turn, queryType string) (string, error)
	GenerateStream(ctx context.Context, query, contextBlock string, history []domain.Turn, queryType string, onChunk func(string)) (string, error)
	FriendlyError(ctx context.Context, query string, cause error) string
}

// ActionRunner executes write intents.
type ActionRunner interface {
	Execute(ctx context.Context, query string, cls intent.Classification, queryIntent string, history []domain.Turn, docs []domain.RetrievedDoc) (*action.Result, error)
}

// Conversation is the session history surface the pipeline needs.
type Conversation interface {
	Append(ctx context.Context, sessionID string, role domain.TurnRole, content string)
	History(ctx context.Context, sessionID string) []domain.Turn
	HistoryPrompt(ctx context.Context, sessionID string) string
}

// Options tune pipeline behaviour.
type Options struct {
	// CacheKeyIncludesSession scopes cached answers to one session
	// instead of sharing them across sessions.
	CacheKeyIncludesSession bool
}

// Pipeline wires the chat components together.
type Pipeline struct {
	conv       Conversation
	classifier Classifier
	retriever  Retriever
	processor  *contextproc.Processor
	generator  AnswerGenerator
	executor   ActionRunner
	responses  *cache.TTLMap[Response]
	opts       Options
}

func New(
	conv Conversation,
	classifier Classifier,
	retriever Retriever,
	processor *contextproc.Processor,
	generator AnswerGenerator,
	executor ActionRunner,
	opts Options,
) *Pipeline {
	return &Pipeline{
		conv:       conv,
		classifier: classifier,
		retriever:  retriever,
		processor:  processor,
		generator:  generator,
		executor:   executor,
		responses:  cache.NewTTLMap[Response](responseCacheTTL),
		opts:       opts,
	}
}

var quickTemplates = map[string][]string{
	intent.QuickGreeting: {
		"Hello! How can I help you with your tasks today?",
		"Hi there! What would you like to do?",
		"Hey! Ask me anything about your tasks, teams or projects.",
	},
	intent.QuickGoodbye: {
		"Goodbye! Come back any time.",
		"See you later!",
		"Bye! I'll be here when you need me.",
	},
	intent.QuickThank: {
		"You're welcome!",
		"Happy to help!",
		"Any time!",
	},
}

func quickResponse(kind string) string {
	templates := quickTemplates[kind]
	if len(templates) == 0 {
		return "Hello!"
	}
	return templates[rand.Intn(len(templates))]
}

// cacheKey hashes the normalised query; the session id is mixed in only
// when configured, so by default answers are shared across sessions.
func (p *Pipeline) cacheKey(query, sessionID string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	if p.opts.CacheKeyIncludesSession {
		normalized += "|" + sessionID
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

var shortcutRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(get|show|find|list)\s+(all\s+)?(overdue|urgent|done|to\s*do|in\s*progress)\b`),
	regexp.MustCompile(`(?i)^(get|show|find|list)\s+(all\s+)?(tasks?|users?|teams?|projects?)\b`),
}

func matchesShortcut(query string) bool {
	q := strings.TrimSpace(query)
	for _, re := range shortcutRes {
		if re.MatchString(q) {
			return true
		}
	}
	return false
}

func hasEntityType(f *vectorstore.Filter) bool {
	if f == nil {
		return false
	}
	for _, c := range f.Must {
		if c.Field == "entity_type" {
			return true
		}
	}
	for _, c := range f.Should {
		if c.Field == "entity_type" {
			return true
		}
	}
	return false
}

func docSources(docs []domain.RetrievedDoc) []contextproc.Source {
	sources := make([]contextproc.Source, 0, len(docs))
	for i, d := range docs {
		text := d.Text
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		sources = append(sources, contextproc.Source{
			EntityType: d.EntityType,
			EntityID:   d.EntityID,
			Text:       text,
			Score:      d.Score,
			Citation:   fmt.Sprintf("[%d]", i+1),
		})
	}
	return sources
}

func (p *Pipeline) appendTurns(ctx context.Context, sessionID, query, answer string) {
	p.conv.Append(ctx, sessionID, domain.RoleUser, query)
	p.conv.Append(ctx, sessionID, domain.RoleAssistant, answer)
}

// Process handles one chat request.
func (p *Pipeline) Process(ctx context.Context, req Request) Response {
	start := time.Now()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = conversation.NewSessionID()
	}

	ctx, span := telemetry.StartSpan(ctx, "Pipeline.Process", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "chat",
	})
	defer span.End()

	key := p.cacheKey(req.Query, sessionID)
	if cached, ok := p.responses.Get(key); ok {
		cached.SessionID = sessionID
		cached.Metadata.FromCache = true
		cached.Metadata.ProcessingMs = time.Since(start).Milliseconds()
		return cached
	}

	historyPrompt := p.conv.HistoryPrompt(ctx, sessionID)
	history := p.conv.History(ctx, sessionID)

	if quick := p.classifier.QuickIntent(ctx, req.Query); quick != intent.QuickNone {
		answer := quickResponse(quick)
		p.appendTurns(ctx, sessionID, req.Query, answer)
		return Response{
			Answer:     answer,
			Sources:    []contextproc.Source{},
			Confidence: 1,
			SessionID:  sessionID,
			Metadata: Metadata{
				ProcessingMs:        time.Since(start).Milliseconds(),
				StepsExecuted:       []string{StepQuickIntent},
				QueryClassification: quick,
			},
		}
	}

	cls := p.classifier.Classify(ctx, req.Query, historyPrompt)
	queryIntent := intent.DeriveIntent(cls.Type, cls.Entities)
	filters := intent.ExtractFilters(req.Query, cls.Type, cls.Entities)

	switch cls.Type {
	case intent.TypeCreate, intent.TypeUpdate, intent.TypeDelete:
		return p.processAction(ctx, req.Query, sessionID, cls, queryIntent, history, filters, start)
	}
	return p.processRetrieval(ctx, req.Query, sessionID, key, cls, history, filters, start)
}

// processAction runs the write branch: one hybrid search for reference
// context, then the executor. Action responses are never cached; they
// have side effects.
func (p *Pipeline) processAction(
	ctx context.Context,
	query, sessionID string,
	cls intent.Classification,
	queryIntent string,
	history []domain.Turn,
	filters *vectorstore.Filter,
	start time.Time,
) Response {
	docs, err := p.retriever.HybridSearch(ctx, []string{query}, filters)
	if err != nil {
		log.Printf("pipeline: action context search failed: %v", err)
	}

	res, err := p.executor.Execute(ctx, query, cls, queryIntent, history, docs)
	if err != nil {
		answer := p.generator.FriendlyError(ctx, query, err)
		p.appendTurns(ctx, sessionID, query, answer)
		return Response{
			Answer:    answer,
			Sources:   []contextproc.Source{},
			SessionID: sessionID,
			Metadata: Metadata{
				ProcessingMs:        time.Since(start).Milliseconds(),
				StepsExecuted:       []string{StepHybridSearch, StepActionExecution},
				QueryClassification: cls.Type,
			},
		}
	}

	p.appendTurns(ctx, sessionID, query, res.Answer)
	return Response{
		Answer:     res.Answer,
		Sources:    docSources(res.Sources),
		Confidence: 1,
		SessionID:  sessionID,
		Metadata: Metadata{
			ProcessingMs:        time.Since(start).Milliseconds(),
			StepsExecuted:       []string{StepHybridSearch, StepActionExecution},
			RetrievedDocuments:  len(res.Sources),
			QueryClassification: cls.Type,
			FunctionCalls:       res.FunctionCalls,
		},
	}
}

func (p *Pipeline) shouldReformulate(queryType, query string, history []domain.Turn) bool {
	if queryType == intent.TypeQuestion || queryType == intent.TypeSearch {
		return true
	}
	return len(query) > reformulateMinLen || len(history) > 0
}

// tryShortcut runs the direct-lookup path for trivially patterned list
// queries. Returns nil when the shortcut does not apply.
func (p *Pipeline) tryShortcut(
	ctx context.Context,
	query, sessionID string,
	cls intent.Classification,
	filters *vectorstore.Filter,
	start time.Time,
) *Response {
	if !matchesShortcut(query) || !hasEntityType(filters) {
		return nil
	}

	docs, err := p.retriever.VectorSearch(ctx, query, filters)
	if err != nil || len(docs) == 0 || docs[0].Score <= shortcutThreshold {
		return nil
	}
	if len(docs) > shortcutCiteLimit {
		docs = docs[:shortcutCiteLimit]
	}

	var sb strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&sb, "[%d] %s: %s\n", i+1, strings.ToUpper(d.EntityType), d.Text)
	}
	answer, err := p.generator.Generate(ctx, query, sb.String(), nil, cls.Type)
	if err != nil {
		return nil
	}

	grounded := generate.CheckGrounding(answer, docs)
	p.appendTurns(ctx, sessionID, query, answer)
	return &Response{
		Answer:     answer,
		Sources:    docSources(docs),
		Confidence: generate.Confidence(docs, grounded),
		SessionID:  sessionID,
		Metadata: Metadata{
			ProcessingMs:        time.Since(start).Milliseconds(),
			StepsExecuted:       []string{StepShortcut},
			RetrievedDocuments:  len(docs),
			QueryClassification: cls.Type,
		},
	}
}

func (p *Pipeline) processRetrieval(
	ctx context.Context,
	query, sessionID, cacheKey string,
	cls intent.Classification,
	history []domain.Turn,
	filters *vectorstore.Filter,
	start time.Time,
) Response {
	historyPrompt := ""
	if len(history) > 0 {
		historyPrompt = p.conv.HistoryPrompt(ctx, sessionID)
	}

	queries := []string{query}
	if p.shouldReformulate(cls.Type, query, history) {
		queries = p.classifier.Reformulate(ctx, query, historyPrompt)
	}

	if resp := p.tryShortcut(ctx, query, sessionID, cls, filters, start); resp != nil {
		p.responses.Set(cacheKey, *resp)
		return *resp
	}

	docs, err := p.retriever.HybridSearch(ctx, queries, filters)
	if err != nil {
		return p.errorResponse(ctx, query, sessionID, cls.Type, err, start)
	}
	steps := []string{StepHybridSearch}

	processed := p.processor.Process(docs, query)
	steps = append(steps, StepContextCompress)

	answer, err := p.generator.Generate(ctx, query, processed.Context, history, cls.Type)
	if err != nil {
		return p.errorResponse(ctx, query, sessionID, cls.Type, err, start)
	}
	steps = append(steps, StepAnswerGeneration)

	grounded := generate.CheckGrounding(answer, processed.Compressed)
	confidence := generate.Confidence(processed.Compressed, grounded)

	p.appendTurns(ctx, sessionID, query, answer)

	resp := Response{
		Answer:     answer,
		Sources:    processed.Sources,
		Confidence: confidence,
		SessionID:  sessionID,
		Metadata: Metadata{
			ProcessingMs:        time.Since(start).Milliseconds(),
			StepsExecuted:       steps,
			RetrievedDocuments:  len(processed.Compressed),
			QueryClassification: cls.Type,
		},
	}
	p.responses.Set(cacheKey, resp)
	return resp
}

// errorResponse converts an internal failure into a friendly answer.
// Error responses are never cached.
func (p *Pipeline) errorResponse(ctx context.Context, query, sessionID, queryType string, cause error, start time.Time) Response {
	log.Printf("pipeline: request failed: %v", cause)
	answer := p.generator.FriendlyError(ctx, query, cause)
	p.appendTurns(ctx, sessionID, query, answer)
	return Response{
		Answer:    answer,
		Sources:   []contextproc.Source{},
		SessionID: sessionID,
		Metadata: Metadata{
			ProcessingMs:        time.Since(start).Milliseconds(),
			QueryClassification: queryType,
		},
	}
}
