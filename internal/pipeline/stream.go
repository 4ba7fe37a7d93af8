package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/taskorbit/taskchat/internal/contextproc"
	"github.com/taskorbit/taskchat/internal/conversation"
	"github.com/taskorbit/taskchat/internal/generate"
	"github.com/taskorbit/taskchat/internal/intent"
	"github.com/taskorbit/taskchat/internal/telemetry"
)

// Stream event types.
const (
	EventStart    = "start"
	EventStatus   = "status"
	EventSources  = "sources"
	EventChunk    = "chunk"
	EventComplete = "complete"
	EventError    = "error"
)

// StreamEvent is one server-sent event of the streaming chat variant.
type StreamEvent struct {
	Type      string               `json:"type"`
	SessionID string               `json:"sessionId,omitempty"`
	Message   string               `json:"message,omitempty"`
	Content   string               `json:"content,omitempty"`
	Sources   []contextproc.Source `json:"sources,omitempty"`
	Response  *Response            `json:"response,omitempty"`
}

// ProcessStream handles one chat request, emitting progress events and
// the LLM token stream as they become available. The complete event
// carries the same Response that Process would have returned.
func (p *Pipeline) ProcessStream(ctx context.Context, req Request, emit func(StreamEvent)) {
	start := time.Now()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = conversation.NewSessionID()
	}
	ctx, span := telemetry.StartSpan(ctx, "Pipeline.ProcessStream", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "chat_stream",
	})
	defer span.End()
	emit(StreamEvent{Type: EventStart, SessionID: sessionID})

	key := p.cacheKey(req.Query, sessionID)
	if cached, ok := p.responses.Get(key); ok {
		cached.SessionID = sessionID
		cached.Metadata.FromCache = true
		cached.Metadata.ProcessingMs = time.Since(start).Milliseconds()
		emit(StreamEvent{Type: EventComplete, Response: &cached})
		return
	}

	historyPrompt := p.conv.HistoryPrompt(ctx, sessionID)
	history := p.conv.History(ctx, sessionID)

	if quick := p.classifier.QuickIntent(ctx, req.Query); quick != intent.QuickNone {
		answer := quickResponse(quick)
		p.appendTurns(ctx, sessionID, req.Query, answer)
		resp := Response{
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
		emit(StreamEvent{Type: EventChunk, Content: answer})
		emit(StreamEvent{Type: EventComplete, Response: &resp})
		return
	}

	emit(StreamEvent{Type: EventStatus, Message: "classifying query"})
	cls := p.classifier.Classify(ctx, req.Query, historyPrompt)
	queryIntent := intent.DeriveIntent(cls.Type, cls.Entities)
	filters := intent.ExtractFilters(req.Query, cls.Type, cls.Entities)

	switch cls.Type {
	case intent.TypeCreate, intent.TypeUpdate, intent.TypeDelete:
		resp := p.processAction(ctx, req.Query, sessionID, cls, queryIntent, history, filters, start)
		emit(StreamEvent{Type: EventChunk, Content: resp.Answer})
		emit(StreamEvent{Type: EventComplete, Response: &resp})
		return
	}

	queries := []string{req.Query}
	if p.shouldReformulate(cls.Type, req.Query, history) {
		queries = p.classifier.Reformulate(ctx, req.Query, historyPrompt)
	}

	if resp := p.tryShortcut(ctx, req.Query, sessionID, cls, filters, start); resp != nil {
		p.responses.Set(key, *resp)
		emit(StreamEvent{Type: EventSources, Sources: resp.Sources})
		emit(StreamEvent{Type: EventChunk, Content: resp.Answer})
		emit(StreamEvent{Type: EventComplete, Response: resp})
		return
	}

	emit(StreamEvent{Type: EventStatus, Message: "searching"})
	docs, err := p.retriever.HybridSearch(ctx, queries, filters)
	if err != nil {
		p.emitError(ctx, req.Query, sessionID, err, emit)
		return
	}

	processed := p.processor.Process(docs, req.Query)
	emit(StreamEvent{Type: EventSources, Sources: processed.Sources})

	answer, err := p.generator.GenerateStream(ctx, req.Query, processed.Context, history, cls.Type, func(chunk string) {
		emit(StreamEvent{Type: EventChunk, Content: chunk})
	})
	if err != nil {
		p.emitError(ctx, req.Query, sessionID, err, emit)
		return
	}

	grounded := generate.CheckGrounding(answer, processed.Compressed)
	confidence := generate.Confidence(processed.Compressed, grounded)

	p.appendTurns(ctx, sessionID, req.Query, answer)

	resp := Response{
		Answer:     answer,
		Sources:    processed.Sources,
		Confidence: confidence,
		SessionID:  sessionID,
		Metadata: Metadata{
			ProcessingMs:        time.Since(start).Milliseconds(),
			StepsExecuted:       []string{StepHybridSearch, StepContextCompress, StepAnswerGeneration},
			RetrievedDocuments:  len(processed.Compressed),
			QueryClassification: cls.Type,
		},
	}
	p.responses.Set(key, resp)
	emit(StreamEvent{Type: EventComplete, Response: &resp})
}

func (p *Pipeline) emitError(ctx context.Context, query, sessionID string, cause error, emit func(StreamEvent)) {
	log.Printf("pipeline: stream request failed: %v", cause)
	answer := p.generator.FriendlyError(ctx, query, cause)
	p.appendTurns(ctx, sessionID, query, answer)
	emit(StreamEvent{Type: EventError, Message: answer})
}
