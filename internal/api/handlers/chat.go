package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/taskorbit/taskchat/internal/api"
	"github.com/taskorbit/taskchat/internal/metrics"
	"github.com/taskorbit/taskchat/internal/pipeline"
)

// ChatPipeline is the orchestrator surface the handler needs.
type ChatPipeline interface {
	Process(ctx context.Context, req pipeline.Request) pipeline.Response
	ProcessStream(ctx context.Context, req pipeline.Request, emit func(pipeline.StreamEvent))
}

// ChatHandler serves the conversational endpoints. Pipeline failures
// surface as friendly answers inside a 200 response; only malformed
// bodies produce a 4xx.
type ChatHandler struct {
	pipeline ChatPipeline
	metrics  *metrics.Metrics
}

func NewChatHandler(p ChatPipeline, m *metrics.Metrics) *ChatHandler {
	return &ChatHandler{pipeline: p, metrics: m}
}

func (h *ChatHandler) record(resp pipeline.Response, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	h.metrics.PipelineRequests.
		WithLabelValues(resp.Metadata.QueryClassification, strconv.FormatBool(resp.Metadata.FromCache)).
		Inc()
	h.metrics.PipelineDuration.Observe(elapsed.Seconds())
}

// Chat handles POST /task-manager/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	start := time.Now()
	resp := h.pipeline.Process(r.Context(), req)
	h.record(resp, time.Since(start))

	api.JSON(w, http.StatusOK, resp)
}

// ChatStream handles GET /task-manager/chat-stream as server-sent events.
func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		api.Error(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	req := pipeline.Request{
		Query:     query,
		SessionID: r.URL.Query().Get("sessionId"),
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	start := time.Now()
	h.pipeline.ProcessStream(r.Context(), req, func(e pipeline.StreamEvent) {
		payload, err := json.Marshal(e)
		if err != nil {
			return
		}
		w.Write([]byte("event: " + e.Type + "\n"))
		w.Write([]byte("data: "))
		w.Write(payload)
		w.Write([]byte("\n\n"))
		flusher.Flush()

		if e.Type == pipeline.EventComplete && e.Response != nil {
			h.record(*e.Response, time.Since(start))
		}
	})
}
