package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorbit/taskchat/internal/contextproc"
	"github.com/taskorbit/taskchat/internal/pipeline"
)

type fakePipeline struct {
	resp   pipeline.Response
	events []pipeline.StreamEvent
	req    pipeline.Request
}

func (f *fakePipeline) Process(ctx context.Context, req pipeline.Request) pipeline.Response {
	f.req = req
	resp := f.resp
	if resp.SessionID == "" {
		resp.SessionID = req.SessionID
	}
	return resp
}

func (f *fakePipeline) ProcessStream(ctx context.Context, req pipeline.Request, emit func(pipeline.StreamEvent)) {
	f.req = req
	for _, e := range f.events {
		emit(e)
	}
}

func TestChat_ReturnsPipelineResponse(t *testing.T) {
	fp := &fakePipeline{resp: pipeline.Response{
		Answer:     "Two tasks are overdue.",
		Sources:    []contextproc.Source{{EntityType: "task", EntityID: "K1", Citation: "[1]"}},
		Confidence: 0.9,
		Metadata:   pipeline.Metadata{StepsExecuted: []string{"hybrid_search"}},
	}}
	h := NewChatHandler(fp, nil)

	req := httptest.NewRequest(http.MethodPost, "/task-manager/chat",
		strings.NewReader(`{"query": "overdue tasks?", "sessionId": "s1"}`))
	rec := httptest.NewRecorder()

	h.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp pipeline.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Two tasks are overdue.", resp.Answer)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "overdue tasks?", fp.req.Query)
}

func TestChat_MalformedBodyIs400(t *testing.T) {
	h := NewChatHandler(&fakePipeline{}, nil)

	for _, body := range []string{"{not json", `{"query": 42}`} {
		req := httptest.NewRequest(http.MethodPost, "/task-manager/chat", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Chat(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestChat_EmptyQueryIs400(t *testing.T) {
	h := NewChatHandler(&fakePipeline{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/task-manager/chat", strings.NewReader(`{"query": ""}`))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStream_EmitsSSE(t *testing.T) {
	fp := &fakePipeline{events: []pipeline.StreamEvent{
		{Type: pipeline.EventStart, SessionID: "s1"},
		{Type: pipeline.EventChunk, Content: "Two tasks"},
		{Type: pipeline.EventComplete, Response: &pipeline.Response{Answer: "Two tasks are overdue.", SessionID: "s1"}},
	}}
	h := NewChatHandler(fp, nil)

	req := httptest.NewRequest(http.MethodGet, "/task-manager/chat-stream?query=overdue+tasks&sessionId=s1", nil)
	rec := httptest.NewRecorder()

	h.ChatStream(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: start\n")
	assert.Contains(t, body, "event: chunk\n")
	assert.Contains(t, body, "event: complete\n")
	assert.Contains(t, body, `"content":"Two tasks"`)
	assert.Equal(t, "overdue tasks", fp.req.Query)
	assert.Equal(t, "s1", fp.req.SessionID)
}

func TestChatStream_MissingQueryIs400(t *testing.T) {
	h := NewChatHandler(&fakePipeline{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/task-manager/chat-stream", nil)
	rec := httptest.NewRecorder()
	h.ChatStream(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
