// Package conversation keeps per-session chat history with rolling
// LLM summarisation of older turns.
package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskorbit/taskchat/internal/cache"
	"github.com/taskorbit/taskchat/internal/domain"
	"github.com/taskorbit/taskchat/internal/llm"
)

const (
	// MaxMessages is the hard cap on retained turns per session.
	MaxMessages = 10
	// SummarizeThreshold triggers summarisation once this many turns
	// accumulate.
	SummarizeThreshold = 8
	// KeepRecent turns survive summarisation verbatim.
	KeepRecent = 3

	// SessionTTL expires idle sessions.
	SessionTTL = 30 * time.Minute

	summaryMaxTokens   = 300
	summaryTemperature = 0.3
)

type session struct {
	Summary    string        `json:"summary,omitempty"`
	Turns      []domain.Turn `json:"turns"`
	LastActive time.Time     `json:"lastActive"`
}

// Store holds sessions in memory, mirrored to Redis so history survives
// process restarts. All mutation happens under a per-store lock; the
// summarisation LLM call runs outside it.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session

	redis *cache.Redis
	llm   llm.Client
	model string
}

// NewStore creates a Store. redis may be nil, in which case history is
// memory-only. client may be nil, in which case summarisation degrades
// to head truncation.
func NewStore(redis *cache.Redis, client llm.Client, model string) *Store {
	return &Store{
		sessions: map[string]*session{},
		redis:    redis,
		llm:      client,
		model:    model,
	}
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

func redisKey(sessionID string) string {
	return "session:" + sessionID
}

// load fetches the session, falling back to the Redis mirror. Expired
// sessions are dropped.
func (s *Store) load(ctx context.Context, sessionID string) *session {
	if sess, ok := s.sessions[sessionID]; ok {
		if time.Since(sess.LastActive) <= SessionTTL {
			return sess
		}
		delete(s.sessions, sessionID)
	}

	if s.redis != nil {
		var sess session
		if ok, err := s.redis.GetJSON(ctx, redisKey(sessionID), &sess); err == nil && ok {
			s.sessions[sessionID] = &sess
			return &sess
		}
	}

	sess := &session{}
	s.sessions[sessionID] = sess
	return sess
}

func (s *Store) persist(ctx context.Context, sessionID string, sess *session) {
	if s.redis == nil {
		return
	}
	if err := s.redis.SetJSON(ctx, redisKey(sessionID), sess, SessionTTL); err != nil {
		log.Printf("conversation: session mirror write failed: %v", err)
	}
}

// Append records a turn and compacts history when it grows past the
// summarisation threshold.
func (s *Store) Append(ctx context.Context, sessionID string, role domain.TurnRole, content string) {
	s.mu.Lock()
	sess := s.load(ctx, sessionID)
	sess.Turns = append(sess.Turns, domain.Turn{Role: role, Content: content, CreatedAt: time.Now().UTC()})
	sess.LastActive = time.Now().UTC()

	var toSummarize []domain.Turn
	var priorSummary string
	if len(sess.Turns) >= SummarizeThreshold {
		old := sess.Turns[:len(sess.Turns)-KeepRecent]
		// Summarising fewer than 3 turns is not worth an LLM call.
		if len(old) >= 3 {
			toSummarize = append([]domain.Turn(nil), old...)
			priorSummary = sess.Summary
		}
	}
	s.mu.Unlock()

	if toSummarize != nil {
		summary, err := s.summarize(ctx, priorSummary, toSummarize)

		s.mu.Lock()
		sess = s.load(ctx, sessionID)
		if err != nil {
			log.Printf("conversation: summarisation failed, truncating: %v", err)
			if len(sess.Turns) > MaxMessages {
				sess.Turns = append([]domain.Turn(nil), sess.Turns[len(sess.Turns)-MaxMessages:]...)
			}
		} else {
			sess.Summary = summary
			if len(sess.Turns) > KeepRecent {
				sess.Turns = append([]domain.Turn(nil), sess.Turns[len(sess.Turns)-KeepRecent:]...)
			}
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	sess = s.load(ctx, sessionID)
	if len(sess.Turns) > MaxMessages {
		sess.Turns = append([]domain.Turn(nil), sess.Turns[len(sess.Turns)-MaxMessages:]...)
	}
	s.persist(ctx, sessionID, sess)
	s.mu.Unlock()
}

// Get returns the running summary and the retained turns.
func (s *Store) Get(ctx context.Context, sessionID string) (string, []domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.load(ctx, sessionID)
	turns := append([]domain.Turn(nil), sess.Turns...)
	return sess.Summary, turns
}

// History returns the retained turns with the running summary, if any,
// prepended as a summary-role turn.
func (s *Store) History(ctx context.Context, sessionID string) []domain.Turn {
	summary, turns := s.Get(ctx, sessionID)
	if summary == "" {
		return turns
	}
	out := make([]domain.Turn, 0, len(turns)+1)
	out = append(out, domain.Turn{Role: domain.RoleSummary, Content: summary})
	return append(out, turns...)
}

// HistoryPrompt renders the summary and turns as context for the LLM.
func (s *Store) HistoryPrompt(ctx context.Context, sessionID string) string {
	summary, turns := s.Get(ctx, sessionID)
	if summary == "" && len(turns) == 0 {
		return ""
	}

	var sb strings.Builder
	if summary != "" {
		fmt.Fprintf(&sb, "Conversation summary: %s\n", summary)
	}
	for _, t := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
	}
	return sb.String()
}

func (s *Store) summarize(ctx context.Context, priorSummary string, turns []domain.Turn) (string, error) {
	if s.llm == nil {
		return "", fmt.Errorf("no llm client configured")
	}

	var sb strings.Builder
	sb.WriteString("Summarize this conversation in a few sentences. Keep names, ids and decisions.\n\n")
	if priorSummary != "" {
		fmt.Fprintf(&sb, "Earlier summary: %s\n\n", priorSummary)
	}
	for _, t := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
	}

	return s.llm.Complete(ctx, sb.String(), llm.Options{
		Model:       s.model,
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
}

// Clear removes a session from memory and the mirror.
func (s *Store) Clear(ctx context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	if s.redis != nil {
		if err := s.redis.Delete(ctx, redisKey(sessionID)); err != nil {
			log.Printf("conversation: session mirror delete failed: %v", err)
		}
	}
}
