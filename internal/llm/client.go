// Package llm provides text completion and embedding clients for the local
// (Ollama) and hosted (OpenAI-compatible) backends, plus a caching wrapper
// for non-streaming completions.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/taskorbit/taskchat/internal/domain"
)

const (
	// CompletionTimeout bounds a single completion call.
	CompletionTimeout = 120 * time.Second
	// EmbeddingTimeout bounds a single embedding call.
	EmbeddingTimeout = 30 * time.Second

	completionRetries = 2
	embeddingRetries  = 3
	retryBaseDelay    = 500 * time.Millisecond
)

// Options control a single completion call.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
	System      string
}

// Client is the interface shared by all LLM backends.
type Client interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
	CompleteStream(ctx context.Context, prompt string, opts Options, onChunk func(string)) (string, error)
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// retryable reports whether a failed call should be attempted again.
// Bad requests and missing models never recover on retry.
type statusError interface {
	error
	StatusCode() int
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se statusError
	if errors.As(err, &se) {
		code := se.StatusCode()
		if code == 400 || code == 404 {
			return false
		}
	}
	return true
}

// withRetry runs fn up to retries+1 times with exponential backoff.
func withRetry(ctx context.Context, retries int, fn func() error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return domain.WrapError(domain.CodeTimeout, "llm call cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

// classify wraps a backend failure into the domain error model.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.CodeTimeout, op+" timed out", err)
	}
	var se statusError
	if errors.As(err, &se) {
		switch se.StatusCode() {
		case 404:
			return domain.WrapError(domain.CodeNotFound, "model not found", err)
		case 400:
			return domain.WrapError(domain.CodeValidation, op+" rejected by backend", err)
		}
	}
	return domain.WrapError(domain.CodeUpstream, op+" failed", err)
}
