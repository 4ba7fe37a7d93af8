package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Ollama talks to a local Ollama server over its REST API.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllama creates an Ollama client. model is the default completion model
// used when Options.Model is empty.
func NewOllama(baseURL, model string) *Ollama {
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: CompletionTimeout,
		},
	}
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	System  string         `json:"system,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("ollama returned status %d: %s", e.code, e.body)
}

func (e *httpStatusError) StatusCode() int {
	return e.code
}

func (o *Ollama) generateOptions(opts Options) map[string]any {
	options := map[string]any{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if len(options) == 0 {
		return nil
	}
	return options
}

func (o *Ollama) resolveModel(opts Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return o.model
}

// Complete generates a full completion in one round trip.
func (o *Ollama) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, CompletionTimeout)
	defer cancel()

	var out string
	err := withRetry(ctx, completionRetries, func() error {
		body, err := o.post(ctx, "/api/generate", ollamaGenerateRequest{
			Model:   o.resolveModel(opts),
			Prompt:  prompt,
			Stream:  false,
			System:  opts.System,
			Options: o.generateOptions(opts),
		})
		if err != nil {
			return err
		}
		defer body.Close()

		var resp ollamaGenerateResponse
		if err := json.NewDecoder(body).Decode(&resp); err != nil {
			return fmt.Errorf("decoding generate response: %w", err)
		}
		out = resp.Response
		return nil
	})
	if err != nil {
		return "", classify(err, "completion")
	}
	return out, nil
}

// CompleteStream generates a completion as an NDJSON stream, invoking
// onChunk per fragment and returning the concatenated text.
func (o *Ollama) CompleteStream(ctx context.Context, prompt string, opts Options, onChunk func(string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, CompletionTimeout)
	defer cancel()

	body, err := o.post(ctx, "/api/generate", ollamaGenerateRequest{
		Model:   o.resolveModel(opts),
		Prompt:  prompt,
		Stream:  true,
		System:  opts.System,
		Options: o.generateOptions(opts),
	})
	if err != nil {
		return "", classify(err, "completion")
	}
	defer body.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaGenerateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return sb.String(), classify(fmt.Errorf("decoding stream chunk: %w", err), "completion")
		}
		if chunk.Response != "" {
			sb.WriteString(chunk.Response)
			if onChunk != nil {
				onChunk(chunk.Response)
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return sb.String(), classify(err, "completion")
	}
	return sb.String(), nil
}

// Embed generates an embedding for text with the given model.
func (o *Ollama) Embed(ctx context.Context, text, model string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, EmbeddingTimeout)
	defer cancel()

	var out []float32
	err := withRetry(ctx, embeddingRetries, func() error {
		body, err := o.post(ctx, "/api/embeddings", ollamaEmbeddingRequest{
			Model:  model,
			Prompt: text,
		})
		if err != nil {
			return err
		}
		defer body.Close()

		var resp ollamaEmbeddingResponse
		if err := json.NewDecoder(body).Decode(&resp); err != nil {
			return fmt.Errorf("decoding embedding response: %w", err)
		}
		out = resp.Embedding
		return nil
	})
	if err != nil {
		return nil, classify(err, "embedding")
	}
	return out, nil
}

func (o *Ollama) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &httpStatusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	return resp.Body, nil
}

var _ Client = (*Ollama)(nil)
