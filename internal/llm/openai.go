package llm

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI is the hosted backend over chat-formatted completions with SSE
// streaming.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a hosted-backend client. model is the default
// completion model used when Options.Model is empty.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

type openaiStatusError struct {
	inner *openai.APIError
}

func (e *openaiStatusError) Error() string {
	return e.inner.Error()
}

func (e *openaiStatusError) StatusCode() int {
	return e.inner.HTTPStatusCode
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &openaiStatusError{inner: apiErr}
	}
	return err
}

func (c *OpenAI) chatRequest(prompt string, opts Options, stream bool) openai.ChatCompletionRequest {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	var messages []openai.ChatCompletionMessage
	if opts.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      stream,
	}
}

func (c *OpenAI) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, CompletionTimeout)
	defer cancel()

	var out string
	err := withRetry(ctx, completionRetries, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, c.chatRequest(prompt, opts, false))
		if err != nil {
			return wrapOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("no completion choices returned")
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", classify(err, "completion")
	}
	return out, nil
}

func (c *OpenAI) CompleteStream(ctx context.Context, prompt string, opts Options, onChunk func(string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, CompletionTimeout)
	defer cancel()

	stream, err := c.client.CreateChatCompletionStream(ctx, c.chatRequest(prompt, opts, true))
	if err != nil {
		return "", classify(wrapOpenAIError(err), "completion")
	}
	defer stream.Close()

	var out string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, classify(wrapOpenAIError(err), "completion")
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta != "" {
			out += delta
			if onChunk != nil {
				onChunk(delta)
			}
		}
	}
	return out, nil
}

func (c *OpenAI) Embed(ctx context.Context, text, model string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, EmbeddingTimeout)
	defer cancel()

	embeddingModel := openai.EmbeddingModel(model)
	if model == "" {
		embeddingModel = openai.SmallEmbedding3
	}

	var out []float32
	err := withRetry(ctx, embeddingRetries, func() error {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: embeddingModel,
		})
		if err != nil {
			return wrapOpenAIError(err)
		}
		if len(resp.Data) == 0 {
			return errors.New("no embedding data returned")
		}
		out = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, classify(err, "embedding")
	}
	return out, nil
}

var _ Client = (*OpenAI)(nil)
