// Package llm wraps the language-model provider behind a two-operation
// interface: text generation and text embedding. The production
// implementation talks to an OpenAI-compatible API.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// Provider is the black-box LLM service the pipeline depends on.
type Provider interface {
	// Generate returns the model's text completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Embed returns an embedding vector for the text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client implements Provider on top of an OpenAI-compatible API.
type Client struct {
	api            *openai.Client
	model          string
	embeddingModel string
	embeddingDim   int
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the chat completion model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithEmbeddingModel overrides the embedding model.
func WithEmbeddingModel(model string) Option {
	return func(c *Client) { c.embeddingModel = model }
}

// WithEmbeddingDim sets the requested embedding dimensionality.
func WithEmbeddingDim(dim int) Option {
	return func(c *Client) { c.embeddingDim = dim }
}

// NewClient creates a Client from OPENAI_API_KEY and optional
// OPENAI_BASE_URL in the environment.
func NewClient(opts ...Option) (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}

	c := &Client{
		api:            openai.NewClientWithConfig(cfg),
		model:          openai.GPT4oMini,
		embeddingModel: string(openai.SmallEmbedding3),
		embeddingDim:   768,
	}
	for _, opt := range opts {
		opt(c)
	}

	slog.Info("LLM client configured",
		"model", c.model,
		"embedding_model", c.embeddingModel,
		"embedding_dim", c.embeddingDim)
	return c, nil
}

// Generate sends the prompt as a single user message and returns the first
// choice's content.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns an embedding for the text, requesting the configured
// dimensionality.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(c.embeddingModel),
		Input:      []string{text},
		Dimensions: c.embeddingDim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding request returned no data")
	}
	return resp.Data[0].Embedding, nil
}
