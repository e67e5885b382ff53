package llm

import (
	"context"

	"github.com/openai/openai-go"
)

// Provider is the LLM collaborator. Any call may fail with a provider error;
// callers are expected to catch it locally and degrade.
type Provider interface {
	// Generate sends one system and one user message and returns either free
	// text or a function-call payload when tools were supplied.
	Generate(ctx context.Context, system, user string, opts ...Option) (*Response, error)
}

// Embedder turns texts into dense vectors for semantic search.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type Option func(*Options)

type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	Tools       []openai.ChatCompletionToolParam
}

func WithTools(tools []openai.ChatCompletionToolParam) Option {
	return func(o *Options) { o.Tools = tools }
}

func WithModel(model string) Option {
	return func(o *Options) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithMaxTokens(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

// FunctionResponse is the structured result of a tool call.
type FunctionResponse struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type Response struct {
	Content      string
	FunctionCall *FunctionResponse
	Usage        Usage
}
