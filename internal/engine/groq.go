package engine

import (
	"context"

	"github.com/asiento-ai/asiento/internal/groq"
)

// GroqEngine adapts the internal/groq.Client to the Engine interface.
// Groq's OpenAI-compatible API has no schema-constrained output mode, so a
// non-nil schema is mapped to strict JSON-object mode; callers validate the
// field set when parsing.
type GroqEngine struct {
	client *groq.Client
}

// NewGroqEngine creates a GroqEngine talking to the Groq API at baseURL with
// the given key. An empty baseURL uses the public endpoint.
func NewGroqEngine(baseURL, apiKey string) *GroqEngine {
	return &GroqEngine{client: groq.New(baseURL, apiKey)}
}

var _ Engine = (*GroqEngine)(nil)

func (e *GroqEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	msgs := make([]groq.Message, len(messages))
	for i, m := range messages {
		msgs[i] = groq.Message{Role: m.Role, Content: m.Content}
	}
	return e.client.Chat(ctx, model, msgs, jsonSchema != nil)
}

func (e *GroqEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return e.client.Embed(ctx, model, text)
}

func (e *GroqEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *GroqEngine) ListModels(ctx context.Context) ([]string, error) {
	return e.client.ListModels(ctx)
}

func (e *GroqEngine) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}
