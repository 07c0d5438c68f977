package retrieval

import (
	"context"
	"fmt"
)

// EmbeddingClient abstracts the embedding backend. The Ollama client
// implements it.
type EmbeddingClient interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Embedder wraps an EmbeddingClient with a pinned model. The model name is
// the embedding scheme identifier recorded in the index: queries and corpus
// must be embedded with the same scheme or similarity scores are meaningless.
type Embedder struct {
	client EmbeddingClient
	model  string
}

// NewEmbedder creates an Embedder using the given client and model name.
func NewEmbedder(client EmbeddingClient, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

// Scheme returns the embedding scheme identifier (the model name).
func (e *Embedder) Scheme() string {
	return e.model
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}
