package retrieval

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder turns texts into vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OllamaEmbedderOptions configure the Ollama embedding backend.
type OllamaEmbedderOptions struct {
	// Model is the embedding model identifier (e.g. "nomic-embed-text").
	Model string
	// BaseEndpoint is the Ollama server's OpenAI-compatible API location.
	BaseEndpoint string
}

// OllamaEmbedder generates embeddings through an Ollama server's
// OpenAI-compatible embeddings endpoint.
type OllamaEmbedder struct {
	client *openai.Client
	opts   OllamaEmbedderOptions
}

// NewOllamaEmbedder creates an embedder for the given endpoint and model.
func NewOllamaEmbedder(optFns ...func(o *OllamaEmbedderOptions)) *OllamaEmbedder {
	opts := OllamaEmbedderOptions{
		Model:        "nomic-embed-text",
		BaseEndpoint: "http://localhost:11434/v1",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := openai.NewClient(
		option.WithBaseURL(opts.BaseEndpoint),
		option.WithAPIKey("ollama"),
	)
	return &OllamaEmbedder{client: &client, opts: opts}
}

// Embed implements Embedder. Returned vectors are in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.opts.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}
