package embeddings

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"ragchat-platform/models"
)

// GoogleEmbedder generates embeddings through the Google Generative AI
// API (text-embedding-004 and friends).
type GoogleEmbedder struct {
	client    *genai.Client
	model     *genai.EmbeddingModel
	dimension int
}

// NewGoogleEmbedder is the Factory for provider "google". The API key
// comes from the model config, falling back to GEMINI_API_KEY.
func NewGoogleEmbedder(ctx context.Context, model *models.EmbeddingModel) (Embedder, error) {
	apiKey := model.Config["api_key"]
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &GoogleEmbedder{
		client:    client,
		model:     client.EmbeddingModel(model.ModelID),
		dimension: model.Dimension,
	}, nil
}

func (g *GoogleEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("%w: no embedding returned", ErrEmbeddingFailed)
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch embeds all texts in a single API round trip.
func (g *GoogleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := g.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := g.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			ErrEmbeddingFailed, len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("%w: empty embedding at index %d", ErrEmbeddingFailed, i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (g *GoogleEmbedder) Dimension() int {
	return g.dimension
}

// Close releases the underlying API client.
func (g *GoogleEmbedder) Close() error {
	return g.client.Close()
}
