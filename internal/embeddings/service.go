package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"ragchat-platform/models"
)

var (
	// ErrModelNotFound means the requested embedding model is not
	// registered or not active.
	ErrModelNotFound = errors.New("embedding model not found")

	// ErrEmbeddingFailed wraps provider-side failures.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Embedder converts text into vectors. Implementations are safe for
// concurrent use.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// ModelStore looks up embedding model definitions by id.
type ModelStore interface {
	GetEmbeddingModel(ctx context.Context, id string) (*models.EmbeddingModel, error)
}

// Factory builds an Embedder for one provider from a model definition.
type Factory func(ctx context.Context, model *models.EmbeddingModel) (Embedder, error)

// Service hands out Embedder instances keyed by embedding model id.
// Instances are built once and cached; provider clients hold network
// connections, so rebuilding per call would be wasteful.
type Service struct {
	store     ModelStore
	factories map[string]Factory

	mu    sync.Mutex
	cache map[string]Embedder
}

func NewService(store ModelStore) *Service {
	return &Service{
		store: store,
		factories: map[string]Factory{
			"google": NewGoogleEmbedder,
		},
		cache: make(map[string]Embedder),
	}
}

// RegisterFactory adds or replaces the factory for a provider name.
func (s *Service) RegisterFactory(provider string, f Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[provider] = f
}

// ForModel returns the cached Embedder for the model id, building it on
// first use.
func (s *Service) ForModel(ctx context.Context, modelID string) (Embedder, error) {
	s.mu.Lock()
	if emb, ok := s.cache[modelID]; ok {
		s.mu.Unlock()
		return emb, nil
	}
	s.mu.Unlock()

	model, err := s.store.GetEmbeddingModel(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	if !model.IsActive {
		return nil, fmt.Errorf("%w: %s is inactive", ErrModelNotFound, modelID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have built it while we hit the store.
	if emb, ok := s.cache[modelID]; ok {
		return emb, nil
	}

	factory, ok := s.factories[model.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: no factory for provider %q", ErrModelNotFound, model.Provider)
	}

	emb, err := factory(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("building embedder for %s: %w", modelID, err)
	}

	log.Printf("Embedder ready: model=%s provider=%s dim=%d", modelID, model.Provider, emb.Dimension())
	s.cache[modelID] = emb
	return emb, nil
}

// Invalidate drops a cached embedder, forcing a rebuild on next use.
// Call after a model definition changes.
func (s *Service) Invalidate(modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, modelID)
}
