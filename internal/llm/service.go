package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"ragchat-platform/models"
)

// ErrNoModel means no usable language model is registered or active.
var ErrNoModel = errors.New("no language model available")

// ProviderStore looks up language model and provider rows.
type ProviderStore interface {
	GetLlmModel(ctx context.Context, id string) (*models.LlmModel, error)
	GetLlmProvider(ctx context.Context, id string) (*models.LlmProvider, error)
	DefaultLlmModel(ctx context.Context) (*models.LlmModel, error)
}

// ClientFactory builds a ChatModel for one provider slug.
type ClientFactory func(provider *models.LlmProvider, model *models.LlmModel) (ChatModel, error)

// Service resolves model ids to ChatModel clients and caches them.
// An empty model id resolves to the first active model.
type Service struct {
	store     ProviderStore
	factories map[string]ClientFactory

	mu    sync.Mutex
	cache map[string]ChatModel
}

func NewService(store ProviderStore) *Service {
	return &Service{
		store: store,
		factories: map[string]ClientFactory{
			"gemini": newGeminiChatModel,
		},
		cache: make(map[string]ChatModel),
	}
}

// RegisterFactory adds or replaces the factory for a provider slug.
func (s *Service) RegisterFactory(slug string, f ClientFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[slug] = f
}

// ForModel returns the cached ChatModel for a model id, building it on
// first use. Pass "" for the default model.
func (s *Service) ForModel(ctx context.Context, modelID string) (ChatModel, error) {
	var (
		model *models.LlmModel
		err   error
	)
	if modelID == "" {
		model, err = s.store.DefaultLlmModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoModel, err)
		}
		modelID = model.ID
	}

	s.mu.Lock()
	if cm, ok := s.cache[modelID]; ok {
		s.mu.Unlock()
		return cm, nil
	}
	s.mu.Unlock()

	if model == nil {
		model, err = s.store.GetLlmModel(ctx, modelID)
		if err != nil {
			return nil, fmt.Errorf("%w: model %s: %v", ErrNoModel, modelID, err)
		}
	}
	if !model.IsActive {
		return nil, fmt.Errorf("%w: model %s is inactive", ErrNoModel, modelID)
	}

	provider, err := s.store.GetLlmProvider(ctx, model.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("%w: provider %s: %v", ErrNoModel, model.ProviderID, err)
	}
	if !provider.IsActive {
		return nil, fmt.Errorf("%w: provider %s is inactive", ErrNoModel, provider.Slug)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cm, ok := s.cache[modelID]; ok {
		return cm, nil
	}

	factory, ok := s.factories[provider.Slug]
	if !ok {
		return nil, fmt.Errorf("%w: no client for provider %q", ErrNoModel, provider.Slug)
	}

	cm, err := factory(provider, model)
	if err != nil {
		return nil, fmt.Errorf("building client for %s: %w", modelID, err)
	}

	log.Printf("Chat model ready: model=%s provider=%s", model.ModelID, provider.Slug)
	s.cache[modelID] = cm
	return cm, nil
}

// Invalidate drops a cached client, forcing a rebuild on next use.
func (s *Service) Invalidate(modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, modelID)
}

// newGeminiChatModel builds the default Gemini client. The provider
// config api_key overrides the GEMINI_API_KEY environment variable.
func newGeminiChatModel(provider *models.LlmProvider, model *models.LlmModel) (ChatModel, error) {
	apiKey := provider.Config["api_key"]
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for provider %s", provider.Slug)
	}

	tier := provider.Config["tier"]
	if tier == "" {
		tier = "free"
	}
	return NewGeminiClient(apiKey, model.ModelID, tier)
}
