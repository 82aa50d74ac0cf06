package embeddings

import (
	"context"
	"errors"
	"testing"

	"ragchat-platform/models"
)

type fakeModelStore struct {
	models map[string]*models.EmbeddingModel
	calls  int
}

func (f *fakeModelStore) GetEmbeddingModel(_ context.Context, id string) (*models.EmbeddingModel, error) {
	f.calls++
	m, ok := f.models[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return m, nil
}

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return make([]float32, f.dim), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func newTestService(store ModelStore, built *int) *Service {
	s := NewService(store)
	s.RegisterFactory("fake", func(_ context.Context, m *models.EmbeddingModel) (Embedder, error) {
		*built++
		return &fakeEmbedder{dim: m.Dimension}, nil
	})
	return s
}

func TestForModelCachesInstance(t *testing.T) {
	store := &fakeModelStore{models: map[string]*models.EmbeddingModel{
		"m1": {ID: "m1", Provider: "fake", ModelID: "fake-small", Dimension: 8, IsActive: true},
	}}

	built := 0
	s := newTestService(store, &built)
	ctx := context.Background()

	first, err := s.ForModel(ctx, "m1")
	if err != nil {
		t.Fatalf("first ForModel: %v", err)
	}
	second, err := s.ForModel(ctx, "m1")
	if err != nil {
		t.Fatalf("second ForModel: %v", err)
	}

	if first != second {
		t.Error("expected the same cached instance")
	}
	if built != 1 {
		t.Errorf("factory ran %d times, want 1", built)
	}
	if store.calls != 1 {
		t.Errorf("store hit %d times, want 1", store.calls)
	}
}

func TestForModelUnknownID(t *testing.T) {
	built := 0
	s := newTestService(&fakeModelStore{models: map[string]*models.EmbeddingModel{}}, &built)

	_, err := s.ForModel(context.Background(), "missing")
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestForModelInactive(t *testing.T) {
	store := &fakeModelStore{models: map[string]*models.EmbeddingModel{
		"m1": {ID: "m1", Provider: "fake", Dimension: 8, IsActive: false},
	}}

	built := 0
	s := newTestService(store, &built)

	_, err := s.ForModel(context.Background(), "m1")
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound for inactive model, got %v", err)
	}
	if built != 0 {
		t.Errorf("factory ran for inactive model")
	}
}

func TestForModelUnknownProvider(t *testing.T) {
	store := &fakeModelStore{models: map[string]*models.EmbeddingModel{
		"m1": {ID: "m1", Provider: "nope", Dimension: 8, IsActive: true},
	}}

	s := NewService(store)
	_, err := s.ForModel(context.Background(), "m1")
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound for unknown provider, got %v", err)
	}
}

func TestInvalidateForcesRebuild(t *testing.T) {
	store := &fakeModelStore{models: map[string]*models.EmbeddingModel{
		"m1": {ID: "m1", Provider: "fake", Dimension: 8, IsActive: true},
	}}

	built := 0
	s := newTestService(store, &built)
	ctx := context.Background()

	if _, err := s.ForModel(ctx, "m1"); err != nil {
		t.Fatal(err)
	}
	s.Invalidate("m1")
	if _, err := s.ForModel(ctx, "m1"); err != nil {
		t.Fatal(err)
	}

	if built != 2 {
		t.Errorf("factory ran %d times after invalidate, want 2", built)
	}
}
