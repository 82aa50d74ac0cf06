package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ragchat-platform/models"
)

// ErrNotFound is returned when a catalog row does not exist.
var ErrNotFound = errors.New("not found")

// Catalog stores the registered providers and models: vector store
// backends, embedding models, and language models. It backs both the
// admin API and the lookup interfaces of the embeddings and llm
// services.
type Catalog struct {
	vectorProviders *mongo.Collection
	embeddingModels *mongo.Collection
	llmProviders    *mongo.Collection
	llmModels       *mongo.Collection
}

func NewCatalog(db *mongo.Database) *Catalog {
	return &Catalog{
		vectorProviders: db.Collection("vector_store_providers"),
		embeddingModels: db.Collection("embedding_models"),
		llmProviders:    db.Collection("llm_providers"),
		llmModels:       db.Collection("llm_models"),
	}
}

// Vector store providers

func (c *Catalog) ListVectorStoreProviders(ctx context.Context) ([]models.VectorStoreProvider, error) {
	cursor, err := c.vectorProviders.Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, err
	}
	var providers []models.VectorStoreProvider
	if err := cursor.All(ctx, &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

func (c *Catalog) GetVectorStoreProviderBySlug(ctx context.Context, slug string) (*models.VectorStoreProvider, error) {
	var provider models.VectorStoreProvider
	err := c.vectorProviders.FindOne(ctx, bson.M{"slug": slug, "is_active": true}).Decode(&provider)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: vector store provider %q", ErrNotFound, slug)
	}
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

// ActiveProviderSlugs lists the slugs that must have a registered
// backend. Used for startup validation.
func (c *Catalog) ActiveProviderSlugs(ctx context.Context) ([]string, error) {
	providers, err := c.ListVectorStoreProviders(ctx)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(providers))
	for _, p := range providers {
		slugs = append(slugs, p.Slug)
	}
	return slugs, nil
}

// Embedding models

func (c *Catalog) ListEmbeddingModels(ctx context.Context) ([]models.EmbeddingModel, error) {
	cursor, err := c.embeddingModels.Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, err
	}
	var out []models.EmbeddingModel
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEmbeddingModel implements embeddings.ModelStore.
func (c *Catalog) GetEmbeddingModel(ctx context.Context, id string) (*models.EmbeddingModel, error) {
	var model models.EmbeddingModel
	err := c.embeddingModels.FindOne(ctx, bson.M{"_id": id}).Decode(&model)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: embedding model %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &model, nil
}

// Language models

// GetLlmModel implements llm.ProviderStore.
func (c *Catalog) GetLlmModel(ctx context.Context, id string) (*models.LlmModel, error) {
	var model models.LlmModel
	err := c.llmModels.FindOne(ctx, bson.M{"_id": id}).Decode(&model)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: llm model %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &model, nil
}

// GetLlmProvider implements llm.ProviderStore.
func (c *Catalog) GetLlmProvider(ctx context.Context, id string) (*models.LlmProvider, error) {
	var provider models.LlmProvider
	err := c.llmProviders.FindOne(ctx, bson.M{"_id": id}).Decode(&provider)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: llm provider %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

// DefaultLlmModel implements llm.ProviderStore: the oldest active
// model wins, so seeding order determines the default.
func (c *Catalog) DefaultLlmModel(ctx context.Context) (*models.LlmModel, error) {
	var model models.LlmModel
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	err := c.llmModels.FindOne(ctx, bson.M{"is_active": true}, opts).Decode(&model)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: no active llm model", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &model, nil
}

func (c *Catalog) ListLlmModels(ctx context.Context) ([]models.LlmModel, error) {
	cursor, err := c.llmModels.Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, err
	}
	var out []models.LlmModel
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Seeding

// SeedDefaults upserts the built-in provider and model rows. Idempotent
// by slug / provider+model id, so repeated runs never duplicate rows.
func (c *Catalog) SeedDefaults(ctx context.Context) error {
	now := time.Now()

	vectorProviders := []models.VectorStoreProvider{
		{ID: uuid.NewString(), Name: "SQLite", Slug: "sqlite",
			Description: "Local SQLite store with brute-force cosine search", IsActive: true,
			CreatedAt: now, UpdatedAt: now},
		{ID: uuid.NewString(), Name: "MongoDB", Slug: "mongo",
			Description: "MongoDB collections with in-process cosine scoring", IsActive: true,
			CreatedAt: now, UpdatedAt: now},
	}
	for _, p := range vectorProviders {
		if err := c.upsertBySlug(ctx, c.vectorProviders, p.Slug, p); err != nil {
			return fmt.Errorf("seeding vector provider %s: %w", p.Slug, err)
		}
	}

	embeddingModel := models.EmbeddingModel{
		ID: uuid.NewString(), Name: "Google Text Embedding", Provider: "google",
		ModelID: "text-embedding-004", Dimension: 768, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := c.upsertByFilter(ctx, c.embeddingModels,
		bson.M{"provider": embeddingModel.Provider, "model_id": embeddingModel.ModelID},
		embeddingModel); err != nil {
		return fmt.Errorf("seeding embedding model: %w", err)
	}

	llmProvider := models.LlmProvider{
		ID: uuid.NewString(), Name: "Google Gemini", Slug: "gemini", IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := c.upsertBySlug(ctx, c.llmProviders, llmProvider.Slug, llmProvider); err != nil {
		return fmt.Errorf("seeding llm provider: %w", err)
	}

	// Resolve the provider id in case the row already existed.
	seeded, err := c.llmProviderBySlug(ctx, "gemini")
	if err != nil {
		return err
	}

	llmModel := models.LlmModel{
		ID: uuid.NewString(), Name: "Gemini 2.0 Flash", ProviderID: seeded.ID,
		ModelID: "gemini-2.0-flash", IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := c.upsertByFilter(ctx, c.llmModels,
		bson.M{"provider_id": llmModel.ProviderID, "model_id": llmModel.ModelID},
		llmModel); err != nil {
		return fmt.Errorf("seeding llm model: %w", err)
	}

	return nil
}

func (c *Catalog) llmProviderBySlug(ctx context.Context, slug string) (*models.LlmProvider, error) {
	var provider models.LlmProvider
	err := c.llmProviders.FindOne(ctx, bson.M{"slug": slug}).Decode(&provider)
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

func (c *Catalog) upsertBySlug(ctx context.Context, col *mongo.Collection, slug string, doc interface{}) error {
	return c.upsertByFilter(ctx, col, bson.M{"slug": slug}, doc)
}

// upsertByFilter inserts the document only when no row matches; an
// existing row keeps its id and any operator edits.
func (c *Catalog) upsertByFilter(ctx context.Context, col *mongo.Collection, filter bson.M, doc interface{}) error {
	_, err := col.UpdateOne(ctx, filter,
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true))
	return err
}
