package models

import "time"

// Vector store instance status values.
const (
	VectorStoreStatusCreated  = "created"
	VectorStoreStatusIndexing = "indexing"
	VectorStoreStatusReady    = "ready"
	VectorStoreStatusFailed   = "failed"
)

// VectorStoreProvider is a registered vector index backend type.
type VectorStoreProvider struct {
	ID          string            `bson:"_id" json:"id"`
	Name        string            `bson:"name" json:"name"`
	Slug        string            `bson:"slug" json:"slug"`
	Description string            `bson:"description,omitempty" json:"description,omitempty"`
	IsActive    bool              `bson:"is_active" json:"is_active"`
	Config      map[string]string `bson:"config,omitempty" json:"config,omitempty"`
	CreatedAt   time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `bson:"updated_at" json:"updated_at"`
}

// EmbeddingModel describes a text embedding model available to the platform.
type EmbeddingModel struct {
	ID        string            `bson:"_id" json:"id"`
	Name      string            `bson:"name" json:"name"`
	Provider  string            `bson:"provider" json:"provider"` // e.g. "google"
	ModelID   string            `bson:"model_id" json:"model_id"` // e.g. "text-embedding-004"
	Dimension int               `bson:"dimension" json:"dimension"`
	IsActive  bool              `bson:"is_active" json:"is_active"`
	Config    map[string]string `bson:"config,omitempty" json:"config,omitempty"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at" json:"updated_at"`
}

// VectorStoreInstance is one user-owned collection in a backend index.
// CollectionName is generated once at creation and never changes.
//
// Concurrent indexing runs against the same instance are not serialized;
// the last writer wins on Status. Callers are expected to index one
// document at a time per instance.
type VectorStoreInstance struct {
	ID               string            `bson:"_id" json:"id"`
	Name             string            `bson:"name" json:"name"`
	UserID           string            `bson:"user_id" json:"user_id"`
	ProviderID       string            `bson:"provider_id" json:"provider_id"`
	ProviderSlug     string            `bson:"provider_slug" json:"provider_slug"`
	EmbeddingModelID string            `bson:"embedding_model_id" json:"embedding_model_id"`
	DocumentIDs      []string          `bson:"document_ids,omitempty" json:"document_ids,omitempty"`
	CollectionName   string            `bson:"collection_name" json:"collection_name"`
	Status           string            `bson:"status" json:"status"`
	ErrorMessage     string            `bson:"error_message,omitempty" json:"error_message,omitempty"`
	Config           map[string]string `bson:"config,omitempty" json:"config,omitempty"`
	CreatedAt        time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `bson:"updated_at" json:"updated_at"`
}

// Embedding links a document chunk to its entry in a vector store instance.
// The (chunk_id, vector_store_id) pair is unique; re-indexing upserts.
type Embedding struct {
	ID            string    `bson:"_id" json:"id"`
	ChunkID       string    `bson:"chunk_id" json:"chunk_id"`
	VectorStoreID string    `bson:"vector_store_id" json:"vector_store_id"`
	EmbeddingID   string    `bson:"embedding_id" json:"embedding_id"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}

// LlmProvider is a registered language model backend (e.g. gemini).
type LlmProvider struct {
	ID        string            `bson:"_id" json:"id"`
	Name      string            `bson:"name" json:"name"`
	Slug      string            `bson:"slug" json:"slug"`
	IsActive  bool              `bson:"is_active" json:"is_active"`
	Config    map[string]string `bson:"config,omitempty" json:"config,omitempty"` // api_key overrides the process default
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at" json:"updated_at"`
}

// LlmModel is a specific model offered by an LlmProvider.
type LlmModel struct {
	ID         string            `bson:"_id" json:"id"`
	Name       string            `bson:"name" json:"name"`
	ProviderID string            `bson:"provider_id" json:"provider_id"`
	ModelID    string            `bson:"model_id" json:"model_id"` // provider-side identifier
	IsActive   bool              `bson:"is_active" json:"is_active"`
	Config     map[string]string `bson:"config,omitempty" json:"config,omitempty"`
	CreatedAt  time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `bson:"updated_at" json:"updated_at"`
}

// CreateVectorStoreRequest is the payload for creating an instance.
type CreateVectorStoreRequest struct {
	Name             string            `json:"name" binding:"required,min=1,max=255"`
	ProviderSlug     string            `json:"provider_slug" binding:"required"`
	EmbeddingModelID string            `json:"embedding_model_id" binding:"required"`
	Config           map[string]string `json:"config,omitempty"`
}

// AddDocumentRequest binds a document to a vector store instance.
type AddDocumentRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
}
