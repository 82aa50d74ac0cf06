package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrProviderNotFound means no backend is registered under the
	// requested slug.
	ErrProviderNotFound = errors.New("vector store provider not found")

	// ErrVectorStore wraps backend-side failures.
	ErrVectorStore = errors.New("vector store operation failed")
)

// Metadata travels with every stored vector so retrieval results can be
// turned into citations without a second lookup.
type Metadata struct {
	DocumentID string
	ChunkID    string
	ChunkIndex int
	PageNumber *int
	Text       string
}

// Record is one vector plus its metadata. ID is stable per chunk and
// collection, so re-indexing the same document overwrites in place.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Hit is a Record with a cosine similarity score attached.
type Hit struct {
	Record
	Score float32
}

// Provider manages named collections in one vector index backend.
// Implementations are safe for concurrent use.
type Provider interface {
	// Slug identifies the backend ("sqlite", "mongo", ...).
	Slug() string

	// EnsureCollection creates the collection if missing. Idempotent.
	EnsureCollection(ctx context.Context, collection string) error

	// Upsert writes records, replacing any with the same ID.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Query returns the topK most similar records by cosine similarity,
	// best first.
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]Hit, error)

	// DeleteByDocument removes every record belonging to a document.
	DeleteByDocument(ctx context.Context, collection, documentID string) error

	// DropCollection removes the collection and all its records.
	DropCollection(ctx context.Context, collection string) error

	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int, error)
}

// RecordID builds the stable vector id for a chunk of a document.
func RecordID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", documentID, chunkIndex)
}

// NewCollectionName generates a fresh collection name. Names are
// assigned once per instance and never reused.
func NewCollectionName() string {
	return "collection_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
