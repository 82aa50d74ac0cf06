package services

import (
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"ragchat-platform/internal/queue"
	"ragchat-platform/models"
)

// DocumentService owns the documents collection: uploads, listing,
// status, and cascade deletes.
type DocumentService struct {
	documents *mongo.Collection
	chunks    *mongo.Collection
	statuses  *mongo.Collection
	storage   *BlobStorage
	asynq     *asynq.Client
	vectors   *VectorStoreManager
}

func NewDocumentService(db *mongo.Database, storage *BlobStorage, asynqClient *asynq.Client, vectors *VectorStoreManager) *DocumentService {
	return &DocumentService{
		documents: db.Collection("documents"),
		chunks:    db.Collection("document_chunks"),
		statuses:  db.Collection("processing_statuses"),
		storage:   storage,
		asynq:     asynqClient,
		vectors:   vectors,
	}
}

// Upload stores the file, creates the document and its processing
// status, and enqueues the pipeline. The document is visible with
// status pending as soon as this returns.
func (s *DocumentService) Upload(ctx context.Context, userID, title string, file multipart.File, header *multipart.FileHeader) (*models.Document, error) {
	stored, err := s.storage.Store(file, header, userID)
	if err != nil {
		return nil, fmt.Errorf("file storage failed: %w", err)
	}

	if title == "" {
		title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	now := time.Now()
	doc := &models.Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		FilePath:  stored.Path,
		FileName:  header.Filename,
		FileType:  "pdf",
		FileSize:  stored.Size,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.documents.InsertOne(ctx, doc); err != nil {
		s.storage.Remove(stored.Path)
		return nil, fmt.Errorf("database save failed: %w", err)
	}

	status := &models.ProcessingStatus{
		DocumentID: doc.ID,
		StartTime:  now,
	}
	if _, err := s.statuses.InsertOne(ctx, status); err != nil {
		s.documents.DeleteOne(ctx, bson.M{"_id": doc.ID})
		s.storage.Remove(stored.Path)
		return nil, fmt.Errorf("database save failed: %w", err)
	}

	task, err := queue.NewDocumentProcessTask(doc.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("building process task: %w", err)
	}
	if _, err := s.asynq.EnqueueContext(ctx, task); err != nil {
		// The document stays pending; the maintenance sweeper will
		// eventually fail it if nothing picks it up.
		log.Printf("Failed to enqueue processing for document %s: %v", doc.ID, err)
		return nil, fmt.Errorf("enqueue failed: %w", err)
	}

	log.Printf("Document uploaded: id=%s user=%s file=%s size=%d", doc.ID, userID, header.Filename, stored.Size)
	return doc, nil
}

// Get returns a document owned by userID.
func (s *DocumentService) Get(ctx context.Context, userID, documentID string) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": documentID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: document %q", ErrNotFound, documentID)
	}
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("%w: document %q", ErrOwnershipMismatch, documentID)
	}
	return &doc, nil
}

// List returns the user's documents, newest first.
func (s *DocumentService) List(ctx context.Context, userID string) ([]models.Document, error) {
	cursor, err := s.documents.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Status returns the per-stage processing status for a document.
func (s *DocumentService) Status(ctx context.Context, userID, documentID string) (*models.ProcessingStatus, error) {
	if _, err := s.Get(ctx, userID, documentID); err != nil {
		return nil, err
	}

	var status models.ProcessingStatus
	err := s.statuses.FindOne(ctx, bson.M{"_id": documentID}).Decode(&status)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: processing status for %q", ErrNotFound, documentID)
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Chunks returns a document's chunks ordered by chunk index.
func (s *DocumentService) Chunks(ctx context.Context, userID, documentID string) ([]models.DocumentChunk, error) {
	if _, err := s.Get(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.chunksByDocument(ctx, documentID)
}

func (s *DocumentService) chunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	cursor, err := s.chunks.Find(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return nil, err
	}
	var chunks []models.DocumentChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	// Chunk index order is the document order.
	for i := 1; i < len(chunks); i++ {
		for j := i; j > 0 && chunks[j].ChunkIndex < chunks[j-1].ChunkIndex; j-- {
			chunks[j], chunks[j-1] = chunks[j-1], chunks[j]
		}
	}
	return chunks, nil
}

// Delete removes the document and everything derived from it: chunks,
// processing status, embeddings, vectors in every store that indexed
// it, and the blob on disk.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return err
	}

	// Vector cleanup first; if it fails the document remains and the
	// delete can be retried without orphaning vectors.
	if err := s.vectors.RemoveDocumentEverywhere(ctx, documentID); err != nil {
		return fmt.Errorf("removing document vectors: %w", err)
	}

	if _, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := s.statuses.DeleteOne(ctx, bson.M{"_id": documentID}); err != nil {
		return fmt.Errorf("deleting processing status: %w", err)
	}
	if _, err := s.documents.DeleteOne(ctx, bson.M{"_id": documentID}); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	if err := s.storage.Remove(doc.FilePath); err != nil {
		// The database rows are gone; the orphaned blob is only disk
		// waste, not a correctness problem.
		log.Printf("Failed to remove blob for document %s: %v", documentID, err)
	}

	log.Printf("Document deleted: id=%s user=%s", documentID, userID)
	return nil
}
