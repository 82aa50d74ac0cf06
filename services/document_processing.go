package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"ragchat-platform/internal/chunker"
	"ragchat-platform/internal/extractor"
	"ragchat-platform/internal/telemetry"
	"ragchat-platform/models"
)

// maxErrorMessageLen bounds what we persist from a pipeline failure.
const maxErrorMessageLen = 500

// CompletionListener is notified after a document finishes processing.
// The vector store manager uses it to re-index documents that already
// belong to an instance.
type CompletionListener interface {
	HandleDocumentCompleted(ctx context.Context, documentID, userID string) error
}

// DocumentProcessor runs the extract and chunk stages for one document
// and keeps the Document and ProcessingStatus rows in sync.
type DocumentProcessor struct {
	documents *mongo.Collection
	chunks    *mongo.Collection
	statuses  *mongo.Collection
	storage   *BlobStorage
	extractor *extractor.PDFExtractor
	listener  CompletionListener
	metrics   *telemetry.Metrics
}

func NewDocumentProcessor(db *mongo.Database, storage *BlobStorage, listener CompletionListener, metrics *telemetry.Metrics) *DocumentProcessor {
	return &DocumentProcessor{
		documents: db.Collection("documents"),
		chunks:    db.Collection("document_chunks"),
		statuses:  db.Collection("processing_statuses"),
		storage:   storage,
		extractor: extractor.NewPDFExtractor(),
		listener:  listener,
		metrics:   metrics,
	}
}

// ProcessDocument runs the pipeline. Any stage error marks the
// document failed with a truncated error message; the task is not
// retried, so failure is terminal until the user re-uploads.
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, documentID string) error {
	start := time.Now()

	doc, err := p.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status == models.StatusCompleted {
		log.Printf("Document %s already completed, skipping", documentID)
		return nil
	}

	if err := p.setDocumentStatus(ctx, documentID, models.StatusProcessing, ""); err != nil {
		return err
	}

	if err := p.run(ctx, doc); err != nil {
		p.setDocumentStatus(ctx, documentID, models.StatusFailed, truncateError(err))
		p.finishStatus(ctx, documentID)
		if p.metrics != nil {
			p.metrics.RecordDocumentProcessing(time.Since(start).Seconds(), models.StatusFailed)
		}
		log.Printf("Document processing failed: id=%s err=%v", documentID, err)
		return err
	}

	if err := p.setDocumentStatus(ctx, documentID, models.StatusCompleted, ""); err != nil {
		return err
	}
	p.finishStatus(ctx, documentID)
	if p.metrics != nil {
		p.metrics.RecordDocumentProcessing(time.Since(start).Seconds(), models.StatusCompleted)
	}
	log.Printf("Document processed successfully: id=%s duration=%s", documentID, time.Since(start).Round(time.Millisecond))

	if p.listener != nil {
		if err := p.listener.HandleDocumentCompleted(ctx, documentID, doc.UserID); err != nil {
			// Indexing is queued separately; a listener failure must
			// not fail the finished pipeline.
			log.Printf("Completion listener failed for document %s: %v", documentID, err)
		}
	}
	return nil
}

func (p *DocumentProcessor) run(ctx context.Context, doc *models.Document) error {
	// Extraction
	content, err := p.storage.Read(doc.FilePath)
	if err != nil {
		return fmt.Errorf("reading stored file: %w", err)
	}

	pages, err := p.extractor.ExtractFromBytes(content, doc.FileName)
	if err != nil {
		return err
	}

	if err := p.updateStatusFields(ctx, doc.ID, bson.M{
		"extraction_completed": true,
		"total_pages":          len(pages),
	}); err != nil {
		return err
	}

	// Chunking. Re-runs replace previous chunks wholesale so indexes
	// stay contiguous.
	chunks := chunker.ProcessPages(pages)
	if len(chunks) == 0 {
		return fmt.Errorf("document produced no chunks after cleaning")
	}

	if _, err := p.chunks.DeleteMany(ctx, bson.M{"document_id": doc.ID}); err != nil {
		return fmt.Errorf("clearing previous chunks: %w", err)
	}

	now := time.Now()
	docs := make([]interface{}, len(chunks))
	for i, c := range chunks {
		page := c.PageNumber
		docs[i] = models.DocumentChunk{
			ID:         fmt.Sprintf("%s_%d", doc.ID, c.Index),
			DocumentID: doc.ID,
			Content:    c.Content,
			ChunkIndex: c.Index,
			PageNumber: &page,
			CreatedAt:  now,
		}
	}
	if _, err := p.chunks.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("storing chunks: %w", err)
	}

	if err := p.updateStatusFields(ctx, doc.ID, bson.M{
		"chunking_completed": true,
		"processed_pages":    len(pages),
	}); err != nil {
		return err
	}

	log.Printf("Document chunked: id=%s pages=%d chunks=%d", doc.ID, len(pages), len(chunks))
	return nil
}

func (p *DocumentProcessor) loadDocument(ctx context.Context, documentID string) (*models.Document, error) {
	var doc models.Document
	err := p.documents.FindOne(ctx, bson.M{"_id": documentID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: document %q", ErrNotFound, documentID)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (p *DocumentProcessor) setDocumentStatus(ctx context.Context, documentID, status, errorMessage string) error {
	update := bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}
	if errorMessage != "" {
		update["error_message"] = errorMessage
	}
	_, err := p.documents.UpdateOne(ctx, bson.M{"_id": documentID}, bson.M{"$set": update})
	return err
}

func (p *DocumentProcessor) updateStatusFields(ctx context.Context, documentID string, fields bson.M) error {
	_, err := p.statuses.UpdateOne(ctx, bson.M{"_id": documentID}, bson.M{"$set": fields})
	return err
}

func (p *DocumentProcessor) finishStatus(ctx context.Context, documentID string) {
	now := time.Now()
	if err := p.updateStatusFields(ctx, documentID, bson.M{"end_time": now}); err != nil {
		log.Printf("Failed to stamp end time for document %s: %v", documentID, err)
	}
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
