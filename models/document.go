package models

import "time"

// Document processing status values. Transitions are monotonic:
// pending -> processing -> completed|failed. A document never re-enters pending.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document represents an uploaded document and its processing state.
type Document struct {
	ID           string    `bson:"_id" json:"id"`
	UserID       string    `bson:"user_id" json:"user_id"`
	Title        string    `bson:"title" json:"title"`
	FilePath     string    `bson:"file_path" json:"-"` // blob store handle
	FileName     string    `bson:"file_name" json:"file_name"`
	FileType     string    `bson:"file_type" json:"file_type"`
	FileSize     int64     `bson:"file_size" json:"file_size"`
	Status       string    `bson:"status" json:"status"`
	ErrorMessage string    `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// DocumentChunk is one piece of cleaned text extracted from a document.
// Chunks are written in a single bulk insert at chunking time and are
// immutable afterwards; chunk_index is 0-based and contiguous per document.
type DocumentChunk struct {
	ID         string    `bson:"_id" json:"id"`
	DocumentID string    `bson:"document_id" json:"document_id"`
	Content    string    `bson:"content" json:"content"`
	ChunkIndex int       `bson:"chunk_index" json:"chunk_index"`
	PageNumber *int      `bson:"page_number,omitempty" json:"page_number,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// ProcessingStatus tracks per-stage completion for a document (1:1).
// extraction/chunking are owned by the document processing pipeline,
// embedding/indexing by the vector store manager.
type ProcessingStatus struct {
	DocumentID          string     `bson:"_id" json:"document_id"`
	ExtractionCompleted bool       `bson:"extraction_completed" json:"extraction_completed"`
	ChunkingCompleted   bool       `bson:"chunking_completed" json:"chunking_completed"`
	EmbeddingCompleted  bool       `bson:"embedding_completed" json:"embedding_completed"`
	IndexingCompleted   bool       `bson:"indexing_completed" json:"indexing_completed"`
	TotalPages          int        `bson:"total_pages" json:"total_pages"`
	ProcessedPages      int        `bson:"processed_pages" json:"processed_pages"`
	StartTime           time.Time  `bson:"start_time" json:"start_time"`
	EndTime             *time.Time `bson:"end_time,omitempty" json:"end_time,omitempty"`
}

// IsCompleted reports whether all four pipeline stages have finished.
func (ps *ProcessingStatus) IsCompleted() bool {
	return ps.ExtractionCompleted && ps.ChunkingCompleted &&
		ps.EmbeddingCompleted && ps.IndexingCompleted
}

// ProgressPercentage returns page progress clamped to [0,100].
// Zero total pages always reports 0.
func (ps *ProcessingStatus) ProgressPercentage() int {
	if ps.TotalPages <= 0 {
		return 0
	}
	pct := ps.ProcessedPages * 100 / ps.TotalPages
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// UploadResponse is returned after a document upload is accepted.
type UploadResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	FileName string `json:"file_name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}
