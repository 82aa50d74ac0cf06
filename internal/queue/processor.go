package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

// Handler interfaces are implemented by the service layer. Keeping them
// here lets services enqueue tasks without an import cycle.
type (
	DocumentHandler interface {
		ProcessDocument(ctx context.Context, documentID string) error
	}

	IndexHandler interface {
		IndexDocument(ctx context.Context, vectorStoreID, documentID string) error
	}

	RespondHandler interface {
		RespondToMessage(ctx context.Context, sessionID, messageID, userID string) error
	}

	TitleHandler interface {
		GenerateSessionTitle(ctx context.Context, sessionID, userID string) error
	}
)

// Processor dispatches asynq tasks to the service layer.
type Processor struct {
	documents DocumentHandler
	indexer   IndexHandler
	responder RespondHandler
	titler    TitleHandler
}

func NewProcessor(documents DocumentHandler, indexer IndexHandler, responder RespondHandler, titler TitleHandler) *Processor {
	return &Processor{
		documents: documents,
		indexer:   indexer,
		responder: responder,
		titler:    titler,
	}
}

// Register attaches all task handlers to the mux.
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskDocumentProcess, p.HandleDocumentProcess)
	mux.HandleFunc(TaskVectorIndex, p.HandleVectorIndex)
	mux.HandleFunc(TaskChatRespond, p.HandleChatRespond)
	mux.HandleFunc(TaskChatTitle, p.HandleChatTitle)
}

func (p *Processor) HandleDocumentProcess(ctx context.Context, t *asynq.Task) error {
	var payload DocumentProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	log.Printf("Processing document: id=%s user=%s", payload.DocumentID, payload.UserID)
	return p.documents.ProcessDocument(ctx, payload.DocumentID)
}

func (p *Processor) HandleVectorIndex(ctx context.Context, t *asynq.Task) error {
	var payload VectorIndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	log.Printf("Indexing document: store=%s document=%s", payload.VectorStoreID, payload.DocumentID)
	return p.indexer.IndexDocument(ctx, payload.VectorStoreID, payload.DocumentID)
}

func (p *Processor) HandleChatRespond(ctx context.Context, t *asynq.Task) error {
	var payload ChatRespondPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	return p.responder.RespondToMessage(ctx, payload.SessionID, payload.MessageID, payload.UserID)
}

func (p *Processor) HandleChatTitle(ctx context.Context, t *asynq.Task) error {
	var payload ChatTitlePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	return p.titler.GenerateSessionTitle(ctx, payload.SessionID, payload.UserID)
}
