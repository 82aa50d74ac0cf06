package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task types. The prefix groups tasks by the subsystem that owns them.
const (
	TaskDocumentProcess = "document:process"
	TaskVectorIndex     = "vectorstore:index"
	TaskChatRespond     = "chat:respond"
	TaskChatTitle       = "chat:title"
)

// Queue names in priority order.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues is the asynq priority configuration shared by all workers.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

type DocumentProcessPayload struct {
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
}

type VectorIndexPayload struct {
	VectorStoreID string `json:"vector_store_id"`
	DocumentID    string `json:"document_id"`
	UserID        string `json:"user_id"`
}

type ChatRespondPayload struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
}

type ChatTitlePayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// NewDocumentProcessTask runs the full extract/chunk pipeline for one
// document. Not retried: the pipeline marks the document failed itself
// and a retry would redo completed stages.
func NewDocumentProcessTask(documentID, userID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentProcessPayload{
		DocumentID: documentID,
		UserID:     userID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDocumentProcess,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
		asynq.Queue(QueueCritical),
	), nil
}

// NewVectorIndexTask embeds and indexes a completed document into a
// vector store instance. Retried with backoff; embedding providers
// throw transient quota errors.
func NewVectorIndexTask(vectorStoreID, documentID, userID string) (*asynq.Task, error) {
	payload, err := json.Marshal(VectorIndexPayload{
		VectorStoreID: vectorStoreID,
		DocumentID:    documentID,
		UserID:        userID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskVectorIndex,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(15*time.Minute),
		asynq.Queue(QueueDefault),
	), nil
}

// NewChatRespondTask generates the assistant reply for a user message.
func NewChatRespondTask(sessionID, messageID, userID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ChatRespondPayload{
		SessionID: sessionID,
		MessageID: messageID,
		UserID:    userID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskChatRespond,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(2*time.Minute),
		asynq.Queue(QueueCritical),
	), nil
}

// NewChatTitleTask generates a session title from the first user
// message. Cosmetic, so it rides the low priority queue.
func NewChatTitleTask(sessionID, userID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ChatTitlePayload{
		SessionID: sessionID,
		UserID:    userID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskChatTitle,
		payload,
		asynq.MaxRetry(1),
		asynq.Timeout(1*time.Minute),
		asynq.Queue(QueueLow),
	), nil
}

// IndexRetryDelay backs off indexing retries at 60s * 2^n, capped at
// 240s. Asynq calls it with n starting at 0 for the first retry.
func IndexRetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := 60 * time.Second
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= 240*time.Second {
			return 240 * time.Second
		}
	}
	return delay
}
