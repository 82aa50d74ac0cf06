package models

import "time"

// Chat message sender types.
const (
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
	MessageTypeSystem    = "system"
)

const (
	// DefaultSessionTitle is used until a title is generated from the
	// first user message.
	DefaultSessionTitle = "New Chat"

	// MaxSessionTitleLen caps both generated and user-supplied titles.
	MaxSessionTitleLen = 255

	// WelcomeMessage is inserted as the first assistant message of
	// every new session.
	WelcomeMessage = "How can I help you today?"
)

// ChatSession is one conversation thread. Sessions are soft deleted:
// DeletedAt is set and the session stops appearing in listings, but
// its messages are preserved.
type ChatSession struct {
	ID            string     `bson:"_id" json:"id"`
	UserID        string     `bson:"user_id" json:"user_id"`
	Title         string     `bson:"title" json:"title"`
	VectorStoreID string     `bson:"vector_store_id,omitempty" json:"vector_store_id,omitempty"`
	LlmModelID    string     `bson:"llm_model_id,omitempty" json:"llm_model_id,omitempty"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time `bson:"deleted_at,omitempty" json:"-"`
}

// Reference points at the chunk that grounded part of an assistant answer.
type Reference struct {
	DocumentID string `bson:"document_id" json:"document_id"`
	ChunkID    string `bson:"chunk_id" json:"chunk_id"`
	ChunkIndex int    `bson:"chunk_index" json:"chunk_index"`
	PageNumber *int   `bson:"page_number,omitempty" json:"page_number,omitempty"`
	Snippet    string `bson:"snippet,omitempty" json:"snippet,omitempty"`
}

// ChatMessage is a single message within a session.
type ChatMessage struct {
	ID          string      `bson:"_id" json:"id"`
	SessionID   string      `bson:"session_id" json:"session_id"`
	MessageType string      `bson:"message_type" json:"message_type"`
	Content     string      `bson:"content" json:"content"`
	References  []Reference `bson:"references,omitempty" json:"references,omitempty"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
}

// CreateSessionRequest starts a new chat session.
type CreateSessionRequest struct {
	Title         string `json:"title,omitempty" binding:"omitempty,max=255"`
	VectorStoreID string `json:"vector_store_id,omitempty"`
	LlmModelID    string `json:"llm_model_id,omitempty"`
}

// UpdateSessionRequest changes a session's title or vector store
// binding. Nil fields are left unchanged; an empty vector_store_id
// clears the binding so the session answers in direct mode.
type UpdateSessionRequest struct {
	Title         *string `json:"title,omitempty" binding:"omitempty,min=1,max=255"`
	VectorStoreID *string `json:"vector_store_id,omitempty"`
}

// SendMessageRequest posts a user message to a session.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,min=1"`
}

// ChatResponse is the assistant reply returned to the client.
type ChatResponse struct {
	SessionID  string      `json:"session_id"`
	MessageID  string      `json:"message_id"`
	Content    string      `json:"content"`
	References []Reference `json:"references,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
