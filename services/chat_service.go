package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ragchat-platform/internal/llm"
	"ragchat-platform/internal/queue"
	"ragchat-platform/internal/telemetry"
	"ragchat-platform/models"
)

// historyLimit caps how much conversation is replayed into the model.
const historyLimit = 50

// ChatService owns sessions and messages and drives response
// generation through the llm pipeline.
type ChatService struct {
	sessions *mongo.Collection
	messages *mongo.Collection
	llms     *llm.Service
	vectors  *VectorStoreManager
	asynq    *asynq.Client
	metrics  *telemetry.Metrics
}

func NewChatService(db *mongo.Database, llms *llm.Service, vectors *VectorStoreManager, asynqClient *asynq.Client, metrics *telemetry.Metrics) *ChatService {
	return &ChatService{
		sessions: db.Collection("chat_sessions"),
		messages: db.Collection("chat_messages"),
		llms:     llms,
		vectors:  vectors,
		asynq:    asynqClient,
		metrics:  metrics,
	}
}

// CreateSession starts a conversation. Every session opens with a
// stored assistant welcome message.
func (s *ChatService) CreateSession(ctx context.Context, userID string, req *models.CreateSessionRequest) (*models.ChatSession, error) {
	if req.VectorStoreID != "" {
		if _, err := s.vectors.GetInstance(ctx, userID, req.VectorStoreID); err != nil {
			return nil, err
		}
	}

	title := req.Title
	if title == "" {
		title = models.DefaultSessionTitle
	}
	if len(title) > models.MaxSessionTitleLen {
		title = title[:models.MaxSessionTitleLen]
	}

	now := time.Now()
	session := &models.ChatSession{
		ID:            uuid.NewString(),
		UserID:        userID,
		Title:         title,
		VectorStoreID: req.VectorStoreID,
		LlmModelID:    req.LlmModelID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	welcome := &models.ChatMessage{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		MessageType: models.MessageTypeAssistant,
		Content:     models.WelcomeMessage,
		CreatedAt:   now,
	}
	if _, err := s.messages.InsertOne(ctx, welcome); err != nil {
		return nil, fmt.Errorf("storing welcome message: %w", err)
	}

	log.Printf("Chat session created: id=%s user=%s", session.ID, userID)
	return session, nil
}

// GetSession returns a live session owned by userID.
func (s *ChatService) GetSession(ctx context.Context, userID, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.sessions.FindOne(ctx, bson.M{
		"_id":        sessionID,
		"deleted_at": bson.M{"$exists": false},
	}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: session %q", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("%w: session %q", ErrOwnershipMismatch, sessionID)
	}
	return &session, nil
}

// ListSessions returns the user's live sessions, most recently active
// first.
func (s *ChatService) ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := s.sessions.Find(ctx, bson.M{
		"user_id":    userID,
		"deleted_at": bson.M{"$exists": false},
	}, opts)
	if err != nil {
		return nil, err
	}
	var sessions []models.ChatSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteSession soft deletes: the session disappears from listings but
// its messages are preserved.
func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return err
	}
	now := time.Now()
	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}})
	return err
}

// UpdateSession changes the title or the vector store binding. Nil
// request fields are left unchanged; an empty VectorStoreID clears the
// binding. Binding a store the caller does not own is a permission
// error, not a lookup miss: the caller named a concrete id, so there
// is no existence to hide.
func (s *ChatService) UpdateSession(ctx context.Context, userID, sessionID string, req *models.UpdateSessionRequest) error {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return err
	}

	set := bson.M{"updated_at": time.Now()}
	if req.Title != nil {
		title := *req.Title
		if len(title) > models.MaxSessionTitleLen {
			title = title[:models.MaxSessionTitleLen]
		}
		set["title"] = title
	}
	if req.VectorStoreID != nil {
		if *req.VectorStoreID != "" {
			if _, err := s.vectors.GetInstance(ctx, userID, *req.VectorStoreID); err != nil {
				if errors.Is(err, ErrOwnershipMismatch) {
					return fmt.Errorf("%w: vector store %q", ErrPermissionDenied, *req.VectorStoreID)
				}
				return err
			}
		}
		set["vector_store_id"] = *req.VectorStoreID
	}

	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": set})
	return err
}

// Messages returns a session's transcript in chronological order.
func (s *ChatService) Messages(ctx context.Context, userID, sessionID string) ([]models.ChatMessage, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.sessionMessages(ctx, sessionID, 0)
}

// SendMessage stores the user message and queues response generation.
// The first user message of a session also queues title generation.
func (s *ChatService) SendMessage(ctx context.Context, userID, sessionID string, req *models.SendMessageRequest) (*models.ChatMessage, error) {
	session, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	priorUserMessages, err := s.messages.CountDocuments(ctx, bson.M{
		"session_id":   sessionID,
		"message_type": models.MessageTypeUser,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	message := &models.ChatMessage{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		MessageType: models.MessageTypeUser,
		Content:     req.Content,
		CreatedAt:   now,
	}
	if _, err := s.messages.InsertOne(ctx, message); err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}
	s.touchSession(ctx, sessionID)

	respond, err := queue.NewChatRespondTask(sessionID, message.ID, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.asynq.EnqueueContext(ctx, respond); err != nil {
		return nil, fmt.Errorf("enqueue response failed: %w", err)
	}

	if priorUserMessages == 0 && session.Title == models.DefaultSessionTitle {
		if title, err := queue.NewChatTitleTask(sessionID, userID); err == nil {
			if _, err := s.asynq.EnqueueContext(ctx, title); err != nil {
				log.Printf("Failed to enqueue title generation for session %s: %v", sessionID, err)
			}
		}
	}

	return message, nil
}

// RespondToMessage generates and stores the assistant reply for a user
// message. Generation failures still produce a stored reply so the
// transcript never dangles.
func (s *ChatService) RespondToMessage(ctx context.Context, sessionID, messageID, userID string) error {
	start := time.Now()

	session, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	var userMessage models.ChatMessage
	err = s.messages.FindOne(ctx, bson.M{"_id": messageID, "session_id": sessionID}).Decode(&userMessage)
	if err == mongo.ErrNoDocuments {
		return fmt.Errorf("%w: message %q", ErrNotFound, messageID)
	}
	if err != nil {
		return err
	}

	history, err := s.historyBefore(ctx, sessionID, userMessage.CreatedAt)
	if err != nil {
		return err
	}

	model, err := s.llms.ForModel(ctx, session.LlmModelID)
	if err != nil {
		return err
	}
	pipeline := llm.NewPipeline(model)

	var result llm.Result
	mode := "direct"
	if session.VectorStoreID != "" {
		mode = "retrieval"
		retriever, err := s.vectors.RetrieverFor(ctx, userID, session.VectorStoreID)
		if err != nil {
			result = llm.Result{
				Content: llm.ErrorResponsePrefix + err.Error(),
				Err:     err,
			}
		} else {
			result = pipeline.Retrieval(ctx, retriever, history, userMessage.Content)
		}
	} else {
		result = pipeline.Direct(ctx, history, userMessage.Content)
	}

	reply := &models.ChatMessage{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		MessageType: models.MessageTypeAssistant,
		Content:     result.Content,
		References:  result.References,
		CreatedAt:   time.Now(),
	}
	if _, err := s.messages.InsertOne(ctx, reply); err != nil {
		return fmt.Errorf("storing assistant reply: %w", err)
	}
	s.touchSession(ctx, sessionID)

	if s.metrics != nil {
		s.metrics.RecordChatResponse(mode, result.Err == nil)
	}
	log.Printf("Chat response stored: session=%s mode=%s success=%t duration=%s",
		sessionID, mode, result.Err == nil, time.Since(start).Round(time.Millisecond))

	// The apologetic reply is already stored; surfacing the error here
	// lets the queue retry produce a better answer later.
	return result.Err
}

// GenerateSessionTitle titles a session from its first user message.
func (s *ChatService) GenerateSessionTitle(ctx context.Context, sessionID, userID string) error {
	session, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	var first models.ChatMessage
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	err = s.messages.FindOne(ctx, bson.M{
		"session_id":   sessionID,
		"message_type": models.MessageTypeUser,
	}, opts).Decode(&first)
	if err == mongo.ErrNoDocuments {
		return fmt.Errorf("%w: session %q has no user messages", ErrNotFound, sessionID)
	}
	if err != nil {
		return err
	}

	model, err := s.llms.ForModel(ctx, session.LlmModelID)
	if err != nil {
		return err
	}

	title, err := llm.NewPipeline(model).Title(ctx, first.Content)
	if err != nil {
		return err
	}
	if title == "" {
		return nil
	}

	_, err = s.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"title": title, "updated_at": time.Now()}})
	return err
}

// historyBefore builds the llm message history up to, not including,
// the message being answered. System rows like the welcome message are
// skipped; models only see user and assistant turns.
func (s *ChatService) historyBefore(ctx context.Context, sessionID string, before time.Time) ([]llm.Message, error) {
	stored, err := s.sessionMessages(ctx, sessionID, historyLimit)
	if err != nil {
		return nil, err
	}
	return FormatChatHistory(stored, before), nil
}

// FormatChatHistory converts stored messages into model turns, keeping
// only user and assistant messages created before the cutoff. The
// stored welcome message is an assistant greeting and is kept.
func FormatChatHistory(stored []models.ChatMessage, before time.Time) []llm.Message {
	history := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		if !m.CreatedAt.Before(before) {
			continue
		}
		switch m.MessageType {
		case models.MessageTypeUser:
			history = append(history, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case models.MessageTypeAssistant:
			history = append(history, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	return history
}

func (s *ChatService) sessionMessages(ctx context.Context, sessionID string, limit int64) ([]models.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		// Take the most recent messages, then restore chronological order.
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	}
	cursor, err := s.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	var stored []models.ChatMessage
	if err := cursor.All(ctx, &stored); err != nil {
		return nil, err
	}
	if limit > 0 {
		for i, j := 0, len(stored)-1; i < j; i, j = i+1, j-1 {
			stored[i], stored[j] = stored[j], stored[i]
		}
	}
	return stored, nil
}

func (s *ChatService) touchSession(ctx context.Context, sessionID string) {
	if _, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"updated_at": time.Now()}}); err != nil {
		log.Printf("Failed to touch session %s: %v", sessionID, err)
	}
}
