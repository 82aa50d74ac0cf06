package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ragchat-platform/internal/vectorstore"
	"ragchat-platform/models"
)

// testDatabase connects to the MongoDB named by MONGO_TEST_URI and
// hands back a throwaway database. Skipped when no test instance is
// configured.
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set, skipping MongoDB-backed test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connecting to test MongoDB: %v", err)
	}

	db := client.Database("ragchat_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db.Drop(ctx)
		client.Disconnect(ctx)
	})
	return db
}

func insertInstance(t *testing.T, db *mongo.Database, userID string) *models.VectorStoreInstance {
	t.Helper()
	now := time.Now()
	instance := &models.VectorStoreInstance{
		ID:               uuid.NewString(),
		Name:             "store",
		UserID:           userID,
		ProviderSlug:     "sqlite",
		EmbeddingModelID: uuid.NewString(),
		CollectionName:   vectorstore.NewCollectionName(),
		Status:           models.VectorStoreStatusCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := db.Collection("vector_store_instances").InsertOne(context.Background(), instance); err != nil {
		t.Fatalf("inserting instance: %v", err)
	}
	return instance
}

func insertDocument(t *testing.T, db *mongo.Database, userID, status string) *models.Document {
	t.Helper()
	now := time.Now()
	doc := &models.Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     "doc",
		FileName:  "doc.pdf",
		FileType:  "pdf",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := db.Collection("documents").InsertOne(context.Background(), doc); err != nil {
		t.Fatalf("inserting document: %v", err)
	}
	return doc
}

func TestAddDocumentCrossUser(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	m := NewVectorStoreManager(db, nil, nil, nil, nil, nil)

	aliceStore := insertInstance(t, db, "alice")
	bobDoc := insertDocument(t, db, "bob", models.StatusCompleted)

	// Binding someone else's document into your own store.
	err := m.AddDocument(ctx, "alice", aliceStore.ID, bobDoc.ID)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	// Reaching into someone else's store at all.
	aliceDoc := insertDocument(t, db, "alice", models.StatusCompleted)
	err = m.AddDocument(ctx, "bob", aliceStore.ID, aliceDoc.ID)
	if !errors.Is(err, ErrOwnershipMismatch) {
		t.Fatalf("expected ErrOwnershipMismatch, got %v", err)
	}

	// Neither rejection may leave any trace behind.
	count, err := db.Collection("embeddings").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected no embedding rows after rejected binds, got %d", count)
	}

	var stored models.VectorStoreInstance
	if err := db.Collection("vector_store_instances").FindOne(ctx, bson.M{"_id": aliceStore.ID}).Decode(&stored); err != nil {
		t.Fatal(err)
	}
	if len(stored.DocumentIDs) != 0 {
		t.Errorf("expected no document bindings, got %v", stored.DocumentIDs)
	}
}

func TestAddDocumentRequiresCompletedDocument(t *testing.T) {
	db := testDatabase(t)
	m := NewVectorStoreManager(db, nil, nil, nil, nil, nil)

	store := insertInstance(t, db, "alice")
	doc := insertDocument(t, db, "alice", models.StatusProcessing)

	err := m.AddDocument(context.Background(), "alice", store.ID, doc.ID)
	if !errors.Is(err, ErrDocumentNotReady) {
		t.Fatalf("expected ErrDocumentNotReady, got %v", err)
	}
}

func TestIndexDocumentFailureRecordsError(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	m := NewVectorStoreManager(db, nil, nil, nil, nil, nil)

	store := insertInstance(t, db, "alice")
	doc := insertDocument(t, db, "alice", models.StatusCompleted)

	// No chunks exist, so every indexing attempt fails the same way the
	// final retry would.
	err := m.IndexDocument(ctx, store.ID, doc.ID)
	if !errors.Is(err, vectorstore.ErrVectorStore) {
		t.Fatalf("expected ErrVectorStore, got %v", err)
	}

	var stored models.VectorStoreInstance
	if err := db.Collection("vector_store_instances").FindOne(ctx, bson.M{"_id": store.ID}).Decode(&stored); err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.VectorStoreStatusFailed {
		t.Errorf("instance status = %s, want %s", stored.Status, models.VectorStoreStatusFailed)
	}
	if stored.ErrorMessage == "" {
		t.Error("expected the failure message to be recorded on the instance")
	}
}

func TestUpdateSessionVectorStoreBinding(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()

	vectors := NewVectorStoreManager(db, nil, nil, nil, nil, nil)
	chat := NewChatService(db, nil, vectors, nil, nil)

	aliceStore := insertInstance(t, db, "alice")
	bobStore := insertInstance(t, db, "bob")

	now := time.Now()
	session := &models.ChatSession{
		ID:        uuid.NewString(),
		UserID:    "alice",
		Title:     models.DefaultSessionTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := db.Collection("chat_sessions").InsertOne(ctx, session); err != nil {
		t.Fatal(err)
	}

	// Binding someone else's store is refused.
	err := chat.UpdateSession(ctx, "alice", session.ID, &models.UpdateSessionRequest{VectorStoreID: &bobStore.ID})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	// Binding your own store works.
	if err := chat.UpdateSession(ctx, "alice", session.ID, &models.UpdateSessionRequest{VectorStoreID: &aliceStore.ID}); err != nil {
		t.Fatalf("binding own store: %v", err)
	}
	got, err := chat.GetSession(ctx, "alice", session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.VectorStoreID != aliceStore.ID {
		t.Errorf("vector_store_id = %q, want %q", got.VectorStoreID, aliceStore.ID)
	}

	// Clearing the binding puts the session back in direct mode.
	empty := ""
	if err := chat.UpdateSession(ctx, "alice", session.ID, &models.UpdateSessionRequest{VectorStoreID: &empty}); err != nil {
		t.Fatalf("clearing binding: %v", err)
	}
	got, err = chat.GetSession(ctx, "alice", session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.VectorStoreID != "" {
		t.Errorf("vector_store_id = %q after clear, want empty", got.VectorStoreID)
	}
}
