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

	"ragchat-platform/internal/embeddings"
	"ragchat-platform/internal/llm"
	"ragchat-platform/internal/queue"
	"ragchat-platform/internal/telemetry"
	"ragchat-platform/internal/vectorstore"
	"ragchat-platform/models"
)

// embedBatchSize bounds one embedding API call.
const embedBatchSize = 100

// VectorStoreManager owns vector store instances: lifecycle, document
// membership, the embed-and-index pipeline, and retrieval.
type VectorStoreManager struct {
	instances  *mongo.Collection
	embeddings *mongo.Collection
	chunks     *mongo.Collection
	documents  *mongo.Collection
	statuses   *mongo.Collection
	catalog    *Catalog
	registry   *vectorstore.Registry
	embedder   *embeddings.Service
	asynq      *asynq.Client
	metrics    *telemetry.Metrics
}

func NewVectorStoreManager(db *mongo.Database, catalog *Catalog, registry *vectorstore.Registry, embedder *embeddings.Service, asynqClient *asynq.Client, metrics *telemetry.Metrics) *VectorStoreManager {
	return &VectorStoreManager{
		instances:  db.Collection("vector_store_instances"),
		embeddings: db.Collection("embeddings"),
		chunks:     db.Collection("document_chunks"),
		documents:  db.Collection("documents"),
		statuses:   db.Collection("processing_statuses"),
		catalog:    catalog,
		registry:   registry,
		embedder:   embedder,
		asynq:      asynqClient,
		metrics:    metrics,
	}
}

// CreateInstance provisions a new collection in the requested backend.
func (m *VectorStoreManager) CreateInstance(ctx context.Context, userID string, req *models.CreateVectorStoreRequest) (*models.VectorStoreInstance, error) {
	provider, err := m.catalog.GetVectorStoreProviderBySlug(ctx, req.ProviderSlug)
	if err != nil {
		return nil, err
	}
	backend, err := m.registry.Get(provider.Slug)
	if err != nil {
		return nil, err
	}
	if _, err := m.catalog.GetEmbeddingModel(ctx, req.EmbeddingModelID); err != nil {
		return nil, err
	}

	now := time.Now()
	instance := &models.VectorStoreInstance{
		ID:               uuid.NewString(),
		Name:             req.Name,
		UserID:           userID,
		ProviderID:       provider.ID,
		ProviderSlug:     provider.Slug,
		EmbeddingModelID: req.EmbeddingModelID,
		CollectionName:   vectorstore.NewCollectionName(),
		Status:           models.VectorStoreStatusCreated,
		Config:           req.Config,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := backend.EnsureCollection(ctx, instance.CollectionName); err != nil {
		return nil, err
	}
	if _, err := m.instances.InsertOne(ctx, instance); err != nil {
		return nil, fmt.Errorf("creating vector store instance: %w", err)
	}

	log.Printf("Vector store created: id=%s provider=%s collection=%s", instance.ID, provider.Slug, instance.CollectionName)
	return instance, nil
}

// GetInstance returns an instance owned by userID.
func (m *VectorStoreManager) GetInstance(ctx context.Context, userID, instanceID string) (*models.VectorStoreInstance, error) {
	instance, err := m.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.UserID != userID {
		return nil, fmt.Errorf("%w: vector store %q", ErrOwnershipMismatch, instanceID)
	}
	return instance, nil
}

// ListInstances returns the user's vector stores.
func (m *VectorStoreManager) ListInstances(ctx context.Context, userID string) ([]models.VectorStoreInstance, error) {
	cursor, err := m.instances.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	var out []models.VectorStoreInstance
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteInstance drops the backend collection and all bookkeeping.
// Documents themselves are untouched; they may belong to other stores.
func (m *VectorStoreManager) DeleteInstance(ctx context.Context, userID, instanceID string) error {
	instance, err := m.GetInstance(ctx, userID, instanceID)
	if err != nil {
		return err
	}

	backend, err := m.registry.Get(instance.ProviderSlug)
	if err != nil {
		return err
	}
	if err := backend.DropCollection(ctx, instance.CollectionName); err != nil {
		return err
	}

	if _, err := m.embeddings.DeleteMany(ctx, bson.M{"vector_store_id": instanceID}); err != nil {
		return fmt.Errorf("deleting embedding records: %w", err)
	}
	if _, err := m.instances.DeleteOne(ctx, bson.M{"_id": instanceID}); err != nil {
		return fmt.Errorf("deleting instance: %w", err)
	}

	log.Printf("Vector store deleted: id=%s collection=%s", instanceID, instance.CollectionName)
	return nil
}

// AddDocument binds a completed document to the instance and queues
// indexing. Both resources must belong to userID.
func (m *VectorStoreManager) AddDocument(ctx context.Context, userID, instanceID, documentID string) error {
	instance, err := m.GetInstance(ctx, userID, instanceID)
	if err != nil {
		return err
	}

	var doc models.Document
	err = m.documents.FindOne(ctx, bson.M{"_id": documentID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return fmt.Errorf("%w: document %q", ErrNotFound, documentID)
	}
	if err != nil {
		return err
	}
	if doc.UserID != userID {
		// Binding someone else's document into your own store is a
		// permission problem, not a lookup miss.
		return fmt.Errorf("%w: document %q", ErrPermissionDenied, documentID)
	}
	if doc.Status != models.StatusCompleted {
		return fmt.Errorf("%w: document %q has status %s", ErrDocumentNotReady, documentID, doc.Status)
	}

	if _, err := m.instances.UpdateOne(ctx,
		bson.M{"_id": instanceID},
		bson.M{
			"$addToSet": bson.M{"document_ids": documentID},
			"$set":      bson.M{"updated_at": time.Now()},
		}); err != nil {
		return fmt.Errorf("binding document to instance: %w", err)
	}

	return m.queueIndexing(ctx, instance, documentID, userID)
}

// QueueDocumentIndexing re-queues indexing for a document already
// bound to the instance.
func (m *VectorStoreManager) QueueDocumentIndexing(ctx context.Context, userID, instanceID, documentID string) error {
	instance, err := m.GetInstance(ctx, userID, instanceID)
	if err != nil {
		return err
	}
	if !contains(instance.DocumentIDs, documentID) {
		return fmt.Errorf("%w: document %q is not in vector store %q", ErrNotFound, documentID, instanceID)
	}
	return m.queueIndexing(ctx, instance, documentID, userID)
}

func (m *VectorStoreManager) queueIndexing(ctx context.Context, instance *models.VectorStoreInstance, documentID, userID string) error {
	task, err := queue.NewVectorIndexTask(instance.ID, documentID, userID)
	if err != nil {
		return err
	}
	if _, err := m.asynq.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue indexing failed: %w", err)
	}

	m.setInstanceStatus(ctx, instance.ID, models.VectorStoreStatusIndexing, "")
	log.Printf("Indexing queued: store=%s document=%s", instance.ID, documentID)
	return nil
}

// IndexDocument embeds a document's chunks and writes them to the
// instance's backend collection. Safe to re-run: vector ids and the
// embeddings join rows are stable per chunk, so retries overwrite.
//
// Concurrent runs for the same instance race on Status; the last
// writer wins, which matches how a sequence of indexing runs behaves
// anyway.
func (m *VectorStoreManager) IndexDocument(ctx context.Context, instanceID, documentID string) error {
	start := time.Now()

	instance, err := m.loadInstance(ctx, instanceID)
	if err != nil {
		return err
	}

	// Retried runs arrive with the instance marked failed; flip it back
	// before the heavy work so status reflects what is happening.
	m.setInstanceStatus(ctx, instanceID, models.VectorStoreStatusIndexing, "")

	if err := m.indexChunks(ctx, instance, documentID); err != nil {
		if !errors.Is(err, vectorstore.ErrVectorStore) {
			err = fmt.Errorf("%w: %v", vectorstore.ErrVectorStore, err)
		}
		m.setInstanceStatus(ctx, instanceID, models.VectorStoreStatusFailed, truncateError(err))
		return err
	}

	m.setInstanceStatus(ctx, instanceID, models.VectorStoreStatusReady, "")
	log.Printf("Indexing finished: store=%s document=%s duration=%s",
		instanceID, documentID, time.Since(start).Round(time.Millisecond))
	return nil
}

func (m *VectorStoreManager) indexChunks(ctx context.Context, instance *models.VectorStoreInstance, documentID string) error {
	start := time.Now()

	cursor, err := m.chunks.Find(ctx, bson.M{"document_id": documentID},
		options.Find().SetSort(bson.D{{Key: "chunk_index", Value: 1}}))
	if err != nil {
		return fmt.Errorf("loading chunks: %w", err)
	}
	var chunks []models.DocumentChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return fmt.Errorf("loading chunks: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no chunks to index", documentID)
	}

	emb, err := m.embedder.ForModel(ctx, instance.EmbeddingModelID)
	if err != nil {
		return err
	}
	backend, err := m.registry.Get(instance.ProviderSlug)
	if err != nil {
		return err
	}

	records := make([]vectorstore.Record, 0, len(chunks))
	for offset := 0; offset < len(chunks); offset += embedBatchSize {
		end := offset + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := emb.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}

		for i, c := range batch {
			records = append(records, vectorstore.Record{
				ID:     vectorstore.RecordID(documentID, c.ChunkIndex),
				Vector: vectors[i],
				Metadata: vectorstore.Metadata{
					DocumentID: documentID,
					ChunkID:    c.ID,
					ChunkIndex: c.ChunkIndex,
					PageNumber: c.PageNumber,
					Text:       c.Content,
				},
			})
		}
	}

	m.markStage(ctx, documentID, "embedding_completed")

	if err := backend.Upsert(ctx, instance.CollectionName, records); err != nil {
		return err
	}

	// Join rows let cascade deletes find every store a chunk landed in.
	now := time.Now()
	joins := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		joins = append(joins, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"chunk_id": r.Metadata.ChunkID, "vector_store_id": instance.ID}).
			SetUpdate(bson.M{"$set": bson.M{
				"chunk_id":        r.Metadata.ChunkID,
				"vector_store_id": instance.ID,
				"embedding_id":    r.ID,
			}, "$setOnInsert": bson.M{
				"_id":        uuid.NewString(),
				"created_at": now,
			}}).
			SetUpsert(true))
	}
	if _, err := m.embeddings.BulkWrite(ctx, joins, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("recording embeddings: %w", err)
	}

	m.markStage(ctx, documentID, "indexing_completed")

	if m.metrics != nil {
		m.metrics.RecordIndexing(time.Since(start).Seconds(), instance.ProviderSlug, int64(len(records)))
	}
	return nil
}

// RemoveDocumentEverywhere deletes a document's vectors and join rows
// from every instance that indexed it. Used by document cascade delete.
func (m *VectorStoreManager) RemoveDocumentEverywhere(ctx context.Context, documentID string) error {
	cursor, err := m.instances.Find(ctx, bson.M{"document_ids": documentID})
	if err != nil {
		return err
	}
	var affected []models.VectorStoreInstance
	if err := cursor.All(ctx, &affected); err != nil {
		return err
	}

	chunkIDs, err := m.chunkIDs(ctx, documentID)
	if err != nil {
		return err
	}

	for _, instance := range affected {
		backend, err := m.registry.Get(instance.ProviderSlug)
		if err != nil {
			return err
		}
		if err := backend.DeleteByDocument(ctx, instance.CollectionName, documentID); err != nil {
			return err
		}
		if len(chunkIDs) > 0 {
			if _, err := m.embeddings.DeleteMany(ctx, bson.M{
				"vector_store_id": instance.ID,
				"chunk_id":        bson.M{"$in": chunkIDs},
			}); err != nil {
				return fmt.Errorf("deleting embedding records: %w", err)
			}
		}
		if _, err := m.instances.UpdateOne(ctx,
			bson.M{"_id": instance.ID},
			bson.M{
				"$pull": bson.M{"document_ids": documentID},
				"$set":  bson.M{"updated_at": time.Now()},
			}); err != nil {
			return fmt.Errorf("unbinding document: %w", err)
		}
	}
	return nil
}

// HandleDocumentCompleted implements CompletionListener. Stores that
// already hold the document are re-queued. A fresh document is indexed
// into the user's most recent usable store, provisioning a default one
// from the catalog when the user has none. Provisioning failure is a
// configuration problem and is logged rather than retried.
func (m *VectorStoreManager) HandleDocumentCompleted(ctx context.Context, documentID, userID string) error {
	cursor, err := m.instances.Find(ctx, bson.M{"document_ids": documentID})
	if err != nil {
		return err
	}
	var affected []models.VectorStoreInstance
	if err := cursor.All(ctx, &affected); err != nil {
		return err
	}

	if len(affected) > 0 {
		for _, instance := range affected {
			inst := instance
			if err := m.queueIndexing(ctx, &inst, documentID, userID); err != nil {
				return err
			}
		}
		return nil
	}

	instance, err := m.defaultInstance(ctx, userID)
	if err != nil {
		log.Printf("No usable vector store for user %s, document %s stays unindexed: %v", userID, documentID, err)
		return nil
	}
	return m.AddDocument(ctx, userID, instance.ID, documentID)
}

// defaultInstance picks the user's most recent store that can accept
// documents, creating one from the first active provider and embedding
// model when the user has none.
func (m *VectorStoreManager) defaultInstance(ctx context.Context, userID string) (*models.VectorStoreInstance, error) {
	var instance models.VectorStoreInstance
	err := m.instances.FindOne(ctx,
		bson.M{
			"user_id": userID,
			"status":  bson.M{"$in": []string{models.VectorStoreStatusCreated, models.VectorStoreStatusReady}},
		},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&instance)
	if err == nil {
		return &instance, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	providers, err := m.catalog.ListVectorStoreProviders(ctx)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no active vector store providers")
	}
	embeddingModels, err := m.catalog.ListEmbeddingModels(ctx)
	if err != nil {
		return nil, err
	}
	if len(embeddingModels) == 0 {
		return nil, fmt.Errorf("no active embedding models")
	}

	created, err := m.CreateInstance(ctx, userID, &models.CreateVectorStoreRequest{
		Name:             "Default Store",
		ProviderSlug:     providers[0].Slug,
		EmbeddingModelID: embeddingModels[0].ID,
	})
	if err != nil {
		return nil, fmt.Errorf("provisioning default vector store: %w", err)
	}
	return created, nil
}

// RetrieverFor returns an llm.Retriever over the instance's collection.
func (m *VectorStoreManager) RetrieverFor(ctx context.Context, userID, instanceID string) (llm.Retriever, error) {
	instance, err := m.GetInstance(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	backend, err := m.registry.Get(instance.ProviderSlug)
	if err != nil {
		return nil, err
	}
	emb, err := m.embedder.ForModel(ctx, instance.EmbeddingModelID)
	if err != nil {
		return nil, err
	}

	return &instanceRetriever{
		backend:    backend,
		embedder:   emb,
		collection: instance.CollectionName,
	}, nil
}

type instanceRetriever struct {
	backend    vectorstore.Provider
	embedder   embeddings.Embedder
	collection string
}

func (r *instanceRetriever) Retrieve(ctx context.Context, query string) ([]vectorstore.Hit, error) {
	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.backend.Query(ctx, r.collection, vector, llm.TopK)
}

func (m *VectorStoreManager) loadInstance(ctx context.Context, instanceID string) (*models.VectorStoreInstance, error) {
	var instance models.VectorStoreInstance
	err := m.instances.FindOne(ctx, bson.M{"_id": instanceID}).Decode(&instance)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: vector store %q", ErrNotFound, instanceID)
	}
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (m *VectorStoreManager) setInstanceStatus(ctx context.Context, instanceID, status, errorMessage string) {
	update := bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}
	if errorMessage != "" {
		update["error_message"] = errorMessage
	}
	if _, err := m.instances.UpdateOne(ctx, bson.M{"_id": instanceID}, bson.M{"$set": update}); err != nil {
		log.Printf("Failed to update vector store %s status: %v", instanceID, err)
	}
}

func (m *VectorStoreManager) markStage(ctx context.Context, documentID, field string) {
	if _, err := m.statuses.UpdateOne(ctx,
		bson.M{"_id": documentID},
		bson.M{"$set": bson.M{field: true}}); err != nil {
		log.Printf("Failed to mark %s for document %s: %v", field, documentID, err)
	}
}

func (m *VectorStoreManager) chunkIDs(ctx context.Context, documentID string) ([]string, error) {
	cursor, err := m.chunks.Find(ctx, bson.M{"document_id": documentID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
