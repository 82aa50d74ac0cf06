package vectorstore

import (
	"container/heap"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ Provider = (*MongoProvider)(nil)

// vectorDoc is the stored shape of a Record in MongoDB.
type vectorDoc struct {
	ID         string    `bson:"_id"`
	DocumentID string    `bson:"document_id"`
	ChunkID    string    `bson:"chunk_id"`
	ChunkIndex int       `bson:"chunk_index"`
	PageNumber *int      `bson:"page_number,omitempty"`
	Text       string    `bson:"text"`
	Vector     []float32 `bson:"vector"`
}

// MongoProvider stores vectors in MongoDB collections and scores them
// in-process with brute-force cosine similarity. No Atlas Search
// dependency; works against any MongoDB deployment.
type MongoProvider struct {
	db *mongo.Database
}

func NewMongoProvider(db *mongo.Database) *MongoProvider {
	return &MongoProvider{db: db}
}

func (m *MongoProvider) Slug() string { return "mongo" }

// EnsureCollection creates the document_id index. MongoDB creates the
// collection itself lazily on first write.
func (m *MongoProvider) EnsureCollection(ctx context.Context, collection string) error {
	_, err := m.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "document_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("%w: ensuring collection %s: %v", ErrVectorStore, collection, err)
	}
	return nil
}

// Upsert bulk-writes records keyed by _id, so re-indexing a document
// replaces its vectors instead of duplicating them.
func (m *MongoProvider) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		doc := vectorDoc{
			ID:         r.ID,
			DocumentID: r.Metadata.DocumentID,
			ChunkID:    r.Metadata.ChunkID,
			ChunkIndex: r.Metadata.ChunkIndex,
			PageNumber: r.Metadata.PageNumber,
			Text:       r.Metadata.Text,
			Vector:     r.Vector,
		}
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": r.ID}).
			SetUpdate(bson.M{"$set": doc}).
			SetUpsert(true))
	}

	_, err := m.db.Collection(collection).BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("%w: bulk upsert into %s: %v", ErrVectorStore, collection, err)
	}
	return nil
}

func (m *MongoProvider) Query(ctx context.Context, collection string, vector []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	cursor, err := m.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", ErrVectorStore, collection, err)
	}
	defer cursor.Close(ctx)

	h := &hitHeap{}
	heap.Init(h)

	for cursor.Next(ctx) {
		var doc vectorDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decoding vector doc: %v", ErrVectorStore, err)
		}

		score := cosine(vector, doc.Vector, queryNorm)
		hit := Hit{
			Record: Record{
				ID:     doc.ID,
				Vector: doc.Vector,
				Metadata: Metadata{
					DocumentID: doc.DocumentID,
					ChunkID:    doc.ChunkID,
					ChunkIndex: doc.ChunkIndex,
					PageNumber: doc.PageNumber,
					Text:       doc.Text,
				},
			},
			Score: score,
		}
		if h.Len() < topK {
			heap.Push(h, hit)
		} else if score > (*h)[0].Score {
			(*h)[0] = hit
			heap.Fix(h, 0)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating %s: %v", ErrVectorStore, collection, err)
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(h).(Hit)
	}
	return hits, nil
}

func (m *MongoProvider) DeleteByDocument(ctx context.Context, collection, documentID string) error {
	_, err := m.db.Collection(collection).DeleteMany(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return fmt.Errorf("%w: deleting document %s from %s: %v", ErrVectorStore, documentID, collection, err)
	}
	return nil
}

func (m *MongoProvider) DropCollection(ctx context.Context, collection string) error {
	if err := m.db.Collection(collection).Drop(ctx); err != nil {
		return fmt.Errorf("%w: dropping %s: %v", ErrVectorStore, collection, err)
	}
	return nil
}

func (m *MongoProvider) Count(ctx context.Context, collection string) (int, error) {
	n, err := m.db.Collection(collection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("%w: counting %s: %v", ErrVectorStore, collection, err)
	}
	return int(n), nil
}
