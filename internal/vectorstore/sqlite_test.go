package vectorstore

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func newTestProvider(t *testing.T) *SQLiteProvider {
	t.Helper()
	p, err := NewSQLiteProvider("")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func page(n int) *int { return &n }

func TestSQLiteUpsertAndQuery(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	records := []Record{
		{ID: "doc1_0", Vector: []float32{1, 0, 0}, Metadata: Metadata{
			DocumentID: "doc1", ChunkID: "c0", ChunkIndex: 0, PageNumber: page(1), Text: "alpha"}},
		{ID: "doc1_1", Vector: []float32{0, 1, 0}, Metadata: Metadata{
			DocumentID: "doc1", ChunkID: "c1", ChunkIndex: 1, Text: "beta"}},
		{ID: "doc2_0", Vector: []float32{0.9, 0.1, 0}, Metadata: Metadata{
			DocumentID: "doc2", ChunkID: "c2", ChunkIndex: 0, Text: "gamma"}},
	}
	if err := p.Upsert(ctx, "collection_test", records); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := p.Query(ctx, "collection_test", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ID != "doc1_0" {
		t.Errorf("best hit is %s, want doc1_0", hits[0].ID)
	}
	if hits[1].ID != "doc2_0" {
		t.Errorf("second hit is %s, want doc2_0", hits[1].ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("hits not sorted by score: %v then %v", hits[0].Score, hits[1].Score)
	}
	if math.Abs(float64(hits[0].Score)-1.0) > 1e-5 {
		t.Errorf("identical vector scored %v, want ~1", hits[0].Score)
	}
	if hits[0].Metadata.Text != "alpha" || hits[0].Metadata.PageNumber == nil || *hits[0].Metadata.PageNumber != 1 {
		t.Errorf("metadata not round-tripped: %+v", hits[0].Metadata)
	}
}

func TestSQLiteUpsertReplacesByID(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	first := []Record{{ID: "doc1_0", Vector: []float32{1, 0}, Metadata: Metadata{
		DocumentID: "doc1", ChunkID: "c0", Text: "old"}}}
	if err := p.Upsert(ctx, "collection_test", first); err != nil {
		t.Fatal(err)
	}

	second := []Record{{ID: "doc1_0", Vector: []float32{0, 1}, Metadata: Metadata{
		DocumentID: "doc1", ChunkID: "c0", Text: "new"}}}
	if err := p.Upsert(ctx, "collection_test", second); err != nil {
		t.Fatal(err)
	}

	count, err := p.Count(ctx, "collection_test")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count = %d after re-upsert, want 1", count)
	}

	hits, err := p.Query(ctx, "collection_test", []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Metadata.Text != "new" {
		t.Fatalf("expected replaced record, got %+v", hits)
	}
}

func TestSQLiteDeleteByDocument(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	records := []Record{
		{ID: "doc1_0", Vector: []float32{1, 0}, Metadata: Metadata{DocumentID: "doc1", ChunkID: "a", Text: "x"}},
		{ID: "doc1_1", Vector: []float32{0, 1}, Metadata: Metadata{DocumentID: "doc1", ChunkID: "b", Text: "y"}},
		{ID: "doc2_0", Vector: []float32{1, 1}, Metadata: Metadata{DocumentID: "doc2", ChunkID: "c", Text: "z"}},
	}
	if err := p.Upsert(ctx, "collection_test", records); err != nil {
		t.Fatal(err)
	}

	if err := p.DeleteByDocument(ctx, "collection_test", "doc1"); err != nil {
		t.Fatal(err)
	}

	count, err := p.Count(ctx, "collection_test")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count = %d after delete, want 1", count)
	}
}

func TestSQLiteDropCollection(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	records := []Record{{ID: "r", Vector: []float32{1}, Metadata: Metadata{DocumentID: "d", ChunkID: "c", Text: "t"}}}
	if err := p.Upsert(ctx, "collection_gone", records); err != nil {
		t.Fatal(err)
	}
	if err := p.DropCollection(ctx, "collection_gone"); err != nil {
		t.Fatal(err)
	}

	// Collection is recreated empty on next access.
	count, err := p.Count(ctx, "collection_gone")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("count = %d after drop, want 0", count)
	}
}

func TestSQLiteZeroQueryVector(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	records := []Record{{ID: "r", Vector: []float32{1, 2}, Metadata: Metadata{DocumentID: "d", ChunkID: "c", Text: "t"}}}
	if err := p.Upsert(ctx, "collection_test", records); err != nil {
		t.Fatal(err)
	}

	hits, err := p.Query(ctx, "collection_test", []float32{0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Fatalf("zero vector returned %d hits, want none", len(hits))
	}
}

func TestSQLiteRejectsBadCollectionName(t *testing.T) {
	p := newTestProvider(t)

	err := p.EnsureCollection(context.Background(), "bad name; drop table")
	if err == nil {
		t.Fatal("expected error for invalid collection name")
	}
}

func TestSQLiteCreatesPersistenceDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vectors", "nested")

	p, err := NewSQLiteProvider(dir)
	if err != nil {
		t.Fatalf("NewSQLiteProvider(%s): %v", dir, err)
	}
	defer p.Close()

	if err := p.EnsureCollection(context.Background(), "collection_fresh"); err != nil {
		t.Fatalf("EnsureCollection on fresh directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "vectors.db")); err != nil {
		t.Errorf("expected database file on disk: %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	p, err := NewSQLiteProvider("")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	r.Register(p)

	got, err := r.Get("sqlite")
	if err != nil {
		t.Fatalf("Get(sqlite): %v", err)
	}
	if got != Provider(p) {
		t.Error("Get returned a different provider")
	}

	if _, err := r.Get("pinecone"); err == nil {
		t.Error("expected error for unregistered slug")
	}

	if err := r.Validate([]string{"sqlite"}); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := r.Validate([]string{"sqlite", "pinecone"}); err == nil {
		t.Error("Validate should fail on missing slug")
	}
}

func TestRecordID(t *testing.T) {
	if got := RecordID("abc", 3); got != "abc_3" {
		t.Errorf("RecordID = %q, want abc_3", got)
	}
}
