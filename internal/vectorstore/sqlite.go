package vectorstore

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	_ "modernc.org/sqlite"
)

var _ Provider = (*SQLiteProvider)(nil)

var collectionNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteProvider stores vectors in SQLite, one table per collection,
// with brute-force cosine similarity search. Embeddings are serialized
// as little-endian float32 blobs. Good to roughly 100K vectors per
// collection before query latency becomes noticeable.
type SQLiteProvider struct {
	db *sql.DB

	mu     sync.Mutex
	tables map[string]bool
}

// NewSQLiteProvider opens (or creates) the backing database. With a
// persistence directory the data lives in vectors.db inside it;
// without one the store is in-memory and lost on restart.
func NewSQLiteProvider(persistenceDir string) (*SQLiteProvider, error) {
	dsn := ":memory:"
	if persistenceDir != "" {
		if err := os.MkdirAll(persistenceDir, 0755); err != nil {
			return nil, fmt.Errorf("%w: creating persistence directory %s: %v", ErrVectorStore, persistenceDir, err)
		}
		dsn = filepath.Join(persistenceDir, "vectors.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening sqlite at %s: %v", ErrVectorStore, dsn, err)
	}
	// The sqlite driver serializes writes; a single connection avoids
	// table-lock errors under concurrent upserts.
	db.SetMaxOpenConns(1)

	return &SQLiteProvider{db: db, tables: make(map[string]bool)}, nil
}

func (s *SQLiteProvider) Slug() string { return "sqlite" }

func (s *SQLiteProvider) EnsureCollection(ctx context.Context, collection string) error {
	if !collectionNameRe.MatchString(collection) {
		return fmt.Errorf("%w: invalid collection name %q", ErrVectorStore, collection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[collection] {
		return nil
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			page_number INTEGER,
			text TEXT NOT NULL,
			embedding BLOB NOT NULL
		)`, collection))
	if err != nil {
		return fmt.Errorf("%w: creating table %s: %v", ErrVectorStore, collection, err)
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_document ON %s (document_id)`, collection, collection))
	if err != nil {
		return fmt.Errorf("%w: indexing table %s: %v", ErrVectorStore, collection, err)
	}

	s.tables[collection] = true
	return nil
}

func (s *SQLiteProvider) Upsert(ctx context.Context, collection string, records []Record) error {
	if err := s.EnsureCollection(ctx, collection); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning upsert transaction: %v", ErrVectorStore, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (id, document_id, chunk_id, chunk_index, page_number, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, collection))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: preparing upsert: %v", ErrVectorStore, err)
	}
	defer stmt.Close()

	for _, r := range records {
		var page interface{}
		if r.Metadata.PageNumber != nil {
			page = *r.Metadata.PageNumber
		}
		blob := encodeFloat32s(r.Vector)
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Metadata.DocumentID, r.Metadata.ChunkID,
			r.Metadata.ChunkIndex, page, r.Metadata.Text, blob); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: upserting record %s: %v", ErrVectorStore, r.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteProvider) Query(ctx context.Context, collection string, vector []float32, topK int) ([]Hit, error) {
	if err := s.EnsureCollection(ctx, collection); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, document_id, chunk_id, chunk_index, page_number, text, embedding FROM %s`, collection))
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", ErrVectorStore, collection, err)
	}
	defer rows.Close()

	h := &hitHeap{}
	heap.Init(h)

	var buf []float32
	for rows.Next() {
		var (
			rec  Record
			page sql.NullInt64
			blob []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Metadata.DocumentID, &rec.Metadata.ChunkID,
			&rec.Metadata.ChunkIndex, &page, &rec.Metadata.Text, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", ErrVectorStore, err)
		}
		if page.Valid {
			p := int(page.Int64)
			rec.Metadata.PageNumber = &p
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding embedding for %s: %v", ErrVectorStore, rec.ID, err)
		}

		score := cosine(vector, buf, queryNorm)
		if h.Len() < topK {
			heap.Push(h, Hit{Record: rec, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = Hit{Record: rec, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", ErrVectorStore, err)
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(h).(Hit)
	}
	return hits, nil
}

func (s *SQLiteProvider) DeleteByDocument(ctx context.Context, collection, documentID string) error {
	if err := s.EnsureCollection(ctx, collection); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE document_id = ?`, collection), documentID)
	if err != nil {
		return fmt.Errorf("%w: deleting document %s: %v", ErrVectorStore, documentID, err)
	}
	return nil
}

func (s *SQLiteProvider) DropCollection(ctx context.Context, collection string) error {
	if !collectionNameRe.MatchString(collection) {
		return fmt.Errorf("%w: invalid collection name %q", ErrVectorStore, collection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, collection)); err != nil {
		return fmt.Errorf("%w: dropping %s: %v", ErrVectorStore, collection, err)
	}
	delete(s.tables, collection)
	return nil
}

func (s *SQLiteProvider) Count(ctx context.Context, collection string) (int, error) {
	if err := s.EnsureCollection(ctx, collection); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, collection)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: counting %s: %v", ErrVectorStore, collection, err)
	}
	return count, nil
}

// Close releases the database handle.
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}

func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * |b|) with aNorm precomputed.
// Mismatched dimensions score 0 rather than erroring; a collection can
// transiently hold vectors from two models during re-embedding.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// hitHeap is a min-heap by score, used to track top-K during scans.
type hitHeap []Hit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) {
	*h = append(*h, x.(Hit))
}
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
