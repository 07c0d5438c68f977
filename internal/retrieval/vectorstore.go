package retrieval

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested article is not in the index.
var ErrNotFound = errors.New("article not found")

// VectorStore is the interface for vector storage and similarity search
// backends. The default implementation uses SQLite with brute-force cosine
// similarity; a Postgres/pgvector implementation is available for corpora
// served from a shared database.
//
// All backends share the same invariants:
//   - Upsert is keyed by Record.ID: re-indexing an article overwrites the
//     previous row, it never duplicates it.
//   - Search returns at most topK records in non-increasing score order.
//   - The embedding scheme identifier is persisted alongside the vectors so
//     a query embedded with a different model is detectable instead of
//     silently degrading relevance.
type VectorStore interface {
	// Upsert inserts or replaces records keyed by ID.
	Upsert(ctx context.Context, records []Record) error

	// Search performs vector similarity search, returning the top-K most
	// similar records sorted by score descending.
	Search(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error)

	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Count returns the number of indexed records.
	Count(ctx context.Context) (int, error)

	// EmbeddingScheme returns the persisted embedding scheme identifier,
	// or "" when the index is empty and no scheme has been recorded.
	EmbeddingScheme(ctx context.Context) (string, error)

	// SetEmbeddingScheme persists the embedding scheme identifier.
	SetEmbeddingScheme(ctx context.Context, scheme string) error
}

// Record represents one indexed article in the vector store.
type Record struct {
	ID            string // "articulo-17", stable across indexing runs
	ArticleNumber int
	Title         string
	Text          string // verbatim provision text
	SourceLink    string
	Embedding     []float32
	IndexedAt     time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
