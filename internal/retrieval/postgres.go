package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check that PgStore implements VectorStore.
var _ VectorStore = (*PgStore)(nil)

// PgStore is a Postgres/pgvector-backed VectorStore for deployments that
// serve the index from a shared database. Requires the pgvector extension
// and a fixed embedding dimension.
type PgStore struct {
	pool *pgxpool.Pool
	dims int
}

// NewPgStore connects to Postgres and ensures the schema exists.
// dims is the embedding dimension of the configured embedding scheme.
func NewPgStore(ctx context.Context, connStr string, dims int) (*PgStore, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dims)
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &PgStore{pool: pool, dims: dims}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgStore) initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS article_vectors (
			id TEXT PRIMARY KEY,
			article_number INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			source_link TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			indexed_at TIMESTAMPTZ NOT NULL
		)`, s.dims)); err != nil {
		return fmt.Errorf("creating article_vectors table: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS article_vectors_embedding_idx ON article_vectors
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`); err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("creating index_meta table: %w", err)
	}

	return nil
}

// Close releases the connection pool.
func (s *PgStore) Close() {
	s.pool.Close()
}

// Upsert inserts or replaces records keyed by ID.
func (s *PgStore) Upsert(ctx context.Context, records []Record) error {
	for _, r := range records {
		indexedAt := r.IndexedAt
		if indexedAt.IsZero() {
			indexedAt = time.Now().UTC()
		}
		_, err := s.pool.Exec(ctx, `
			INSERT INTO article_vectors (id, article_number, title, body, source_link, embedding, indexed_at)
			VALUES ($1, $2, $3, $4, $5, $6::vector, $7)
			ON CONFLICT (id) DO UPDATE SET
				article_number = EXCLUDED.article_number,
				title = EXCLUDED.title,
				body = EXCLUDED.body,
				source_link = EXCLUDED.source_link,
				embedding = EXCLUDED.embedding,
				indexed_at = EXCLUDED.indexed_at`,
			r.ID, r.ArticleNumber, r.Title, r.Text, r.SourceLink, vectorLiteral(r.Embedding), indexedAt)
		if err != nil {
			return fmt.Errorf("upserting record %s: %w", r.ID, err)
		}
	}
	return nil
}

// Search returns the top-K most similar records. pgvector's <=> operator is
// cosine distance, so similarity is 1 - distance.
func (s *PgStore) Search(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, article_number, title, body, source_link, indexed_at,
		       1 - (embedding <=> $1::vector) AS score
		FROM article_vectors
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, vectorLiteral(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("querying similar articles: %w", err)
	}
	defer rows.Close()

	var results []ScoredRecord
	for rows.Next() {
		var r Record
		var score float64
		if err := rows.Scan(&r.ID, &r.ArticleNumber, &r.Title, &r.Text, &r.SourceLink, &r.IndexedAt, &score); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, ScoredRecord{Record: r, Score: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return results, nil
}

// Get returns the record with the given ID.
func (s *PgStore) Get(ctx context.Context, id string) (Record, error) {
	var r Record
	err := s.pool.QueryRow(ctx, `
		SELECT id, article_number, title, body, source_link, indexed_at
		FROM article_vectors WHERE id = $1`, id,
	).Scan(&r.ID, &r.ArticleNumber, &r.Title, &r.Text, &r.SourceLink, &r.IndexedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("fetching record %s: %w", id, err)
	}
	return r, nil
}

// Count returns the number of indexed records.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM article_vectors").Scan(&count)
	return count, err
}

// EmbeddingScheme returns the persisted scheme identifier, or "".
func (s *PgStore) EmbeddingScheme(ctx context.Context) (string, error) {
	var scheme string
	err := s.pool.QueryRow(ctx, "SELECT value FROM index_meta WHERE key = 'embedding_scheme'").Scan(&scheme)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return scheme, err
}

// SetEmbeddingScheme persists the scheme identifier.
func (s *PgStore) SetEmbeddingScheme(ctx context.Context, scheme string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO index_meta (key, value) VALUES ('embedding_scheme', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, scheme)
	return err
}

// vectorLiteral renders a float32 slice as a pgvector text literal: "[1,2,3]".
func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
