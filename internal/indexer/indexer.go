package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/actpanama/guillermo/internal/corpus"
	"github.com/actpanama/guillermo/internal/retrieval"
)

const embedConcurrency = 4

// ContentEmbedder generates embeddings for article text under a pinned scheme.
type ContentEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Scheme() string
}

// VectorUpserter is the slice of the vector store the indexer needs.
type VectorUpserter interface {
	Upsert(ctx context.Context, records []retrieval.Record) error
	EmbeddingScheme(ctx context.Context) (string, error)
	SetEmbeddingScheme(ctx context.Context, scheme string) error
}

// UnitError records the failure of a single article during indexing.
type UnitError struct {
	ID  string
	Err error
}

// Report summarises an indexing run. A run with Failures is a partial
// failure: the successfully indexed articles are in the store, the failed
// ones are listed here for the operator.
type Report struct {
	Indexed  int
	Failures []UnitError
}

// Err returns a summary error when any unit failed, nil otherwise.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d articles failed to index (first: %s: %v)",
		len(r.Failures), r.Indexed+len(r.Failures), r.Failures[0].ID, r.Failures[0].Err)
}

// Indexer embeds corpus articles and upserts them into the vector store.
// It runs offline relative to query serving.
type Indexer struct {
	embedder ContentEmbedder
	store    VectorUpserter
	logger   *slog.Logger
}

// New creates an Indexer with the given dependencies.
func New(embedder ContentEmbedder, store VectorUpserter) *Indexer {
	return &Indexer{embedder: embedder, store: store, logger: slog.Default()}
}

// Index embeds and upserts every article. Upserts are keyed by article ID,
// so re-running over the same corpus overwrites rather than duplicates.
// A single article's failure is recorded and the batch continues; only a
// whole-run problem (cancelled context, embedding scheme mismatch) returns
// a non-nil error.
func (ix *Indexer) Index(ctx context.Context, articles []corpus.Article) (Report, error) {
	if len(articles) == 0 {
		return Report{}, fmt.Errorf("no articles to index")
	}

	stored, err := ix.store.EmbeddingScheme(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("reading embedding scheme: %w", err)
	}
	if stored != "" && stored != ix.embedder.Scheme() {
		return Report{}, fmt.Errorf("index was built with embedding scheme %q but the configured scheme is %q; clear the index before re-indexing", stored, ix.embedder.Scheme())
	}
	if err := ix.store.SetEmbeddingScheme(ctx, ix.embedder.Scheme()); err != nil {
		return Report{}, fmt.Errorf("recording embedding scheme: %w", err)
	}

	var (
		mu       sync.Mutex
		report   Report
		failures = func(id string, err error) {
			mu.Lock()
			report.Failures = append(report.Failures, UnitError{ID: id, Err: err})
			mu.Unlock()
		}
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for _, article := range articles {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}

			vec, err := ix.embedder.Embed(gCtx, article.Text)
			if err != nil {
				failures(article.ID, fmt.Errorf("embedding: %w", err))
				return nil
			}

			rec := retrieval.Record{
				ID:            article.ID,
				ArticleNumber: article.Number,
				Title:         article.Title,
				Text:          article.Text,
				SourceLink:    article.SourceLink,
				Embedding:     vec,
				IndexedAt:     time.Now().UTC(),
			}
			if err := ix.store.Upsert(gCtx, []retrieval.Record{rec}); err != nil {
				failures(article.ID, fmt.Errorf("upserting: %w", err))
				return nil
			}

			mu.Lock()
			report.Indexed++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("indexing aborted: %w", err)
	}

	// Stable failure order for reporting.
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].ID < report.Failures[j].ID
	})

	if len(report.Failures) > 0 {
		ix.logger.Warn("indexing completed with failures",
			"indexed", report.Indexed,
			"failed", len(report.Failures),
		)
	} else {
		ix.logger.Info("indexing complete", "indexed", report.Indexed, "scheme", ix.embedder.Scheme())
	}

	return report, nil
}
