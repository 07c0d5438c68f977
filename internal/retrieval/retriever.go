package retrieval

import (
	"context"
	"fmt"
)

// Hit is one retrieved article with its similarity score and 1-based rank.
type Hit struct {
	ID            string  `json:"id"`
	ArticleNumber int     `json:"article"`
	Title         string  `json:"title"`
	Text          string  `json:"text"`
	SourceLink    string  `json:"source_link"`
	Score         float32 `json:"score"`
	Rank          int     `json:"rank"`
}

// Retriever combines embedding and vector search to find the articles most
// relevant to a citizen's question.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
	minScore float32
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
// Hits scoring below minScore are dropped; pass 0 to disable the floor.
func NewRetriever(embedder *Embedder, store VectorStore, minScore float32) *Retriever {
	return &Retriever{embedder: embedder, store: store, minScore: minScore}
}

// VerifyScheme checks that the index was built with the retriever's embedding
// scheme. A mismatch silently degrades relevance with no error signal at
// query time, so it is rejected up front. An empty index (no recorded scheme)
// passes.
func (r *Retriever) VerifyScheme(ctx context.Context) error {
	stored, err := r.store.EmbeddingScheme(ctx)
	if err != nil {
		return fmt.Errorf("reading embedding scheme: %w", err)
	}
	if stored != "" && stored != r.embedder.Scheme() {
		return fmt.Errorf("index embedded with scheme %q but retriever uses %q; re-index the corpus", stored, r.embedder.Scheme())
	}
	return nil
}

// Retrieve embeds the question and returns the top-K most similar articles
// ranked by score descending. An empty corpus or zero qualifying hits yields
// an empty slice, not an error: callers treat "no grounding available" as a
// first-class outcome.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	scored, err := r.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	hits := make([]Hit, 0, len(scored))
	for _, s := range scored {
		if s.Score < r.minScore {
			// Search results are score-descending, so nothing after this
			// qualifies either.
			break
		}
		hits = append(hits, Hit{
			ID:            s.ID,
			ArticleNumber: s.ArticleNumber,
			Title:         s.Title,
			Text:          s.Text,
			SourceLink:    s.SourceLink,
			Score:         s.Score,
			Rank:          len(hits) + 1,
		})
	}
	return hits, nil
}

// GetArticle returns one indexed article by its stable ID.
func (r *Retriever) GetArticle(ctx context.Context, id string) (Hit, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return Hit{}, err
	}
	return Hit{
		ID:            rec.ID,
		ArticleNumber: rec.ArticleNumber,
		Title:         rec.Title,
		Text:          rec.Text,
		SourceLink:    rec.SourceLink,
	}, nil
}
