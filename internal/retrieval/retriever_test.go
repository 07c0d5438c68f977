package retrieval

import (
	"context"
	"fmt"
	"testing"
)

// fakeEmbeddingClient returns a fixed vector and counts calls.
type fakeEmbeddingClient struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbeddingClient) Embed(_ context.Context, model, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

// fakeVectorStore serves canned search results.
type fakeVectorStore struct {
	results []ScoredRecord
	scheme  string
	err     error
}

func (f *fakeVectorStore) Upsert(context.Context, []Record) error { return f.err }
func (f *fakeVectorStore) Search(_ context.Context, _ []float32, topK int) ([]ScoredRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > topK {
		return f.results[:topK], nil
	}
	return f.results, nil
}
func (f *fakeVectorStore) Get(_ context.Context, id string) (Record, error) {
	for _, r := range f.results {
		if r.ID == id {
			return r.Record, nil
		}
	}
	return Record{}, ErrNotFound
}
func (f *fakeVectorStore) Count(context.Context) (int, error) { return len(f.results), nil }
func (f *fakeVectorStore) EmbeddingScheme(context.Context) (string, error) {
	return f.scheme, nil
}
func (f *fakeVectorStore) SetEmbeddingScheme(_ context.Context, s string) error {
	f.scheme = s
	return nil
}

func scoredRecord(id string, number int, score float32) ScoredRecord {
	return ScoredRecord{
		Record: Record{ID: id, ArticleNumber: number, Text: "texto", SourceLink: "https://actpanama.org/constitucion/" + id},
		Score:  score,
	}
}

func TestRetrieveRanksHits(t *testing.T) {
	store := &fakeVectorStore{results: []ScoredRecord{
		scoredRecord("articulo-21", 21, 0.91),
		scoredRecord("articulo-22", 22, 0.74),
		scoredRecord("articulo-17", 17, 0.55),
	}}
	r := NewRetriever(NewEmbedder(&fakeEmbeddingClient{vec: []float32{1}}, "nomic-embed-text"), store, 0)

	hits, err := r.Retrieve(context.Background(), "¿puedo ser detenido sin orden?", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	for i, h := range hits {
		if h.Rank != i+1 {
			t.Errorf("hit %d has rank %d", i, h.Rank)
		}
	}
	if hits[0].ID != "articulo-21" {
		t.Errorf("expected highest score first, got %q", hits[0].ID)
	}
}

func TestRetrieveMinScoreFloor(t *testing.T) {
	store := &fakeVectorStore{results: []ScoredRecord{
		scoredRecord("articulo-21", 21, 0.91),
		scoredRecord("articulo-22", 22, 0.40),
		scoredRecord("articulo-17", 17, 0.10),
	}}
	r := NewRetriever(NewEmbedder(&fakeEmbeddingClient{vec: []float32{1}}, "m"), store, 0.5)

	hits, err := r.Retrieve(context.Background(), "pregunta", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit above the floor, got %d", len(hits))
	}
	if hits[0].ID != "articulo-21" {
		t.Errorf("unexpected hit %q", hits[0].ID)
	}
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	r := NewRetriever(NewEmbedder(&fakeEmbeddingClient{vec: []float32{1}}, "m"), &fakeVectorStore{}, 0)

	hits, err := r.Retrieve(context.Background(), "pregunta", 3)
	if err != nil {
		t.Fatalf("empty corpus must not be an error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestRetrieveRespectsK(t *testing.T) {
	store := &fakeVectorStore{results: []ScoredRecord{
		scoredRecord("articulo-1", 1, 0.9),
		scoredRecord("articulo-2", 2, 0.8),
		scoredRecord("articulo-3", 3, 0.7),
	}}
	r := NewRetriever(NewEmbedder(&fakeEmbeddingClient{vec: []float32{1}}, "m"), store, 0)

	for k := 1; k <= 5; k++ {
		hits, err := r.Retrieve(context.Background(), "pregunta", k)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) > k {
			t.Errorf("k=%d returned %d hits", k, len(hits))
		}
	}

	if _, err := r.Retrieve(context.Background(), "pregunta", 0); err == nil {
		t.Error("expected error for k=0")
	}
}

func TestRetrieveEmbedFailure(t *testing.T) {
	client := &fakeEmbeddingClient{err: fmt.Errorf("backend down")}
	r := NewRetriever(NewEmbedder(client, "m"), &fakeVectorStore{}, 0)

	if _, err := r.Retrieve(context.Background(), "pregunta", 3); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestVerifyScheme(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		model   string
		wantErr bool
	}{
		{"match", "nomic-embed-text", "nomic-embed-text", false},
		{"empty index", "", "nomic-embed-text", false},
		{"mismatch", "old-model", "nomic-embed-text", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeVectorStore{scheme: tt.stored}
			r := NewRetriever(NewEmbedder(&fakeEmbeddingClient{vec: []float32{1}}, tt.model), store, 0)
			err := r.VerifyScheme(context.Background())
			if tt.wantErr && err == nil {
				t.Error("expected scheme mismatch error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
