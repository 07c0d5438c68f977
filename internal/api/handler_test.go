package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/actpanama/guillermo/internal/indexer"
	"github.com/actpanama/guillermo/internal/pipeline"
	"github.com/actpanama/guillermo/internal/retrieval"
	"github.com/actpanama/guillermo/internal/storage"
)

const testToken = "test-token-12345"

type fakeAsker struct {
	result pipeline.Result
	err    error
	ended  []string
}

func (f *fakeAsker) Ask(ctx context.Context, sessionID, question string) (pipeline.Result, error) {
	if f.err != nil {
		return pipeline.Result{}, f.err
	}
	res := f.result
	if res.SessionID == "" {
		res.SessionID = sessionID
	}
	return res, nil
}

func (f *fakeAsker) EndSession(id string) { f.ended = append(f.ended, id) }

type fakeVectors struct {
	count  int
	scheme string
	err    error
}

func (f *fakeVectors) Count(ctx context.Context) (int, error) {
	return f.count, f.err
}

func (f *fakeVectors) EmbeddingScheme(ctx context.Context) (string, error) {
	return f.scheme, f.err
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAsk_Success(t *testing.T) {
	asker := &fakeAsker{result: pipeline.Result{
		SessionID: "s-1",
		Answer:    "El Artículo 32 garantiza el debido proceso.",
		Context: []retrieval.Hit{
			{ID: "articulo-32", ArticleNumber: 32, Score: 0.91, Rank: 1, SourceLink: "https://example.org/constitucion/articulo-32"},
		},
	}}
	h := NewHandler(Deps{Answerer: asker, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/ask", `{"question":"¿Qué es el debido proceso?"}`, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var resp AskResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.SessionID != "s-1" {
		t.Errorf("session_id = %q", resp.SessionID)
	}
	if len(resp.Context) != 1 || resp.Context[0].Article != 32 || resp.Context[0].Rank != 1 {
		t.Errorf("context = %+v", resp.Context)
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	asker := &fakeAsker{err: pipeline.ErrEmptyQuestion}
	h := NewHandler(Deps{Answerer: asker, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/ask", `{"question":""}`, ""))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body = %s", rr.Code, rr.Body.String())
	}
}

func TestAsk_InvalidBody(t *testing.T) {
	h := NewHandler(Deps{Answerer: &fakeAsker{}, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/ask", `{not json`, ""))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAsk_UpstreamFailure(t *testing.T) {
	asker := &fakeAsker{err: pipeline.ErrUpstream}
	h := NewHandler(Deps{Answerer: asker, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/ask", `{"question":"¿Qué dice?"}`, ""))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502; body = %s", rr.Code, rr.Body.String())
	}
}

func TestEndSession(t *testing.T) {
	asker := &fakeAsker{}
	h := NewHandler(Deps{Answerer: asker, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodDelete, "/v1/sessions/s-9", "", ""))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if len(asker.ended) != 1 || asker.ended[0] != "s-9" {
		t.Errorf("ended = %v", asker.ended)
	}
}

func TestHealth(t *testing.T) {
	h := NewHandler(Deps{Answerer: &fakeAsker{}, Vectors: &fakeVectors{count: 336}, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/health", "", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if body["indexed_articles"] != float64(336) {
		t.Errorf("indexed_articles = %v", body["indexed_articles"])
	}
}

func TestHealth_DegradedOnIndexError(t *testing.T) {
	h := NewHandler(Deps{Answerer: &fakeAsker{}, Vectors: &fakeVectors{err: errors.New("locked")}, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/health", "", ""))

	var body map[string]any
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
}

func TestAdmin_RequiresToken(t *testing.T) {
	h := NewHandler(Deps{Answerer: &fakeAsker{}, Token: testToken})

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"wrong token", "nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, authReq(http.MethodGet, "/admin/stats", "", tt.token))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestAdminReindex(t *testing.T) {
	reindexed := false
	h := NewHandler(Deps{
		Answerer: &fakeAsker{},
		Token:    testToken,
		Reindex: func(ctx context.Context) (indexer.Report, error) {
			reindexed = true
			return indexer.Report{Indexed: 336}, nil
		},
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/admin/reindex", "", testToken))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if !reindexed {
		t.Error("reindex callback not invoked")
	}
	var body map[string]any
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body["indexed"] != float64(336) {
		t.Errorf("indexed = %v", body["indexed"])
	}
}

func TestAdminReindex_NotConfigured(t *testing.T) {
	h := NewHandler(Deps{Answerer: &fakeAsker{}, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/admin/reindex", "", testToken))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestAdminStats(t *testing.T) {
	h := NewHandler(Deps{
		Answerer: &fakeAsker{},
		Vectors:  &fakeVectors{count: 336, scheme: "nomic-embed-text"},
		Token:    testToken,
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/admin/stats", "", testToken))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body["indexed_articles"] != float64(336) {
		t.Errorf("indexed_articles = %v", body["indexed_articles"])
	}
	if body["embedding_scheme"] != "nomic-embed-text" {
		t.Errorf("embedding_scheme = %v", body["embedding_scheme"])
	}
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAdminStats_SchemaVersion(t *testing.T) {
	h := NewHandler(Deps{Answerer: &fakeAsker{}, Store: openTestStore(t), Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/admin/stats", "", testToken))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	json.Unmarshal(rr.Body.Bytes(), &body)
	v, ok := body["schema_version"].(float64)
	if !ok || v < 1 {
		t.Errorf("schema_version = %v", body["schema_version"])
	}
	if body["consultations"] != float64(0) {
		t.Errorf("consultations = %v", body["consultations"])
	}
}

func TestAdminConsultations(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, q := range []string{"¿Qué dice el Artículo 17?", "¿Quién nombra a los magistrados?", "¿Cómo se reforma la Constitución?"} {
		err := store.SaveConsultation(storage.Consultation{
			ID:         "c-" + string(rune('a'+i)),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			SessionID:  "s-1",
			Question:   q,
			Answer:     "respuesta",
			ContextIDs: `["articulo-17"]`,
			Status:     "answered",
		})
		if err != nil {
			t.Fatalf("saving consultation: %v", err)
		}
	}
	h := NewHandler(Deps{Answerer: &fakeAsker{}, Store: store, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/admin/consultations?limit=2", "", testToken))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Consultations []ConsultationEntry `json:"consultations"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Consultations) != 2 {
		t.Fatalf("got %d consultations, want 2", len(body.Consultations))
	}
	if body.Consultations[0].ID != "c-c" {
		t.Errorf("newest first: got %q", body.Consultations[0].ID)
	}
	if body.Consultations[0].Status != "answered" {
		t.Errorf("status = %q", body.Consultations[0].Status)
	}
}

func TestAdminConsultations_BadLimit(t *testing.T) {
	h := NewHandler(Deps{Answerer: &fakeAsker{}, Store: openTestStore(t), Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/admin/consultations?limit=zero", "", testToken))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAdminConsultations_NotConfigured(t *testing.T) {
	h := NewHandler(Deps{Answerer: &fakeAsker{}, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/admin/consultations", "", testToken))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}
