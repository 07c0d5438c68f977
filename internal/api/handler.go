package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/actpanama/guillermo/internal/indexer"
	"github.com/actpanama/guillermo/internal/pipeline"
	"github.com/actpanama/guillermo/internal/retrieval"
	"github.com/actpanama/guillermo/internal/storage"
)

const maxAskBodySize = 1 << 20 // 1MB

// Asker answers citizen questions.
type Asker interface {
	Ask(ctx context.Context, sessionID, question string) (pipeline.Result, error)
	EndSession(sessionID string)
}

// VectorInspector exposes read-only index state for the stats endpoint.
type VectorInspector interface {
	Count(ctx context.Context) (int, error)
	EmbeddingScheme(ctx context.Context) (string, error)
}

// Reindexer rebuilds the article index from the corpus source.
type Reindexer func(ctx context.Context) (indexer.Report, error)

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Answerer Asker
	Vectors  VectorInspector
	Store    *storage.Store // optional; stats omit consultations when nil
	Reindex  Reindexer      // optional; /admin/reindex returns 503 when nil
	Token    string
}

// NewHandler builds the public router: the ask endpoint, health, and the
// token-guarded admin routes.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	r.Post("/v1/ask", handleAsk(deps))
	r.Delete("/v1/sessions/{id}", handleEndSession(deps))

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(BearerAuth(deps.Token))
		admin.Post("/reindex", handleReindex(deps))
		admin.Get("/stats", handleStats(deps))
		admin.Get("/consultations", handleConsultations(deps))
	})

	return r
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// ContextEntry describes one article the answer was grounded on.
type ContextEntry struct {
	ID         string  `json:"id"`
	Article    int     `json:"article"`
	Score      float32 `json:"score"`
	Rank       int     `json:"rank"`
	SourceLink string  `json:"source_link"`
}

// AskResponse is the body returned by POST /v1/ask.
type AskResponse struct {
	Answer    string         `json:"answer"`
	SessionID string         `json:"session_id"`
	Context   []ContextEntry `json:"context"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAskBodySize)
		defer r.Body.Close()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		result, err := deps.Answerer.Ask(r.Context(), req.SessionID, req.Question)
		switch {
		case errors.Is(err, pipeline.ErrEmptyQuestion):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		case errors.Is(err, pipeline.ErrUpstream):
			httpError(w, http.StatusBadGateway, "api_error", "the assistant is temporarily unavailable")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "answering failed: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, AskResponse{
			Answer:    result.Answer,
			SessionID: result.SessionID,
			Context:   toContextEntries(result.Context),
		})
	}
}

func toContextEntries(hits []retrieval.Hit) []ContextEntry {
	entries := make([]ContextEntry, len(hits))
	for i, h := range hits {
		entries[i] = ContextEntry{
			ID:         h.ID,
			Article:    h.ArticleNumber,
			Score:      h.Score,
			Rank:       h.Rank,
			SourceLink: h.SourceLink,
		}
	}
	return entries
}

func handleEndSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "session id is required")
			return
		}
		deps.Answerer.EndSession(id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{"status": "ok"}
		if deps.Vectors != nil {
			count, err := deps.Vectors.Count(r.Context())
			if err != nil {
				status["status"] = "degraded"
				status["index_error"] = err.Error()
			} else {
				status["indexed_articles"] = count
			}
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func handleReindex(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Reindex == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "reindexing is not configured")
			return
		}

		report, err := deps.Reindex(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reindex failed: %v", err)
			return
		}

		failures := make([]map[string]any, len(report.Failures))
		for i, f := range report.Failures {
			failures[i] = map[string]any{"id": f.ID, "error": f.Err.Error()}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"indexed":  report.Indexed,
			"failures": failures,
		})
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]any{}

		if deps.Vectors != nil {
			count, err := deps.Vectors.Count(r.Context())
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "counting articles: %v", err)
				return
			}
			stats["indexed_articles"] = count

			scheme, err := deps.Vectors.EmbeddingScheme(r.Context())
			if err == nil {
				stats["embedding_scheme"] = scheme
			}
		}

		if deps.Store != nil {
			count, err := deps.Store.CountConsultations()
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "counting consultations: %v", err)
				return
			}
			stats["consultations"] = count

			versions, err := deps.Store.AppliedMigrations()
			if err == nil && len(versions) > 0 {
				stats["schema_version"] = versions[len(versions)-1]
			}
		}

		writeJSON(w, http.StatusOK, stats)
	}
}

// ConsultationEntry is one row of the admin consultation log.
type ConsultationEntry struct {
	ID         string `json:"id"`
	CreatedAt  string `json:"created_at"`
	SessionID  string `json:"session_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	ContextIDs string `json:"context_ids"`
	Status     string `json:"status"`
}

const defaultConsultationLimit = 20

func handleConsultations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "consultation log is not configured")
			return
		}

		limit := defaultConsultationLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			limit = n
		}

		rows, err := deps.Store.GetRecentConsultations(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing consultations: %v", err)
			return
		}

		entries := make([]ConsultationEntry, len(rows))
		for i, c := range rows {
			entries[i] = ConsultationEntry{
				ID:         c.ID,
				CreatedAt:  c.CreatedAt.Format(time.RFC3339),
				SessionID:  c.SessionID,
				Question:   c.Question,
				Answer:     c.Answer,
				ContextIDs: c.ContextIDs,
				Status:     c.Status,
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"consultations": entries})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
