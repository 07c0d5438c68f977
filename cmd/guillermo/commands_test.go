package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAskRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/ask": `{"answer":"El Artículo 32 garantiza el debido proceso.","session_id":"s-1","context":[{"id":"articulo-32","article":32,"score":0.91,"rank":1,"source_link":"https://example.org/constitucion/articulo-32"}]}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/v1/ask", map[string]string{
		"question":   "¿Qué es el debido proceso?",
		"session_id": "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Answer    string `json:"answer"`
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.SessionID != "s-1" {
		t.Errorf("session_id = %q", result.SessionID)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/v1/ask" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	if r.Auth != "" {
		t.Errorf("ask must not carry the admin token, got %q", r.Auth)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["question"] != "¿Qué es el debido proceso?" {
		t.Errorf("body.question = %q", body["question"])
	}
}

func TestAdminRequestCarriesToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /admin/reindex": `{"indexed":336,"failures":[]}`,
	})

	client := ts.client()
	resp, err := client.adminPost(ctx, "/admin/reindex", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result map[string]any
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["indexed"] != float64(336) {
		t.Errorf("indexed = %v", result["indexed"])
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", ts.requests[0].Auth)
	}
}

func TestDecodeJSONServerError(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().get(ctx, "/v1/nothing")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	var v any
	if err := decodeJSON(resp, &v); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestAskCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ask"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for missing question")
	}
}
