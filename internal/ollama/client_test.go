package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerate(t *testing.T) {
	var gotModel, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		gotModel = req.Model
		gotPrompt = req.Prompt
		if req.Stream {
			t.Error("expected stream=false")
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "hola"})
	}))
	defer srv.Close()

	client := New(srv.URL)
	out, err := client.Generate(context.Background(), "mistral-nemo", "saluda")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "hola" {
		t.Errorf("response = %q, want %q", out, "hola")
	}
	if gotModel != "mistral-nemo" || gotPrompt != "saluda" {
		t.Errorf("request = (%q, %q)", gotModel, gotPrompt)
	}
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL)
	if _, err := client.Generate(context.Background(), "m", "p"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string][][]float32{
			"embeddings": {{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	client := New(srv.URL)
	vec, err := client.Embed(context.Background(), "nomic-embed-text", "texto")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("len(vec) = %d, want 3", len(vec))
	}
}

func TestEmbedEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][][]float32{"embeddings": {}})
	}))
	defer srv.Close()

	client := New(srv.URL)
	if _, err := client.Embed(context.Background(), "m", "t"); err == nil {
		t.Fatal("expected error on empty embeddings")
	}
}

func TestHasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{
				{"name": "mistral-nemo:latest"},
				{"name": "nomic-embed-text:latest"},
			},
		})
	}))
	defer srv.Close()

	client := New(srv.URL)
	tests := []struct {
		name string
		want bool
	}{
		{"mistral-nemo", true},
		{"mistral-nemo:latest", true},
		{"nomic-embed-text", true},
		{"llama3", false},
	}
	for _, tt := range tests {
		if got := client.HasModel(context.Background(), tt.name); got != tt.want {
			t.Errorf("HasModel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	client := New(srv.URL)
	if !client.IsRunning(context.Background()) {
		t.Error("expected running")
	}
	srv.Close()
	if client.IsRunning(context.Background()) {
		t.Error("expected not running after close")
	}
}
