package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type embeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// openaiEmbeddingResponse mirrors the OpenAI-compatible API embedding response.
type openaiEmbeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingItem `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Input []string `json:"input"`
}

func writeEmbeddings(w http.ResponseWriter, tokens int, items ...embeddingItem) {
	resp := openaiEmbeddingResponse{Object: "list", Model: "test-model", Data: items}
	resp.Usage.PromptTokens = tokens
	resp.Usage.TotalTokens = tokens
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestEmbedder(url string, maxBatch int) *Embedder {
	return NewEmbedder(&Config{
		APIKey:   "test-key",
		BaseURL:  url,
		Model:    "test-model",
		Provider: "test",
		MaxBatch: maxBatch,
		Logger:   zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	expectedVec := []float32{0.1, 0.2, 0.3, 0.4}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		writeEmbeddings(w, 42, embeddingItem{Object: "embedding", Embedding: expectedVec})
	}))
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "test-model",
		Dimensions: 4,
		Provider:   "test",
		Logger:     zap.NewNop(),
	})

	result, err := emb.Embed(context.Background(), "watches OTT frequently")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(result.Embedding) != len(expectedVec) {
		t.Fatalf("expected %d dimensions, got %d", len(expectedVec), len(result.Embedding))
	}
	for i, v := range result.Embedding {
		if v != expectedVec[i] {
			t.Errorf("vec[%d] = %f, expected %f", i, v, expectedVec[i])
		}
	}
	if result.PromptTokens != 42 || result.TotalTokens != 42 {
		t.Errorf("usage = %d/%d, expected 42/42", result.PromptTokens, result.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed_RestoresOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEmbeddings(w, 20,
			embeddingItem{Object: "embedding", Embedding: []float32{0.3, 0.4}, Index: 1},
			embeddingItem{Object: "embedding", Embedding: []float32{0.1, 0.2}, Index: 0},
		)
	}))
	defer server.Close()

	result, err := newTestEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"owns a cat", "smokes"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}
	if len(result.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(result.Embeddings))
	}
	if result.Embeddings[0][0] != 0.1 || result.Embeddings[1][0] != 0.3 {
		t.Errorf("order not restored: %v", result.Embeddings)
	}
	if result.TotalTokens != 20 {
		t.Errorf("expected TotalTokens=20, got %d", result.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed_SplitsByMaxBatch(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		items := make([]embeddingItem, len(req.Input))
		for i, in := range req.Input {
			items[i] = embeddingItem{Object: "embedding", Embedding: []float32{float32(len(in))}, Index: i}
		}
		writeEmbeddings(w, len(req.Input), items...)
	}))
	defer server.Close()

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	result, err := newTestEmbedder(server.URL, 2).BatchEmbed(context.Background(), texts)
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, expected 3", got)
	}
	for i, vec := range result.Embeddings {
		if int(vec[0]) != len(texts[i]) {
			t.Errorf("embedding %d = %v, expected %d", i, vec, len(texts[i]))
		}
	}
	if result.TotalTokens != 5 {
		t.Errorf("TotalTokens = %d, expected 5", result.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed_Empty(t *testing.T) {
	result, err := newTestEmbedder("http://unused", 0).BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embeddings != nil {
		t.Errorf("expected nil embeddings for empty input, got %v", result.Embeddings)
	}
}

func TestEmbedder_BatchEmbed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// one vector for two inputs
		writeEmbeddings(w, 5, embeddingItem{Object: "embedding", Embedding: []float32{0.1}})
	}))
	defer server.Close()

	_, err := newTestEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected ErrEmbeddingFailure, got %v", err)
	}
}

func TestEmbedder_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "rate limit exceeded",
				"type":    "rate_limit_error",
			},
		})
	}))
	defer server.Close()

	_, err := newTestEmbedder(server.URL, 0).Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected ErrEmbeddingFailure for 429, got %v", err)
	}
}

func TestExtractDetail(t *testing.T) {
	if got := extractDetail([]byte(`{"detail":"model not loaded"}`)); got != "model not loaded" {
		t.Errorf("extractDetail = %q", got)
	}
	if got := extractDetail([]byte(`not json`)); got != "" {
		t.Errorf("extractDetail(garbage) = %q", got)
	}
}
