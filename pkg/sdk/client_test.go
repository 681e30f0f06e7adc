package panelscope

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew_NoDatabase(t *testing.T) {
	_, err := New(context.Background(), WithValkey("localhost:6379", ""))
	if err == nil || !strings.Contains(err.Error(), "panels database required") {
		t.Fatalf("err = %v", err)
	}
}

func TestNew_NoVectorStore(t *testing.T) {
	_, err := New(context.Background(), WithPostgres("postgres://localhost/panels"))
	if err == nil || !strings.Contains(err.Error(), "vector store address required") {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildConfig_FromOptions(t *testing.T) {
	cc := &clientConfig{}
	for _, o := range []Option{
		WithSQLite("file:panels.db"),
		WithPanelsTable("respondents", "rid"),
		WithValkey("localhost:6379", "secret"),
		WithKeyPrefix("ps:"),
		WithCollections("answers", "profiles"),
		WithOpenAI("sk-test", "text-embedding-3-small", 1536),
		WithQueryInstruction("query: "),
		WithTokenBudget(1000, 0, true),
	} {
		o.apply(cc)
	}

	cfg, err := buildConfig(cc)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Relational.Driver != "sqlite" || cfg.Relational.Table != "respondents" || cfg.Relational.IDColumn != "rid" {
		t.Errorf("relational = %+v", cfg.Relational)
	}
	if cfg.Vector.Password != "secret" || cfg.Vector.KeyPrefix != "ps:" || cfg.Vector.Collections.FreeText != "profiles" {
		t.Errorf("vector = %+v", cfg.Vector)
	}
	if cfg.Embedding.Dimensions != 1536 || cfg.Embedding.QueryInstruction != "query: " {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if cfg.Embedding.Budget.Action != "reject" || !cfg.Embedding.Budget.Enabled() {
		t.Errorf("budget = %+v", cfg.Embedding.Budget)
	}
	// defaults still apply
	if cfg.Retrieval.NegativeThreshold == 0 || cfg.Insights.MinCharts == 0 {
		t.Error("defaults not applied")
	}
}

func TestBuildConfig_CustomEmbedderNeedsNoModel(t *testing.T) {
	cc := &clientConfig{}
	WithPostgres("postgres://localhost/panels").apply(cc)
	WithValkey("localhost:6379", "").apply(cc)
	WithEmbedder(&mockEmbedder{}, 768).apply(cc)

	cfg, err := buildConfig(cc)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Embedding.Model == "" || cfg.Embedding.Dimensions != 768 {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
}

func TestBuildConfig_InvalidFails(t *testing.T) {
	cc := &clientConfig{}
	WithPostgres("postgres://localhost/panels").apply(cc)
	WithValkey("localhost:6379", "").apply(cc)
	// no model, no embedder
	if _, err := buildConfig(cc); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildConfig_FileWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdk.yaml")
	data := `
http:
  port: 8080
relational:
  driver: postgres
  host: db.internal
  database: panels
vector:
  addrs: ["vec:6379"]
embedding:
  model: text-embedding-3-small
  dimensions: 1536
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cc := &clientConfig{}
	WithConfigFile(path).apply(cc)
	WithValkey("override:6379", "").apply(cc)

	cfg, err := buildConfig(cc)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Relational.Host != "db.internal" {
		t.Errorf("host = %q", cfg.Relational.Host)
	}
	if cfg.Vector.Addrs[0] != "override:6379" {
		t.Errorf("addrs = %v, want option override", cfg.Vector.Addrs)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}
	logger := slog.Default()
	WithLogger(logger).apply(cfg)
	if cfg.logger != logger {
		t.Error("expected logger to be set")
	}

	reg := prometheus.NewRegistry()
	WithPrometheus(reg).apply(cfg)
	if cfg.metricsReg != reg {
		t.Error("expected metricsReg to be set")
	}

	WithEmbeddingBaseURL("http://localhost:8000/v1").apply(cfg)
	if cfg.baseURL != "http://localhost:8000/v1" {
		t.Errorf("baseURL = %q", cfg.baseURL)
	}
}

func TestClient_Close_NoResources(t *testing.T) {
	c := &Client{}
	c.Close()
}

func TestEmbedderAdapter(t *testing.T) {
	mock := &mockEmbedder{
		fn: func(_ context.Context, text string) (EmbeddingResult, error) {
			return EmbeddingResult{Embedding: []float32{1, 2, 3}, PromptTokens: 5, TotalTokens: 10}, nil
		},
	}
	result, err := (&embedderAdapter{inner: mock}).Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.TotalTokens != 10 {
		t.Errorf("result = %+v", result)
	}
}

func TestEmbedderAdapter_Error(t *testing.T) {
	mock := &mockEmbedder{
		fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			return EmbeddingResult{}, errors.New("provider down")
		},
	}
	if _, err := (&embedderAdapter{inner: mock}).Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error from adapter")
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("resolve", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("resolve", time.Now(), ErrStoreUnavailable)
	obs.observe("resolve", time.Now(), ErrStoreUnavailable)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "panelscope_sdk_operations_total" {
			found = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 metric samples, got %d", len(f.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("panelscope_sdk_operations_total not found")
	}
}

func TestObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatal(err)
	}
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("second client on the same registry: %v", err)
	}
}

func TestObserver_WithLogger(t *testing.T) {
	obs, err := newObserver(slog.Default(), nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("test.op", time.Now(), nil, "count", 3)
	obs.observe("test.op", time.Now(), errors.New("test error"))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrInvalidIntent, "invalid"},
		{&FilterError{Field: "x", Err: ErrInvalidFilterField}, "invalid"},
		{ErrEmbeddingQuotaExceeded, "quota"},
		{ErrEmbeddingFailure, "embedding"},
		{ErrReloadFailure, "unavailable"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}
