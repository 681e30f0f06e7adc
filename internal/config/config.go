package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the panelscope service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Relational RelationalConfig `yaml:"relational"`
	Vector     VectorConfig     `yaml:"vector"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Insights   InsightsConfig   `yaml:"insights"`
	Workers    WorkersConfig    `yaml:"workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. An empty list disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	RequestSec      int `yaml:"request_timeout_sec"`
}

// RelationalConfig holds panels database settings.
// DSN wins over the discrete connection fields when set.
type RelationalConfig struct {
	Driver              string `yaml:"driver"` // postgres, sqlite (default: postgres)
	DSN                 string `yaml:"dsn"`
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	User                string `yaml:"user"`
	Password            string `yaml:"password"`
	Database            string `yaml:"database"`
	SSLMode             string `yaml:"sslmode"`
	Table               string `yaml:"table"`
	IDColumn            string `yaml:"id_column"`
	MaxOpenConns        int    `yaml:"max_open_conns"`
	MaxIdleConns        int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec  int    `yaml:"conn_max_lifetime_sec"`
	StatementTimeoutMs  int    `yaml:"statement_timeout_ms"`
	ReadinessTimeoutSec int    `yaml:"readiness_timeout_sec"`
	FetchChunk          int    `yaml:"fetch_chunk"`
}

// ConnString returns the DSN, building a postgres URL from the discrete fields when needed.
func (r RelationalConfig) ConnString() string {
	if r.DSN != "" || r.Driver == "sqlite" {
		return r.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(r.Host, strconv.Itoa(r.Port)),
		Path:   "/" + r.Database,
	}
	if r.User != "" {
		u.User = url.UserPassword(r.User, r.Password)
	}
	if r.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {r.SSLMode}}.Encode()
	}
	return u.String()
}

// ConnMaxLifetime returns the connection lifetime as a duration.
func (r RelationalConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(r.ConnMaxLifetimeSec) * time.Second
}

// StatementTimeout returns the per-statement timeout as a duration.
func (r RelationalConfig) StatementTimeout() time.Duration {
	return time.Duration(r.StatementTimeoutMs) * time.Millisecond
}

// VectorConfig holds vector store (Valkey / Redis with search) settings.
type VectorConfig struct {
	Addrs               []string          `yaml:"addrs"`
	Username            string            `yaml:"username"`
	Password            string            `yaml:"password"`
	KeyPrefix           string            `yaml:"key_prefix"`
	ReadinessTimeoutSec int               `yaml:"readiness_timeout_sec"`
	Collections         CollectionsConfig `yaml:"collections"`
	EnsureIndexes       bool              `yaml:"ensure_indexes"`
	HNSWM               int               `yaml:"hnsw_m"`
	HNSWEFConstruct     int               `yaml:"hnsw_ef_construction"`
}

// CollectionsConfig names the two physical answer collections.
type CollectionsConfig struct {
	Survey   string `yaml:"survey"`
	FreeText string `yaml:"freetext"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider         string       `yaml:"provider"`
	APIKey           string       `yaml:"api_key"`
	BaseURL          string       `yaml:"base_url"`
	Model            string       `yaml:"model"`
	Dimensions       int          `yaml:"dimensions"`
	User             string       `yaml:"user"`
	MaxBatch         int          `yaml:"max_batch"`
	QueryInstruction string       `yaml:"query_instruction"`
	Cache            CacheConfig  `yaml:"cache"`
	Budget           BudgetConfig `yaml:"budget"`
}

// BudgetConfig caps embedding tokens per UTC day and month. Zero limits are unlimited.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"`
	Action            string `yaml:"action"` // warn (default) or reject
}

// Enabled reports whether any limit is set.
func (b BudgetConfig) Enabled() bool {
	return b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"`
}

// RetrievalConfig holds hybrid retrieval thresholds and bounds.
type RetrievalConfig struct {
	NegativeThreshold float64 `yaml:"negative_threshold"`
	MinSimilarity     float64 `yaml:"min_similarity"`
	SearchK           int     `yaml:"search_k"`
	MaxLimit          int     `yaml:"max_limit"` // caps an explicit intent limit
	ScopeChunk        int     `yaml:"scope_chunk"`
	ScopeParallelism  int     `yaml:"scope_parallelism"`
	MaxColumns        int     `yaml:"max_columns"`
}

// InsightsConfig holds chart selection thresholds.
type InsightsConfig struct {
	SkewThreshold float64 `yaml:"skew_threshold"`
	DiscoveryLow  float64 `yaml:"discovery_low"`
	DiscoveryHigh float64 `yaml:"discovery_high"`
	MinCharts     int     `yaml:"min_charts"`
	DerivedRatio  float64 `yaml:"derived_ratio"`
}

// WorkersConfig sizes the CPU offload pool.
type WorkersConfig struct {
	Size int `yaml:"size"` // default: GOMAXPROCS
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.RequestSec <= 0 {
		c.HTTP.RequestSec = 25
	}

	r := &c.Relational
	if r.Driver == "" {
		r.Driver = "postgres"
	}
	if r.Port <= 0 {
		r.Port = 5432
	}
	if r.Table == "" {
		r.Table = "panels"
	}
	if r.IDColumn == "" {
		r.IDColumn = "panel_id"
	}
	if r.MaxOpenConns <= 0 {
		r.MaxOpenConns = 10
	}
	if r.MaxIdleConns <= 0 {
		r.MaxIdleConns = 5
	}
	if r.ConnMaxLifetimeSec <= 0 {
		r.ConnMaxLifetimeSec = 300
	}
	if r.StatementTimeoutMs <= 0 {
		r.StatementTimeoutMs = 5000
	}
	if r.ReadinessTimeoutSec <= 0 {
		r.ReadinessTimeoutSec = 10
	}
	if r.FetchChunk <= 0 {
		r.FetchChunk = 500
	}

	v := &c.Vector
	if v.KeyPrefix == "" {
		v.KeyPrefix = "panelscope:"
	}
	if v.ReadinessTimeoutSec <= 0 {
		v.ReadinessTimeoutSec = 10
	}
	if v.Collections.Survey == "" {
		v.Collections.Survey = "survey_answers"
	}
	if v.Collections.FreeText == "" {
		v.Collections.FreeText = "panel_profiles"
	}
	if v.HNSWM <= 0 {
		v.HNSWM = 16
	}
	if v.HNSWEFConstruct <= 0 {
		v.HNSWEFConstruct = 200
	}

	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = "openai"
	}
	if e.MaxBatch <= 0 {
		e.MaxBatch = 256
	}
	if e.Cache.TTLSec <= 0 {
		e.Cache.TTLSec = 7 * 24 * 3600
	}

	rt := &c.Retrieval
	if rt.NegativeThreshold <= 0 {
		rt.NegativeThreshold = 0.8
	}
	if rt.MinSimilarity <= 0 {
		rt.MinSimilarity = 0.35
	}
	if rt.SearchK <= 0 {
		rt.SearchK = 5000
	}
	if rt.MaxLimit <= 0 {
		rt.MaxLimit = 5000
	}
	if rt.ScopeChunk <= 0 {
		rt.ScopeChunk = 500
	}
	if rt.ScopeParallelism <= 0 {
		rt.ScopeParallelism = 4
	}
	if rt.MaxColumns <= 0 {
		rt.MaxColumns = 12
	}

	in := &c.Insights
	if in.SkewThreshold <= 0 {
		in.SkewThreshold = 0.95
	}
	if in.DiscoveryLow <= 0 {
		in.DiscoveryLow = 0.40
	}
	if in.DiscoveryHigh <= 0 {
		in.DiscoveryHigh = 0.95
	}
	if in.MinCharts <= 0 {
		in.MinCharts = 5
	}
	if in.DerivedRatio <= 0 {
		in.DerivedRatio = 0.70
	}

	if c.Workers.Size <= 0 {
		c.Workers.Size = runtime.GOMAXPROCS(0)
	}
}

// maxScopeChunk mirrors the set-membership bound of a single vector-store tag filter.
const maxScopeChunk = 1024

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Relational.Driver {
	case "postgres":
		if c.Relational.DSN == "" && c.Relational.Host == "" {
			return fmt.Errorf("relational.dsn or relational.host is required")
		}
	case "sqlite":
		if c.Relational.DSN == "" {
			return fmt.Errorf("relational.dsn is required for sqlite")
		}
	default:
		return fmt.Errorf("relational.driver must be \"postgres\" or \"sqlite\", got %q", c.Relational.Driver)
	}

	if len(c.Vector.Addrs) == 0 {
		return fmt.Errorf("vector.addrs is required")
	}
	if c.Vector.Collections.Survey == c.Vector.Collections.FreeText {
		return fmt.Errorf("vector.collections.survey and vector.collections.freetext must differ")
	}

	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
	default:
		return fmt.Errorf("embedding.budget.action must be \"warn\" or \"reject\", got %q", c.Embedding.Budget.Action)
	}
	if c.Embedding.Budget.DailyTokenLimit < 0 || c.Embedding.Budget.MonthlyTokenLimit < 0 {
		return fmt.Errorf("embedding.budget limits must not be negative")
	}

	for name, v := range map[string]float64{
		"retrieval.negative_threshold": c.Retrieval.NegativeThreshold,
		"retrieval.min_similarity":     c.Retrieval.MinSimilarity,
		"insights.skew_threshold":      c.Insights.SkewThreshold,
		"insights.discovery_low":       c.Insights.DiscoveryLow,
		"insights.discovery_high":      c.Insights.DiscoveryHigh,
		"insights.derived_ratio":       c.Insights.DerivedRatio,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", name, v)
		}
	}
	if c.Insights.DiscoveryLow >= c.Insights.DiscoveryHigh {
		return fmt.Errorf("insights.discovery_low (%v) must be below discovery_high (%v)",
			c.Insights.DiscoveryLow, c.Insights.DiscoveryHigh)
	}
	if c.Retrieval.ScopeChunk > maxScopeChunk {
		return fmt.Errorf("retrieval.scope_chunk must be at most %d, got %d", maxScopeChunk, c.Retrieval.ScopeChunk)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
