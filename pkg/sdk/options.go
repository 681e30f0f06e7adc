package panelscope

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	configFile string

	driver   string // "postgres" or "sqlite"
	dsn      string
	table    string
	idColumn string

	addrs     []string
	password  string
	keyPrefix string
	survey    string
	freeText  string

	apiKey      string
	baseURL     string
	model       string
	dimensions  int
	instruction string
	embedder    Embedder

	dailyTokens   int64
	monthlyTokens int64
	rejectOverrun bool

	logger     *slog.Logger
	engineLog  *zap.Logger
	metricsReg prometheus.Registerer
}

// WithConfigFile loads settings from a server configuration file.
// Other options are applied on top of it.
func WithConfigFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.configFile = path
	})
}

// WithPostgres reads panels from a PostgreSQL database.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "postgres"
		c.dsn = dsn
	})
}

// WithSQLite reads panels from a SQLite database file.
func WithSQLite(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "sqlite"
		c.dsn = dsn
	})
}

// WithPanelsTable names the panels table and its identifier column.
// Defaults: panels, panel_id.
func WithPanelsTable(table, idColumn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.table = table
		c.idColumn = idColumn
	})
}

// WithValkey connects the answer vectors store to a Valkey or Redis instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix sets the key prefix of cache and budget entries.
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithCollections names the survey and free-text answer indexes.
func WithCollections(survey, freeText string) Option {
	return optionFunc(func(c *clientConfig) {
		c.survey = survey
		c.freeText = freeText
	})
}

// WithOpenAI uses an OpenAI embedding model.
func WithOpenAI(apiKey, model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
		c.model = model
		c.dimensions = dimensions
	})
}

// WithEmbeddingBaseURL points the OpenAI client at a compatible endpoint.
func WithEmbeddingBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = url
	})
}

// WithQueryInstruction prepends text to every query before embedding.
func WithQueryInstruction(s string) Option {
	return optionFunc(func(c *clientConfig) {
		c.instruction = s
	})
}

// WithEmbedder replaces the OpenAI provider. dimensions must match the stored vectors.
func WithEmbedder(e Embedder, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.dimensions = dimensions
	})
}

// WithTokenBudget caps embedding tokens per UTC day and month. Zero is unlimited.
// With reject set, requests over the cap fail with ErrEmbeddingQuotaExceeded;
// otherwise they are only logged.
func WithTokenBudget(daily, monthly int64, reject bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.dailyTokens = daily
		c.monthlyTokens = monthly
		c.rejectOverrun = reject
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithEngineLogger passes a zap logger to the engine internals.
func WithEngineLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.engineLog = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
