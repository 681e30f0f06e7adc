package panelscope

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/bootstrap"
	"github.com/kailas-cloud/panelscope/internal/config"
	"github.com/kailas-cloud/panelscope/internal/domain/chart"
	"github.com/kailas-cloud/panelscope/internal/domain/intent"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	"github.com/kailas-cloud/panelscope/internal/usecase/engine"
)

const closeTimeout = 10 * time.Second

// Internal interfaces for substitution in tests.
type resolveUseCase interface {
	Resolve(ctx context.Context, in intent.QueryIntent) (record.FinalRecordSet, error)
	ResolvePopulation(ctx context.Context, in intent.QueryIntent) (population, page record.FinalRecordSet, err error)
}

type insightUseCase interface {
	Generate(ctx context.Context, records []record.Record, in intent.QueryIntent, minCharts int) ([]chart.Spec, error)
}

type reloadUseCase interface {
	Reload(ctx context.Context) (*engine.Handles, error)
}

// Client is the panelscope SDK entry point.
type Client struct {
	resolver  resolveUseCase
	insights  insightUseCase
	reloader  reloadUseCase
	healthSvc healthUseCase
	usageSvc  usageUseCase
	closer    func() error
	obs       *observer
}

// New connects to the stores and builds the engine.
// The provided context bounds the initial readiness checks.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}

	cfg, err := buildConfig(cc)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	var bopts []bootstrap.Option
	if cc.embedder != nil {
		bopts = append(bopts, bootstrap.WithEmbedder(&embedderAdapter{inner: cc.embedder}))
	}
	logger := cc.engineLog
	if logger == nil {
		logger = zap.NewNop()
	}

	app, err := bootstrap.Build(ctx, cfg, logger, bopts...)
	if err != nil {
		return nil, fmt.Errorf("panelscope: %w", err)
	}

	return &Client{
		resolver:  app.Retrieval,
		insights:  app.Insights,
		reloader:  app.Manager,
		healthSvc: app.Health,
		usageSvc:  app.Usage,
		closer:    func() error { return app.Close(closeTimeout) },
		obs:       obs,
	}, nil
}

// buildConfig turns options into the engine configuration.
func buildConfig(cc *clientConfig) (config.Config, error) {
	var cfg config.Config
	if cc.configFile != "" {
		loaded, err := config.LoadFile(cc.configFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("panelscope: %w", err)
		}
		cfg = loaded
	}

	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&cfg.Relational.Driver, cc.driver)
	setString(&cfg.Relational.DSN, cc.dsn)
	setString(&cfg.Relational.Table, cc.table)
	setString(&cfg.Relational.IDColumn, cc.idColumn)
	if len(cc.addrs) > 0 {
		cfg.Vector.Addrs = cc.addrs
		cfg.Vector.Password = cc.password
	}
	setString(&cfg.Vector.KeyPrefix, cc.keyPrefix)
	setString(&cfg.Vector.Collections.Survey, cc.survey)
	setString(&cfg.Vector.Collections.FreeText, cc.freeText)
	setString(&cfg.Embedding.APIKey, cc.apiKey)
	setString(&cfg.Embedding.BaseURL, cc.baseURL)
	setString(&cfg.Embedding.Model, cc.model)
	setString(&cfg.Embedding.QueryInstruction, cc.instruction)
	if cc.dimensions > 0 {
		cfg.Embedding.Dimensions = cc.dimensions
	}
	if cc.embedder != nil && cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "custom"
	}
	if cc.dailyTokens > 0 || cc.monthlyTokens > 0 {
		cfg.Embedding.Budget.DailyTokenLimit = cc.dailyTokens
		cfg.Embedding.Budget.MonthlyTokenLimit = cc.monthlyTokens
		cfg.Embedding.Budget.Action = "warn"
		if cc.rejectOverrun {
			cfg.Embedding.Budget.Action = "reject"
		}
	}
	if cfg.Relational.Driver == "" && cfg.Relational.DSN == "" {
		return config.Config{}, errors.New("panelscope: panels database required (use WithPostgres or WithSQLite)")
	}
	if len(cfg.Vector.Addrs) == 0 {
		return config.Config{}, errors.New("panelscope: vector store address required (use WithValkey)")
	}
	// The SDK serves no HTTP; keep validation satisfied.
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("panelscope: invalid config: %w", err)
	}
	return cfg, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closer != nil {
		_ = c.closer()
	}
}

// Resolve returns the records matching in.
func (c *Client) Resolve(ctx context.Context, in Intent) (res Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("resolve", start, err, "case", string(res.Case), "count", len(res.Records)) }()

	q, err := toDomainIntent(in)
	if err != nil {
		return Result{}, err
	}
	set, err := c.resolver.Resolve(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("resolve: %w", err)
	}
	return fromDomainResult(set), nil
}

// Insights resolves in and ranks at least minCharts charts for the result,
// fewer only when the records do not support that many. Charts cover every
// matching panel; in.Limit bounds only the returned records.
// Zero minCharts means the configured default.
func (c *Client) Insights(ctx context.Context, in Intent, minCharts int) (res Result, charts []Chart, err error) {
	start := time.Now()
	defer func() { c.obs.observe("insights", start, err, "charts", len(charts)) }()

	if minCharts < 0 {
		return Result{}, nil, fmt.Errorf("min charts must not be negative: %w", ErrInvalidIntent)
	}
	q, err := toDomainIntent(in)
	if err != nil {
		return Result{}, nil, err
	}
	population, page, err := c.resolver.ResolvePopulation(ctx, q)
	if err != nil {
		return Result{}, nil, fmt.Errorf("resolve: %w", err)
	}
	specs, err := c.insights.Generate(ctx, population.Records, q, minCharts)
	if err != nil {
		return Result{}, nil, fmt.Errorf("generate insights: %w", err)
	}
	return fromDomainResult(page), fromDomainCharts(specs), nil
}

// Reload reconnects the stores and swaps them in without interrupting running queries.
func (c *Client) Reload(ctx context.Context) (gen Generation, err error) {
	start := time.Now()
	defer func() { c.obs.observe("reload", start, err, "version", gen.Version) }()

	h, err := c.reloader.Reload(ctx)
	if err != nil {
		return Generation{}, fmt.Errorf("reload: %w", err)
	}
	return Generation{Version: h.Version, ID: h.ID.String(), BuiltAt: h.BuiltAt}, nil
}
