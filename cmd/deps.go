package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/loksabha/config"
	"github.com/mohammad-safakhou/loksabha/internal/cache"
	"github.com/mohammad-safakhou/loksabha/internal/llm"
	"github.com/mohammad-safakhou/loksabha/internal/logging"
	"github.com/mohammad-safakhou/loksabha/internal/metrics"
	"github.com/mohammad-safakhou/loksabha/internal/nlsql"
	"github.com/mohammad-safakhou/loksabha/internal/sqlguard"
	"github.com/mohammad-safakhou/loksabha/internal/store"
	"github.com/mohammad-safakhou/loksabha/internal/valueindex"
)

// app holds the dependencies shared by the commands. Commands only build what they use.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	cache    cache.Cache
	index    *valueindex.Index
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	pipeline *nlsql.Pipeline

	closers []func() error
}

func loadApp(cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.General.LogLevel, cfg.General.Debug)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, cache: cache.Noop{}}
	a.closers = append(a.closers, func() error { _ = logger.Sync(); return nil })
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	pg := a.cfg.Storage.Postgres
	st, err := store.NewWithDSN(ctx, pg.DSN())
	if err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}
	if pg.MaxOpenConns > 0 {
		st.DB.SetMaxOpenConns(pg.MaxOpenConns)
	}
	st.Table = a.cfg.Validator.Table
	st.ReadOnlyTx = pg.ReadOnlyTx
	a.store = st
	a.closers = append(a.closers, st.Close)
	return nil
}

// openCache connects redis when configured. A failed connection degrades to no caching.
func (a *app) openCache(ctx context.Context) {
	rc := a.cfg.Storage.Redis
	if !rc.Enabled() {
		a.logger.Info("redis not configured, caching disabled")
		return
	}
	client, err := cache.Conn(ctx, rc.Host, rc.Port, rc.Password, rc.DB, rc.Timeout)
	if err != nil {
		a.logger.Warn("redis connection failed, caching disabled",
			zap.String("addr", rc.Host+":"+rc.Port), zap.Error(err))
		return
	}
	a.cache = cache.NewRedis(client, "loksabha:", rc.TTL)
	a.closers = append(a.closers, client.Close)
}

func (a *app) openMetrics() error {
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(a.registry)
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

// buildPipeline wires the question answering stages. openStore must run first.
func (a *app) buildPipeline(ctx context.Context) error {
	gen, err := llm.New(ctx, a.cfg.LLM)
	if err != nil {
		return err
	}
	a.index = valueindex.New()
	a.closers = append(a.closers, a.index.Close)

	a.pipeline = &nlsql.Pipeline{
		Generator: gen,
		Validator: sqlguard.New(a.cfg.Validator.Table, sqlguard.WithGrammarCheck(a.cfg.Validator.GrammarCheck)),
		Executor:  a.store,
		Hints:     a.index,
		Prompts:   nlsql.NewPromptBuilder(a.cfg.Validator.Table),
		Metrics:   a.metrics,
		Logger:    a.logger.Named("nlsql"),
	}
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
