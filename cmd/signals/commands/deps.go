package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-signals/internal/analyzer"
	"github.com/wonny/aegis-signals/internal/contracts"
	"github.com/wonny/aegis-signals/internal/s0_data"
	"github.com/wonny/aegis-signals/internal/s3_backtest"
	"github.com/wonny/aegis-signals/pkg/config"
	"github.com/wonny/aegis-signals/pkg/database"
	"github.com/wonny/aegis-signals/pkg/httputil"
	"github.com/wonny/aegis-signals/pkg/logger"
	"github.com/wonny/aegis-signals/pkg/redis"
)

// redisPrefix namespaces cache and rate-limit keys
const redisPrefix = "aegis-signals"

// deps holds the wired runtime shared by every command
type deps struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB // nil unless BAR_SOURCE=postgres or ANALYSIS_PERSIST=true
	rdb     *redis.Client
	cache   *redis.Cache
	repo    *s3_backtest.Repository
	source  contracts.BarSource // nil → CSV from YAML data_dir
	service *analyzer.Service
}

// depsOptions tweaks wiring per command
type depsOptions struct {
	Workers      int  // 0 = ANALYSIS_WORKERS
	WriteReports bool // Markdown 리포트 출력
}

// newDeps loads config and connects the optional backends
func newDeps(ctx context.Context, opts depsOptions) (*deps, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if configFile != "" {
		cfg.Analysis.ConfigPath = configFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if opts.Workers > 0 {
		cfg.Analysis.Workers = opts.Workers
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	d := &deps{cfg: cfg, log: log}

	// 3. Connect to database (optional)
	if cfg.NeedsDatabase() {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		d.db = db

		if err := db.EnsureSchema(ctx); err != nil {
			d.Close()
			return nil, err
		}
		log.Info("Connected to database")
	}

	// 4. Connect to Redis (disabled client when REDIS_ENABLED=false)
	rdb, err := redis.New(cfg)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	d.rdb = rdb
	if rdb.Enabled() {
		d.cache = redis.NewCache(rdb, redisPrefix)
		log.Info("Connected to redis")
	}

	// 5. Bar source
	switch cfg.Analysis.BarSource {
	case config.BarSourcePostgres:
		d.source = s0_data.NewPriceRepository(d.db.Pool)
	case config.BarSourceHTTP:
		client := httputil.New(log).
			WithRateLimit(cfg.Analysis.LoadRate).
			WithCircuitBreaker("bar-source", 5, 30*time.Second)
		d.source = s0_data.NewHTTPSource(client, cfg.Analysis.BarURL)
	}

	// 6. Result repository
	if cfg.Analysis.Persist {
		d.repo = s3_backtest.NewRepository(d.db.Pool)
	}

	// 7. Analysis service
	d.service = analyzer.NewService(analyzer.ServiceConfig{
		ConfigPath:   cfg.Analysis.ConfigPath,
		Workers:      cfg.Analysis.Workers,
		LoadRate:     cfg.Analysis.LoadRate,
		WriteReports: opts.WriteReports,
	}, d.source, d.repo, d.cache, log)

	return d, nil
}

// Close releases backend connections
func (d *deps) Close() {
	if d.rdb != nil {
		d.rdb.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}
