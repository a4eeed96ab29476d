package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/tracing"
	"github.com/aretw0/lattice/pkg/adapters/file"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	redisadapter "github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/adapters/sqlite"
	"github.com/aretw0/lattice/pkg/cache"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/aretw0/lattice/pkg/persistence/middleware"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
)

// Runtime bundles an engine with the resources its configuration opened.
type Runtime struct {
	Engine  *lattice.Engine
	Loader  *file.Loader
	Metrics *prometheus.Registry
	Logger  *slog.Logger

	closers []func(context.Context) error
}

// NewRuntime builds an engine from cfg: standard nodes, a file loader rooted
// at cfg.GraphsDir, the configured output store and run lock, Prometheus
// metrics and, when enabled, OTLP tracing. extra options are applied last.
func NewRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger, extra ...lattice.Option) (*Runtime, error) {
	rt := &Runtime{
		Loader:  file.NewLoader(cfg.GraphsDir),
		Metrics: prometheus.NewRegistry(),
		Logger:  logger,
	}
	rt.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics, err := observability.NewMetrics(rt.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	opts := []lattice.Option{
		lattice.WithLogger(logger),
		lattice.WithStandardNodes(),
		lattice.WithLoader(rt.Loader),
		lattice.WithLifecycleHooks(observability.LoggingHooks(logger)),
		lattice.WithLifecycleHooks(metrics.Hooks()),
	}

	e := cfg.Engine
	if e.Parallelism > 1 {
		opts = append(opts, lattice.WithParallelism(e.Parallelism))
	}
	if e.NodeTimeout > 0 {
		opts = append(opts, lattice.WithNodeTimeout(e.NodeTimeout))
	}
	if e.CacheSize > 0 || e.CacheTTL > 0 {
		var cacheOpts []cache.Option
		if e.CacheSize > 0 {
			cacheOpts = append(cacheOpts, cache.WithMaxSize(e.CacheSize))
		}
		if e.CacheTTL > 0 {
			cacheOpts = append(cacheOpts, cache.WithTTL(e.CacheTTL))
		}
		opts = append(opts, lattice.WithCache(cache.New(cacheOpts...)))
	}
	if e.CacheReuse {
		opts = append(opts, lattice.WithCacheReuse())
	}
	if e.UserID != "" {
		opts = append(opts, lattice.WithUserID(e.UserID))
	}

	var redisClient *goredis.Client
	redisFor := func() *goredis.Client {
		if redisClient == nil {
			redisClient = goredis.NewClient(&goredis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			rt.closers = append(rt.closers, func(context.Context) error { return redisClient.Close() })
		}
		return redisClient
	}

	store, err := rt.openStore(cfg, redisFor)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	if store != nil {
		mws, err := storeMiddleware(cfg.Store)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
		opts = append(opts, lattice.WithOutputStore(middleware.Chain(store, mws...)))
	}

	switch cfg.Lock.Driver {
	case config.DriverMemory:
		opts = append(opts, lattice.WithRunLocker(memory.NewLocker(), cfg.Lock.TTL))
	case config.DriverRedis:
		opts = append(opts, lattice.WithRunLocker(redisadapter.NewLocker(redisFor(), cfg.Redis.Prefix), cfg.Lock.TTL))
	}

	if cfg.Tracing.Enabled {
		tp, shutdown, err := tracing.Setup(ctx, cfg.Tracing.Config, logger)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
		rt.closers = append(rt.closers, shutdown)
		opts = append(opts, lattice.WithLifecycleHooks(observability.NewTracer(tp).Hooks()))
	}

	eng, err := lattice.New(append(opts, extra...)...)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	rt.Engine = eng
	return rt, nil
}

func (rt *Runtime) openStore(cfg config.Config, redisFor func() *goredis.Client) (ports.OutputStore, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil
	case config.DriverFile:
		return file.NewStore(cfg.Store.Path), nil
	case config.DriverSQLite:
		path := cfg.Store.Path
		if path == "" {
			path = filepath.Join(".lattice", "outputs.db")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to ensure store directory: %w", err)
			}
		}
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error { return s.Close() })
		return s, nil
	case config.DriverRedis:
		opts := []redisadapter.Option{redisadapter.WithTTL(cfg.Redis.TTL)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redisadapter.WithPrefix(cfg.Redis.Prefix+"output:"))
		}
		return redisadapter.NewFromClient(redisFor(), opts...), nil
	}
	return nil, nil
}

// storeMiddleware builds the masking and encryption layers asked for by cfg.
// Masking runs first so sealed outputs never hold the raw values.
func storeMiddleware(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Mask) > 0 {
		mw, err := middleware.NewPIIMiddleware(cfg.Mask)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.EncryptionKey != "" {
		active, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("store.encryption_key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for i, s := range cfg.FallbackKeys {
			key, err := middleware.ParseKey(s)
			if err != nil {
				return nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

// Close releases everything NewRuntime opened, newest first.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
