package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "num_shards", cfg.Indexer.NumShards)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	router, err := shard.NewRouter(ctx, cfg.Indexer, m)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	defer router.Close()
	router.UpdateShardMetrics()
	slog.Info("shard router initialized", "data_dir", cfg.Indexer.DataDir)

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	go reloadLoop(ctx, router, queryCache, cfg.Search.ReloadInterval)

	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		if router.NumShards() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d shards active", router.NumShards())}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no shards"}
	})
	if redisClient != nil {
		checker.Register("redis", health.Degrade(health.PingCheck(redisClient.Ping)))
	}

	exec := executor.NewSharded(router.GetAllEngines(), cfg.Search.TimeoutPerShard)
	h := handler.New(exec, queryCache, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.WriteTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// reloadLoop picks up segments flushed by the indexer and drops cached
// results that may now be stale.
func reloadLoop(ctx context.Context, router *shard.Router, queryCache *cache.QueryCache, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			added := router.ReloadAll(ctx)
			if added == 0 {
				continue
			}
			slog.Info("new segments loaded", "segments", added)
			if queryCache != nil {
				if err := queryCache.Invalidate(ctx); err != nil {
					slog.Error("cache invalidation after reload failed", "error", err)
				}
			}
		}
	}
}
