package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/postgres"
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
	slog.Info("starting indexer service", "num_shards", cfg.Indexer.NumShards)

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

	var db *sql.DB
	checker := health.NewChecker()
	if cfg.Postgres.Host != "" {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, document status tracking disabled", "error", err)
		} else {
			defer pg.Close()
			db = pg.DB
			checker.Register("postgres", health.PingCheck(pg.Ping))
		}
	}
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d shards active", router.NumShards())}
	})

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"/health/live":  checker.LiveHandler(),
			"/health/ready": checker.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	router.StartFlushLoops(ctx)
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, consumer.HandleMessageSharded(router, db))
	indexConsumer := consumer.New(kafkaConsumer)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("flushing all shards before shutdown")
	if err := router.FlushAll(context.Background()); err != nil {
		slog.Error("final flush failed", "error", err)
	}
	slog.Info("indexer service stopped")
}
