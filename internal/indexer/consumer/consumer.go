// Package consumer reads ingest events from Kafka and indexes them via the
// indexer engine, optionally routing documents through the shard router.
package consumer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/resilience"
)

// IngestEvent is the Kafka message payload for one document. ShardID is
// optional; when absent the router hashes DocumentID.
type IngestEvent struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	ShardID    *int      `json:"shard_id,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessageSharded returns a Kafka MessageHandler that routes each ingest
// event to its shard engine before indexing. If db is non-nil, the document
// status is updated in PostgreSQL after the index operation. An unknown
// shard is a permanent error.
func HandleMessageSharded(router *shard.Router, db *sql.DB) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, ok := decodeEvent(value, key, logger)
		if !ok {
			return nil
		}
		shardID := router.ShardFor(event.DocumentID)
		if event.ShardID != nil {
			shardID = *event.ShardID
		}
		engine, err := router.Route(shardID)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("routing shard %d: %w", shardID, err))
		}
		return indexEvent(ctx, engine, db, event, shardID, logger)
	}
}

// HandleMessage returns a Kafka MessageHandler that indexes every ingest
// event into a single engine.
func HandleMessage(engine *indexer.Engine, db *sql.DB) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, ok := decodeEvent(value, key, logger)
		if !ok {
			return nil
		}
		return indexEvent(ctx, engine, db, event, 0, logger)
	}
}

// decodeEvent drops payloads that can never be indexed so the consumer
// commits past them.
func decodeEvent(value, key []byte, logger *slog.Logger) (IngestEvent, bool) {
	event, err := kafka.DecodeJSON[IngestEvent](value)
	if err != nil {
		logger.Error("failed to decode ingest event",
			"error", err,
			"key", string(key),
		)
		return event, false
	}
	if event.DocumentID == "" {
		logger.Error("ingest event without document id", "key", string(key))
		return event, false
	}
	return event, true
}

func indexEvent(ctx context.Context, engine *indexer.Engine, db *sql.DB, event IngestEvent, shardID int, logger *slog.Logger) error {
	logger.Debug("processing ingest event",
		"doc_id", event.DocumentID,
		"shard_id", shardID,
	)
	if err := engine.IndexDocument(event.DocumentID, event.Title, event.Body); err != nil {
		updateDocStatus(ctx, db, event.DocumentID, "FAILED", logger)
		return fmt.Errorf("indexing document %s in shard %d: %w", event.DocumentID, shardID, err)
	}
	updateDocStatus(ctx, db, event.DocumentID, "INDEXED", logger)
	logger.Info("document indexed",
		"doc_id", event.DocumentID,
		"shard_id", shardID,
	)
	return nil
}

// updateDocStatus updates the document's status and indexed_at timestamp in
// PostgreSQL. A nil db skips the update.
func updateDocStatus(ctx context.Context, db *sql.DB, docID, status string, logger *slog.Logger) {
	if db == nil {
		return
	}
	_, err := db.ExecContext(ctx,
		`UPDATE documents SET status = $1, indexed_at = NOW() WHERE id = $2`,
		status, docID,
	)
	if err != nil {
		logger.Error("failed to update document status",
			"doc_id", docID,
			"status", status,
			"error", err,
		)
	}
}
