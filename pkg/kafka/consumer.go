// Package kafka feeds ingest events from a Kafka topic to the indexer using
// segmentio/kafka-go consumer groups.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/resilience"
)

// MessageHandler indexes one message. Errors wrapped with
// resilience.Permanent are not retried.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the part of *kafka.Reader the consume loop needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer commits a message once its handler succeeds or gives up. A
// partition's offset is a high-water mark, so a message that is skipped
// would be committed by its successor anyway; failures are retried a few
// times and then logged as dropped.
type Consumer struct {
	reader  messageReader
	handler MessageHandler
	retry   RetryPolicy
	logger  *slog.Logger
}

// RetryPolicy holds the backoff for handler failures and for fetch errors.
type RetryPolicy struct {
	Handler resilience.RetryConfig
	Fetch   resilience.RetryConfig
}

func defaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Handler: resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second},
		Fetch:   resilience.RetryConfig{InitialDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second},
	}
}

// NewConsumer reads cfg's ingest topic as part of cfg.ConsumerGroup,
// starting from the oldest retained message for a new group.
func NewConsumer(cfg config.KafkaConfig, handler MessageHandler) *Consumer {
	topic := cfg.Topics.DocumentIngest
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, handler, slog.Default().With("component", "kafka-consumer", "topic", topic))
}

func newConsumer(r messageReader, handler MessageHandler, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		retry:   defaultRetryPolicy(),
		logger:  logger,
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()

	fetchFailures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			fetchFailures++
			delay := c.retry.Fetch.Delay(fetchFailures)
			c.logger.Error("failed to fetch message", "error", err, "failures", fetchFailures, "retry_in", delay)
			if !wait(ctx, delay) {
				return nil
			}
			continue
		}
		fetchFailures = 0

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("dropping message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"permanent", resilience.IsPermanent(err),
				"error", err,
			)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	c.logger.Debug("message received",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"value_size", len(msg.Value),
	)
	return resilience.Retry(ctx, "handle-message", c.retry.Handler, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
}

func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
