// Package consumer reads sentence ingestion events from Kafka and indexes
// them via the indexer engine, routing each one through the shard router
// for partitioned indexing.
package consumer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/nullstrand/corpusregex/internal/indexer"
	"github.com/nullstrand/corpusregex/internal/indexer/shard"
	"github.com/nullstrand/corpusregex/internal/ingestion"
	"github.com/nullstrand/corpusregex/pkg/kafka"
)

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
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

// HandleMessageSharded returns a Kafka MessageHandler that routes each
// ingest event to the correct shard engine via the Router before indexing.
// If db is non-nil, the sentence status is updated from PENDING to INDEXED
// in PostgreSQL after a successful index operation.
func HandleMessageSharded(router *shard.Router, db *sql.DB) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event", "error", err, "key", string(key))
			return nil
		}

		engine, err := router.Route(event.ShardID)
		if err != nil {
			return fmt.Errorf("routing shard %d: %w", event.ShardID, err)
		}

		logger.Debug("processing ingest event", "sent_id", event.SentID, "shard_id", event.ShardID)

		if err := engine.AddSentence(event.SentID, event.TokenIDs); err != nil {
			updateSentStatus(ctx, db, event.SentID, "FAILED", logger)
			return fmt.Errorf("indexing sentence %d in shard %d: %w", event.SentID, event.ShardID, err)
		}

		updateSentStatus(ctx, db, event.SentID, "INDEXED", logger)

		logger.Info("sentence indexed", "sent_id", event.SentID, "shard_id", event.ShardID)
		return nil
	}
}

// HandleMessage returns a Kafka MessageHandler that indexes every ingest
// event into a single (non-sharded) Engine. If db is non-nil, the sentence
// status is updated after indexing.
func HandleMessage(engine *indexer.Engine, db *sql.DB) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event", "error", err, "key", string(key))
			return nil
		}
		logger.Debug("processing ingest event", "sent_id", event.SentID, "shard_id", event.ShardID)
		if err := engine.AddSentence(event.SentID, event.TokenIDs); err != nil {
			updateSentStatus(ctx, db, event.SentID, "FAILED", logger)
			return fmt.Errorf("indexing sentence %d: %w", event.SentID, err)
		}

		updateSentStatus(ctx, db, event.SentID, "INDEXED", logger)

		logger.Info("sentence indexed", "sent_id", event.SentID, "shard_id", event.ShardID)
		return nil
	}
}

// updateSentStatus updates the sentence's status and indexed_at timestamp
// in PostgreSQL. If db is nil, the update is silently skipped.
func updateSentStatus(ctx context.Context, db *sql.DB, sentID uint32, status string, logger *slog.Logger) {
	if db == nil {
		return
	}
	_, err := db.ExecContext(ctx,
		`UPDATE sentences SET status = $1, indexed_at = NOW() WHERE sent_id = $2`,
		status, sentID,
	)
	if err != nil {
		logger.Error("failed to update sentence status", "sent_id", sentID, "status", status, "error", err)
	}
}
