// Package publisher persists sentences to PostgreSQL and publishes ingest
// events to Kafka for downstream indexing. It tokenizes incoming text
// through the corpus tokenizer, performs hash-based shard assignment, and
// supports idempotent writes.
package publisher

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nullstrand/corpusregex/internal/corpus/tokenizer"
	"github.com/nullstrand/corpusregex/internal/ingestion"
	"github.com/nullstrand/corpusregex/internal/ingestion/validator"
	apperrors "github.com/nullstrand/corpusregex/pkg/errors"
	"github.com/nullstrand/corpusregex/pkg/kafka"
	"github.com/nullstrand/corpusregex/pkg/metrics"
	"github.com/nullstrand/corpusregex/pkg/postgres"
	"github.com/nullstrand/corpusregex/pkg/resilience"
)

// totalShards is the fixed number of index shards used for partitioning.
const totalShards = 8

// Publisher coordinates sentence persistence, tokenization, and Kafka event
// production.
type Publisher struct {
	db        *postgres.Client
	producer  *kafka.Producer
	tokenizer *tokenizer.Tokenizer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Publisher with the given database, Kafka producer, and
// tokenizer. m may be nil if metrics collection is disabled.
func New(db *postgres.Client, producer *kafka.Producer, tok *tokenizer.Tokenizer, m *metrics.Metrics) *Publisher {
	return &Publisher{
		db:        db,
		producer:  producer,
		tokenizer: tok,
		metrics:   m,
		logger:    slog.Default().With("component", "publisher"),
	}
}

// Ingest tokenizes req.Text, persists the sentence in PostgreSQL under a
// fresh sent_id, assigns a shard, and publishes an IngestEvent to Kafka.
// Duplicate idempotency keys are detected and returned without re-insertion.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	contentHash := fmt.Sprintf("%x", sha256.Sum256([]byte(req.Text)))
	if req.IdempotencyKey != "" {
		existing, err := p.findByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
		if existing != nil {
			p.logger.Info("duplicate ingestion detected",
				"idempotency_key", req.IdempotencyKey,
				"existing_sent_id", existing.SentID,
			)
			return existing, nil
		}
	}

	tokenIDs, err := p.tokenizer.Tokenize(req.Text)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "tokenizing text: %v", err)
	}
	if err := validator.ValidateTokenCount(tokenIDs); err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, err.Error())
	}

	shardID := assignShard(contentHash, totalShards)
	var sentID uint32
	err = p.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO sentences (text, content_hash, token_count, shard_id, idempotency_key, status)
		VALUES ($1, $2, $3, $4, $5, 'PENDING')
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING sent_id`, req.Text, contentHash, len(tokenIDs), shardID, nullableString(req.IdempotencyKey)).Scan(&sentID)
		if err == sql.ErrNoRows {
			return apperrors.New(apperrors.ErrIdempotencyConflict, 409, "idempotency key already in use")
		}
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("inserting sentence: %w", err)
	}

	event := kafka.Event{
		Key: strconv.Itoa(shardID),
		Value: ingestion.IngestEvent{
			SentID:     sentID,
			TokenIDs:   tokenIDs,
			ShardID:    shardID,
			IngestedAt: time.Now().UTC(),
		},
	}

	publishErr := resilience.Retry(ctx, "kafka-publish", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		return p.producer.Publish(ctx, event)
	})
	if publishErr != nil {
		p.logger.Error("failed to publish to kafka, sentence stuck in PENDING",
			"sent_id", sentID,
			"shard_id", shardID,
			"error", publishErr,
		)
	} else if p.metrics != nil {
		p.metrics.DocsIndexedTotal.Inc()
	}
	return &ingestion.IngestResponse{
		SentID:  sentID,
		Status:  "PENDING",
		ShardID: shardID,
	}, nil
}

// findByIdempotencyKey checks if a sentence with the given idempotency key
// already exists and returns its status.
func (p *Publisher) findByIdempotencyKey(ctx context.Context, key string) (*ingestion.IngestResponse, error) {
	var resp ingestion.IngestResponse
	err := p.db.DB.QueryRowContext(ctx,
		`SELECT sent_id, status, shard_id FROM sentences WHERE idempotency_key=$1`, key).Scan(&resp.SentID, &resp.Status, &resp.ShardID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying by idempotency key: %w", err)
	}
	return &resp, nil
}

// assignShard deterministically maps a content hash to a shard ID.
func assignShard(contentHash string, numShards int) int {
	var hash uint64
	for i := 0; i < 8 && i < len(contentHash); i++ {
		hash = hash<<8 | uint64(contentHash[i])
	}
	return int(hash % uint64(numShards))
}

// nullableString converts a Go string to a sql.NullString, treating the
// empty string as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
