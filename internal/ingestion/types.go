// Package ingestion defines the request/response types and Kafka event
// schemas used by the sentence ingestion pipeline.
package ingestion

import "time"

// IngestRequest is the JSON body accepted by the ingestion HTTP endpoint.
type IngestRequest struct {
	Text           string `json:"text"`
	IdempotencyKey string `json:"idempotency_key"`
}

// IngestResponse is returned to the caller after a sentence is accepted.
type IngestResponse struct {
	SentID  uint32 `json:"sent_id"`
	Status  string `json:"status"`
	ShardID int    `json:"shard_id"`
}

// IngestEvent is the Kafka message payload produced after a sentence is
// tokenized, persisted, and ready for indexing.
type IngestEvent struct {
	SentID     uint32    `json:"sent_id"`
	TokenIDs   []uint32  `json:"token_ids"`
	ShardID    int       `json:"shard_id"`
	IngestedAt time.Time `json:"ingested_at"`
}
