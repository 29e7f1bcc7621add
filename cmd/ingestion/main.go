// Command ingestion starts the sentence ingestion HTTP service.
//
// The service accepts new sentences via POST /api/v1/sentences, tokenizes
// and validates them, persists bookkeeping metadata to PostgreSQL, and
// publishes them to a Kafka topic for downstream indexing. It provides a
// health endpoint at GET /health.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/nullstrand/corpusregex/internal/corpus/bpe"
	"github.com/nullstrand/corpusregex/internal/corpus/tokenizer"
	"github.com/nullstrand/corpusregex/internal/ingestion/handler"
	"github.com/nullstrand/corpusregex/internal/ingestion/publisher"
	"github.com/nullstrand/corpusregex/pkg/config"
	"github.com/nullstrand/corpusregex/pkg/kafka"
	"github.com/nullstrand/corpusregex/pkg/logger"
	"github.com/nullstrand/corpusregex/pkg/metrics"
	pkgmw "github.com/nullstrand/corpusregex/pkg/middleware"
	"github.com/nullstrand/corpusregex/pkg/postgres"
)

// main loads configuration, connects to PostgreSQL, loads the BPE tokenizer
// assets, creates the Kafka producer, wires up the ingestion handler, and
// starts the HTTP server. Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	backend, err := bpe.Load(cfg.Corpus.TokenizerVocabPath, cfg.Corpus.TokenizerMergesPath)
	if err != nil {
		slog.Error("failed to load tokenizer assets", "error", err)
		os.Exit(1)
	}
	tok, err := tokenizer.New(backend, tokenizer.Config{
		Normalize:  cfg.Corpus.NormalizeBytes(),
		EOSTokenID: cfg.Corpus.EOSTokenID,
		BOSTokenID: cfg.Corpus.BOSTokenID,
		HasBOS:     cfg.Corpus.HasBOS,
	})
	if err != nil {
		slog.Error("failed to build tokenizer", "error", err)
		os.Exit(1)
	}
	slog.Info("tokenizer loaded", "vocab_size", tok.VocabSize())

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SentenceIngest)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.SentenceIngest)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	pub := publisher.New(db, producer, tok, m)
	h := handler.New(pub)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sentences", h.Ingest)
	mux.HandleFunc("GET /health", h.Health)

	var chain http.Handler = mux
	if m != nil {
		chain = pkgmw.Metrics(m)(chain)
	}
	chain = pkgmw.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
