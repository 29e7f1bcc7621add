package handler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"github.com/nullstrand/corpusregex/pkg/metrics"
	"github.com/nullstrand/corpusregex/pkg/postgres"
	"github.com/nullstrand/corpusregex/pkg/resilience"
)

// Config holds the URLs of backend services that the gateway proxies to.
type Config struct {
	IngestionURL string
	SearcherURL  string
}

// Handler implements the API gateway's HTTP endpoints. It proxies requests
// to the ingestion and searcher services and provides direct sentence
// lookup via PostgreSQL.
type Handler struct {
	ingestionProxy *httputil.ReverseProxy
	searchProxy    *httputil.ReverseProxy
	ingestionCB    *resilience.CircuitBreaker
	searchCB       *resilience.CircuitBreaker
	db             *postgres.Client
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// New creates a gateway Handler that proxies to the given backend URLs. m
// may be nil if metrics collection is disabled.
func New(cfg Config, db *postgres.Client, m *metrics.Metrics) *Handler {
	return &Handler{
		ingestionProxy: newProxy(cfg.IngestionURL),
		searchProxy:    newProxy(cfg.SearcherURL),
		ingestionCB:    resilience.NewCircuitBreaker("ingestion", resilience.CircuitBreakerConfig{}),
		searchCB:       resilience.NewCircuitBreaker("search", resilience.CircuitBreakerConfig{}),
		db:             db,
		metrics:        m,
		logger:         slog.Default().With("component", "gateway-handler"),
	}
}

func newProxy(target string) *httputil.ReverseProxy {
	u, _ := url.Parse(target)
	return httputil.NewSingleHostReverseProxy(u)
}

// proxyVia runs req through proxy, tripping cb on upstream failure (5xx or
// transport error) and short-circuiting with 503 while cb is open.
func (h *Handler) proxyVia(proxy *httputil.ReverseProxy, cb *resilience.CircuitBreaker, w http.ResponseWriter, r *http.Request) {
	if h.metrics != nil {
		h.metrics.CircuitBreakerState.WithLabelValues(cb.Name()).Set(float64(cb.GetState()))
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	err := cb.Execute(func() error {
		proxy.ServeHTTP(rec, r)
		if rec.status >= http.StatusInternalServerError {
			return fmt.Errorf("upstream returned status %d", rec.status)
		}
		return nil
	})

	if err != nil && !rec.wrote {
		h.logger.Warn("upstream unavailable", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "upstream service unavailable")
	}

	if h.metrics != nil {
		h.metrics.CircuitBreakerState.WithLabelValues(cb.Name()).Set(float64(cb.GetState()))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.wrote = true
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	sr.wrote = true
	return sr.ResponseWriter.Write(b)
}

// ---------- Proxy handlers ----------

// ProxyIngest forwards sentence ingestion requests to the ingestion service.
func (h *Handler) ProxyIngest(w http.ResponseWriter, r *http.Request) {
	h.proxyVia(h.ingestionProxy, h.ingestionCB, w, r)
}

// ProxySearch forwards regex queries to the search service.
func (h *Handler) ProxySearch(w http.ResponseWriter, r *http.Request) {
	h.proxyVia(h.searchProxy, h.searchCB, w, r)
}

// ProxyCacheStats forwards cache stats requests to the search service.
func (h *Handler) ProxyCacheStats(w http.ResponseWriter, r *http.Request) {
	h.proxyVia(h.searchProxy, h.searchCB, w, r)
}

// ProxyCacheInvalidate forwards cache invalidation requests to the search service.
func (h *Handler) ProxyCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	h.proxyVia(h.searchProxy, h.searchCB, w, r)
}

// ---------- Direct data handlers ----------

// GetSentence retrieves a single sentence's bookkeeping row from PostgreSQL
// by sent_id.
func (h *Handler) GetSentence(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	sentID, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "sentence id must be a positive integer")
		return
	}

	var sent struct {
		SentID      uint32     `json:"sent_id"`
		Text        string     `json:"text"`
		ContentHash string     `json:"content_hash"`
		TokenCount  int        `json:"token_count"`
		ShardID     int        `json:"shard_id"`
		Status      string     `json:"status"`
		CreatedAt   time.Time  `json:"created_at"`
		IndexedAt   *time.Time `json:"indexed_at,omitempty"`
	}

	err = h.db.DB.QueryRowContext(r.Context(),
		`SELECT sent_id, text, content_hash, token_count, shard_id, status, created_at, indexed_at
		 FROM sentences WHERE sent_id = $1`, uint32(sentID),
	).Scan(&sent.SentID, &sent.Text, &sent.ContentHash, &sent.TokenCount,
		&sent.ShardID, &sent.Status, &sent.CreatedAt, &sent.IndexedAt)

	if err == sql.ErrNoRows {
		h.writeError(w, http.StatusNotFound, "sentence not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch sentence", "sent_id", sentID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to fetch sentence")
		return
	}

	h.writeJSON(w, http.StatusOK, sent)
}

// ListSentences returns a paginated list of sentence bookkeeping rows.
func (h *Handler) ListSentences(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	rows, err := h.db.DB.QueryContext(r.Context(),
		`SELECT sent_id, shard_id, status, created_at
		 FROM sentences ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		h.logger.Error("failed to list sentences", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list sentences")
		return
	}
	defer rows.Close()

	type sentSummary struct {
		SentID    uint32    `json:"sent_id"`
		ShardID   int       `json:"shard_id"`
		Status    string    `json:"status"`
		CreatedAt time.Time `json:"created_at"`
	}

	sents := make([]sentSummary, 0)
	for rows.Next() {
		var s sentSummary
		if err := rows.Scan(&s.SentID, &s.ShardID, &s.Status, &s.CreatedAt); err != nil {
			h.logger.Error("failed to scan sentence row", "error", err)
			continue
		}
		sents = append(sents, s)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"sentences": sents,
		"count":     len(sents),
		"limit":     limit,
		"offset":    offset,
	})
}

// ---------- Health ----------

// Health returns the gateway's health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "gateway"})
}

// ---------- Helpers ----------

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
