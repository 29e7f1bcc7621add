package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nullstrand/corpusregex/internal/searcher/cache"
	"github.com/nullstrand/corpusregex/internal/searcher/executor"
	"github.com/nullstrand/corpusregex/internal/searcher/parser"
	apperrors "github.com/nullstrand/corpusregex/pkg/errors"
	"github.com/nullstrand/corpusregex/pkg/logger"
	"github.com/nullstrand/corpusregex/pkg/metrics"
	"github.com/nullstrand/corpusregex/pkg/middleware"
	"github.com/nullstrand/corpusregex/pkg/tracing"
)

// SearchExecutor is the subset of executor.Executor/ShardedExecutor the
// handler depends on, letting tests supply a fake.
type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
}

// searchRequest is the JSON body accepted by POST /api/v1/search.
type searchRequest struct {
	Regex string `json:"regex"`
	Limit int    `json:"limit"`
}

// Handler serves the regex search API over a SearchExecutor, optionally
// caching results in Redis.
type Handler struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	defaultLimit int
	maxResults   int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New constructs a Handler. queryCache and m may be nil to disable caching
// and metrics collection respectively.
func New(exec SearchExecutor, queryCache *cache.QueryCache, defaultLimit, maxResults int, m *metrics.Metrics) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		metrics:      m,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Search handles POST /api/v1/search: {"regex": "...", "limit": N}.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	ctx, span := tracing.StartSpan(ctx, "search.Search", middleware.GetRequestID(ctx))
	defer func() {
		span.End()
		span.Log()
	}()

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	span.SetAttr("regex", req.Regex)

	plan, err := parser.Parse(req.Regex)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}

	limit := h.defaultLimit
	if req.Limit > 0 {
		limit = req.Limit
	}
	if limit > h.maxResults {
		limit = h.maxResults
	}

	var result *executor.SearchResult
	cacheHit := false

	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, req.Regex, limit, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, plan, limit)
		})
	} else {
		result, err = h.executor.Execute(ctx, plan, limit)
	}

	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("search execution failed", "regex", req.Regex, "error", err)
		h.recordSearchMetrics(start, cacheHit, 0, "error")
		h.writeError(w, statusCode, "search failed")
		return
	}

	resultType := "hit"
	if len(result.SentIDs) == 0 {
		resultType = "zero_result"
	} else if !cacheHit {
		resultType = "miss"
	}
	h.recordSearchMetrics(start, cacheHit, len(result.SentIDs), resultType)

	log.Info("search completed",
		"regex", req.Regex,
		"matches", len(result.SentIDs),
		"needs_recheck", result.NeedsRecheck,
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) recordSearchMetrics(start time.Time, cacheHit bool, resultCount int, resultType string) {
	if h.metrics == nil {
		return
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.WithLabelValues().Observe(float64(resultCount))
}

// CacheStats reports cumulative cache hit/miss counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate clears every cached search result.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

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
