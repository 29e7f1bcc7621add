// Package router wires up all API gateway routes and applies the middleware
// chain (RequestID → Metrics → CORS → RateLimit; Metrics only when enabled).
package router

import (
	"net/http"

	gwhandler "github.com/nullstrand/corpusregex/internal/gateway/handler"
	gwmw "github.com/nullstrand/corpusregex/internal/gateway/middleware"
	"github.com/nullstrand/corpusregex/pkg/metrics"
	pkgmw "github.com/nullstrand/corpusregex/pkg/middleware"
)

// New builds the full gateway HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/v1/sentences          → ingestion service (proxy)
//	GET    /api/v1/sentences           → list sentences   (direct DB)
//	GET    /api/v1/sentences/{id}      → get sentence     (direct DB)
//	POST   /api/v1/search               → search service   (proxy)
//	GET    /api/v1/cache/stats         → search service   (proxy)
//	POST   /api/v1/cache/invalidate    → search service   (proxy)
//	GET    /health                     → gateway health
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → CORS → RateLimit → handler
//
// m may be nil to disable Prometheus metrics collection.
func New(h *gwhandler.Handler, limiter *gwmw.Limiter, rateLimit int, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	// Health (unauthenticated)
	mux.HandleFunc("GET /health", h.Health)

	// Sentence API
	mux.HandleFunc("POST /api/v1/sentences", h.ProxyIngest)
	mux.HandleFunc("GET /api/v1/sentences", h.ListSentences)
	mux.HandleFunc("GET /api/v1/sentences/{id}", h.GetSentence)

	// Search API
	mux.HandleFunc("POST /api/v1/search", h.ProxySearch)

	// Cache API
	mux.HandleFunc("GET /api/v1/cache/stats", h.ProxyCacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.ProxyCacheInvalidate)

	// Middleware chain — applied inside-out:
	// request → RequestID → Metrics (if m != nil) → CORS → RateLimit → mux
	var chain http.Handler = mux
	chain = gwmw.RateLimit(limiter, rateLimit)(chain)
	chain = gwmw.CORS(gwmw.DefaultCORSConfig())(chain)
	if m != nil {
		chain = pkgmw.Metrics(m)(chain)
	}
	chain = pkgmw.RequestID(chain)

	return chain
}
