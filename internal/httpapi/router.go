// Package httpapi serves the talkinghead JSON API and MCP tools.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/apresai/talkinghead/internal/orchestrator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options configures the router.
type Options struct {
	Service           string
	Version           string
	FFmpegAvailable   bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// DisableMCP leaves /mcp unrouted.
	DisableMCP bool
}

func NewRouter(orch *orchestrator.Orchestrator, opts Options, logger *slog.Logger) http.Handler {
	log := logger.With("component", "http")
	h := &handlers{
		orch:    orch,
		log:     log,
		service: opts.Service,
		version: opts.Version,
		ffmpeg:  opts.FFmpegAvailable,
	}

	r := chi.NewRouter()
	r.Use(RequestID, middleware.Recoverer, AccessLog(log))
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/health", h.health)
	r.Get("/stats", h.stats)
	r.Get("/jobs", h.jobs)
	r.Get("/status/{session_id}", h.jobStatus)
	r.Delete("/cleanup-voice/{voiceId}", h.cleanupVoice)

	generate := http.HandlerFunc(h.generateVideo)
	if opts.RateLimitRequests > 0 && opts.RateLimitWindow > 0 {
		r.With(RateLimit(opts.RateLimitRequests, opts.RateLimitWindow)).Post("/generate-video", generate)
	} else {
		r.Post("/generate-video", generate)
	}

	if !opts.DisableMCP {
		r.Handle("/mcp", NewMCPHandler(orch, opts.Service, opts.Version, log))
	}

	// Server spans continue the caller's trace when a traceparent header is sent.
	return otelhttp.NewHandler(r, opts.Service,
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return "HTTP " + req.Method
		}),
	)
}
