package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/inquiry-analyzer/internal/observability"
	"github.com/lexiqai/inquiry-analyzer/internal/orchestrator"
)

// CorrelationHeader carries the request correlation id in and out
const CorrelationHeader = "X-Correlation-ID"

// Service is the pipeline the handlers drive
type Service interface {
	Transcribe(ctx context.Context, data []byte) (string, error)
	Analyze(ctx context.Context, data []byte) (*orchestrator.Analysis, error)
	RecognizeIntent(ctx context.Context, text string) (string, error)
	GenerateResolution(ctx context.Context, content, intent string) (string, error)
}

// Options configures the router
type Options struct {
	Service        Service
	MaxUploadBytes int64
	AllowedOrigins []string
	MetricsEnabled bool

	// Details is reported by /health; Checks back /ready
	Details func() map[string]interface{}
	Checks  []observability.DependencyCheck
}

// Handler serves the HTTP API
type Handler struct {
	service   Service
	maxUpload int64
	upgrader  *websocket.Upgrader
}

// NewRouter builds the chi router with every endpoint mounted
func NewRouter(opts Options) http.Handler {
	h := &Handler{
		service:   opts.Service,
		maxUpload: opts.MaxUploadBytes,
		upgrader:  newUpgrader(opts.AllowedOrigins),
	}

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(correlation)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{CorrelationHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/", h.handleRoot)
	router.Get("/health", observability.HealthCheckHandler(opts.Details))
	router.Get("/ready", observability.ReadinessHandler(opts.Checks...))
	if opts.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.Post("/transcribe", h.handleTranscribe)
	router.Post("/recognize-intent", h.handleRecognizeIntent)
	router.Post("/generate-resolution", h.handleGenerateResolution)
	router.Post("/analyze", h.handleAnalyze)
	router.Get("/analyze/stream", h.handleAnalyzeStream)

	return router
}

// correlation attaches a correlation id and request logger to every request
func correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.ContextWithCorrelationID(r.Context(), r.Header.Get(CorrelationHeader))
		w.Header().Set(CorrelationHeader, observability.CorrelationIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
