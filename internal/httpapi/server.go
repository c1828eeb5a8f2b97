package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamgen/internal/engine"
	"streamgen/pkg/types"
)

// Generation is an accepted request whose output is being streamed.
type Generation interface {
	ID() string
	Fragments() <-chan engine.Fragment
	// Detach abandons the stream; the request is cancelled.
	Detach()
}

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Generate(prompt string, maxTokens int) (Generation, error)
	Cancel(id string) error
	Lookup(id string) (types.RequestStatus, error)
	Recent(ctx context.Context, limit int) ([]types.RequestStatus, error)
	Status() types.StatusResponse
	ModelCard() types.ModelCard
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Only JSON bodies are compressed; streamed text must reach the client as flushed.
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsMethods(),
			AllowedHeaders: corsHeaders(),
			ExposedHeaders: []string{"X-Request-ID", "X-Generation-Status"},
			MaxAge:         300,
		}))
	}

	r.Get("/", indexHandler)
	r.Get("/model_card", modelCardHandler(svc))
	r.Post("/generate", generateHandler(svc))
	r.Get("/requests", recentHandler(svc))
	r.Get("/requests/{id}", lookupHandler(svc))
	r.Delete("/requests/{id}", cancelHandler(svc))
	r.Get("/status", statusHandler(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("draining"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}
