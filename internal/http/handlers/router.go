package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seralabs/tokend/internal/cache"
	"github.com/seralabs/tokend/internal/grant"
	httpx "github.com/seralabs/tokend/internal/http"
)

// NewRouter assembles the public surface: the grant endpoint, token
// inspection and revocation, health probes and /metrics.
func NewRouter(svc *grant.Service, store Pinger, c cache.Client, authTTL time.Duration, metricsHandler http.Handler) chi.Router {
	th := &TokenHandler{Svc: svc, Cache: c}

	r := chi.NewRouter()
	r.Use(httpx.WithRequestID)
	r.Use(httpx.WithRecover)
	r.Use(httpx.WithMetrics)
	r.Use(httpx.WithLogging)
	r.Use(httpx.WithSecurityHeaders)

	r.Post("/tokens", th.Issue)
	r.Delete("/tokens/{id}", th.Revoke)
	r.Group(func(r chi.Router) {
		r.Use(httpx.WithBearerAuth(svc, c, authTTL))
		r.Get("/tokens/{id}", th.Inspect)
	})

	r.Get("/healthz", Healthz)
	r.Get("/readyz", Readyz(store))
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	return r
}
