// Package server exposes the pool over HTTP. Mutating operations go
// straight to the engine; list-style reads are served from the Postgres
// projections, which lag the engine by the projection channel depth.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"RiskPool/internal/engine"
	"RiskPool/internal/gate"
	"RiskPool/internal/observability"
	"RiskPool/internal/query"
)

// Server wires the chi router to the engine and the read-side query
// service. query may be nil when the projection database is absent; the
// projection-backed routes then return 503.
type Server struct {
	engine   *engine.Engine
	query    *query.Service
	verifier *gate.TokenVerifier
	health   *observability.HealthChecker
	metrics  *observability.Metrics
	logger   zerolog.Logger

	httpServer *http.Server
}

func NewServer(
	addr string,
	eng *engine.Engine,
	qs *query.Service,
	verifier *gate.TokenVerifier,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		engine:   eng,
		query:    qs,
		verifier: verifier,
		health:   health,
		metrics:  metrics,
		logger:   logger.With().Str("component", "http").Logger(),
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed separately so tests can drive
// the handlers through httptest without binding a socket.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	if s.health != nil {
		r.Get("/healthz", s.health.LivenessHandler)
		r.Get("/readyz", s.health.ReadinessHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/deposits", s.handleDeposit)
		r.Post("/policies", s.handlePurchasePolicy)
		r.Post("/withdrawals", s.handleWithdraw)

		r.Post("/settlements", s.handleSettle)
		r.Put("/reserve-ratio", s.handleSetReserveRatio)
		r.Post("/pause", s.handlePause)
		r.Post("/unpause", s.handleUnpause)

		r.Get("/pool", s.handlePoolState)
		r.Get("/accounts/{account}/shares", s.handleShareBalance)
		r.Get("/policies/{id}", s.handlePolicyByID)
		r.Get("/policies", s.handlePoliciesByOwner)
		r.Get("/settlements/recent", s.handleRecentSettlements)
	})

	return r
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// instrument records per-route request counts and latency. The chi
// route pattern is used as the endpoint label so path parameters do not
// explode cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(ww.Status())).Inc()
		s.metrics.HTTPDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	})
}
