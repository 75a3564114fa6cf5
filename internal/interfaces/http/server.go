// Package http exposes the service over a REST API: catalog reads, card and
// strategy CRUD, and compilation.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/stratdeck/stratdeck/internal/config"
	"github.com/stratdeck/stratdeck/internal/metrics"
	"github.com/stratdeck/stratdeck/internal/service"
)

// Server wraps the HTTP listener around the service.
type Server struct {
	svc     *service.Service
	metrics *metrics.Registry
	log     zerolog.Logger
	cfg     config.ServerConfig
	limiter *rate.Limiter
	srv     *http.Server
}

// NewServer builds the server with its full route table and middleware
// chain.
func NewServer(svc *service.Service, m *metrics.Registry, log zerolog.Logger, cfg config.ServerConfig) *Server {
	s := &Server{
		svc:     svc,
		metrics: m,
		log:     log,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}

	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.rateLimitMiddleware)
	r.Use(s.timeoutMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/archetypes", s.handleListArchetypes).Methods(http.MethodGet)
	v1.HandleFunc("/archetypes/{type_id}/schema", s.handleGetSchema).Methods(http.MethodGet)
	v1.HandleFunc("/archetypes/{type_id}/example", s.handleGetExample).Methods(http.MethodGet)
	v1.HandleFunc("/archetypes/{type_id}/validate", s.handleValidateDraft).Methods(http.MethodPost)

	v1.HandleFunc("/cards", s.handleCreateCard).Methods(http.MethodPost)
	v1.HandleFunc("/cards", s.handleListCards).Methods(http.MethodGet)
	v1.HandleFunc("/cards/{id}", s.handleGetCard).Methods(http.MethodGet)
	v1.HandleFunc("/cards/{id}", s.handleUpdateCard).Methods(http.MethodPut)
	v1.HandleFunc("/cards/{id}", s.handleDeleteCard).Methods(http.MethodDelete)

	v1.HandleFunc("/strategies", s.handleCreateStrategy).Methods(http.MethodPost)
	v1.HandleFunc("/strategies", s.handleListStrategies).Methods(http.MethodGet)
	v1.HandleFunc("/strategies/{id}", s.handleGetStrategy).Methods(http.MethodGet)
	v1.HandleFunc("/strategies/{id}", s.handleUpdateStrategyMeta).Methods(http.MethodPatch)
	v1.HandleFunc("/strategies/{id}", s.handleDeleteStrategy).Methods(http.MethodDelete)
	v1.HandleFunc("/strategies/{id}/attachments", s.handleAttachCard).Methods(http.MethodPost)
	v1.HandleFunc("/strategies/{id}/attachments/{card_id}", s.handleDetachCard).Methods(http.MethodDelete)
	v1.HandleFunc("/strategies/{id}/cards", s.handleAddCard).Methods(http.MethodPost)
	v1.HandleFunc("/strategies/{id}/compile", s.handleCompile).Methods(http.MethodPost)
	v1.HandleFunc("/strategies/{id}/validate", s.handleValidateStrategy).Methods(http.MethodPost)

	s.srv = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout.Duration(),
		WriteTimeout: cfg.WriteTimeout.Duration(),
	}
	return s
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr()).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout.Duration())
	defer cancel()
	return s.srv.Shutdown(ctx)
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// statusRecorder captures the status code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := routeTemplate(r)
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, r.Method, statusClass(rec.status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		}
		reqID, _ := r.Context().Value(requestIDKey).(string)
		s.log.Info().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Code:    "RATE_LIMITED",
				Message: "too many requests",
				Hint:    "slow down and retry shortly",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout.Duration())
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
