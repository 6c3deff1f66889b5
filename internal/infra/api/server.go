package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pawplan/internal/config"
	"pawplan/internal/domain/delivery"
	"pawplan/internal/infra/logging"
	"pawplan/internal/infra/redis"
	"pawplan/internal/usecase"
)

// Limiter is a per-key request budget. *redis.RateLimiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Deps struct {
	Quotes   usecase.QuoteUseCase
	Plans    usecase.PlanUseCase
	Orders   usecase.OrderUseCase
	Webhooks usecase.WebhookUseCase
	Zips     *delivery.Validator
	Verifier *IdentityVerifier

	Limiter        Limiter // optional
	QuoteRateLimit int     // per client per minute
	Health         func(ctx context.Context) error
	RequestTimeout time.Duration
}

type Server struct {
	Deps
	log *zerolog.Logger
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 10 * time.Second
	}
	if d.QuoteRateLimit <= 0 {
		d.QuoteRateLimit = 60
	}
	l := logger.With().Str("component", "http").Logger()
	return &Server{Deps: d, log: &l}
}

// Routes builds the full router: REST API, provider webhook, metrics and health.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.With(Timeout(s.RequestTimeout)).Post("/webhooks/stripe", s.handleStripeWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(s.RequestTimeout), Authenticate(s.Verifier, s.log))

		r.Get("/recipes", s.handleRecipes)
		r.With(s.rateLimit("quote", s.QuoteRateLimit)).Post("/quotes", s.handleQuote)
		r.Post("/delivery/check", s.handleDeliveryCheck)

		r.Post("/plans", s.handleCreatePlan)
		r.Post("/plans/claim", s.handleClaimPlan)
		r.Get("/plans/{id}", s.handleGetPlan)
		r.Delete("/plans/{id}", s.handleCancelPlan)
		r.Post("/plans/{id}/dogs", s.handleAddDog)
		r.Post("/plans/{id}/checkout", s.handleCheckout)

		r.Get("/orders", s.handleListOrders)
		r.Patch("/admin/orders/{id}", s.handleUpdateOrder)
	})
	return r
}

// NewHTTPServer applies the configured timeouts.
func NewHTTPServer(cfg config.HTTPConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

func (s *Server) logFor(r *http.Request) *zerolog.Logger {
	return logging.With(r.Context(), s.log)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.Health(ctx); err != nil {
			s.logFor(r).Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// rateLimit budgets requests per client IP per minute. A limiter outage lets requests through.
func (s *Server) rateLimit(scope string, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.Limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := s.Limiter.Allow(r.Context(), redis.ClientKey(scope, clientIP(r)), perMinute, time.Minute)
			if err != nil {
				s.logFor(r).Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "too many requests, try again in a minute")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
