package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fastid/fastid/internal/logging"
	"github.com/fastid/fastid/internal/server/ratelimit"
)

const maxBodyBytes = 1 << 20

type RouterConfig struct {
	Auth    Authenticator
	Setup   SetupService
	Limiter ratelimit.Limiter
	Metrics *Metrics
	Logger  logging.Logger

	// RequestTimeout bounds every request; zero disables the bound.
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := &handlers{
		auth:    cfg.Auth,
		setup:   cfg.Setup,
		limiter: cfg.Limiter,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	if h.limiter == nil {
		h.limiter = ratelimit.Disabled{}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.Middleware)
	r.Use(middleware.RequestSize(maxBodyBytes))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthcheck/", h.healthcheck)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/v1/internal", func(r chi.Router) {
		r.Post("/signin/", h.signIn)
		r.Post("/refresh_token/", h.refreshToken)
		r.Post("/signout/", h.signOut)
		r.Get("/info/", h.info)
		r.Get("/config/", h.config)
		r.Post("/setup/", h.bootstrap)
	})

	return r
}
