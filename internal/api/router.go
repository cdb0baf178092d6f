package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/devjobs/devjobs-api/docs"
	"github.com/devjobs/devjobs-api/internal/api/access"
	"github.com/devjobs/devjobs-api/internal/api/handler"
	"github.com/devjobs/devjobs-api/internal/api/middleware"
	"github.com/devjobs/devjobs-api/internal/core/domain"
	"github.com/devjobs/devjobs-api/internal/core/ports"
)

// Options wires the router to its collaborators.
type Options struct {
	// Prefix is the API path prefix; it defaults to "/api".
	Prefix      string
	AuthService ports.AuthService
	Log         zerolog.Logger

	// Readiness checks run by /health/ready.
	Checks []handler.DependencyCheck

	// LoginRate and LoginBurst bound login requests per client IP. A zero
	// rate disables the limiter.
	LoginRate  float64
	LoginBurst int

	// Metrics receives the HTTP metrics. Nil means the Prometheus default
	// registry.
	Metrics *prometheus.Registry
}

// NewRouter builds the Echo instance with every route registered through the
// access registry. It fails when an API route escaped the registry.
func NewRouter(opts Options) (*echo.Echo, *access.Registry, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "/api"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(e, prefix, opts.Log)

	registry := access.NewRegistry(e)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(opts.Log))
	e.Use(echomiddleware.BodyLimit("1M"))
	e.Use(prometheusMiddleware(opts.Metrics))
	e.Use(middleware.Gate(registry, opts.AuthService, opts.Log))

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(opts.AuthService)

	public := registry.Group(prefix+"/auth", nil)
	public.POST("/register", authHandler.Register)
	public.POST("/login", authHandler.Login, access.WithMiddleware(loginLimiter(opts.LoginRate, opts.LoginBurst)...))

	session := registry.Group(prefix+"/auth", access.Require())
	session.POST("/logout", authHandler.Logout)
	session.POST("/refresh", authHandler.Refresh)
	session.GET("/me", authHandler.Me)
	session.POST("/change-password", authHandler.ChangePassword)

	// --- Admin routes ---
	adminHandler := handler.NewAdminHandler(opts.AuthService)

	admin := registry.Group(prefix+"/admin", access.Require(domain.RoleAdmin))
	admin.GET("/users/:id", adminHandler.GetUser)
	admin.POST("/users/:id/roles", adminHandler.AddRole)
	admin.DELETE("/users/:id/roles/:role", adminHandler.RemoveRole)
	admin.POST("/tokens/purge", adminHandler.PurgeTokens)
	admin.POST("/users/:id/tokens", adminHandler.IssueToken, access.WithPolicy(access.Require(domain.RoleAdmin)))

	// --- Health probes, metrics and docs (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(opts.Checks...)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", prometheusHandler(opts.Metrics))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	if err := registry.Verify(prefix); err != nil {
		return nil, nil, fmt.Errorf("router: %w", err)
	}
	return e, registry, nil
}

func prometheusMiddleware(reg *prometheus.Registry) echo.MiddlewareFunc {
	cfg := echoprometheus.MiddlewareConfig{
		Subsystem: "devjobs",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}
	if reg != nil {
		cfg.Registerer = reg
	}
	return echoprometheus.NewMiddlewareWithConfig(cfg)
}

func prometheusHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{reg, prometheus.DefaultGatherer},
	})
}

// loginLimiter throttles login requests per client IP with an in-memory
// token bucket.
func loginLimiter(perSecond float64, burst int) []echo.MiddlewareFunc {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:  rate.Limit(perSecond),
		Burst: burst,
	})
	return []echo.MiddlewareFunc{echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})}
}
