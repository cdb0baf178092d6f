package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/devjobs/devjobs-api/internal/api/access"
	"github.com/devjobs/devjobs-api/internal/api/handler"
	"github.com/devjobs/devjobs-api/internal/api/metrics"
	"github.com/devjobs/devjobs-api/internal/core/domain"
)

// TokenValidator resolves the identity behind an Authorization header value.
type TokenValidator interface {
	ValidateToken(ctx context.Context, authorization string) (*domain.Identity, error)
}

// Gate enforces the access policy registered for the matched route before
// the handler runs. It must be installed with e.Use so routing has already
// set c.Path() to the route template.
//
// Routes without a policy pass through untouched. Otherwise the request needs
// a valid token (ErrUnauthenticated) whose identity holds one of the policy
// roles (ErrForbidden). On success the identity is stored for handlers.
func Gate(registry *access.Registry, tokens TokenValidator, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			method, path := c.Request().Method, c.Path()

			policy, level, ok := registry.Resolve(method, path)
			if !ok {
				metrics.GateDecisionsTotal.WithLabelValues("public").Inc()
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if strings.TrimSpace(header) == "" {
				return reject(log, c, "unauthenticated", domain.ErrUnauthenticated)
			}

			identity, err := tokens.ValidateToken(c.Request().Context(), header)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					return reject(log, c, "unauthenticated", err)
				}
				metrics.GateDecisionsTotal.WithLabelValues("error").Inc()
				return err
			}

			if !policy.Allows(identity) {
				log.Debug().
					Int64("identity_id", identity.ID).
					Strs("required", policy.Roles()).
					Str("level", string(level)).
					Msg("role check failed")
				return reject(log, c, "forbidden", domain.ErrForbidden)
			}

			handler.SetIdentity(c, identity)
			metrics.GateDecisionsTotal.WithLabelValues("forwarded").Inc()
			return next(c)
		}
	}
}

func reject(log zerolog.Logger, c echo.Context, outcome string, err error) error {
	metrics.GateDecisionsTotal.WithLabelValues(outcome).Inc()
	log.Debug().
		Str("method", c.Request().Method).
		Str("route", c.Path()).
		Str("outcome", outcome).
		Msg("request rejected")
	return err
}
