package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devjobs/devjobs-api/internal/api/access"
	"github.com/devjobs/devjobs-api/internal/api/handler"
	"github.com/devjobs/devjobs-api/internal/core/domain"
)

type stubValidator struct {
	tokens map[string]*domain.Identity
	err    error
	calls  int
}

func (s *stubValidator) ValidateToken(_ context.Context, authorization string) (*domain.Identity, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if id, ok := s.tokens[authorization]; ok {
		return id, nil
	}
	return nil, domain.ErrUnauthenticated
}

type gateHarness struct {
	e         *echo.Echo
	validator *stubValidator
	lastErr   error
	reached   *domain.Identity
	hits      int
}

func newGateHarness(t *testing.T) *gateHarness {
	t.Helper()
	user := domain.NewIdentity("u@x.com", "h", "", "", nil)
	user.ID = 1
	admin := domain.NewIdentity("a@x.com", "h", "", "", []string{domain.RoleAdmin})
	admin.ID = 2

	h := &gateHarness{
		e:         echo.New(),
		validator: &stubValidator{tokens: map[string]*domain.Identity{"user-token": user, "admin-token": admin}},
	}
	h.e.HTTPErrorHandler = func(err error, c echo.Context) {
		h.lastErr = err
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrUnauthenticated):
			code = http.StatusUnauthorized
		case errors.Is(err, domain.ErrForbidden):
			code = http.StatusForbidden
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
		}
		_ = c.NoContent(code)
	}

	reg := access.NewRegistry(h.e)
	h.e.Use(Gate(reg, h.validator, zerolog.Nop()))

	endpoint := func(c echo.Context) error {
		h.hits++
		h.reached, _ = handler.IdentityFrom(c)
		return c.NoContent(http.StatusOK)
	}

	reg.Group("/api/public", nil).GET("/ping", endpoint)
	reg.Group("/api/me", access.Require()).GET("", endpoint)
	reg.Group("/api/admin", access.Require(domain.RoleAdmin)).GET("/stats", endpoint)
	reg.Group("/api/mixed", nil).POST("/only-admin", endpoint, access.WithPolicy(access.Require(domain.RoleAdmin)))
	reg.Group("/api/override", access.Require(domain.RoleAdmin)).GET("/open-to-users", endpoint, access.WithPolicy(access.Require(domain.RoleUser)))
	return h
}

func (h *gateHarness) do(method, path, authorization string) int {
	h.lastErr, h.reached = nil, nil
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec.Code
}

func TestGate_PublicRouteNeedsNoHeader(t *testing.T) {
	h := newGateHarness(t)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/public/ping", ""))
	assert.Nil(t, h.reached)
	assert.Zero(t, h.validator.calls, "no token lookup on public routes")
}

func TestGate_MissingHeaderIsUnauthenticated(t *testing.T) {
	h := newGateHarness(t)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/me", ""))
	assert.ErrorIs(t, h.lastErr, domain.ErrUnauthenticated)
	assert.Zero(t, h.hits, "handler body never runs")
}

func TestGate_UnknownTokenIsUnauthenticated(t *testing.T) {
	h := newGateHarness(t)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/me", "nope"))
	assert.ErrorIs(t, h.lastErr, domain.ErrUnauthenticated)
}

func TestGate_BaselinePolicyAdmitsAnyIdentity(t *testing.T) {
	h := newGateHarness(t)

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/me", "user-token"))
	require.NotNil(t, h.reached)
	assert.Equal(t, int64(1), h.reached.ID)
}

func TestGate_GroupPolicyForbidsMissingRole(t *testing.T) {
	h := newGateHarness(t)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/admin/stats", "user-token"))
	assert.ErrorIs(t, h.lastErr, domain.ErrForbidden)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/admin/stats", "admin-token"))
}

func TestGate_RouteLevelPolicy(t *testing.T) {
	h := newGateHarness(t)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/api/mixed/only-admin", "user-token"))
	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/mixed/only-admin", "admin-token"))
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/mixed/only-admin", ""))
}

func TestGate_RoutePolicyOverridesGroup(t *testing.T) {
	h := newGateHarness(t)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/override/open-to-users", "user-token"))
}

func TestGate_ValidatorFailurePropagates(t *testing.T) {
	h := newGateHarness(t)
	boom := errors.New("store offline")
	h.validator.err = boom

	assert.Equal(t, http.StatusInternalServerError, h.do(http.MethodGet, "/api/me", "user-token"))
	assert.ErrorIs(t, h.lastErr, boom)
}

func TestGate_UnknownRouteFallsThroughToNotFound(t *testing.T) {
	h := newGateHarness(t)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/nowhere", ""))
	assert.Zero(t, h.validator.calls)
}
