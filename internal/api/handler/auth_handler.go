package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/devjobs/devjobs-api/internal/api/metrics"
	"github.com/devjobs/devjobs-api/internal/core/domain"
	"github.com/devjobs/devjobs-api/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates a new account holding the baseline role.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  identityResponse
// @Failure      400   {object}  api.ErrorEnvelope
// @Failure      409   {object}  api.ErrorEnvelope
// @Failure      422   {object}  api.ErrorEnvelope
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	identity, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toIdentityResponse(identity))
}

// Login exchanges an email and password for a bearer token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      401   {object}  api.ErrorEnvelope
// @Failure      422   {object}  api.ErrorEnvelope
// @Failure      429   {object}  api.ErrorEnvelope
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.LoginDuration.Observe(time.Since(start).Seconds()) }()

	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	session, err := h.authService.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues(attemptResult(err)).Inc()
		return err
	}
	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	metrics.TokensIssuedTotal.WithLabelValues("login").Inc()

	return c.JSON(http.StatusOK, toSessionResponse(session))
}

// Logout invalidates the caller's token.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  api.ErrorEnvelope
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	identity, err := IdentityFrom(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), identity); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// Refresh replaces the caller's token with a new one.
//
// @Summary      Refresh token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  api.ErrorEnvelope
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	identity, err := IdentityFrom(c)
	if err != nil {
		return err
	}
	session, err := h.authService.Refresh(c.Request().Context(), identity)
	if err != nil {
		return err
	}
	metrics.TokensIssuedTotal.WithLabelValues("refresh").Inc()
	return c.JSON(http.StatusOK, toSessionResponse(session))
}

// Me returns the caller's profile and token status.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  meResponse
// @Failure      401  {object}  api.ErrorEnvelope
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	identity, err := IdentityFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResponse{
		identityResponse:  toIdentityResponse(identity),
		TokenExpiresAt:    identity.TokenExpiresAt,
		TokenExpiringSoon: h.authService.IsTokenExpiringSoon(identity),
	})
}

// ChangePassword replaces the caller's password. The current token stays valid.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Current and new password"
// @Success      200   {object}  messageResponse
// @Failure      401   {object}  api.ErrorEnvelope
// @Failure      422   {object}  api.ErrorEnvelope
// @Router       /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	identity, err := IdentityFrom(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.ChangePassword(c.Request().Context(), identity, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "password changed"})
}

func attemptResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "throttled"
	default:
		return "error"
	}
}
