package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/devjobs/devjobs-api/internal/api/metrics"
	"github.com/devjobs/devjobs-api/internal/core/domain"
	"github.com/devjobs/devjobs-api/internal/core/ports"
)

// AdminHandler exposes role management and token maintenance.
type AdminHandler struct {
	authService ports.AuthService
}

func NewAdminHandler(authService ports.AuthService) *AdminHandler {
	return &AdminHandler{authService: authService}
}

// GetUser returns one identity.
//
// @Summary      Get user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Identity ID"
// @Success      200  {object}  identityResponse
// @Failure      403  {object}  api.ErrorEnvelope
// @Failure      404  {object}  api.ErrorEnvelope
// @Router       /admin/users/{id} [get]
func (h *AdminHandler) GetUser(c echo.Context) error {
	identity, err := h.loadTarget(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toIdentityResponse(identity))
}

// AddRole grants a role.
//
// @Summary      Grant role
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int          true  "Identity ID"
// @Param        body  body      roleRequest  true  "Role to grant"
// @Success      200   {object}  identityResponse
// @Failure      404   {object}  api.ErrorEnvelope
// @Failure      422   {object}  api.ErrorEnvelope
// @Router       /admin/users/{id}/roles [post]
func (h *AdminHandler) AddRole(c echo.Context) error {
	identity, err := h.loadTarget(c)
	if err != nil {
		return err
	}
	var req roleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.AddRole(c.Request().Context(), identity, req.Role); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toIdentityResponse(identity))
}

// RemoveRole revokes a role. Revoking ROLE_USER is accepted but the role
// stays effective.
//
// @Summary      Revoke role
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int     true  "Identity ID"
// @Param        role  path      string  true  "Role to revoke"
// @Success      200   {object}  identityResponse
// @Failure      404   {object}  api.ErrorEnvelope
// @Router       /admin/users/{id}/roles/{role} [delete]
func (h *AdminHandler) RemoveRole(c echo.Context) error {
	identity, err := h.loadTarget(c)
	if err != nil {
		return err
	}
	if err := h.authService.RemoveRole(c.Request().Context(), identity, c.Param("role")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toIdentityResponse(identity))
}

// IssueToken starts a session for a user with a custom lifetime.
//
// @Summary      Issue token
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                true  "Identity ID"
// @Param        body  body      issueTokenRequest  true  "Token lifetime"
// @Success      201   {object}  sessionResponse
// @Failure      404   {object}  api.ErrorEnvelope
// @Failure      422   {object}  api.ErrorEnvelope
// @Router       /admin/users/{id}/tokens [post]
func (h *AdminHandler) IssueToken(c echo.Context) error {
	identity, err := h.loadTarget(c)
	if err != nil {
		return err
	}
	var req issueTokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	session, err := h.authService.IssueToken(c.Request().Context(), identity, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		return err
	}
	metrics.TokensIssuedTotal.WithLabelValues("admin").Inc()
	return c.JSON(http.StatusCreated, toSessionResponse(session))
}

// PurgeTokens clears every expired token.
//
// @Summary      Purge expired tokens
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  purgeResponse
// @Failure      403  {object}  api.ErrorEnvelope
// @Router       /admin/tokens/purge [post]
func (h *AdminHandler) PurgeTokens(c echo.Context) error {
	n, err := h.authService.CleanExpiredTokens(c.Request().Context())
	if err != nil {
		return err
	}
	metrics.ExpiredTokensPurgedTotal.Add(float64(n))
	return c.JSON(http.StatusOK, purgeResponse{Cleared: n})
}

func (h *AdminHandler) loadTarget(c echo.Context) (*domain.Identity, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return nil, domain.NewValidationError("id", "id must be a positive integer")
	}
	return h.authService.FindIdentity(c.Request().Context(), id)
}
