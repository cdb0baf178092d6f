package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/devjobs/devjobs-api/internal/core/domain"
	"github.com/devjobs/devjobs-api/internal/core/ports"
)

// stubAuthService implements ports.AuthService with overridable functions.
// Calling a method whose function is nil panics, which fails the test.
type stubAuthService struct {
	authenticateFn   func(ctx context.Context, email, password string) (*ports.Session, error)
	registerFn       func(ctx context.Context, in ports.RegisterInput) (*domain.Identity, error)
	provisionFn      func(ctx context.Context, in ports.ProvisionInput) (*domain.Identity, error)
	refreshFn        func(ctx context.Context, identity *domain.Identity) (*ports.Session, error)
	issueTokenFn     func(ctx context.Context, identity *domain.Identity, ttl time.Duration) (*ports.Session, error)
	logoutFn         func(ctx context.Context, identity *domain.Identity) error
	changePasswordFn func(ctx context.Context, identity *domain.Identity, current, next string) error
	validateTokenFn  func(ctx context.Context, authorization string) (*domain.Identity, error)
	findIdentityFn   func(ctx context.Context, id int64) (*domain.Identity, error)
	addRoleFn        func(ctx context.Context, identity *domain.Identity, role string) error
	removeRoleFn     func(ctx context.Context, identity *domain.Identity, role string) error
	cleanFn          func(ctx context.Context) (int64, error)
}

func (s *stubAuthService) Authenticate(ctx context.Context, email, password string) (*ports.Session, error) {
	return s.authenticateFn(ctx, email, password)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Identity, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Provision(ctx context.Context, in ports.ProvisionInput) (*domain.Identity, error) {
	return s.provisionFn(ctx, in)
}

func (s *stubAuthService) Refresh(ctx context.Context, identity *domain.Identity) (*ports.Session, error) {
	return s.refreshFn(ctx, identity)
}

func (s *stubAuthService) IssueToken(ctx context.Context, identity *domain.Identity, ttl time.Duration) (*ports.Session, error) {
	return s.issueTokenFn(ctx, identity, ttl)
}

func (s *stubAuthService) Logout(ctx context.Context, identity *domain.Identity) error {
	return s.logoutFn(ctx, identity)
}

func (s *stubAuthService) ChangePassword(ctx context.Context, identity *domain.Identity, current, next string) error {
	return s.changePasswordFn(ctx, identity, current, next)
}

func (s *stubAuthService) ValidateToken(ctx context.Context, authorization string) (*domain.Identity, error) {
	return s.validateTokenFn(ctx, authorization)
}

func (s *stubAuthService) FindIdentity(ctx context.Context, id int64) (*domain.Identity, error) {
	return s.findIdentityFn(ctx, id)
}

func (s *stubAuthService) HasRole(identity *domain.Identity, role string) bool {
	return identity.HasRole(role)
}

func (s *stubAuthService) AddRole(ctx context.Context, identity *domain.Identity, role string) error {
	return s.addRoleFn(ctx, identity, role)
}

func (s *stubAuthService) RemoveRole(ctx context.Context, identity *domain.Identity, role string) error {
	return s.removeRoleFn(ctx, identity, role)
}

func (s *stubAuthService) IsTokenExpiringSoon(identity *domain.Identity) bool {
	return identity.TokenExpiresAt == nil
}

func (s *stubAuthService) CleanExpiredTokens(ctx context.Context) (int64, error) {
	return s.cleanFn(ctx)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonRequest(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func testIdentity(id int64, email string, roles ...string) *domain.Identity {
	identity := domain.NewIdentity(email, "hash", "", "", roles)
	identity.ID = id
	return identity
}
