package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/devjobs/devjobs-api/internal/core/domain"
	"github.com/devjobs/devjobs-api/internal/core/ports"
)

func TestAuthHandler_Register_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*domain.Identity, error) {
			if in.Email != "u@x.com" || in.Password != "secret1" || in.FirstName != "Ada" {
				t.Fatalf("unexpected input: %+v", in)
			}
			id := domain.NewIdentity(in.Email, "hash", in.FirstName, in.LastName, nil)
			id.ID = 1
			return id, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/api/auth/register", `{"email":"u@x.com","password":"secret1","first_name":"Ada"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	body := rec.Body.String()
	if strings.Contains(body, "hash") || strings.Contains(body, "password") {
		t.Fatalf("password material leaked: %s", body)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["email"] != "u@x.com" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	roles, _ := resp["roles"].([]any)
	if len(roles) != 1 || roles[0] != domain.RoleUser {
		t.Fatalf("unexpected roles: %+v", resp["roles"])
	}
}

func TestAuthHandler_Register_Duplicate(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*domain.Identity, error) {
			return nil, domain.ErrDuplicateIdentity
		},
	}
	h := NewAuthHandler(stub)

	c, _ := jsonRequest(e, http.MethodPost, "/api/auth/register", `{"email":"u@x.com","password":"secret1"}`)
	if err := h.Register(c); !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestAuthHandler_Register_ValidationFailure(t *testing.T) {
	e := newTestEcho()
	h := NewAuthHandler(&stubAuthService{})

	c, _ := jsonRequest(e, http.MethodPost, "/api/auth/register", `{"email":"not-an-email"}`)
	err := h.Register(c)

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := map[string]string{}
	for _, v := range ve.Violations {
		fields[v.Field] = v.Message
	}
	if fields["email"] != "email must be a valid email" {
		t.Fatalf("unexpected email message: %q", fields["email"])
	}
	if fields["password"] != "password is required" {
		t.Fatalf("unexpected password message: %q", fields["password"])
	}
}

func TestAuthHandler_Register_MalformedJSON(t *testing.T) {
	e := newTestEcho()
	h := NewAuthHandler(&stubAuthService{})

	c, _ := jsonRequest(e, http.MethodPost, "/api/auth/register", `{"email":`)
	err := h.Register(c)
	if err == nil || errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected bind error, got %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newTestEcho()
	expires := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	stub := &stubAuthService{
		authenticateFn: func(ctx context.Context, email, password string) (*ports.Session, error) {
			return &ports.Session{Identity: testIdentity(3, email), Token: "tok123", ExpiresAt: expires}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/api/auth/login", `{"email":"u@x.com","password":"secret1"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Token != "tok123" || !resp.ExpiresAt.Equal(expires) || resp.User.ID != 3 {
		t.Fatalf("unexpected session: %+v", resp)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		authenticateFn: func(ctx context.Context, email, password string) (*ports.Session, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	h := NewAuthHandler(stub)

	c, _ := jsonRequest(e, http.MethodPost, "/api/auth/login", `{"email":"u@x.com","password":"bad"}`)
	if err := h.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_ProtectedRoutesRequireIdentity(t *testing.T) {
	e := newTestEcho()
	h := NewAuthHandler(&stubAuthService{})

	for name, fn := range map[string]echo.HandlerFunc{
		"logout":  h.Logout,
		"refresh": h.Refresh,
		"me":      h.Me,
	} {
		c, _ := jsonRequest(e, http.MethodPost, "/api/auth/"+name, ``)
		if err := fn(c); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}
}

func TestAuthHandler_Me(t *testing.T) {
	e := newTestEcho()
	h := NewAuthHandler(&stubAuthService{})
	identity := testIdentity(5, "me@x.com", domain.RoleAdmin)
	identity.SetToken("tok", time.Now().Add(time.Hour))

	c, rec := jsonRequest(e, http.MethodGet, "/api/auth/me", ``)
	SetIdentity(c, identity)
	if err := h.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["email"] != "me@x.com" || resp["token_expiring_soon"] != false {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if _, ok := resp["token"]; ok {
		t.Fatalf("token must not be echoed back: %+v", resp)
	}
}

func TestAuthHandler_LogoutAndRefresh(t *testing.T) {
	e := newTestEcho()
	identity := testIdentity(9, "u@x.com")
	var loggedOut bool
	stub := &stubAuthService{
		logoutFn: func(ctx context.Context, got *domain.Identity) error {
			loggedOut = got.ID == identity.ID
			return nil
		},
		refreshFn: func(ctx context.Context, got *domain.Identity) (*ports.Session, error) {
			return &ports.Session{Identity: got, Token: "fresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/api/auth/refresh", ``)
	SetIdentity(c, identity)
	if err := h.Refresh(c); err != nil {
		t.Fatalf("refresh error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"token":"fresh"`) {
		t.Fatalf("unexpected refresh body: %s", rec.Body.String())
	}

	c, rec = jsonRequest(e, http.MethodPost, "/api/auth/logout", ``)
	SetIdentity(c, identity)
	if err := h.Logout(c); err != nil {
		t.Fatalf("logout error: %v", err)
	}
	if !loggedOut || rec.Code != http.StatusOK {
		t.Fatalf("logout not applied (code %d)", rec.Code)
	}
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		changePasswordFn: func(ctx context.Context, identity *domain.Identity, current, next string) error {
			if current != "old-pass" || next != "new-pass" {
				return domain.ErrInvalidCredentials
			}
			return nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/api/auth/change-password", `{"current_password":"old-pass","new_password":"new-pass"}`)
	SetIdentity(c, testIdentity(1, "u@x.com"))
	if err := h.ChangePassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, _ = jsonRequest(e, http.MethodPost, "/api/auth/change-password", `{"current_password":"wrong","new_password":"new-pass"}`)
	SetIdentity(c, testIdentity(1, "u@x.com"))
	if err := h.ChangePassword(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
