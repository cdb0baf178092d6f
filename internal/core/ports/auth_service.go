package ports

import (
	"context"
	"time"

	"github.com/devjobs/devjobs-api/internal/core/domain"
)

// RegisterInput is the self-service registration payload.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// ProvisionInput creates an identity with an explicit role set (admin
// provisioning, seeding).
type ProvisionInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Roles     []string
}

// Session is the result of a login or refresh.
type Session struct {
	Identity  *domain.Identity
	Token     string
	ExpiresAt time.Time
}

type AuthService interface {
	Authenticate(ctx context.Context, email, password string) (*Session, error)
	Register(ctx context.Context, in RegisterInput) (*domain.Identity, error)
	Provision(ctx context.Context, in ProvisionInput) (*domain.Identity, error)
	Refresh(ctx context.Context, identity *domain.Identity) (*Session, error)
	IssueToken(ctx context.Context, identity *domain.Identity, ttl time.Duration) (*Session, error)
	Logout(ctx context.Context, identity *domain.Identity) error
	ChangePassword(ctx context.Context, identity *domain.Identity, current, next string) error

	// ValidateToken resolves the identity holding the token carried by an
	// Authorization header value.
	ValidateToken(ctx context.Context, authorization string) (*domain.Identity, error)
	FindIdentity(ctx context.Context, id int64) (*domain.Identity, error)

	HasRole(identity *domain.Identity, role string) bool
	AddRole(ctx context.Context, identity *domain.Identity, role string) error
	RemoveRole(ctx context.Context, identity *domain.Identity, role string) error
	IsTokenExpiringSoon(identity *domain.Identity) bool

	CleanExpiredTokens(ctx context.Context) (int64, error)
}
