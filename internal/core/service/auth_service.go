package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/devjobs/devjobs-api/internal/core/domain"
	"github.com/devjobs/devjobs-api/internal/core/ports"
)

const (
	// DefaultPasswordMinLength applies when no override is configured.
	DefaultPasswordMinLength = 6

	// expiringSoonWindow is how close to expiry a token counts as expiring soon.
	expiringSoonWindow = 2 * time.Hour

	bearerPrefix = "bearer "

	// dummyPassword is hashed at construction to give unknown emails a real
	// hash to verify against.
	dummyPassword = "devjobs-timing-equaliser"
)

// AuthService implements registration, login and the token-backed session
// operations on top of a CredentialStore.
type AuthService struct {
	store             ports.CredentialStore
	hasher            ports.PasswordHasher
	issuer            *TokenIssuer
	throttle          ports.LoginThrottle
	minPasswordLength int
	log               zerolog.Logger

	dummyHash string
}

type AuthOption func(*AuthService)

// WithLoginThrottle enables per-account lockout after repeated failures.
func WithLoginThrottle(t ports.LoginThrottle) AuthOption {
	return func(s *AuthService) { s.throttle = t }
}

// WithPasswordMinLength overrides DefaultPasswordMinLength.
func WithPasswordMinLength(n int) AuthOption {
	return func(s *AuthService) {
		if n > 0 {
			s.minPasswordLength = n
		}
	}
}

func NewAuthService(
	store ports.CredentialStore,
	hasher ports.PasswordHasher,
	issuer *TokenIssuer,
	log zerolog.Logger,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		store:             store,
		hasher:            hasher,
		issuer:            issuer,
		minPasswordLength: DefaultPasswordMinLength,
		log:               log,
	}
	for _, opt := range opts {
		opt(s)
	}

	hash, err := hasher.Hash(dummyPassword)
	if err != nil {
		log.Error().Err(err).Msg("dummy hash generation failed")
	}
	s.dummyHash = hash
	return s
}

var _ ports.AuthService = (*AuthService)(nil)

// Authenticate checks an email/password pair and starts a new session.
// An unknown email and a wrong password both yield ErrInvalidCredentials and
// both pay for one hash verification.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*ports.Session, error) {
	if s.throttle != nil {
		allowed, err := s.throttle.Allowed(ctx, email)
		if err != nil {
			s.log.Warn().Err(err).Msg("login throttle check failed, continuing")
		} else if !allowed {
			return nil, domain.ErrTooManyAttempts
		}
	}

	identity, err := s.store.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if identity == nil {
		s.hasher.Verify(password, s.dummyHash)
		s.recordFailure(ctx, email)
		return nil, domain.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, identity.PasswordHash) {
		s.recordFailure(ctx, email)
		return nil, domain.ErrInvalidCredentials
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, email); err != nil {
			s.log.Warn().Err(err).Msg("login throttle reset failed")
		}
	}

	return s.startSession(ctx, identity, 0)
}

// Register creates an identity holding only the baseline role.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Identity, error) {
	return s.create(ctx, in.Email, in.Password, in.FirstName, in.LastName, nil)
}

// Provision creates an identity with an explicit role set.
func (s *AuthService) Provision(ctx context.Context, in ports.ProvisionInput) (*domain.Identity, error) {
	for _, r := range in.Roles {
		if err := validateRole(r); err != nil {
			return nil, err
		}
	}
	return s.create(ctx, in.Email, in.Password, in.FirstName, in.LastName, in.Roles)
}

func (s *AuthService) create(ctx context.Context, email, password, firstName, lastName string, roles []string) (*domain.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, domain.NewValidationError("email", "email is required")
	}
	if err := s.validatePassword("password", password); err != nil {
		return nil, err
	}

	// Fast path only; the store's unique index is what makes this race-free.
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrDuplicateIdentity
	} else if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, fmt.Errorf("register: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	identity := domain.NewIdentity(email, hash, firstName, lastName, roles)
	if err := s.store.Create(ctx, identity); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	s.log.Info().Int64("identity_id", identity.ID).Strs("roles", identity.Roles()).Msg("identity created")
	return identity, nil
}

// Refresh replaces the caller's token even if it has not expired.
func (s *AuthService) Refresh(ctx context.Context, identity *domain.Identity) (*ports.Session, error) {
	return s.startSession(ctx, identity, 0)
}

// IssueToken starts a session with a custom lifetime. A non-positive ttl
// uses the issuer default.
func (s *AuthService) IssueToken(ctx context.Context, identity *domain.Identity, ttl time.Duration) (*ports.Session, error) {
	return s.startSession(ctx, identity, ttl)
}

func (s *AuthService) startSession(ctx context.Context, identity *domain.Identity, ttl time.Duration) (*ports.Session, error) {
	token, expiresAt, err := s.issuer.IssueWithTTL(ctx, identity, ttl)
	if err != nil {
		return nil, err
	}
	return &ports.Session{Identity: identity, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) Logout(ctx context.Context, identity *domain.Identity) error {
	return s.issuer.Invalidate(ctx, identity)
}

// ChangePassword replaces the password hash after verifying the current
// password. The active token stays valid.
func (s *AuthService) ChangePassword(ctx context.Context, identity *domain.Identity, current, next string) error {
	if !s.hasher.Verify(current, identity.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	if err := s.validatePassword("new_password", next); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	return s.mutate(ctx, identity, func(fresh *domain.Identity) bool {
		fresh.PasswordHash = hash
		return true
	})
}

// ValidateToken resolves the identity behind an Authorization header value.
// The value may carry a "Bearer " scheme (any case) or be the bare token.
func (s *AuthService) ValidateToken(ctx context.Context, authorization string) (*domain.Identity, error) {
	token := bearerToken(authorization)
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	identity, err := s.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("validate token: %w", err)
	}
	if !s.issuer.IsValid(identity) {
		return nil, domain.ErrUnauthenticated
	}
	return identity, nil
}

func (s *AuthService) FindIdentity(ctx context.Context, id int64) (*domain.Identity, error) {
	return s.store.FindByID(ctx, id)
}

func (s *AuthService) HasRole(identity *domain.Identity, role string) bool {
	return identity.HasRole(role)
}

// AddRole stores role on the identity. Adding a role already held is a no-op.
func (s *AuthService) AddRole(ctx context.Context, identity *domain.Identity, role string) error {
	if err := validateRole(role); err != nil {
		return err
	}
	return s.mutate(ctx, identity, func(fresh *domain.Identity) bool {
		return fresh.AddRole(role)
	})
}

// RemoveRole drops role from the stored set. Removing the baseline role is
// accepted; Roles keeps reporting it.
func (s *AuthService) RemoveRole(ctx context.Context, identity *domain.Identity, role string) error {
	if err := validateRole(role); err != nil {
		return err
	}
	return s.mutate(ctx, identity, func(fresh *domain.Identity) bool {
		return fresh.RemoveRole(role)
	})
}

// mutate reloads the identity, applies fn and saves the profile when fn
// reports a change. Save never writes the token fields, so a refresh or
// logout racing with the change stays in effect. identity is updated to the
// reloaded state.
func (s *AuthService) mutate(ctx context.Context, identity *domain.Identity, fn func(*domain.Identity) bool) error {
	fresh, err := s.store.FindByID(ctx, identity.ID)
	if err != nil {
		return err
	}
	if !fn(fresh) {
		*identity = *fresh
		return nil
	}
	fresh.Touch(s.issuer.Now())
	if err := s.store.Save(ctx, fresh); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	*identity = *fresh
	return nil
}

// IsTokenExpiringSoon reports whether the identity's token is missing or
// expires within the next two hours.
func (s *AuthService) IsTokenExpiringSoon(identity *domain.Identity) bool {
	if identity.TokenExpiresAt == nil {
		return true
	}
	return !identity.TokenExpiresAt.After(s.issuer.Now().Add(expiringSoonWindow))
}

// CleanExpiredTokens clears every token whose expiry has passed.
func (s *AuthService) CleanExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredTokens(ctx, s.issuer.Now())
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	s.log.Info().Int64("cleared", n).Msg("expired tokens purged")
	return n, nil
}

func (s *AuthService) validatePassword(field, password string) error {
	if len(password) < s.minPasswordLength {
		return domain.NewValidationError(field,
			fmt.Sprintf("%s must be at least %d characters", field, s.minPasswordLength))
	}
	return nil
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, email); err != nil {
		s.log.Warn().Err(err).Msg("login throttle record failed")
	}
}

// bearerToken trims the header value and strips a case-insensitive
// "Bearer " scheme.
func bearerToken(authorization string) string {
	v := strings.TrimSpace(authorization)
	if len(v) >= len(bearerPrefix) && strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		v = strings.TrimSpace(v[len(bearerPrefix):])
	}
	return v
}

// validateRole accepts role names of the form ROLE_<UPPER_SNAKE>.
func validateRole(role string) error {
	name, ok := strings.CutPrefix(role, "ROLE_")
	if !ok || name == "" {
		return domain.NewValidationError("role", "role must look like ROLE_NAME")
	}
	for _, r := range name {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return domain.NewValidationError("role", "role must look like ROLE_NAME")
		}
	}
	return nil
}
