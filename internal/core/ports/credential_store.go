package ports

import (
	"context"
	"time"

	"github.com/devjobs/devjobs-api/internal/core/domain"
)

// CredentialStore persists identities. Lookups return
// domain.ErrIdentityNotFound when nothing matches; Create returns
// domain.ErrDuplicateIdentity when the email is already taken.
type CredentialStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Identity, error)
	// FindByEmail matches the email exactly (case-sensitive).
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByToken(ctx context.Context, token string) (*domain.Identity, error)

	// Create allocates the numeric ID and inserts the identity.
	Create(ctx context.Context, identity *domain.Identity) error
	// Save overwrites the profile fields (email, names, password hash,
	// roles, updated_at). It never writes the token fields.
	Save(ctx context.Context, identity *domain.Identity) error
	// UpdateToken sets (or, with an empty token, clears) only the token
	// fields of one identity in a single write.
	UpdateToken(ctx context.Context, id int64, token string, expiresAt *time.Time) error

	// DeleteExpiredTokens clears every token whose expiry is before now and
	// returns how many identities were touched.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// PasswordHasher is the salted slow-hash capability used for passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	// Verify reports whether plain matches hash. A malformed hash is a mismatch.
	Verify(plain, hash string) bool
}
