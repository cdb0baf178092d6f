package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/devjobs/devjobs-api/internal/core/domain"
	"github.com/devjobs/devjobs-api/internal/core/ports"
)

const (
	// DefaultTokenTTL is the lifetime of a token issued without an override.
	DefaultTokenTTL = 24 * time.Hour

	// tokenBytes is the token entropy; hex encoding yields 64 characters.
	tokenBytes = 32
)

// TokenIssuer owns the bearer-token lifecycle of an identity: issue,
// invalidate and validity checks against the current clock.
type TokenIssuer struct {
	store    ports.CredentialStore
	locker   ports.IdentityLocker
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
	log      zerolog.Logger
}

type TokenIssuerOption func(*TokenIssuer)

// WithIdentityLocker serialises issuance per identity through locker.
func WithIdentityLocker(locker ports.IdentityLocker) TokenIssuerOption {
	return func(t *TokenIssuer) { t.locker = locker }
}

// WithClock replaces time.Now. Used by tests to move time forward.
func WithClock(now func() time.Time) TokenIssuerOption {
	return func(t *TokenIssuer) { t.now = now }
}

// WithTokenGenerator replaces the random token source.
func WithTokenGenerator(gen func() (string, error)) TokenIssuerOption {
	return func(t *TokenIssuer) { t.generate = gen }
}

// NewTokenIssuer returns an issuer writing through store. A non-positive ttl
// falls back to DefaultTokenTTL.
func NewTokenIssuer(store ports.CredentialStore, ttl time.Duration, log zerolog.Logger, opts ...TokenIssuerOption) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	t := &TokenIssuer{
		store:    store,
		ttl:      ttl,
		now:      time.Now,
		generate: generateToken,
		log:      log,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Issue replaces the identity's token with a fresh one valid for the default
// lifetime.
func (t *TokenIssuer) Issue(ctx context.Context, identity *domain.Identity) (string, time.Time, error) {
	return t.IssueWithTTL(ctx, identity, t.ttl)
}

// IssueWithTTL replaces the identity's token with one valid for ttl. The
// previous token stops resolving as soon as the write lands.
func (t *TokenIssuer) IssueWithTTL(ctx context.Context, identity *domain.Identity, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = t.ttl
	}

	if t.locker != nil {
		unlock, err := t.locker.Lock(ctx, identity.ID)
		if err != nil {
			t.log.Warn().Err(err).Int64("identity_id", identity.ID).Msg("identity lock unavailable, issuing anyway")
		}
		defer unlock()
	}

	token, err := t.generate()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := t.now().Add(ttl).UTC()

	if err := t.store.UpdateToken(ctx, identity.ID, token, &expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("issue token: %w", err)
	}

	identity.SetToken(token, expiresAt)
	identity.Touch(t.now())
	return token, expiresAt, nil
}

// Invalidate clears the identity's token. An identity without a token is left
// untouched.
func (t *TokenIssuer) Invalidate(ctx context.Context, identity *domain.Identity) error {
	if !identity.HasToken() {
		return nil
	}
	if err := t.store.UpdateToken(ctx, identity.ID, "", nil); err != nil {
		return fmt.Errorf("invalidate token: %w", err)
	}
	identity.ClearToken()
	identity.Touch(t.now())
	return nil
}

// IsValid reports whether the identity's token is usable right now.
func (t *TokenIssuer) IsValid(identity *domain.Identity) bool {
	return identity.TokenValidAt(t.now())
}

// Now returns the issuer's clock reading.
func (t *TokenIssuer) Now() time.Time {
	return t.now()
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
