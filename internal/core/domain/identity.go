package domain

import (
	"slices"
	"time"
)

const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// Identity is a registered principal: credentials, role set and the single
// bearer token currently issued to it.
type Identity struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	PasswordHash string `json:"-"`

	// StoredRoles is the persisted role set. It may omit RoleUser; read
	// through Roles to get the effective set.
	StoredRoles []string `json:"-"`

	// Token is empty when no token has been issued or it was invalidated.
	Token          string     `json:"-"`
	TokenExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewIdentity builds an identity with the baseline role set. The caller
// supplies an already hashed password.
func NewIdentity(email, passwordHash, firstName, lastName string, roles []string) *Identity {
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}
	now := time.Now().UTC()
	return &Identity{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: passwordHash,
		StoredRoles:  dedupe(roles),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Roles returns the effective role set: the stored roles plus RoleUser,
// without duplicates. RoleUser is always present regardless of storage.
func (i *Identity) Roles() []string {
	out := make([]string, 0, len(i.StoredRoles)+1)
	out = append(out, i.StoredRoles...)
	out = append(out, RoleUser)
	return dedupe(out)
}

// HasRole reports whether role is part of the effective role set.
func (i *Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles(), role)
}

// HasAnyRole reports whether at least one of roles is held.
func (i *Identity) HasAnyRole(roles []string) bool {
	effective := i.Roles()
	for _, r := range roles {
		if slices.Contains(effective, r) {
			return true
		}
	}
	return false
}

// AddRole appends role to the stored set. Returns false when it was already stored.
func (i *Identity) AddRole(role string) bool {
	if slices.Contains(i.StoredRoles, role) {
		return false
	}
	i.StoredRoles = append(i.StoredRoles, role)
	return true
}

// RemoveRole drops role from the stored set. Removing RoleUser succeeds but
// Roles keeps reporting it.
func (i *Identity) RemoveRole(role string) bool {
	idx := slices.Index(i.StoredRoles, role)
	if idx < 0 {
		return false
	}
	i.StoredRoles = slices.Delete(i.StoredRoles, idx, idx+1)
	return true
}

// HasToken reports whether a token value is currently stored, expired or not.
func (i *Identity) HasToken() bool {
	return i.Token != "" || i.TokenExpiresAt != nil
}

// TokenValidAt reports whether the stored token is usable at now: a token
// and an expiry are set and the expiry is strictly after now.
func (i *Identity) TokenValidAt(now time.Time) bool {
	if i.Token == "" || i.TokenExpiresAt == nil {
		return false
	}
	return i.TokenExpiresAt.After(now)
}

// SetToken replaces the current token and expiry.
func (i *Identity) SetToken(token string, expiresAt time.Time) {
	exp := expiresAt.UTC()
	i.Token = token
	i.TokenExpiresAt = &exp
}

// ClearToken drops the token and its expiry.
func (i *Identity) ClearToken() {
	i.Token = ""
	i.TokenExpiresAt = nil
}

// Touch bumps UpdatedAt.
func (i *Identity) Touch(now time.Time) {
	i.UpdatedAt = now.UTC()
}

func dedupe(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
