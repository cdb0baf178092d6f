// Package memory is a process-local CredentialStore used by tests and the
// "memory" store backend of the serve command.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/devjobs/devjobs-api/internal/core/domain"
)

type IdentityStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.Identity
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{byID: make(map[int64]*domain.Identity)}
}

func cloneIdentity(i *domain.Identity) *domain.Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.StoredRoles = slices.Clone(i.StoredRoles)
	if i.TokenExpiresAt != nil {
		exp := *i.TokenExpiresAt
		c.TokenExpiresAt = &exp
	}
	return &c
}

func (s *IdentityStore) FindByID(_ context.Context, id int64) (*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i, ok := s.byID[id]; ok {
		return cloneIdentity(i), nil
	}
	return nil, domain.ErrIdentityNotFound
}

func (s *IdentityStore) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, i := range s.byID {
		if i.Email == email {
			return cloneIdentity(i), nil
		}
	}
	return nil, domain.ErrIdentityNotFound
}

func (s *IdentityStore) FindByToken(_ context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.ErrIdentityNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, i := range s.byID {
		if i.Token == token {
			return cloneIdentity(i), nil
		}
	}
	return nil, domain.ErrIdentityNotFound
}

func (s *IdentityStore) Create(_ context.Context, identity *domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, i := range s.byID {
		if i.Email == identity.Email {
			return domain.ErrDuplicateIdentity
		}
	}
	s.nextID++
	identity.ID = s.nextID
	s.byID[identity.ID] = cloneIdentity(identity)
	return nil
}

// Save overwrites the profile fields. The stored token is kept as is;
// only UpdateToken and DeleteExpiredTokens change it.
func (s *IdentityStore) Save(_ context.Context, identity *domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[identity.ID]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	for id, i := range s.byID {
		if id != identity.ID && i.Email == identity.Email {
			return domain.ErrDuplicateIdentity
		}
	}
	next := cloneIdentity(identity)
	next.Token = current.Token
	next.TokenExpiresAt = current.TokenExpiresAt
	s.byID[identity.ID] = next
	return nil
}

func (s *IdentityStore) UpdateToken(_ context.Context, id int64, token string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	if token == "" || expiresAt == nil {
		i.ClearToken()
	} else {
		i.SetToken(token, *expiresAt)
	}
	i.Touch(time.Now())
	return nil
}

func (s *IdentityStore) DeleteExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, i := range s.byID {
		if i.TokenExpiresAt != nil && !i.TokenExpiresAt.After(now) {
			i.ClearToken()
			n++
		}
	}
	return n, nil
}

// Len reports how many identities are stored.
func (s *IdentityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
