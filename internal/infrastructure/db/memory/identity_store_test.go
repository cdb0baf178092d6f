package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devjobs/devjobs-api/internal/core/domain"
)

func TestIdentityStore_CreateAllocatesIDs(t *testing.T) {
	s := NewIdentityStore()
	ctx := context.Background()

	a := domain.NewIdentity("a@x.com", "h", "", "", nil)
	b := domain.NewIdentity("b@x.com", "h", "", "", nil)
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, 2, s.Len())
}

func TestIdentityStore_DuplicateEmail(t *testing.T) {
	s := NewIdentityStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, domain.NewIdentity("a@x.com", "h", "", "", nil)))
	err := s.Create(ctx, domain.NewIdentity("a@x.com", "h2", "", "", nil))
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)

	// Email matching is case-sensitive.
	assert.NoError(t, s.Create(ctx, domain.NewIdentity("A@x.com", "h", "", "", nil)))
}

func TestIdentityStore_ReturnsCopies(t *testing.T) {
	s := NewIdentityStore()
	ctx := context.Background()

	id := domain.NewIdentity("a@x.com", "h", "", "", nil)
	require.NoError(t, s.Create(ctx, id))

	got, err := s.FindByID(ctx, id.ID)
	require.NoError(t, err)
	got.AddRole(domain.RoleAdmin)

	again, err := s.FindByID(ctx, id.ID)
	require.NoError(t, err)
	assert.False(t, again.HasRole(domain.RoleAdmin))
}

func TestIdentityStore_TokenLifecycle(t *testing.T) {
	s := NewIdentityStore()
	ctx := context.Background()

	id := domain.NewIdentity("a@x.com", "h", "", "", nil)
	require.NoError(t, s.Create(ctx, id))

	exp := time.Now().Add(time.Hour)
	require.NoError(t, s.UpdateToken(ctx, id.ID, "tok", &exp))

	got, err := s.FindByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, id.ID, got.ID)

	require.NoError(t, s.UpdateToken(ctx, id.ID, "", nil))
	_, err = s.FindByToken(ctx, "tok")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)

	_, err = s.FindByToken(ctx, "")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)

	assert.ErrorIs(t, s.UpdateToken(ctx, 999, "x", &exp), domain.ErrIdentityNotFound)
}

func TestIdentityStore_DeleteExpiredTokens(t *testing.T) {
	s := NewIdentityStore()
	ctx := context.Background()
	now := time.Now()

	live := domain.NewIdentity("live@x.com", "h", "", "", nil)
	dead := domain.NewIdentity("dead@x.com", "h", "", "", nil)
	none := domain.NewIdentity("none@x.com", "h", "", "", nil)
	for _, i := range []*domain.Identity{live, dead, none} {
		require.NoError(t, s.Create(ctx, i))
	}
	future, past := now.Add(time.Hour), now.Add(-time.Hour)
	require.NoError(t, s.UpdateToken(ctx, live.ID, "live", &future))
	require.NoError(t, s.UpdateToken(ctx, dead.ID, "dead", &past))

	n, err := s.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.FindByToken(ctx, "dead")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	_, err = s.FindByToken(ctx, "live")
	assert.NoError(t, err)
}

func TestIdentityStore_SaveLeavesTokenAlone(t *testing.T) {
	s := NewIdentityStore()
	ctx := context.Background()

	id := domain.NewIdentity("a@x.com", "h", "", "", nil)
	require.NoError(t, s.Create(ctx, id))
	stale, err := s.FindByID(ctx, id.ID)
	require.NoError(t, err)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, s.UpdateToken(ctx, id.ID, "fresh", &exp))

	stale.AddRole(domain.RoleAdmin)
	stale.SetToken("stale", exp)
	require.NoError(t, s.Save(ctx, stale))

	got, err := s.FindByToken(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, got.HasRole(domain.RoleAdmin))
	_, err = s.FindByToken(ctx, "stale")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}

func TestIdentityStore_DeleteExpiredTokens_ExpiryAtNow(t *testing.T) {
	s := NewIdentityStore()
	ctx := context.Background()
	now := time.Now()

	id := domain.NewIdentity("a@x.com", "h", "", "", nil)
	require.NoError(t, s.Create(ctx, id))
	require.NoError(t, s.UpdateToken(ctx, id.ID, "edge", &now))

	n, err := s.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "a token is invalid once now reaches its expiry")
}

func TestIdentityStore_ConcurrentCreate(t *testing.T) {
	s := NewIdentityStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Create(ctx, domain.NewIdentity("same@x.com", "h", "", "", nil))
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, s.Len())
}
