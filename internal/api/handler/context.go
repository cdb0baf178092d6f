package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/devjobs/devjobs-api/internal/core/domain"
)

const identityKey = "identity"

// SetIdentity stores the identity resolved by the request gate.
func SetIdentity(c echo.Context, identity *domain.Identity) {
	c.Set(identityKey, identity)
}

// IdentityFrom returns the identity stored by the request gate. A handler on
// a route without a policy gets ErrUnauthenticated.
func IdentityFrom(c echo.Context) (*domain.Identity, error) {
	identity, ok := c.Get(identityKey).(*domain.Identity)
	if !ok || identity == nil {
		return nil, domain.ErrUnauthenticated
	}
	return identity, nil
}
