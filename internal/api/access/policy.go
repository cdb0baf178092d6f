// Package access holds the static table of access policies for the HTTP
// routes. Routes are registered through a Registry, which records the policy
// of every route at startup so the request gate can resolve it per request
// with a map lookup.
package access

import (
	"slices"

	"github.com/devjobs/devjobs-api/internal/core/domain"
)

// Policy lists the roles allowed to call a route. Holding any one of them is
// enough. An empty list means any authenticated identity (the baseline role).
type Policy struct {
	roles []string
}

// Require builds a policy for roles. Require() with no roles admits every
// authenticated caller.
func Require(roles ...string) *Policy {
	return &Policy{roles: slices.Clone(roles)}
}

// Roles returns the normalized role list.
func (p *Policy) Roles() []string {
	if len(p.roles) == 0 {
		return []string{domain.RoleUser}
	}
	return slices.Clone(p.roles)
}

// Allows reports whether identity holds at least one of the policy roles.
func (p *Policy) Allows(identity *domain.Identity) bool {
	return identity.HasAnyRole(p.Roles())
}
