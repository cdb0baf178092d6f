package ports

import "context"

// LoginThrottle counts failed logins per account and reports lockout.
type LoginThrottle interface {
	// Allowed reports whether another attempt for key may be evaluated.
	Allowed(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// IdentityLocker serialises token replacement for one identity across
// processes. The returned unlock func is always non-nil.
type IdentityLocker interface {
	Lock(ctx context.Context, identityID int64) (unlock func(), err error)
}
