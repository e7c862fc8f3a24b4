// Package ports defines interfaces (hexagonal ports) for the session store's
// capabilities. Implementations live in internal/adapters; orchestration in
// internal/session.
package ports

import (
	"context"
	"time"

	domainauth "github.com/brightline/portal-sessions/internal/domain/auth"
)

// LoginResult is the server's answer to a successful credential check.
type LoginResult struct {
	User domainauth.User

	// ExpiresIn is the session window granted by the server. Zero means
	// "use the role's configured default".
	ExpiresIn time.Duration

	// SessionID is the server-assigned session identifier. The store
	// generates one when the server returns none.
	SessionID string
}

// AuthAPI is the remote authority for credential checks and session
// validation. All calls carry cookie-based credentials.
type AuthAPI interface {
	// Login authenticates a client account with email and password.
	Login(ctx context.Context, email, password string) (LoginResult, error)

	// AdminLogin authenticates the admin account with its password.
	AdminLogin(ctx context.Context, password string) (LoginResult, error)

	// Logout notifies the server that the session for the given role ended.
	Logout(ctx context.Context, role domainauth.Role) error

	// RequestMagicLink asks the server to email a one-time login link.
	RequestMagicLink(ctx context.Context, email string) error

	// VerifyMagicLink redeems a one-time token for a session.
	VerifyMagicLink(ctx context.Context, token string) (LoginResult, error)

	// Refresh extends the server-side session for the given role.
	Refresh(ctx context.Context, role domainauth.Role) error

	// Validate confirms the server still considers the session valid.
	// A nil error means valid.
	Validate(ctx context.Context, role domainauth.Role) error
}

// Storage is a key-value storage slot shared across tabs/processes of the
// same origin. Get returns ErrNotFound for absent keys.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// RemovalWatcher observes external removal of a storage key (another
// tab/process logged out). Implementations must not deliver removals that
// originated from this same handle.
type RemovalWatcher interface {
	// WatchRemoval registers fn to run whenever key is removed externally.
	// The returned cancel stops the watch.
	WatchRemoval(key string, fn func()) (cancel func(), err error)
}

// Clock provides wall-clock time; substituted in tests.
type Clock interface {
	Now() time.Time
}

// Scheduler arms one-shot callbacks. The returned cancel is safe to call
// after the callback fired.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

// ErrNotFound is returned by Storage.Get when a key is absent.
type notFoundError struct{}

func (notFoundError) Error() string { return "key not found" }

var ErrNotFound error = notFoundError{}
