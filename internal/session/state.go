package session

import (
	"time"

	domainauth "github.com/brightline/portal-sessions/internal/domain/auth"
)

// State construction is centralised here so every transition preserves the
// shape invariant: an authenticated state always carries user, role, expiry
// and session ID together, and a cleared state carries none of them.

// authenticatedState builds the state for an established session. Role is
// always taken from the user, never set independently.
func authenticatedState(user domainauth.User, sessionID string, expiresAt time.Time) domainauth.State {
	u := user
	return domainauth.State{
		Authenticated: true,
		User:          &u,
		Role:          user.Role,
		ExpiresAt:     expiresAt,
		SessionID:     sessionID,
	}
}

// clearedState builds the unauthenticated state, optionally carrying an
// error message. Loading is off: a cleared state is always post-bootstrap.
func clearedState(errMsg string) domainauth.State {
	return domainauth.State{Err: errMsg}
}
