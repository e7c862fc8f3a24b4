// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of adapter/transport concerns.
package auth

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleClient
}

// User represents the authenticated principal returned by the portal API.
// Admin and client accounts share the same shape; client-only fields are
// left empty for admins.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Role    Role   `json:"role"`
	Company string `json:"company,omitempty"` // client accounts only
}

// State is a snapshot of the store's authentication state.
// When Authenticated is true, User, Role, ExpiresAt and SessionID are all set.
type State struct {
	Authenticated bool
	Loading       bool // true only during initial bootstrap
	Processing    bool // true while a login/verify/logout call is in flight
	User          *User
	Role          Role
	ExpiresAt     time.Time
	SessionID     string
	Err           string
}

// Initial returns the state a store starts in before bootstrap resolves.
func Initial() State {
	return State{Loading: true}
}

// Clone returns a defensive copy of the state. The User pointer is copied so
// callers cannot mutate the store's view.
func (s State) Clone() State {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}

// Record is the session record persisted to storage. It survives a process
// restart; a partially written record is treated as absent on load.
type Record struct {
	User      User
	Role      Role
	ExpiresAt time.Time
	SessionID string
	CreatedAt time.Time
}

// Expired reports whether the record's expiry has passed at the given time.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
