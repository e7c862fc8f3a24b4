// Package auth contains simple hand-written test doubles for the session
// store's ports. These are lightweight and suitable for unit tests without
// codegen.
package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	domainauth "github.com/brightline/portal-sessions/internal/domain/auth"
	"github.com/brightline/portal-sessions/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthAPI   = (*FakeAuthAPI)(nil)
	_ ports.Scheduler = (*ManualScheduler)(nil)
)

// FakeAuthAPI simulates the portal auth API with deterministic defaults.
// Any func field overrides the corresponding default behavior.
type FakeAuthAPI struct {
	LoginFunc            func(ctx context.Context, email, password string) (ports.LoginResult, error)
	AdminLoginFunc       func(ctx context.Context, password string) (ports.LoginResult, error)
	LogoutFunc           func(ctx context.Context, role domainauth.Role) error
	RequestMagicLinkFunc func(ctx context.Context, email string) error
	VerifyMagicLinkFunc  func(ctx context.Context, token string) (ports.LoginResult, error)
	RefreshFunc          func(ctx context.Context, role domainauth.Role) error
	ValidateFunc         func(ctx context.Context, role domainauth.Role) error

	// Deterministic values for predictable testing
	DefaultUser      domainauth.User
	DefaultExpiresIn time.Duration
	DefaultSessionID string

	// Call counters for assertions
	mu           sync.Mutex
	LogoutCalls  int
	RefreshCalls int
}

// NewFakeAuthAPI creates a FakeAuthAPI with sensible defaults.
func NewFakeAuthAPI() *FakeAuthAPI {
	return &FakeAuthAPI{
		DefaultUser: domainauth.User{
			ID:    "user-1",
			Email: "a@b.com",
			Name:  "Test User",
			Role:  domainauth.RoleClient,
		},
		DefaultExpiresIn: 7 * 24 * time.Hour,
	}
}

func (f *FakeAuthAPI) defaultResult() ports.LoginResult {
	return ports.LoginResult{
		User:      f.DefaultUser,
		ExpiresIn: f.DefaultExpiresIn,
		SessionID: f.DefaultSessionID,
	}
}

func (f *FakeAuthAPI) Login(ctx context.Context, email, password string) (ports.LoginResult, error) {
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, email, password)
	}
	res := f.defaultResult()
	res.User.Email = email
	return res, nil
}

func (f *FakeAuthAPI) AdminLogin(ctx context.Context, password string) (ports.LoginResult, error) {
	if f.AdminLoginFunc != nil {
		return f.AdminLoginFunc(ctx, password)
	}
	res := f.defaultResult()
	res.User.Role = domainauth.RoleAdmin
	res.ExpiresIn = 0
	return res, nil
}

func (f *FakeAuthAPI) Logout(ctx context.Context, role domainauth.Role) error {
	f.mu.Lock()
	f.LogoutCalls++
	f.mu.Unlock()
	if f.LogoutFunc != nil {
		return f.LogoutFunc(ctx, role)
	}
	return nil
}

func (f *FakeAuthAPI) RequestMagicLink(ctx context.Context, email string) error {
	if f.RequestMagicLinkFunc != nil {
		return f.RequestMagicLinkFunc(ctx, email)
	}
	return nil
}

func (f *FakeAuthAPI) VerifyMagicLink(ctx context.Context, token string) (ports.LoginResult, error) {
	if f.VerifyMagicLinkFunc != nil {
		return f.VerifyMagicLinkFunc(ctx, token)
	}
	return f.defaultResult(), nil
}

func (f *FakeAuthAPI) Refresh(ctx context.Context, role domainauth.Role) error {
	f.mu.Lock()
	f.RefreshCalls++
	f.mu.Unlock()
	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx, role)
	}
	return nil
}

func (f *FakeAuthAPI) Validate(ctx context.Context, role domainauth.Role) error {
	if f.ValidateFunc != nil {
		return f.ValidateFunc(ctx, role)
	}
	return nil
}

// ManualScheduler is a deterministic Scheduler for tests: scheduled
// callbacks fire only when the test calls FireAll or FireNext.
type ManualScheduler struct {
	mu      sync.Mutex
	nextID  int
	entries map[int]entry
}

type entry struct {
	id    int
	delay time.Duration
	fn    func()
}

// NewManualScheduler creates an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{entries: make(map[int]entry)}
}

// Schedule records the callback without arming any real timer.
func (m *ManualScheduler) Schedule(d time.Duration, fn func()) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.entries[id] = entry{id: id, delay: d, fn: fn}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
	}
}

// Pending returns the number of armed callbacks.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Delays returns the delays of the armed callbacks in scheduling order.
func (m *ManualScheduler) Delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, 0, len(m.entries))
	for _, e := range m.sortedLocked() {
		out = append(out, e.delay)
	}
	return out
}

// FireAll runs every currently armed callback (in scheduling order) and
// returns how many fired. Callbacks re-armed while firing are not run.
func (m *ManualScheduler) FireAll() int {
	m.mu.Lock()
	batch := m.sortedLocked()
	m.entries = make(map[int]entry)
	m.mu.Unlock()

	for _, e := range batch {
		e.fn()
	}
	return len(batch)
}

// FireNext runs the earliest-scheduled armed callback, if any.
func (m *ManualScheduler) FireNext() bool {
	m.mu.Lock()
	batch := m.sortedLocked()
	if len(batch) == 0 {
		m.mu.Unlock()
		return false
	}
	next := batch[0]
	delete(m.entries, next.id)
	m.mu.Unlock()

	next.fn()
	return true
}

func (m *ManualScheduler) sortedLocked() []entry {
	out := make([]entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
