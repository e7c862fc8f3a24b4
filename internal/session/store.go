// Package session implements the client-side session store: the single
// source of truth for who is logged in, with what role, until when. The
// store is explicitly constructed with injected ports (API, storage, clock,
// scheduler) and has an explicit Start/Stop lifecycle.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brightline/portal-sessions/config"
	domainauth "github.com/brightline/portal-sessions/internal/domain/auth"
	apperrors "github.com/brightline/portal-sessions/internal/errors"
	"github.com/brightline/portal-sessions/internal/events"
	"github.com/brightline/portal-sessions/internal/ports"
)

// ErrSuperseded is returned when an in-flight operation's result is
// discarded because the store's state was replaced while it was pending
// (e.g. a logout raced a login).
var ErrSuperseded = errors.New("operation superseded")

const expiredMessage = "Session expired"

// Listener observes every state mutation. Listener panics are caught and
// logged; they never interrupt other listeners or the store.
type Listener func(domainauth.State)

// Options groups dependencies for Store.
type Options struct {
	API       ports.AuthAPI        // Required: remote auth authority
	Storage   ports.Storage        // Required: shared key-value storage
	Clock     ports.Clock          // Required: wall clock
	Scheduler ports.Scheduler      // Required: one-shot timer scheduler
	Watcher   ports.RemovalWatcher // Optional: cross-tab logout signal
	Bus       *events.Bus          // Optional: process-wide event bus
	Config    config.SessionConfig
	Logger    *slog.Logger // Optional: structured logger
}

// Result is returned by the login-shaped operations.
type Result struct {
	User      domainauth.User
	SessionID string
}

// Store holds the authentication state, mirrors it to storage, notifies
// subscribers on every mutation, and owns the refresh and inactivity
// timers.
type Store struct {
	api     ports.AuthAPI
	clock   ports.Clock
	sched   ports.Scheduler
	watcher ports.RemovalWatcher
	bus     *events.Bus
	cfg     config.SessionConfig
	logger  *slog.Logger
	records recordStore

	mu            sync.Mutex
	state         domainauth.State
	opSeq         uint64
	listeners     map[int]Listener
	nextListener  int
	cancelRefresh func()
	cancelIdle    func()
	cancelWatch   func()
	started       bool
}

// New constructs a Store. The state starts unauthenticated with Loading set
// until Start resolves the bootstrap.
func New(opts Options) (*Store, error) {
	if opts.API == nil {
		return nil, errors.New("AuthAPI is required")
	}
	if opts.Storage == nil {
		return nil, errors.New("Storage is required")
	}
	if opts.Clock == nil {
		return nil, errors.New("Clock is required")
	}
	if opts.Scheduler == nil {
		return nil, errors.New("Scheduler is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "session_store")
	}

	return &Store{
		api:       opts.API,
		clock:     opts.Clock,
		sched:     opts.Scheduler,
		watcher:   opts.Watcher,
		bus:       opts.Bus,
		cfg:       opts.Config,
		logger:    logger,
		records:   recordStore{storage: opts.Storage, prefix: opts.Config.KeyPrefix},
		state:     domainauth.Initial(),
		listeners: make(map[int]Listener),
	}, nil
}

// Start resolves the bootstrap: it loads a persisted session record (a
// partial record counts as absent and is purged), optionally confirms it
// with the server, arms the timers, and registers the cross-tab watcher.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("store already started")
	}
	s.started = true
	s.mu.Unlock()

	// Register the watcher before the record load so a removal racing the
	// bootstrap is not missed; an early callback is a no-op while
	// unauthenticated.
	s.watchExternalRemoval()

	rec, err := s.records.load(ctx)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		// Absent or partial record: purge whatever half-written slots and
		// legacy keys remain.
		if clearErr := s.records.clear(ctx); clearErr != nil {
			s.logWarn(ctx, "purge stale session slots failed", "error", clearErr)
		}
		s.setCleared("")
	case err != nil:
		s.setCleared("")
		s.notify()
		return err
	case rec.Expired(s.clock.Now()):
		if clearErr := s.records.clear(ctx); clearErr != nil {
			s.logWarn(ctx, "clear expired session failed", "error", clearErr)
		}
		s.setCleared("")
		s.publish(events.TopicSessionExpired, &rec.User, rec.SessionID)
	default:
		s.adoptRecord(ctx, rec)
	}

	s.notify()
	return nil
}

// adoptRecord restores an unexpired persisted session, optionally
// validating it with the server first.
func (s *Store) adoptRecord(ctx context.Context, rec domainauth.Record) {
	if s.cfg.ValidateOnStart {
		if err := s.api.Validate(ctx, rec.Role); err != nil {
			s.logWarn(ctx, "restored session rejected by server", "error", err)
			if clearErr := s.records.clear(ctx); clearErr != nil {
				s.logWarn(ctx, "clear rejected session failed", "error", clearErr)
			}
			s.setCleared("")
			s.publish(events.TopicSessionExpired, &rec.User, rec.SessionID)
			return
		}
	}

	s.mu.Lock()
	s.state = authenticatedState(rec.User, rec.SessionID, rec.ExpiresAt)
	s.armRefreshLocked()
	s.armIdleLocked()
	s.mu.Unlock()
}

// Stop cancels the timers and the cross-tab watcher. State is left as-is;
// the store is not usable afterwards.
func (s *Store) Stop() {
	s.mu.Lock()
	s.stopTimersLocked()
	cancelWatch := s.cancelWatch
	s.cancelWatch = nil
	s.mu.Unlock()

	if cancelWatch != nil {
		cancelWatch()
	}
}

// Login authenticates a client account. On success the session is persisted
// and the refresh timer armed; on rejection the state error is set to the
// server's message or a generic fallback and the store stays
// unauthenticated.
func (s *Store) Login(ctx context.Context, email, password string) (*Result, error) {
	return s.runLogin(ctx, "Login failed", func(ctx context.Context) (ports.LoginResult, error) {
		return s.api.Login(ctx, email, password)
	})
}

// AdminLogin authenticates the admin account. Same contract as Login with
// the admin timeout window.
func (s *Store) AdminLogin(ctx context.Context, password string) (*Result, error) {
	return s.runLogin(ctx, "Login failed", func(ctx context.Context) (ports.LoginResult, error) {
		return s.api.AdminLogin(ctx, password)
	})
}

// VerifyMagicLink redeems a one-time token. Same success path as Login; the
// role comes from the returned user.
func (s *Store) VerifyMagicLink(ctx context.Context, token string) (*Result, error) {
	return s.runLogin(ctx, "Magic link verification failed", func(ctx context.Context) (ports.LoginResult, error) {
		return s.api.VerifyMagicLink(ctx, token)
	})
}

// RequestMagicLink asks the server to dispatch a one-time login email. It
// never mutates authentication state.
func (s *Store) RequestMagicLink(ctx context.Context, email string) error {
	if err := s.api.RequestMagicLink(ctx, email); err != nil {
		s.logWarn(ctx, "magic link request failed", "error", err)
		return err
	}
	return nil
}

// runLogin is the shared login/verify flow. The operation sequence number
// taken at the start detects state replaced underneath the in-flight call;
// a stale response is discarded rather than resurrecting a cleared session.
func (s *Store) runLogin(
	ctx context.Context,
	fallbackMsg string,
	call func(context.Context) (ports.LoginResult, error),
) (*Result, error) {
	s.mu.Lock()
	s.opSeq++
	seq := s.opSeq
	s.state.Processing = true
	s.state.Err = ""
	s.mu.Unlock()
	s.notify()

	res, err := call(ctx)

	s.mu.Lock()
	if s.opSeq != seq {
		// Another operation settled while we were in flight.
		s.mu.Unlock()
		return nil, ErrSuperseded
	}
	s.state.Processing = false

	if err != nil {
		s.state.Err = apperrors.UserMessage(err, fallbackMsg)
		s.mu.Unlock()
		s.notify()
		s.logWarn(ctx, "login rejected", "error", err)
		return nil, err
	}

	user := res.User
	if !user.Role.Valid() {
		user.Role = domainauth.RoleClient
	}
	sessionID := res.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	window := res.ExpiresIn
	if window <= 0 {
		window = s.timeoutFor(user.Role)
	}
	now := s.clock.Now()
	rec := domainauth.Record{
		User:      user,
		Role:      user.Role,
		ExpiresAt: now.Add(window),
		SessionID: sessionID,
		CreatedAt: now,
	}

	s.state = authenticatedState(rec.User, rec.SessionID, rec.ExpiresAt)
	s.armRefreshLocked()
	s.armIdleLocked()
	s.mu.Unlock()

	if saveErr := s.records.save(ctx, rec); saveErr != nil {
		// The in-memory session stands; persistence is best-effort and a
		// reload will simply start unauthenticated.
		s.logWarn(ctx, "persist session failed", "error", saveErr)
	}

	s.notify()
	s.publish(events.TopicLogin, &rec.User, rec.SessionID)
	s.logInfo(ctx, "session established", "role", rec.Role, "session_id", rec.SessionID)

	return &Result{User: rec.User, SessionID: rec.SessionID}, nil
}

// Logout notifies the server (best effort) and unconditionally resets local
// state, clears storage, and stops the timers. It never fails from the
// caller's perspective.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.opSeq++
	wasAuthenticated := s.state.Authenticated
	role := s.state.Role
	user := s.state.User
	sessionID := s.state.SessionID
	s.state.Processing = true
	s.mu.Unlock()
	s.notify()

	if role == "" {
		role = domainauth.RoleClient
	}
	if err := s.api.Logout(ctx, role); err != nil {
		s.logWarn(ctx, "server logout notification failed", "error", err)
	}

	s.mu.Lock()
	s.stopTimersLocked()
	s.state = clearedState("")
	s.mu.Unlock()

	if err := s.records.clear(ctx); err != nil {
		s.logWarn(ctx, "clear session storage failed", "error", err)
	}

	s.notify()
	if wasAuthenticated {
		s.publish(events.TopicLogout, user, sessionID)
	}
}

// RefreshSession extends the server-side session and pushes the local
// expiry out by the role's full window. Any failure tears the session down.
// Reports whether the refresh succeeded.
func (s *Store) RefreshSession(ctx context.Context) bool {
	s.mu.Lock()
	if !s.state.Authenticated {
		s.mu.Unlock()
		return false
	}
	seq := s.opSeq
	role := s.state.Role
	s.mu.Unlock()

	err := s.api.Refresh(ctx, role)

	s.mu.Lock()
	if s.opSeq != seq || !s.state.Authenticated {
		s.mu.Unlock()
		return false
	}
	if err != nil {
		s.logWarn(ctx, "session refresh failed", "error", err)
		s.expireLocked(ctx)
		return false
	}

	newExpiry := s.clock.Now().Add(s.timeoutFor(role))
	if newExpiry.After(s.state.ExpiresAt) {
		s.state.ExpiresAt = newExpiry
	}
	expiresAt := s.state.ExpiresAt
	user := s.state.User
	sessionID := s.state.SessionID
	s.armRefreshLocked()
	s.mu.Unlock()

	if saveErr := s.records.saveExpiry(ctx, expiresAt); saveErr != nil {
		s.logWarn(ctx, "persist refreshed expiry failed", "error", saveErr)
	}

	s.notify()
	s.publish(events.TopicTokenRefreshed, user, sessionID)
	return true
}

// ValidateSession checks local expiry first (no network round-trip for an
// already-expired session), then confirms with the server. Either failure
// tears the session down. Reports whether the session is still valid.
func (s *Store) ValidateSession(ctx context.Context) bool {
	s.mu.Lock()
	if !s.state.Authenticated {
		s.mu.Unlock()
		return false
	}
	if !s.clock.Now().Before(s.state.ExpiresAt) {
		s.expireLocked(ctx)
		return false
	}
	seq := s.opSeq
	role := s.state.Role
	s.mu.Unlock()

	err := s.api.Validate(ctx, role)

	s.mu.Lock()
	if s.opSeq != seq || !s.state.Authenticated {
		s.mu.Unlock()
		return false
	}
	if err != nil {
		s.logWarn(ctx, "session validation rejected", "error", err)
		s.expireLocked(ctx)
		return false
	}
	s.mu.Unlock()
	return true
}

// ExtendSession pushes the expiry forward by the activity-extension window
// (never backwards) and re-arms the refresh timer. Intended to be called on
// user interaction. No-op when not authenticated.
func (s *Store) ExtendSession(ctx context.Context) {
	s.mu.Lock()
	if !s.state.Authenticated {
		s.mu.Unlock()
		return
	}
	candidate := s.clock.Now().Add(s.cfg.ActivityExtension)
	if candidate.After(s.state.ExpiresAt) {
		s.state.ExpiresAt = candidate
	}
	expiresAt := s.state.ExpiresAt
	user := s.state.User
	sessionID := s.state.SessionID
	s.armRefreshLocked()
	s.mu.Unlock()

	if err := s.records.saveExpiry(ctx, expiresAt); err != nil {
		s.logWarn(ctx, "persist extended expiry failed", "error", err)
	}

	s.notify()
	s.publish(events.TopicSessionExtended, user, sessionID)
}

// RecordActivity resets the inactivity timer. Only meaningful while
// authenticated.
func (s *Store) RecordActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Authenticated {
		return
	}
	s.armIdleLocked()
}

// State returns a defensive snapshot of the current state.
func (s *Store) State() domainauth.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers a listener invoked on every state mutation and
// returns an unsubscribe function.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// IsAuthenticated reports whether a live, unexpired session exists. An
// authenticated-but-expired state reports false without mutating anything;
// teardown is left to the timers or an explicit validate call.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Authenticated && s.clock.Now().Before(s.state.ExpiresAt)
}

// IsAdmin reports whether the live session belongs to the admin account.
func (s *Store) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Authenticated && s.state.Role == domainauth.RoleAdmin &&
		s.clock.Now().Before(s.state.ExpiresAt)
}

// IsClient reports whether the live session belongs to a client account.
func (s *Store) IsClient() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Authenticated && s.state.Role == domainauth.RoleClient &&
		s.clock.Now().Before(s.state.ExpiresAt)
}

// SessionTimeRemaining returns the time until expiry, or zero when no
// session exists or it already expired.
func (s *Store) SessionTimeRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Authenticated {
		return 0
	}
	remaining := s.state.ExpiresAt.Sub(s.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ClearError clears the error field only.
func (s *Store) ClearError() {
	s.mu.Lock()
	if s.state.Err == "" {
		s.mu.Unlock()
		return
	}
	s.state.Err = ""
	s.mu.Unlock()
	s.notify()
}

// expireLocked tears the session down after expiry or a server rejection:
// timers stopped, state cleared with the expired message, storage purged,
// and a session-expired event raised. Called with s.mu held; releases it.
func (s *Store) expireLocked(ctx context.Context) {
	s.opSeq++
	user := s.state.User
	sessionID := s.state.SessionID
	s.stopTimersLocked()
	s.state = clearedState(expiredMessage)
	s.mu.Unlock()

	if err := s.records.clear(ctx); err != nil {
		s.logWarn(ctx, "clear expired session storage failed", "error", err)
	}

	s.notify()
	s.publish(events.TopicSessionExpired, user, sessionID)
}

// onExternalRemoval handles the cross-tab logout signal: the primary
// session slot was cleared by another tab. Local state is torn down and a
// logout event raised, but storage is not cleared again: the other tab
// already did, and re-clearing would re-propagate the signal.
func (s *Store) onExternalRemoval() {
	s.mu.Lock()
	if !s.state.Authenticated {
		s.mu.Unlock()
		return
	}
	s.opSeq++
	user := s.state.User
	sessionID := s.state.SessionID
	s.stopTimersLocked()
	s.state = clearedState("")
	s.mu.Unlock()

	s.notify()
	s.publish(events.TopicLogout, user, sessionID)
	s.logInfo(context.Background(), "session cleared by another tab", "session_id", sessionID)
}

func (s *Store) watchExternalRemoval() {
	if s.watcher == nil {
		return
	}
	cancel, err := s.watcher.WatchRemoval(s.records.userKey(), s.onExternalRemoval)
	if err != nil {
		s.logWarn(context.Background(), "watch session storage failed", "error", err)
		return
	}
	s.mu.Lock()
	s.cancelWatch = cancel
	s.mu.Unlock()
}

// setCleared replaces the state with a cleared one, keeping Loading off.
func (s *Store) setCleared(errMsg string) {
	s.mu.Lock()
	s.state = clearedState(errMsg)
	s.mu.Unlock()
}

func (s *Store) timeoutFor(role domainauth.Role) time.Duration {
	if role == domainauth.RoleAdmin {
		return s.cfg.AdminTimeout
	}
	return s.cfg.ClientTimeout
}

// notify delivers the current snapshot to every listener and raises a
// state-change event. A panicking listener is logged and skipped.
func (s *Store) notify() {
	s.mu.Lock()
	snapshot := s.state.Clone()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		s.safeNotify(fn, snapshot)
	}
	s.publish(events.TopicStateChange, snapshot.User, snapshot.SessionID)
}

func (s *Store) safeNotify(fn Listener, snapshot domainauth.State) {
	defer func() {
		if r := recover(); r != nil {
			s.logWarn(context.Background(), "state listener panicked", "panic", r)
		}
	}()
	fn(snapshot)
}

func (s *Store) publish(topic string, user *domainauth.User, sessionID string) {
	if s.bus == nil {
		return
	}
	var u *domainauth.User
	if user != nil {
		copied := *user
		u = &copied
	}
	s.bus.Publish(topic, events.Event{
		User:      u,
		SessionID: sessionID,
		At:        s.clock.Now(),
	})
}

func (s *Store) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}

func (s *Store) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}
