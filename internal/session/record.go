package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	domainauth "github.com/brightline/portal-sessions/internal/domain/auth"
	"github.com/brightline/portal-sessions/internal/ports"
)

// Storage slots for the persisted session record. Each field lives in its
// own slot; a record missing any slot on load is treated as absent.
const (
	slotUser    = "session.user"
	slotRole    = "session.role"
	slotExpiry  = "session.expiry"
	slotID      = "session.id"
	slotCreated = "session.created"
)

// legacyKeys are historical key names from prior overlapping storage
// schemes. They are proactively deleted on every logout/expiry.
var legacyKeys = []string{
	"portal.token",
	"portal.user",
	"portal.session",
	"auth.remember",
}

// recordStore persists the session record to slot-per-field storage.
type recordStore struct {
	storage ports.Storage
	prefix  string
}

func (r recordStore) key(slot string) string {
	return r.prefix + slot
}

// userKey is the primary session slot; its external removal signals a
// cross-tab logout.
func (r recordStore) userKey() string {
	return r.key(slotUser)
}

// save writes every field to its own slot. There is no multi-key write
// guarantee; load compensates by rejecting partial records.
func (r recordStore) save(ctx context.Context, rec domainauth.Record) error {
	userJSON, err := json.Marshal(rec.User)
	if err != nil {
		return err
	}

	writes := []struct{ slot, value string }{
		{slotUser, string(userJSON)},
		{slotRole, string(rec.Role)},
		{slotExpiry, formatMillis(rec.ExpiresAt)},
		{slotID, rec.SessionID},
		{slotCreated, formatMillis(rec.CreatedAt)},
	}
	for _, w := range writes {
		if err := r.storage.Set(ctx, r.key(w.slot), w.value); err != nil {
			return err
		}
	}
	return nil
}

// saveExpiry refreshes the expiry slot in place.
func (r recordStore) saveExpiry(ctx context.Context, expiresAt time.Time) error {
	return r.storage.Set(ctx, r.key(slotExpiry), formatMillis(expiresAt))
}

// load reads the record back. Any missing slot, unparseable value or
// unknown role invalidates the whole record and returns ports.ErrNotFound.
func (r recordStore) load(ctx context.Context) (domainauth.Record, error) {
	userJSON, err := r.storage.Get(ctx, r.key(slotUser))
	if err != nil {
		return domainauth.Record{}, absentOr(err)
	}
	roleRaw, err := r.storage.Get(ctx, r.key(slotRole))
	if err != nil {
		return domainauth.Record{}, absentOr(err)
	}
	expiryRaw, err := r.storage.Get(ctx, r.key(slotExpiry))
	if err != nil {
		return domainauth.Record{}, absentOr(err)
	}
	sessionID, err := r.storage.Get(ctx, r.key(slotID))
	if err != nil {
		return domainauth.Record{}, absentOr(err)
	}
	createdRaw, err := r.storage.Get(ctx, r.key(slotCreated))
	if err != nil {
		return domainauth.Record{}, absentOr(err)
	}

	var user domainauth.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return domainauth.Record{}, ports.ErrNotFound
	}
	role := domainauth.Role(roleRaw)
	if !role.Valid() || sessionID == "" {
		return domainauth.Record{}, ports.ErrNotFound
	}
	expiresAt, err := parseMillis(expiryRaw)
	if err != nil {
		return domainauth.Record{}, ports.ErrNotFound
	}
	createdAt, err := parseMillis(createdRaw)
	if err != nil {
		return domainauth.Record{}, ports.ErrNotFound
	}

	// Role always mirrors the user profile.
	user.Role = role

	return domainauth.Record{
		User:      user,
		Role:      role,
		ExpiresAt: expiresAt,
		SessionID: sessionID,
		CreatedAt: createdAt,
	}, nil
}

// clear deletes every session slot plus the legacy key set.
func (r recordStore) clear(ctx context.Context) error {
	keys := []string{
		r.key(slotUser),
		r.key(slotRole),
		r.key(slotExpiry),
		r.key(slotID),
		r.key(slotCreated),
	}
	for _, legacy := range legacyKeys {
		keys = append(keys, r.prefix+legacy)
	}
	return r.storage.Delete(ctx, keys...)
}

// absentOr collapses storage misses into ErrNotFound and passes real
// storage failures through.
func absentOr(err error) error {
	if errors.Is(err, ports.ErrNotFound) {
		return ports.ErrNotFound
	}
	return err
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
