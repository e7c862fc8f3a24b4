package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightline/portal-sessions/internal/adapters/storage"
	domainauth "github.com/brightline/portal-sessions/internal/domain/auth"
	"github.com/brightline/portal-sessions/internal/ports"
)

func testRecord() domainauth.Record {
	return domainauth.Record{
		User: domainauth.User{
			ID:      "u1",
			Email:   "user@example.com",
			Name:    "Test User",
			Role:    domainauth.RoleClient,
			Company: "Acme",
		},
		Role:      domainauth.RoleClient,
		ExpiresAt: baseTime.Add(168 * time.Hour),
		SessionID: "sess-1",
		CreatedAt: baseTime,
	}
}

func TestRecordStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rs := recordStore{storage: storage.NewMemory(), prefix: "portal:"}

	rec := testRecord()
	require.NoError(t, rs.save(ctx, rec))

	got, err := rs.load(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.User, got.User)
	assert.Equal(t, rec.Role, got.Role)
	assert.Equal(t, rec.SessionID, got.SessionID)
	assert.True(t, got.ExpiresAt.Equal(rec.ExpiresAt))
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
}

func TestRecordStore_LoadAbsent(t *testing.T) {
	ctx := context.Background()
	rs := recordStore{storage: storage.NewMemory()}

	_, err := rs.load(ctx)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRecordStore_PartialRecordIsAbsent(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	rs := recordStore{storage: mem}

	require.NoError(t, rs.save(ctx, testRecord()))
	require.NoError(t, mem.Delete(ctx, "session.expiry"))

	_, err := rs.load(ctx)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRecordStore_CorruptSlotsAreAbsent(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		slot  string
		value string
	}{
		{"user not json", "session.user", "{not json"},
		{"unknown role", "session.role", "superuser"},
		{"expiry not a number", "session.expiry", "tomorrow"},
		{"empty session id", "session.id", ""},
		{"created not a number", "session.created", "yesterday"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mem := storage.NewMemory()
			rs := recordStore{storage: mem}
			require.NoError(t, rs.save(ctx, testRecord()))
			require.NoError(t, mem.Set(ctx, tc.slot, tc.value))

			_, err := rs.load(ctx)
			assert.ErrorIs(t, err, ports.ErrNotFound)
		})
	}
}

func TestRecordStore_RoleSlotOverridesUserProfile(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	rs := recordStore{storage: mem}

	rec := testRecord()
	rec.User.Role = domainauth.RoleAdmin // disagrees with the role slot
	require.NoError(t, rs.save(ctx, rec))
	require.NoError(t, mem.Set(ctx, "session.role", string(domainauth.RoleClient)))

	got, err := rs.load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleClient, got.Role)
	assert.Equal(t, domainauth.RoleClient, got.User.Role)
}

func TestRecordStore_ClearPurgesLegacyKeys(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	rs := recordStore{storage: mem}

	require.NoError(t, rs.save(ctx, testRecord()))
	require.NoError(t, mem.Set(ctx, "portal.token", "old-jwt"))
	require.NoError(t, mem.Set(ctx, "auth.remember", "true"))

	require.NoError(t, rs.clear(ctx))

	for _, key := range []string{"session.user", "session.role", "session.expiry", "session.id", "session.created", "portal.token", "auth.remember"} {
		_, err := mem.Get(ctx, key)
		assert.ErrorIs(t, err, ports.ErrNotFound, key)
	}
}

func TestRecordStore_SaveExpiry(t *testing.T) {
	ctx := context.Background()
	rs := recordStore{storage: storage.NewMemory()}

	require.NoError(t, rs.save(ctx, testRecord()))
	later := baseTime.Add(200 * time.Hour)
	require.NoError(t, rs.saveExpiry(ctx, later))

	got, err := rs.load(ctx)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Equal(later))
}
