package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/brightline/portal-sessions/internal/adapters/storage"
	"github.com/brightline/portal-sessions/internal/adapters/timeprovider"
	domainauth "github.com/brightline/portal-sessions/internal/domain/auth"
	"github.com/brightline/portal-sessions/internal/mocks"
	fakes "github.com/brightline/portal-sessions/internal/mocks/auth"
	"github.com/brightline/portal-sessions/internal/ports"
)

func newMockStore(t *testing.T, api ports.AuthAPI, mem *storage.Memory) *Store {
	t.Helper()
	store, err := New(Options{
		API:       api,
		Storage:   mem,
		Clock:     timeprovider.NewFixedClock(baseTime),
		Scheduler: fakes.NewManualScheduler(),
		Config:    testSessionConfig(),
	})
	require.NoError(t, err)
	return store
}

func TestStore_Logout_NotifiesServerWithCurrentRole(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAuthAPI(ctrl)

	adminUser := domainauth.User{ID: "admin", Email: "admin@example.com", Role: domainauth.RoleAdmin}
	api.EXPECT().AdminLogin(gomock.Any(), "admin-secret").
		Return(ports.LoginResult{User: adminUser}, nil)
	api.EXPECT().Logout(gomock.Any(), domainauth.RoleAdmin).Return(nil)

	store := newMockStore(t, api, storage.NewMemory())
	_, err := store.AdminLogin(ctx, "admin-secret")
	require.NoError(t, err)

	store.Logout(ctx)
}

func TestStore_Logout_DefaultsToClientRoleWhenLoggedOut(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAuthAPI(ctrl)

	api.EXPECT().Logout(gomock.Any(), domainauth.RoleClient).Return(nil)

	store := newMockStore(t, api, storage.NewMemory())
	store.Logout(ctx)
}

func TestStore_Start_ValidatesWithPersistedRole(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAuthAPI(ctrl)

	mem := storage.NewMemory()
	rs := recordStore{storage: mem}
	require.NoError(t, rs.save(ctx, domainauth.Record{
		User:      domainauth.User{ID: "admin", Role: domainauth.RoleAdmin},
		Role:      domainauth.RoleAdmin,
		ExpiresAt: baseTime.Add(time.Hour),
		SessionID: "sess-1",
		CreatedAt: baseTime,
	}))

	api.EXPECT().Validate(gomock.Any(), domainauth.RoleAdmin).Return(nil)

	store := newMockStore(t, api, mem)
	require.NoError(t, store.Start(ctx))
	require.True(t, store.IsAdmin())
}

func TestStore_RefreshSession_UsesCurrentRole(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAuthAPI(ctrl)

	user := domainauth.User{ID: "u1", Email: "user@example.com", Role: domainauth.RoleClient}
	api.EXPECT().Login(gomock.Any(), "user@example.com", "hunter2").
		Return(ports.LoginResult{User: user}, nil)
	api.EXPECT().Refresh(gomock.Any(), domainauth.RoleClient).Return(nil)

	store := newMockStore(t, api, storage.NewMemory())
	_, err := store.Login(ctx, "user@example.com", "hunter2")
	require.NoError(t, err)

	require.True(t, store.RefreshSession(ctx))
}
