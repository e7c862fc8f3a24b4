package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/brightline/portal-sessions/config"
	"github.com/brightline/portal-sessions/internal/adapters/api"
	"github.com/brightline/portal-sessions/internal/adapters/scheduler"
	"github.com/brightline/portal-sessions/internal/adapters/storage"
	"github.com/brightline/portal-sessions/internal/adapters/timeprovider"
	"github.com/brightline/portal-sessions/internal/events"
	"github.com/brightline/portal-sessions/internal/ports"
	"github.com/brightline/portal-sessions/internal/session"
)

// StoreDeps groups dependencies for NewSessionStore.
type StoreDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	API     ports.AuthAPI
	Storage ports.Storage
	Bus     *events.Bus
}

// NewSessionStore wires adapters according to configuration and constructs
// the session store plus its event bus. The returned cleanup releases any
// backend connections; call it after Stop.
func NewSessionStore(deps StoreDeps) (*session.Store, *events.Bus, func(), error) {
	if deps.Config == nil {
		return nil, nil, nil, errors.New("config is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	authAPI := deps.API
	if authAPI == nil {
		client, err := api.NewClient(api.Config{
			BaseURL: deps.Config.API.BaseURL,
			Timeout: deps.Config.API.Timeout,
			Logger:  deps.Logger,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create API client: %w", err)
		}
		authAPI = client
	}

	store, watcher, cleanup, err := connectStorage(deps)
	if err != nil {
		return nil, nil, nil, err
	}

	bus := deps.Bus
	if bus == nil {
		bus = events.NewBus()
	}

	sessions, err := session.New(session.Options{
		API:       authAPI,
		Storage:   store,
		Watcher:   watcher,
		Clock:     timeprovider.RealClock{},
		Scheduler: scheduler.Wall{},
		Bus:       bus,
		Config:    deps.Config.Session,
		Logger:    deps.Logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("create session store: %w", err)
	}

	return sessions, bus, cleanup, nil
}

// connectStorage selects the storage backend from configuration.
func connectStorage(deps StoreDeps) (ports.Storage, ports.RemovalWatcher, func(), error) {
	noop := func() {}

	if deps.Storage != nil {
		watcher, _ := deps.Storage.(ports.RemovalWatcher)
		return deps.Storage, watcher, noop, nil
	}

	switch deps.Config.Storage.Backend {
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     deps.Config.Storage.Redis.Addr,
			Password: deps.Config.Storage.Redis.Password,
			DB:       deps.Config.Storage.Redis.DB,
		})
		// The adapter prefix namespaces this application's keys in Redis;
		// the session KeyPrefix (applied by the store) namespaces slots
		// within it.
		adapter := storage.NewRedis(client, "portal-sessions:")
		cleanup := func() {
			if err := client.Close(); err != nil {
				deps.Logger.Error("close redis failed", "error", err)
			}
		}
		return adapter, adapter, cleanup, nil
	case config.StorageMemory:
		mem := storage.NewMemory()
		return mem, mem, noop, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", deps.Config.Storage.Backend)
	}
}
