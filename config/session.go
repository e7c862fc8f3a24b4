package config

import "time"

// SessionConfig configures session timeout windows and the two background
// timers (silent refresh and inactivity expiry check).
type SessionConfig struct {
	// ClientTimeout is the full session window for client accounts.
	ClientTimeout time.Duration `env:"CLIENT_TIMEOUT" envDefault:"168h"`

	// AdminTimeout is the full session window for the admin account.
	AdminTimeout time.Duration `env:"ADMIN_TIMEOUT" envDefault:"12h"`

	// RefreshBuffer is how long before expiry the silent refresh fires.
	RefreshBuffer time.Duration `env:"REFRESH_BUFFER" envDefault:"5m"`

	// IdleCheckInterval is the polling interval of the inactivity-expiry
	// backstop while authenticated.
	IdleCheckInterval time.Duration `env:"IDLE_CHECK_INTERVAL" envDefault:"60s"`

	// ActivityExtension is the window ExtendSession pushes the expiry
	// forward by on observed user activity.
	ActivityExtension time.Duration `env:"ACTIVITY_EXTENSION" envDefault:"30m"`

	// ValidateOnStart confirms a restored session with the server during
	// bootstrap. A locally expired record never reaches the server.
	ValidateOnStart bool `env:"VALIDATE_ON_START" envDefault:"true"`

	// KeyPrefix namespaces the storage slots, e.g. "portal:".
	KeyPrefix string `env:"KEY_PREFIX" envDefault:""`
}

const (
	minSessionTimeout    = time.Minute
	minRefreshBuffer     = 10 * time.Second
	minIdleCheckInterval = time.Second
	minActivityExtension = time.Minute
)

// Sanitize applies guardrails to session configuration values.
func (c *SessionConfig) Sanitize() {
	if c.ClientTimeout < minSessionTimeout {
		c.ClientTimeout = minSessionTimeout
	}
	if c.AdminTimeout < minSessionTimeout {
		c.AdminTimeout = minSessionTimeout
	}
	if c.RefreshBuffer < minRefreshBuffer {
		c.RefreshBuffer = minRefreshBuffer
	}
	// The refresh must fire inside the shortest session window.
	shortest := c.ClientTimeout
	if c.AdminTimeout < shortest {
		shortest = c.AdminTimeout
	}
	if c.RefreshBuffer >= shortest {
		c.RefreshBuffer = shortest / 2
	}
	if c.IdleCheckInterval < minIdleCheckInterval {
		c.IdleCheckInterval = minIdleCheckInterval
	}
	if c.ActivityExtension < minActivityExtension {
		c.ActivityExtension = minActivityExtension
	}
}
