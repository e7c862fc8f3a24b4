package config

import (
	"fmt"
	"strings"
)

// StorageBackend selects the shared session storage implementation.
type StorageBackend string

const (
	// StorageMemory keeps session slots in process memory (single tab).
	StorageMemory StorageBackend = "memory"
	// StorageRedis shares session slots across processes via Redis.
	StorageRedis StorageBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageBackend.
func (s *StorageBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "memory", "redis":
		*s = StorageBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StorageBackend: %q (valid options: memory, redis)", v)
	}
}

// RedisConfig configures the Redis connection for shared storage.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"       envDefault:"0"`
}

// StorageConfig groups storage-related configuration.
type StorageConfig struct {
	// Backend determines which storage adapter to use.
	Backend StorageBackend `env:"BACKEND" envDefault:"memory"`

	// Redis configuration (used when Backend=redis).
	Redis RedisConfig `envPrefix:"REDIS_"`
}

// Sanitize applies guardrails to storage configuration values.
func (c *StorageConfig) Sanitize() {
	if c.Backend == "" {
		c.Backend = StorageMemory
	}
}
