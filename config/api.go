package config

import "time"

// APIConfig configures the portal auth API client.
type APIConfig struct {
	// BaseURL is the root of the portal REST API.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3000"`

	// Timeout bounds each request to the API.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

const (
	defaultAPITimeout = 10 * time.Second
	maxAPITimeout     = 2 * time.Minute
)

// Sanitize applies guardrails to API configuration values.
func (c *APIConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = defaultAPITimeout
	}
	if c.Timeout > maxAPITimeout {
		c.Timeout = maxAPITimeout
	}
}
