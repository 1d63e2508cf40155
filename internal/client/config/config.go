package config

import "time"

// Config holds runtime settings for the CryptoDesk admin CLI.
//
// Fields:
//   - ServerURL: base URL of the HTTP API, e.g. "http://127.0.0.1:8080".
//   - RequestTimeout: per-request deadline.
//   - AdminEmail: prefilled at the login prompt when set.
type Config struct {
	ServerURL      string
	RequestTimeout time.Duration
	AdminEmail     string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
	c.AdminEmail = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
