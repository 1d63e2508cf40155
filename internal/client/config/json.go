package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cryptodesk/internal/flagx"
	"github.com/dmitrijs2005/cryptodesk/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	AdminEmail     string         `json:"admin_email"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without the flag nothing is loaded. Read or unmarshal
// errors panic.
func parseJson(cfg *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.ServerURL != "" {
		cfg.ServerURL = c.ServerURL
	}
	if c.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.AdminEmail != "" {
		cfg.AdminEmail = c.AdminEmail
	}
}
