package config

import (
	"os"
	"time"
)

// EnvToken overrides the bearer token.
const EnvToken = "PHOTOMAGIC_TOKEN"

// Config holds runtime settings for the photomagic CLI.
//
// Fields:
//   - ServerURL: base URL of the HTTP API.
//   - Token: bearer token; the CLI prompts for one when empty.
//   - PollInterval: delay between status requests while waiting.
//   - WaitTimeout: upper bound for the wait command.
type Config struct {
	ServerURL    string
	Token        string
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.PollInterval = 2 * time.Second
	c.WaitTimeout = 5 * time.Minute
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), command-line flags and the environment. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	parseEnv(cfg)
	return cfg
}

func parseEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvToken); ok && v != "" {
		cfg.Token = v
	}
}
