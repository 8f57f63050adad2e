package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/photomagic/internal/flagx"
	"github.com/dmitrijs2005/photomagic/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// accept strings like "2s" or integer nanoseconds.
type JsonConfig struct {
	ServerURL    string         `json:"server_url"`
	Token        string         `json:"token"`
	PollInterval timex.Duration `json:"poll_interval"`
	WaitTimeout  timex.Duration `json:"wait_timeout"`
}

// parseJson overlays Config with values loaded from the file named by -c
// or -config. Empty fields keep their current value. Panics on read or
// unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.Token != "" {
		cfg.Token = jc.Token
	}
	if jc.PollInterval.Duration > 0 {
		cfg.PollInterval = jc.PollInterval.Duration
	}
	if jc.WaitTimeout.Duration > 0 {
		cfg.WaitTimeout = jc.WaitTimeout.Duration
	}
}
