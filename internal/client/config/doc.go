// Package config loads runtime configuration for the photomagic CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//  4. PHOTOMAGIC_TOKEN, when set, replaces the bearer token.
//
// Supported flags
//
//	-a string   base URL of the photomagic API
//	-t string   bearer token
//	-i int      status polling interval (seconds)
//	-w int      maximum time to wait for a task (seconds)
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "token": "eyJ...",
//	  "poll_interval": "2s",
//	  "wait_timeout": "5m"
//	}
package config
