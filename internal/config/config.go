// Package config implements TOML configuration loading, validation, and
// layered overrides for the watcher binary. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Registry  RegistryConfig  `toml:"registry"`
	Index     IndexConfig     `toml:"index"`
	Watch     WatchConfig     `toml:"watch"`
	State     StateConfig     `toml:"state"`
	StatusAPI StatusAPIConfig `toml:"status_api"`
	Logging   LoggingConfig   `toml:"logging"`
	Network   NetworkConfig   `toml:"network"`
}

// RegistryConfig points at the upstream package registry's change feed
// and document-fetch endpoints.
type RegistryConfig struct {
	BaseURL   string `toml:"base_url"`
	AuthToken string `toml:"auth_token"` // optional bearer token; empty means unauthenticated
}

// IndexConfig points at the downstream search index and its "lost"
// forensic twin.
type IndexConfig struct {
	BaseURL       string `toml:"base_url"`
	AppID         string `toml:"app_id"`
	APIKey        string `toml:"api_key"`
	IndexName     string `toml:"index_name"`
	LostIndexName string `toml:"lost_index_name"`
}

// WatchConfig governs the watcher engine's tunables.
type WatchConfig struct {
	MaxPrefetch    int     `toml:"max_prefetch"`
	MinUnpause     int     `toml:"min_unpause"`
	RetryMax       int     `toml:"retry_max"`
	BackoffBaseMS  int     `toml:"backoff_base_ms"`
	BackoffPow     float64 `toml:"backoff_pow"`
	RetrySkipped   string  `toml:"retry_skipped"`
	RefreshEnabled bool    `toml:"refresh_enabled"`
	RefreshPeriod  string  `toml:"refresh_period"`
}

// StateConfig governs the embedded checkpoint database.
type StateConfig struct {
	Path string `toml:"path"`
}

// StatusAPIConfig governs the read-only status HTTP/websocket server.
type StatusAPIConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	StreamPeriod string `toml:"stream_period"`
}

// LoggingConfig controls log output behavior: level and format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior shared by the registry and
// index clients.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value".
type CLIOverrides struct {
	ConfigPath     string // --config flag (empty = use default)
	RefreshEnabled *bool  // --refresh flag
	LogLevel       string // --log-level flag
}
