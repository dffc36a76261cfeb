package config

// Default values for configuration options — the "layer 0" of the
// four-layer override chain, chosen so the watcher runs sensibly with
// no config file at all (against a registry it still needs credentials
// for, but with every tunable else filled in).
const (
	defaultRegistryBaseURL = "https://replicate.npmjs.com"
	defaultIndexBaseURL    = "https://index.example-dsn.algolia.net/1/indexes"
	defaultIndexName       = "npm-search"
	defaultLostIndexName   = "npm-search-lost"
	defaultMaxPrefetch     = 50
	defaultMinUnpause      = 10
	defaultRetryMax        = 5
	defaultBackoffBaseMS   = 200
	defaultBackoffPow      = 2.0
	defaultRetrySkipped    = "1h"
	defaultRefreshEnabled  = true
	defaultRefreshPeriod   = "5m"
	defaultStatePath       = "npm-search-watch.db"
	defaultStatusAPIAddr   = "127.0.0.1:8013"
	defaultStreamPeriod    = "2s"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	defaultConnectTimeout  = "10s"
	defaultUserAgent       = "npm-search-watcher/1.0"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Registry:  defaultRegistryConfig(),
		Index:     defaultIndexConfig(),
		Watch:     defaultWatchConfig(),
		State:     defaultStateConfig(),
		StatusAPI: defaultStatusAPIConfig(),
		Logging:   defaultLoggingConfig(),
		Network:   defaultNetworkConfig(),
	}
}

func defaultRegistryConfig() RegistryConfig {
	return RegistryConfig{BaseURL: defaultRegistryBaseURL}
}

func defaultIndexConfig() IndexConfig {
	return IndexConfig{
		BaseURL:       defaultIndexBaseURL,
		IndexName:     defaultIndexName,
		LostIndexName: defaultLostIndexName,
	}
}

func defaultWatchConfig() WatchConfig {
	return WatchConfig{
		MaxPrefetch:    defaultMaxPrefetch,
		MinUnpause:     defaultMinUnpause,
		RetryMax:       defaultRetryMax,
		BackoffBaseMS:  defaultBackoffBaseMS,
		BackoffPow:     defaultBackoffPow,
		RetrySkipped:   defaultRetrySkipped,
		RefreshEnabled: defaultRefreshEnabled,
		RefreshPeriod:  defaultRefreshPeriod,
	}
}

func defaultStateConfig() StateConfig {
	return StateConfig{Path: defaultStatePath}
}

func defaultStatusAPIConfig() StatusAPIConfig {
	return StatusAPIConfig{
		Enabled:      true,
		Addr:         defaultStatusAPIAddr,
		StreamPeriod: defaultStreamPeriod,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{LogLevel: defaultLogLevel, LogFormat: defaultLogFormat}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{ConnectTimeout: defaultConnectTimeout, UserAgent: defaultUserAgent}
}
