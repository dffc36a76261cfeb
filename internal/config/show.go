package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, giving
// users visibility into the effective values after all four override layers
// (defaults -> file -> env -> CLI) have been applied.
func RenderEffective(cfg *Config, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration\n\n")

	renderRegistrySection(ew, &cfg.Registry)
	renderIndexSection(ew, &cfg.Index)
	renderWatchSection(ew, &cfg.Watch)
	renderStateSection(ew, &cfg.State)
	renderStatusAPISection(ew, &cfg.StatusAPI)
	renderLoggingSection(ew, &cfg.Logging)
	renderNetworkSection(ew, &cfg.Network)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderRegistrySection(ew *errWriter, r *RegistryConfig) {
	ew.printf("[registry]\n")
	ew.printf("  base_url   = %q\n", r.BaseURL)

	if r.AuthToken != "" {
		ew.printf("  auth_token = <redacted>\n")
	}

	ew.printf("\n")
}

func renderIndexSection(ew *errWriter, i *IndexConfig) {
	ew.printf("[index]\n")
	ew.printf("  base_url        = %q\n", i.BaseURL)
	ew.printf("  index_name      = %q\n", i.IndexName)
	ew.printf("  lost_index_name = %q\n", i.LostIndexName)

	if i.AppID != "" {
		ew.printf("  app_id          = %q\n", i.AppID)
	}

	if i.APIKey != "" {
		ew.printf("  api_key         = <redacted>\n")
	}

	ew.printf("\n")
}

func renderWatchSection(ew *errWriter, w *WatchConfig) {
	ew.printf("[watch]\n")
	ew.printf("  max_prefetch    = %d\n", w.MaxPrefetch)
	ew.printf("  min_unpause     = %d\n", w.MinUnpause)
	ew.printf("  retry_max       = %d\n", w.RetryMax)
	ew.printf("  backoff_base_ms = %d\n", w.BackoffBaseMS)
	ew.printf("  backoff_pow     = %.2f\n", w.BackoffPow)
	ew.printf("  retry_skipped   = %q\n", w.RetrySkipped)
	ew.printf("  refresh_enabled = %t\n", w.RefreshEnabled)
	ew.printf("  refresh_period  = %q\n", w.RefreshPeriod)
	ew.printf("\n")
}

func renderStateSection(ew *errWriter, s *StateConfig) {
	ew.printf("[state]\n")
	ew.printf("  path = %q\n", s.Path)
	ew.printf("\n")
}

func renderStatusAPISection(ew *errWriter, a *StatusAPIConfig) {
	ew.printf("[status_api]\n")
	ew.printf("  enabled       = %t\n", a.Enabled)
	ew.printf("  addr          = %q\n", a.Addr)
	ew.printf("  stream_period = %q\n", a.StreamPeriod)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)
	ew.printf("  log_format = %q\n", l.LogFormat)
	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("[network]\n")
	ew.printf("  connect_timeout = %q\n", n.ConnectTimeout)
	ew.printf("  user_agent      = %q\n", n.UserAgent)
}
