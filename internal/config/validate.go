package config

import (
	"errors"
	"fmt"
	"time"
)

// Validation range constants.
const (
	minRetryMax       = 0
	minBackoffPow     = 1.0
	minConnectTimeout = 1 * time.Second
	minStreamPeriod   = 100 * time.Millisecond
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateRegistry(&cfg.Registry)...)
	errs = append(errs, validateIndex(&cfg.Index)...)
	errs = append(errs, validateWatch(&cfg.Watch)...)
	errs = append(errs, validateState(&cfg.State)...)
	errs = append(errs, validateStatusAPI(&cfg.StatusAPI)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

func validateRegistry(r *RegistryConfig) []error {
	var errs []error

	if r.BaseURL == "" {
		errs = append(errs, errors.New("registry.base_url: must not be empty"))
	}

	return errs
}

func validateIndex(i *IndexConfig) []error {
	var errs []error

	if i.BaseURL == "" {
		errs = append(errs, errors.New("index.base_url: must not be empty"))
	}

	if i.IndexName == "" {
		errs = append(errs, errors.New("index.index_name: must not be empty"))
	}

	if i.LostIndexName == "" {
		errs = append(errs, errors.New("index.lost_index_name: must not be empty"))
	}

	if i.LostIndexName == i.IndexName {
		errs = append(errs, errors.New("index.lost_index_name: must differ from index.index_name"))
	}

	return errs
}

func validateWatch(w *WatchConfig) []error {
	var errs []error

	if w.MaxPrefetch <= 0 {
		errs = append(errs, fmt.Errorf("watch.max_prefetch: must be > 0, got %d", w.MaxPrefetch))
	}

	if w.MinUnpause < 0 {
		errs = append(errs, fmt.Errorf("watch.min_unpause: must be >= 0, got %d", w.MinUnpause))
	}

	// Required to avoid flapping: resuming as soon as the queue drops one
	// item below the high watermark would immediately re-trip it.
	if w.MinUnpause >= w.MaxPrefetch {
		errs = append(errs, fmt.Errorf(
			"watch.min_unpause (%d) must be less than watch.max_prefetch (%d)",
			w.MinUnpause, w.MaxPrefetch))
	}

	if w.RetryMax < minRetryMax {
		errs = append(errs, fmt.Errorf("watch.retry_max: must be >= %d, got %d", minRetryMax, w.RetryMax))
	}

	if w.BackoffBaseMS <= 0 {
		errs = append(errs, fmt.Errorf("watch.backoff_base_ms: must be > 0, got %d", w.BackoffBaseMS))
	}

	if w.BackoffPow <= minBackoffPow {
		errs = append(errs, fmt.Errorf("watch.backoff_pow: must be > %.1f, got %.2f", minBackoffPow, w.BackoffPow))
	}

	errs = append(errs, validateDurationNonNeg("watch.retry_skipped", w.RetrySkipped)...)
	errs = append(errs, validateDurationNonNeg("watch.refresh_period", w.RefreshPeriod)...)

	return errs
}

func validateState(s *StateConfig) []error {
	if s.Path == "" {
		return []error{errors.New("state.path: must not be empty")}
	}

	return nil
}

func validateStatusAPI(a *StatusAPIConfig) []error {
	var errs []error

	if !a.Enabled {
		return errs
	}

	if a.Addr == "" {
		errs = append(errs, errors.New("status_api.addr: must not be empty when enabled"))
	}

	errs = append(errs, validateDurationMin("status_api.stream_period", a.StreamPeriod, minStreamPeriod)...)

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("logging.log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("network.connect_timeout", n.ConnectTimeout, minConnectTimeout)...)

	if n.UserAgent == "" {
		errs = append(errs, errors.New("network.user_agent: must not be empty"))
	}

	return errs
}

// validateDuration checks that a duration string is valid and meets a minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}

func validateDurationNonNeg(field, value string) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < 0 {
		return []error{fmt.Errorf("%s: must be >= 0, got %s", field, d)}
	}

	return nil
}
