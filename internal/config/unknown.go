package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownSections are the valid top-level table names in the config file.
var knownSections = map[string]bool{
	"registry": true, "index": true, "watch": true,
	"state": true, "status_api": true, "logging": true, "network": true,
}

// knownSectionKeys maps each known section to its valid field keys.
var knownSectionKeys = map[string]map[string]bool{
	"registry": {"base_url": true, "auth_token": true},
	"index": {
		"base_url": true, "app_id": true, "api_key": true,
		"index_name": true, "lost_index_name": true,
	},
	"watch": {
		"max_prefetch": true, "min_unpause": true, "retry_max": true,
		"backoff_base_ms": true, "backoff_pow": true, "retry_skipped": true,
		"refresh_enabled": true, "refresh_period": true,
	},
	"state":      {"path": true},
	"status_api": {"enabled": true, "addr": true, "stream_period": true},
	"logging":    {"log_level": true, "log_format": true},
	"network":    {"connect_timeout": true, "user_agent": true},
}

// knownSectionsList is the sorted slice form of knownSections for
// Levenshtein matching. Sorted for deterministic suggestions when two
// candidates have the same edit distance.
var knownSectionsList = sortedKeySet(knownSections)

// sectionKeyLists caches the sorted key list per section, built once.
var sectionKeyLists = func() map[string][]string {
	lists := make(map[string][]string, len(knownSectionKeys))
	for section, keys := range knownSectionKeys {
		lists[section] = sortedKeySet(keys)
	}

	return lists
}()

func sortedKeySet(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		if err := buildKeyError(key.String()); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// buildKeyError creates a descriptive error for an unknown section or
// field, suggesting the closest known name when one is within distance.
func buildKeyError(keyStr string) error {
	parts := strings.SplitN(keyStr, ".", 2)
	section := parts[0]

	if !knownSections[section] {
		if suggestion := closestMatch(section, knownSectionsList); suggestion != "" {
			return fmt.Errorf("unknown config section %q — did you mean %q?", section, suggestion)
		}

		return fmt.Errorf("unknown config section %q", section)
	}

	if len(parts) < 2 {
		return nil
	}

	field := parts[1]
	if knownSectionKeys[section][field] {
		return nil
	}

	if suggestion := closestMatch(field, sectionKeyLists[section]); suggestion != "" {
		return fmt.Errorf("unknown key %q in [%s] — did you mean %q?", field, section, suggestion)
	}

	return fmt.Errorf("unknown key %q in [%s]", field, section)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Use single-row optimization to avoid allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = minOf(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// minOf returns the minimum of three integers.
func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}
