package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "npm-search"

// Config file name.
const configFileName = "config.toml"

// DefaultConfigDir returns the directory holding config.toml when neither
// --config nor NPM_SEARCH_CONFIG point somewhere else.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/npm-search).
// On macOS, uses ~/Library/Application Support/npm-search per Apple guidelines.
// Other platforms fall back to ~/.config/npm-search.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxConfigDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// linuxConfigDir returns the XDG-compliant config directory for Linux.
func linuxConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".config", appName)
}

// DefaultDataDir returns a per-user data directory for the watcher. The
// watcher itself does not place files there: state.path defaults to a
// file name relative to the working directory, and the daemon's PID file
// sits next to state.path (or next to the config file when it is empty).
// On Linux, respects XDG_DATA_HOME (defaults to ~/.local/share/npm-search).
// On macOS, uses ~/Library/Application Support/npm-search (macOS convention
// collapses config and data into one directory).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDataDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// linuxDataDir returns the XDG-compliant data directory for Linux.
func linuxDataDir(home string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".local", "share", appName)
}

// DefaultCacheDir returns the directory for files the watcher can safely
// lose and rebuild (currently unused by any collaborator, reserved for a
// future registry response cache).
// On Linux, respects XDG_CACHE_HOME (defaults to ~/.cache/npm-search).
// On macOS, uses ~/Library/Caches/npm-search per Apple guidelines.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxCacheDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Caches", appName)
	default:
		return filepath.Join(home, ".cache", appName)
	}
}

// linuxCacheDir returns the XDG-compliant cache directory for Linux.
func linuxCacheDir(home string) string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".cache", appName)
}

// DefaultConfigPath returns the full path to config.toml, the file `config
// init` writes and `watch`/`config reload` read, when neither
// NPM_SEARCH_CONFIG nor --config is specified.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}
