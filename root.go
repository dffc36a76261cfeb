package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/quinton-ashley/npm-search/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
	flagLogLevel   string
	flagNoRefresh  bool
)

// cfgHolder holds the effective configuration loaded by PersistentPreRunE,
// wrapped in a Holder so the watch command's hot-reload can update it in
// place after startup. Every subcommand reads through cfgHolder.Config().
var cfgHolder *config.Holder

// httpClientTimeout is the fallback HTTP client timeout used before a
// config-derived timeout is available (e.g. for the status command,
// which never loads the registry/index config).
const httpClientTimeout = 30 * time.Second

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// skipConfigCommands lists commands that handle config loading themselves
// or need none at all. Uses CommandPath() for explicit matching, safe
// against future subcommand collisions.
var skipConfigCommands = map[string]bool{
	"npm-search-watcher config init": true,
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "npm-search-watcher",
		Short:   "Mirror a package registry's change feed into a search index",
		Long:    "npm-search-watcher tails a package registry's change feed and keeps a search index in sync, one package at a time.",
		Version: version,
		// Silence Cobra's default error/usage printing — handled in main.
		SilenceErrors: true,
		SilenceUsage:  true,
		// PersistentPreRunE loads configuration before every command except
		// those that bootstrap or don't need it.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&flagNoRefresh, "no-refresh", false, "disable the periodic full-index refresh scan")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores the result in cfgHolder for use by subcommands.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		LogLevel:   flagLogLevel,
	}

	if cmd.Flags().Changed("no-refresh") {
		enabled := !flagNoRefresh
		cli.RefreshEnabled = &enabled
	}

	env := config.ReadEnvOverrides()

	resolved, err := config.Resolve(env, cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	path := resolved.State.Path
	if flagConfigPath != "" {
		path = flagConfigPath
	} else if env.ConfigPath != "" {
		path = env.ConfigPath
	} else {
		path = config.DefaultConfigPath()
	}

	cfgHolder = config.NewHolder(resolved, path)

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level and format provide the baseline;
// --verbose and --quiet override the level because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo
	format := "text"

	if cfgHolder != nil {
		cfg := cfgHolder.Config()

		switch cfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = cfg.Logging.LogFormat
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	if format == "auto" {
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "text"
		} else {
			format = "json"
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
