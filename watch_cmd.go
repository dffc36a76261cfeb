package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/quinton-ashley/npm-search/internal/config"
	"github.com/quinton-ashley/npm-search/internal/format"
	"github.com/quinton-ashley/npm-search/internal/registry"
	"github.com/quinton-ashley/npm-search/internal/searchindex"
	"github.com/quinton-ashley/npm-search/internal/state"
	"github.com/quinton-ashley/npm-search/internal/statusapi"
	"github.com/quinton-ashley/npm-search/internal/watch"
)

// applyReloadedTunables parses the watch section of a reloaded config and
// pushes the safely-mutable knobs into the running controller. Parse
// failures are logged and the previous tunables stay in effect — a
// malformed reload must never crash the watcher.
func applyReloadedTunables(controller *watch.Controller, cfg config.WatchConfig, logger *slog.Logger) {
	retrySkipped, err := time.ParseDuration(cfg.RetrySkipped)
	if err != nil {
		logger.Warn("config reload: ignoring unparsable watch.retry_skipped", slog.String("error", err.Error()))
		return
	}

	refreshPeriod, err := time.ParseDuration(cfg.RefreshPeriod)
	if err != nil {
		logger.Warn("config reload: ignoring unparsable watch.refresh_period", slog.String("error", err.Error()))
		return
	}

	controller.UpdateTunables(watch.Config{
		MaxPrefetch:    cfg.MaxPrefetch,
		MinUnpause:     cfg.MinUnpause,
		RetryMax:       cfg.RetryMax,
		BackoffBase:    time.Duration(cfg.BackoffBaseMS) * time.Millisecond,
		BackoffPow:     cfg.BackoffPow,
		RetrySkipped:   retrySkipped,
		RefreshPeriod:  refreshPeriod,
		RefreshEnabled: cfg.RefreshEnabled,
	})
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Tail the registry change feed and keep the search index in sync",
		RunE:  runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg := cfgHolder.Config()
	logger := buildLogger()

	pidPath := pidFilePath(cfg, cfgHolder.Path())

	cleanup, err := writePIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("acquiring watcher lock: %w", err)
	}
	defer cleanup()

	// state.Open and the collaborator construction below don't need the
	// shutdown-aware context yet — that is wired in once the controller
	// exists, so SIGHUP has something to reload against.
	store, err := state.Open(cmd.Context(), cfg.State.Path, logger)
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	defer store.Close()

	httpClient := defaultHTTPClient()

	connectTimeout, err := time.ParseDuration(cfg.Network.ConnectTimeout)
	if err == nil && connectTimeout > 0 {
		httpClient.Timeout = connectTimeout
	}

	var registryToken oauth2.TokenSource
	if cfg.Registry.AuthToken != "" {
		registryToken = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Registry.AuthToken})
	}

	registryClient := registry.NewClient(cfg.Registry.BaseURL, httpClient, registryToken, logger)
	reader := registry.NewChangesReader(registryClient)

	indexClient := searchindex.NewClient(cfg.Index.BaseURL, cfg.Index.AppID, cfg.Index.APIKey, cfg.Index.IndexName, httpClient, logger)
	lostIndexClient := searchindex.NewClient(cfg.Index.BaseURL, cfg.Index.AppID, cfg.Index.APIKey, cfg.Index.LostIndexName, httpClient, logger)
	lostIndex := state.NewFallbackLostIndex(searchindex.NewLostClient(lostIndexClient), store, logger)

	errorSink := watch.NewLogErrorSink(logger)
	telemetry := watch.NewLogTelemetry(logger)

	backoffBase := time.Duration(cfg.Watch.BackoffBaseMS) * time.Millisecond

	retrySkipped, err := time.ParseDuration(cfg.Watch.RetrySkipped)
	if err != nil {
		return fmt.Errorf("parsing watch.retry_skipped: %w", err)
	}

	refreshPeriod, err := time.ParseDuration(cfg.Watch.RefreshPeriod)
	if err != nil {
		return fmt.Errorf("parsing watch.refresh_period: %w", err)
	}

	watchCfg := watch.Config{
		MaxPrefetch:    cfg.Watch.MaxPrefetch,
		MinUnpause:     cfg.Watch.MinUnpause,
		RetryMax:       cfg.Watch.RetryMax,
		BackoffBase:    backoffBase,
		BackoffPow:     cfg.Watch.BackoffPow,
		RetrySkipped:   retrySkipped,
		RefreshPeriod:  refreshPeriod,
		RefreshEnabled: cfg.Watch.RefreshEnabled,
	}

	controller := watch.NewController(watchCfg, watch.Collaborators{
		State:          store,
		RegistryReader: reader,
		RegistryFetch:  registryClient,
		Formatter:      format.New(),
		Index:          indexClient,
		LostIndex:      lostIndex,
		ErrorSink:      errorSink,
		Telemetry:      telemetry,
	}, logger)

	onReload := func(next *config.Config) {
		applyReloadedTunables(controller, next.Watch, logger)
	}

	// SIGHUP re-reads the config file and applies it to the now-wired
	// controller — the same path the fsnotify watch below takes on a
	// file write, reachable out-of-process via `config reload`.
	ctx := shutdownContext(cmd.Context(), func() {
		config.Reload(cfgHolder, onReload, logger)
	}, logger)

	var statusServer *statusapi.Server

	if cfg.StatusAPI.Enabled {
		streamPeriod, err := time.ParseDuration(cfg.StatusAPI.StreamPeriod)
		if err != nil {
			return fmt.Errorf("parsing status_api.stream_period: %w", err)
		}

		statusServer = statusapi.New(controller, cfg.StatusAPI.Addr, streamPeriod, logger)

		go func() {
			if err := statusServer.Start(ctx); err != nil {
				logger.Error("status API server exited", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		if err := config.WatchReload(ctx, cfgHolder, onReload, logger); err != nil {
			logger.Warn("config hot-reload loop exited", slog.String("error", err.Error()))
		}
	}()

	logger.Info("watcher starting",
		slog.String("registry", cfg.Registry.BaseURL),
		slog.String("index", cfg.Index.IndexName),
	)

	runErr := controller.Run(ctx)

	controller.Stop()

	return runErr
}
