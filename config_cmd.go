package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quinton-ashley/npm-search/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigValidateCmd())
	cmd.AddCommand(newConfigReloadCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if cfgHolder == nil {
		return fmt.Errorf("no configuration loaded")
	}

	cfg := cfgHolder.Config()

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(cfg)
	}

	return config.RenderEffective(cfg, os.Stdout)
}

// newConfigInitCmd writes a commented default config file. Registered in
// skipConfigCommands since it must run before a config file exists.
func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		RunE:  runConfigInit,
	}
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	fmt.Printf("wrote default config to %s\n", path)

	return nil
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration without running the watcher",
		RunE:  runConfigValidate,
	}
}

// newConfigReloadCmd signals a running `watch` daemon to re-read its config
// file, without restarting it. It never touches the daemon's process
// directly — it locates the daemon via its PID file and sends SIGHUP,
// which the daemon's own shutdownContext handles (signal.go).
func newConfigReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Signal a running watch daemon to reload its config file",
		RunE:  runConfigReload,
	}
}

func runConfigReload(_ *cobra.Command, _ []string) error {
	if cfgHolder == nil {
		return fmt.Errorf("no configuration loaded")
	}

	pidPath := pidFilePath(cfgHolder.Config(), cfgHolder.Path())

	if err := sendSIGHUP(pidPath); err != nil {
		return fmt.Errorf("reloading watch daemon: %w", err)
	}

	fmt.Println("sent reload signal to running watch daemon")

	return nil
}

func runConfigValidate(_ *cobra.Command, _ []string) error {
	if cfgHolder == nil {
		return fmt.Errorf("no configuration loaded")
	}

	// loadConfig already ran Resolve, which validates — reaching here
	// means the config passed. Re-validate explicitly so this command's
	// success is not an artifact of PersistentPreRunE's side effect.
	if err := config.Validate(cfgHolder.Config()); err != nil {
		return err
	}

	fmt.Println("configuration is valid")

	return nil
}
