package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/quinton-ashley/npm-search/internal/watch"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Query a running watcher's status API",
		RunE:  runStatus,
	}
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg := cfgHolder.Config()

	if !cfg.StatusAPI.Enabled {
		return fmt.Errorf("status API is disabled in config (status_api.enabled = false)")
	}

	url := fmt.Sprintf("http://%s/status", cfg.StatusAPI.Addr)

	resp, err := defaultHTTPClient().Get(url)
	if err != nil {
		return fmt.Errorf("querying status API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status API returned %s", resp.Status)
	}

	var status watch.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decoding status response: %w", err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(status)
	}

	printStatusTable(status)

	return nil
}

func printStatusTable(status watch.Status) {
	fmt.Printf("queue length     %d\n", status.QueueLength)
	fmt.Printf("running          %d\n", status.Running)
	fmt.Printf("parked           %d\n", status.ParkedCount)
	fmt.Printf("checkpoint seq   %d\n", status.CheckpointSeq)
	fmt.Printf("total sequence   %d\n", status.TotalSequence)
}
