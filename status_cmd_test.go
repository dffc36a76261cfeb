package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quinton-ashley/npm-search/internal/config"
	"github.com/quinton-ashley/npm-search/internal/watch"
)

func TestRunStatus_DisabledInConfig(t *testing.T) {
	oldCfg := cfgHolder
	t.Cleanup(func() { cfgHolder = oldCfg })

	cfg := config.DefaultConfig()
	cfg.StatusAPI.Enabled = false
	cfgHolder = config.NewHolder(cfg, "/tmp/config.toml")

	err := runStatus(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestRunStatus_QueriesConfiguredAddr(t *testing.T) {
	oldCfg := cfgHolder
	oldJSON := flagJSON
	t.Cleanup(func() {
		cfgHolder = oldCfg
		flagJSON = oldJSON
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(watch.Status{QueueLength: 3, Running: 1, ParkedCount: 0, CheckpointSeq: 100, TotalSequence: 200})
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.StatusAPI.Enabled = true
	cfg.StatusAPI.Addr = srv.Listener.Addr().String()
	cfgHolder = config.NewHolder(cfg, "/tmp/config.toml")
	flagJSON = true

	err := runStatus(nil, nil)
	assert.NoError(t, err)
}
