package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEnvOverrides_AllSet(t *testing.T) {
	t.Setenv("NPM_SEARCH_CONFIG", "/custom/config.toml")
	t.Setenv("NPM_SEARCH_REGISTRY_TOKEN", "reg-token")
	t.Setenv("NPM_SEARCH_INDEX_API_KEY", "idx-key")
	t.Setenv("NPM_SEARCH_LOG_LEVEL", "debug")

	overrides := ReadEnvOverrides()
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "reg-token", overrides.RegistryToken)
	assert.Equal(t, "idx-key", overrides.IndexAPIKey)
	assert.Equal(t, "debug", overrides.LogLevel)
}

func TestReadEnvOverrides_NoneSet(t *testing.T) {
	t.Setenv("NPM_SEARCH_CONFIG", "")
	t.Setenv("NPM_SEARCH_REGISTRY_TOKEN", "")
	t.Setenv("NPM_SEARCH_INDEX_API_KEY", "")
	t.Setenv("NPM_SEARCH_LOG_LEVEL", "")

	overrides := ReadEnvOverrides()
	assert.Empty(t, overrides.ConfigPath)
	assert.Empty(t, overrides.RegistryToken)
	assert.Empty(t, overrides.IndexAPIKey)
	assert.Empty(t, overrides.LogLevel)
}

func TestEnvVarConstants(t *testing.T) {
	assert.Equal(t, "NPM_SEARCH_CONFIG", EnvConfig)
	assert.Equal(t, "NPM_SEARCH_REGISTRY_TOKEN", EnvRegistryToken)
	assert.Equal(t, "NPM_SEARCH_INDEX_API_KEY", EnvIndexAPIKey)
	assert.Equal(t, "NPM_SEARCH_LOG_LEVEL", EnvLogLevel)
}
