package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("test")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.ReportPollInterval)
	assert.Equal(t, 10*time.Minute, cfg.ReportMaxWait)
	assert.Equal(t, "sp-api-credentials", cfg.SPAPISecretName)
	assert.Equal(t, []string{"ATVPDKIKX0DER"}, cfg.MarketplaceIDs)
	assert.Equal(t, "https://api.amazon.com/auth/o2/token", cfg.LWATokenURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_REPORT_POLL_INTERVAL", "250ms")
	t.Setenv("APP_SERVER_PORT", "8081")
	t.Setenv("APP_SECRETS_SOURCE", "static")

	cfg, err := Load("test")
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.ReportPollInterval)
	assert.Equal(t, 8081, cfg.ServerPort)
	assert.Equal(t, "static", cfg.SecretsSource)
}

func TestConfig_UsesDefaultStateSecret(t *testing.T) {
	cfg, err := Load("test")
	require.NoError(t, err)
	assert.True(t, cfg.UsesDefaultStateSecret())

	t.Setenv("APP_OAUTH_STATE_SECRET", "a-real-deployment-secret")
	cfg, err = Load("test")
	require.NoError(t, err)
	assert.False(t, cfg.UsesDefaultStateSecret())
}
