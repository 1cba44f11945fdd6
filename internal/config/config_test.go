package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"LOG_FORMAT", "LOG_LEVEL", "TEMPORAL_HOST_PORT"} {
		t.Setenv(k, "")
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Storefront.Addr)
	assert.Equal(t, "store_data", cfg.Mirror.Table)
	assert.Equal(t, 10*time.Second, cfg.Mirror.Timeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.Assistant.Model)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
log:
  format: console
storefront:
  addr: ":9000"
  admin_user: owner
mirror:
  table: shop_kv
  timeout: 3s
temporal:
  host_port: localhost:7233
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Storefront.Addr)
	assert.Equal(t, "owner", cfg.Storefront.AdminUser)
	assert.Equal(t, "storefront.db", cfg.Storefront.DB, "unset fields keep defaults")
	assert.Equal(t, "shop_kv", cfg.Mirror.Table)
	assert.Equal(t, 3*time.Second, cfg.Mirror.Timeout)
	assert.Equal(t, "localhost:7233", cfg.Temporal.HostPort)
	assert.Equal(t, "console", cfg.Logging().Format)
}

func TestEnvOverridesFile(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"API_KEY":           "fallback-key",
		"MIRROR_ACCESS_KEY": "mk",
		"LOG_LEVEL":         "debug",
	}
	cfg.applyEnv(func(k string) string { return env[k] })
	assert.Equal(t, "fallback-key", cfg.Assistant.APIKey)
	assert.Equal(t, "mk", cfg.Mirror.AccessKey)
	assert.Equal(t, "debug", cfg.Log.Level)

	env["GEMINI_API_KEY"] = "primary"
	cfg.applyEnv(func(k string) string { return env[k] })
	assert.Equal(t, "primary", cfg.Assistant.APIKey)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "mirror:\n  timeout: 0s\nlog:\n  format: xml\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror.timeout")
	assert.Contains(t, err.Error(), "log.format")

	_, err = Load(writeConfig(t, "storefront: [\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
