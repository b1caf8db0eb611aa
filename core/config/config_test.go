package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "entitlements", cfg.Database.Name)
	assert.Equal(t, "entitlements", cfg.Storage.Bucket)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "entitlements", cfg.Store.Prefix)
	assert.Equal(t, "memory", cfg.Provider.Backend)
	assert.Equal(t, 10.0, cfg.Provider.RatePerSecond)
	assert.Equal(t, uint32(5), cfg.Provider.BreakerFailures)
	assert.Equal(t, 5, cfg.Finalize.MaxAttempts)
	assert.Equal(t, 4, cfg.Finalize.Concurrency)
	assert.Equal(t, "none", cfg.Events.Backend)
	assert.Equal(t, 2, cfg.Snapshot.RetryHintAfter)
	assert.Equal(t, "catalog.yaml", cfg.Catalog.Path)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	env := "SERVER_PORT=9090\nSTORE_BACKEND=redis\nPROVIDER_RATE_PER_SECOND=2.5\nFINALIZE_MAX_ATTEMPTS=7\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))
	t.Cleanup(func() {
		for _, key := range []string{"SERVER_PORT", "STORE_BACKEND", "PROVIDER_RATE_PER_SECOND", "FINALIZE_MAX_ATTEMPTS"} {
			os.Unsetenv(key)
		}
	})

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, 2.5, cfg.Provider.RatePerSecond)
	assert.Equal(t, 7, cfg.Finalize.MaxAttempts)
}

func TestBindValues_RegistersNestedKeys(t *testing.T) {
	v := viper.New()
	bindValues(v, &Config{}, "")

	assert.True(t, v.IsSet("server.api_key"))
	assert.Equal(t, "5", v.GetString("provider.burst"))
	assert.Equal(t, "entitlements.events", v.GetString("events.exchange"))
}
