package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, GatewayMemory, cfg.Gateway.Kind)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, 3, cfg.Sync.RetroactiveDays)
}

func TestLoad_NoSources(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, Default().DataPath, cfg.DataPath)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "crescent.yaml", `
data_path: /var/lib/crescent/local.db
gateway:
  kind: postgres
  postgres_url: postgres://localhost/crescent
  redis_addr: localhost:6379
sync:
  max_retries: 8
  flush_timeout: 30s
  clear_on_signout: true
progression:
  max_adults: 2
`)
	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/crescent/local.db", cfg.DataPath)
	assert.Equal(t, GatewayPostgres, cfg.Gateway.Kind)
	assert.Equal(t, "localhost:6379", cfg.Gateway.RedisAddr)
	assert.Equal(t, 8, cfg.Sync.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Sync.FlushTimeout)
	assert.True(t, cfg.Sync.ClearOnSignOut)
	assert.Equal(t, 2, cfg.Progression.MaxAdults)
	// Unset keys keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Sync.CallTimeout)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "crescent.yaml", "sync:\n  max_retry: 3\n")
	_, err := Load(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retry")
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestLoad_EnvFileAndProcessEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "CRESCENT_MAX_RETRIES=7\nCRESCENT_DATA_PATH=from-dotenv.db\n")
	t.Setenv("CRESCENT_DATA_PATH", "from-env.db")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Sync.MaxRetries)
	assert.Equal(t, "from-env.db", cfg.DataPath, "process env wins over .env")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, mapLookup(map[string]string{
		"CRESCENT_GATEWAY":          "postgres",
		"CRESCENT_POSTGRES_URL":     "postgres://db/crescent",
		"CRESCENT_REDIS_DB":         "3",
		"CRESCENT_BOOTSTRAP":        "true",
		"CRESCENT_CALL_TIMEOUT":     "2s",
		"CRESCENT_CLEAR_ON_SIGNOUT": "1",
		"CRESCENT_SESSION_TOKEN":    "",
	}))
	require.NoError(t, err)
	assert.Equal(t, GatewayPostgres, cfg.Gateway.Kind)
	assert.Equal(t, 3, cfg.Gateway.RedisDB)
	assert.True(t, cfg.Gateway.Bootstrap)
	assert.Equal(t, 2*time.Second, cfg.Sync.CallTimeout)
	assert.True(t, cfg.Sync.ClearOnSignOut)
	assert.Empty(t, cfg.Gateway.SessionToken)
}

func TestApplyEnv_ReportsEveryBadValue(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, mapLookup(map[string]string{
		"CRESCENT_MAX_RETRIES":   "many",
		"CRESCENT_BOOTSTRAP":     "perhaps",
		"CRESCENT_FLUSH_TIMEOUT": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRESCENT_MAX_RETRIES")
	assert.Contains(t, err.Error(), "CRESCENT_BOOTSTRAP")
	assert.Contains(t, err.Error(), "CRESCENT_FLUSH_TIMEOUT")
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown gateway", func(c *Config) { c.Gateway.Kind = "sqlite" }, "gateway.kind"},
		{"postgres without url", func(c *Config) { c.Gateway.Kind = GatewayPostgres }, "postgres_url"},
		{"zero retries", func(c *Config) { c.Sync.MaxRetries = 0 }, "max_retries"},
		{"no data path", func(c *Config) { c.DataPath = "" }, "data_path"},
		{"zero flush timeout", func(c *Config) { c.Sync.FlushTimeout = 0 }, "flush_timeout"},
		{"no retroactive window", func(c *Config) { c.Sync.RetroactiveDays = 0 }, "retroactive_days"},
		{"negative adults", func(c *Config) { c.Progression.MaxAdults = -1 }, "max_adults"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
