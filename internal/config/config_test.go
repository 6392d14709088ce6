package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

ga4:
  property_id: "123456"
  timezone: "UTC"
  request_pause_ms: 50

paths:
  data_dir: "./test-data"

scheduler:
  enabled: false
  hours: [1, 13]
  max_log_files: 3
  retry:
    max_attempts: 2

storage:
  type: "memory"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Address())

	assert.Equal(t, "123456", cfg.GA4.PropertyID)
	assert.Equal(t, "UTC", cfg.GA4.Timezone)
	assert.Equal(t, 50, cfg.GA4.RequestPauseMS)

	assert.Equal(t, "./test-data", cfg.Paths.DataDir)
	assert.Equal(t, filepath.Join("./test-data", "consolidated-reports.json"), cfg.Paths.StorePath())

	assert.False(t, cfg.Scheduler.SchedulerEnabled())
	assert.Equal(t, []int{1, 13}, cfg.Scheduler.Hours)
	assert.Equal(t, 3, cfg.Scheduler.MaxLogFiles)
	assert.Equal(t, 2, cfg.Scheduler.Retry.MaxAttempts)

	assert.Equal(t, "memory", cfg.Storage.Type)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: {}\n"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "America/Mexico_City", cfg.GA4.Timezone)
	assert.Equal(t, "https://analyticsdata.googleapis.com/v1beta", cfg.GA4.BaseURL)
	assert.Equal(t, "URLs!A:A", cfg.Sheets.Range)
	assert.Equal(t, "./data", cfg.Paths.DataDir)
	assert.Equal(t, "consolidated-reports.json", cfg.Paths.StoreFile)
	assert.Equal(t, "./config/urls.json", cfg.Paths.URLConfig)
	assert.Equal(t, "./logs", cfg.Paths.LogDir)
	assert.Equal(t, []int{0, 6, 12, 18}, cfg.Scheduler.Hours)
	assert.Equal(t, 7, cfg.Scheduler.MaxLogFiles)
	assert.True(t, cfg.Scheduler.SchedulerEnabled())
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, 900, cfg.Redis.LockTTLSeconds)
	assert.Equal(t, 500, cfg.Watch.DebounceMS)
	assert.Equal(t, 200, cfg.GA4.RequestPauseMS)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("GA4_PROPERTY_ID", "987")
	t.Setenv("GOOGLE_CREDENTIALS", `{"type":"service_account"}`)
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("S3_BUCKET", "reports")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DATA_DIR", "/var/lib/reports")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "987", cfg.GA4.PropertyID)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "reports", cfg.Storage.S3Bucket)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "/var/lib/reports", cfg.Paths.DataDir)

	creds, err := cfg.GA4.Credentials()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(creds))
}

func TestLoadFromEnvRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGA4Validate(t *testing.T) {
	cfg := Default()
	assert.ErrorIs(t, cfg.GA4.Validate(), ErrMissingPropertyID)

	cfg.GA4.PropertyID = "42"
	assert.NoError(t, cfg.GA4.Validate())

	cfg.GA4.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.GA4.Validate())
	assert.Equal(t, "UTC", cfg.GA4.Location().String())
}

func TestCredentialsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_email":"a@b"}`), 0600))

	cfg := GA4Config{CredentialsPath: path}
	data, err := cfg.Credentials()
	require.NoError(t, err)
	assert.Contains(t, string(data), "client_email")

	_, err = GA4Config{CredentialsPath: path + ".missing"}.Credentials()
	assert.Error(t, err)

	_, err = GA4Config{}.Credentials()
	assert.Error(t, err)
}
