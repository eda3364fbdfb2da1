package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProductionConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)
	assert.Equal(t, 8002, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "sms_receiver:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 30*24*time.Hour, cfg.SMS.Retention)
	assert.Equal(t, "log", cfg.SMS.Carrier)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Security.AdminAPIKeys)
}

func TestLoadProductionConfig_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SMS_PORT", "9000")
	t.Setenv("REDIS_URL", "redis://cache:6380/2")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ADMIN_API_KEYS", "one, two,,")
	t.Setenv("SMS_RETENTION", "48h")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "redis://cache:6380/2", cfg.Redis.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"one", "two"}, cfg.Security.AdminAPIKeys)
	assert.Equal(t, 48*time.Hour, cfg.SMS.Retention)

	t.Setenv("SERVER_PORT", "9100")
	cfg, err = LoadProductionConfig()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoadProductionConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	content := "# comment\nSMS_CARRIER=\"log\"\nMETRICS_PATH='/internal/metrics'\nnot a pair\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))
	// restored after the test, including values the file sets
	t.Setenv("METRICS_PATH", "")
	t.Setenv("SMS_CARRIER", "")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)
	assert.Equal(t, "/internal/metrics", cfg.Metrics.Path)
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		message string
	}{
		{name: "bad port", env: map[string]string{"SERVER_PORT": "70000"}, message: "SERVER_PORT"},
		{name: "bad level", env: map[string]string{"LOG_LEVEL": "loud"}, message: "LOG_LEVEL"},
		{name: "bad carrier", env: map[string]string{"SMS_CARRIER": "twilio"}, message: "SMS_CARRIER"},
		{name: "bad retention", env: map[string]string{"SMS_RETENTION": "-1h"}, message: "SMS_RETENTION"},
		{name: "bad metrics path", env: map[string]string{"METRICS_PATH": "metrics"}, message: "METRICS_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadProductionConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
