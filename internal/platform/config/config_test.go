package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, PlatformSimulator, cfg.Platform.Kind)
	assert.Equal(t, 5*time.Minute, cfg.Provisioning.CallbackTimeout)
	assert.True(t, cfg.Provisioning.SwitchAfterDownload)
	assert.Equal(t, DefaultActivationCode, cfg.Provisioning.ActivationCode)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ESIMS_ADDR", ":9090")
	t.Setenv("ESIMS_PLATFORM", "REDIS")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("PROVISIONING_CALLBACK_TIMEOUT", "30s")
	t.Setenv("PROVISIONING_SWITCH_AFTER_DOWNLOAD", "false")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("EVENT_FEED_CAPACITY", "16")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, PlatformRedis, cfg.Platform.Kind)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.Provisioning.CallbackTimeout)
	assert.False(t, cfg.Provisioning.SwitchAfterDownload)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 16, cfg.Events.FeedCapacity)
}

func TestInvalidEnv(t *testing.T) {
	tests := map[string]string{
		"PROVISIONING_CALLBACK_TIMEOUT":      "soon",
		"PROVISIONING_SWITCH_AFTER_DOWNLOAD": "maybe",
		"EVENT_FEED_CAPACITY":                "lots",
		"ESIMS_PLATFORM":                     "modem",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestRedisPlatformRequiresURL(t *testing.T) {
	t.Setenv("ESIMS_PLATFORM", PlatformRedis)
	_, err := FromEnv()
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "esims.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7000"
provisioning:
  callback_timeout: 2m
  activation_code: "LPA:1$example.com$XYZ"
kafka:
  brokers: ["k:9092"]
`), 0o600))
	t.Setenv("ESIMS_CONFIG", path)
	t.Setenv("ESIMS_ADDR", ":7001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.Server.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Provisioning.CallbackTimeout)
	assert.Equal(t, "LPA:1$example.com$XYZ", cfg.Provisioning.ActivationCode)
	assert.Equal(t, []string{"k:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "esims.events", cfg.Kafka.Topic)
	assert.True(t, cfg.Provisioning.SwitchAfterDownload)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("ESIMS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
