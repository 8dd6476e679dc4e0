package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Telemetry.Interval)
	assert.Equal(t, 60, cfg.Telemetry.HistoryCapacity)
	assert.Equal(t, RearmNever, cfg.Telemetry.RearmPolicy)
	assert.Equal(t, TransportHTTP, cfg.Selector.Transport)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AQUA_TELEMETRY_REARM_POLICY", "on-recovery")
	t.Setenv("AQUA_SELECTOR_TRANSPORT", "grpc")
	t.Setenv("AQUA_HTTP_PORT", "9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, RearmOnRecovery, cfg.Telemetry.RearmPolicy)
	assert.Equal(t, TransportGRPC, cfg.Selector.Transport)
	assert.Equal(t, 9999, cfg.HTTP.Port)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	yaml := "telemetry:\n  interval: 500ms\n  history_capacity: 30\nredis:\n  enabled: true\n  addr: cache:6379\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aquamonitor.yaml"), []byte(yaml), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.Telemetry.Interval)
	assert.Equal(t, 30, cfg.Telemetry.HistoryCapacity)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.NoError(t, err)
}

func TestLoad_RejectsUnknownPolicy(t *testing.T) {
	t.Setenv("AQUA_TELEMETRY_REARM_POLICY", "sometimes")
	_, err := Load("")
	assert.ErrorContains(t, err, "rearm_policy")
}
