package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 10*time.Second, cfg.StreamWriteTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "stdout", cfg.LogOutput)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("HEARTBEAT_INTERVAL", "45s")
	t.Setenv("STREAM_WRITE_TIMEOUT", "2s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 45*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, cfg.StreamWriteTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_RejectsNonPositiveHeartbeat(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL", "0s")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnparsableDuration(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL", "thirty")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_FileOutputNeedsPath(t *testing.T) {
	t.Setenv("LOG_OUTPUT", "file")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("LOG_FILE_PATH", "/var/log/refresh-notify.log")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.LogOutput)
}
