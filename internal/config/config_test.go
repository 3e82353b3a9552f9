package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "ws://localhost:8765", cfg.Brain.URL)
	assert.Equal(t, PolicySuperseded, cfg.Avatar.ReversionPolicy)
	assert.Equal(t, 2*time.Second, cfg.Sim.EmotionDuration)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Brain.URL, cfg.Brain.URL)

	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	assert.NoError(t, err)
}

func TestLoadFromReadsFile(t *testing.T) {
	dir := t.TempDir()
	doc := `
brain:
  url: ws://brain.local:9000
  handshake_timeout: 3s
avatar:
  reversion_policy: last_fired
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(doc), 0o644))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "ws://brain.local:9000", cfg.Brain.URL)
	assert.Equal(t, 3*time.Second, cfg.Brain.HandshakeTimeout)
	assert.Equal(t, PolicyLastFired, cfg.Avatar.ReversionPolicy)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 1000, cfg.Logging.MaxHistory, "unset keys keep defaults")
}

func TestLegacyEnvironmentOverride(t *testing.T) {
	t.Setenv("REACT_APP_BRAIN_WS_URL", "ws://legacy:8765")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "ws://legacy:8765", cfg.Brain.URL)
}

func TestPrefixedEnvironmentOverride(t *testing.T) {
	t.Setenv("BMOFACE_BRAIN_URL", "ws://prefixed:1")
	t.Setenv("REACT_APP_BRAIN_WS_URL", "ws://legacy:2")
	t.Setenv("BMOFACE_AVATAR_REVERSION_POLICY", "last_fired")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "ws://prefixed:1", cfg.Brain.URL)
	assert.Equal(t, PolicyLastFired, cfg.Avatar.ReversionPolicy)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Brain.URL = "http://localhost:8765"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Brain.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Avatar.ReversionPolicy = "sometimes"
	assert.Error(t, cfg.Validate())
}

func TestSaveToRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Brain.URL = "wss://secure:443"
	cfg.Metrics.Listen = ":9100"
	require.NoError(t, SaveTo(dir, cfg))

	loaded, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "wss://secure:443", loaded.Brain.URL)
	assert.Equal(t, ":9100", loaded.Metrics.Listen)
	assert.Equal(t, cfg.Sim.ChunkDelay, loaded.Sim.ChunkDelay)
}

func TestReadFromCreatesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "absent")
	t.Setenv("BMOFACE_SIM_MODEL", "gemini-test")

	cfg, err := ReadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Sim.Listen, cfg.Sim.Listen)
	assert.Equal(t, "gemini-test", cfg.Sim.Model)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestReadFromReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	doc := `
sim:
  listen: 127.0.0.1:9999
  chunk_delay: 0s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(doc), 0o644))

	cfg, err := ReadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Sim.Listen)
	assert.Equal(t, time.Duration(0), cfg.Sim.ChunkDelay)
	assert.Equal(t, "gemini-2.0-flash", cfg.Sim.Model)
}
