package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "astra", cfg.Database.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, 600, cfg.Monitor.PollInterval)
	assert.Equal(t, SourceModeScript, cfg.Monitor.SourceMode)
	assert.Equal(t, 60, cfg.Monitor.ScriptTimeout)
	assert.Equal(t, 0.3, cfg.Monitor.NormalSampleRate)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 300, cfg.Cache.TTL)
	assert.False(t, cfg.Notify.Enabled)
	assert.Equal(t, "astra/breach", cfg.Notify.TopicPrefix)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("POLL_INTERVAL", "60")
	t.Setenv("SOURCE_MODE", SourceModeSynthetic)
	t.Setenv("NORMAL_SAMPLE_RATE", "0.9")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("NOTIFY_ENABLED", "true")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 60, cfg.Monitor.PollInterval)
	assert.Equal(t, SourceModeSynthetic, cfg.Monitor.SourceMode)
	assert.Equal(t, 0.9, cfg.Monitor.NormalSampleRate)
	assert.True(t, cfg.Cache.Enabled)
	assert.True(t, cfg.Notify.Enabled)
}

func TestLoad_MalformedNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "often")
	t.Setenv("NORMAL_SAMPLE_RATE", "sometimes")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Monitor.PollInterval)
	assert.Equal(t, 0.3, cfg.Monitor.NormalSampleRate)
}

func writeRegistryFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validRegistryYAML = `
payloads:
  - scid: 101
    name: "Payload 1"
  - scid: 102
    name: "Payload 2"

metrics:
  thermal:
    threshold: 75.0
    baseline: 70
    variation: 10
  voltage:
    threshold: 3.3
`

func TestLoadRegistry_Valid(t *testing.T) {
	path := writeRegistryFile(t, validRegistryYAML)

	reg, err := LoadRegistry(path)

	require.NoError(t, err)
	require.Len(t, reg.Payloads, 2)
	assert.Equal(t, 101, reg.Payloads[0].SCID)
	assert.Equal(t, "Payload 1", reg.Payloads[0].Name)

	threshold, ok := reg.Threshold("thermal")
	require.True(t, ok)
	assert.Equal(t, 75.0, threshold)

	_, ok = reg.Threshold("gravimetric")
	assert.False(t, ok)

	assert.Equal(t, []string{"thermal", "voltage"}, reg.MetricNames())

	p, ok := reg.PayloadBySCID(102)
	require.True(t, ok)
	assert.Equal(t, "Payload 2", p.Name)

	_, ok = reg.PayloadBySCID(999)
	assert.False(t, ok)
}

func TestLoadRegistry_MetricDefaults(t *testing.T) {
	path := writeRegistryFile(t, validRegistryYAML)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	// voltage has no explicit baseline/variation; the derived defaults
	// keep generated values in a sane band around the threshold.
	m, ok := reg.Metric("voltage")
	require.True(t, ok)
	assert.InDelta(t, 3.3*0.8, m.BaselineOrDefault(), 0.0001)
	assert.InDelta(t, 3.3*0.4, m.VariationOrDefault(), 0.0001)

	m, ok = reg.Metric("thermal")
	require.True(t, ok)
	assert.Equal(t, 70.0, m.BaselineOrDefault())
	assert.Equal(t, 10.0, m.VariationOrDefault())
}

func TestLoadRegistry_Errors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadRegistry(writeRegistryFile(t, "payloads: [not: valid"))
	assert.Error(t, err)

	_, err = LoadRegistry(writeRegistryFile(t, "metrics:\n  thermal:\n    threshold: 75.0\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no payloads")

	_, err = LoadRegistry(writeRegistryFile(t, "payloads:\n  - scid: 101\n    name: p\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no metrics")
}
