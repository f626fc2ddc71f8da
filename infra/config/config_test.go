package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergc/domain/registry"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiergc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, registry.Eager, cfg.Policy())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
registry:
  policy: deferred
collector:
  interval: 500ms
wal:
  enabled: true
  dir: /tmp/tiergc-wal
journal:
  enabled: true
broker:
  enabled: true
  driver: kafka-go
  brokers: ["k1:9092", "k2:9092"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, registry.Deferred, cfg.Policy())
	assert.Equal(t, 500*time.Millisecond, cfg.Collector.Interval)
	assert.True(t, cfg.WAL.Enabled)
	assert.Equal(t, "/tmp/tiergc-wal", cfg.WAL.Dir)
	assert.Equal(t, "./data/journal", cfg.Journal.Dir)
	assert.Equal(t, 1024, cfg.Registry.Capacity)

	kc := cfg.KafkaConfig()
	assert.Equal(t, "kafka-go", kc.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, kc.Brokers)
	assert.Equal(t, "tiergc.events", kc.Topic)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, `
registry:
  policy: lazy
broker:
  enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown policy")
	assert.Contains(t, err.Error(), "broker requires the journal")
	assert.Contains(t, err.Error(), "broker.brokers is empty")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSnapshotRequiresWAL(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot requires the wal")

	cfg.WAL.Enabled = true
	require.NoError(t, cfg.Validate())
}
