package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "localhost", cfg.Broker.Host)
	assert.Equal(t, 6379, cfg.Broker.Port)
	assert.Equal(t, "default", cfg.Queue.Name)
	assert.Equal(t, 3, cfg.Worker.MaxRetries)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadFromINIFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.ini")
	require.NoError(t, err)
	_, err = f.WriteString(`
[broker]
host = redis.internal
port = 6380

[queue]
name = ingest
priority = true
dedup_enabled = true

[worker]
id = worker-7
backoff_initial = 100ms
max_retries = 5

[http]
addr = :9100

[audit]
enabled = true
dsn = postgres://localhost/telemetryhub

[archive]
enabled = true
bucket = telemetry-archive
region = us-east-1

[rate_limit]
capacity = 250
refill_per_second = 25.5
`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := Load(f.Name())
	require.NoError(t, err)

	assert.Equal(t, "redis.internal", cfg.Broker.Host)
	assert.Equal(t, 6380, cfg.Broker.Port)
	assert.Equal(t, "ingest", cfg.Queue.Name)
	assert.True(t, cfg.Queue.Priority)
	assert.True(t, cfg.Queue.DedupEnabled)
	assert.Equal(t, "worker-7", cfg.Worker.ID)
	assert.Equal(t, 100*time.Millisecond, cfg.Worker.BackoffInitial)
	assert.Equal(t, 5, cfg.Worker.MaxRetries)
	assert.Equal(t, ":9100", cfg.HTTP.Addr)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, "postgres://localhost/telemetryhub", cfg.Audit.DSN)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "telemetry-archive", cfg.Archive.Bucket)
	assert.Equal(t, "us-east-1", cfg.Archive.Region)
	assert.Equal(t, 250, cfg.RateLimit.Capacity)
	assert.Equal(t, 25.5, cfg.RateLimit.RefillPerSecond)

	// Unspecified keys keep their defaults.
	assert.Equal(t, 10, cfg.Broker.PoolSize)
}

func TestEnvOverridesFileAndDefaults(t *testing.T) {
	t.Setenv("TELEMETRYHUB_BROKER_HOST", "env-redis")
	t.Setenv("TELEMETRYHUB_WORKER_MAX_RETRIES", "9")
	t.Setenv("TELEMETRYHUB_AUDIT_ENABLED", "true")
	t.Setenv("TELEMETRYHUB_RATE_LIMIT_CAPACITY", "42")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-redis", cfg.Broker.Host)
	assert.Equal(t, 9, cfg.Worker.MaxRetries)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, 42, cfg.RateLimit.Capacity)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.ini")
	assert.Error(t, err)
}

func TestBrokerSectionAddr(t *testing.T) {
	b := BrokerSection{Host: "redis.internal", Port: 6380}
	assert.Equal(t, "redis.internal:6380", b.Addr())
}
