// Package config loads scheduler configuration from an INI file with
// environment variable overrides, grounded on the teacher's
// internal/config/config.go getEnv-over-defaults pattern (SPEC_FULL.md
// §6), generalized from flat env vars to the ini.File sections a config
// file needs: [broker], [queue], [worker], [http], [audit], [archive],
// [rate_limit].
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-ini/ini"
)

// Config holds runtime configuration for the producer, worker, and HTTP
// API entry points.
type Config struct {
	Broker    BrokerSection
	Queue     QueueSection
	Worker    WorkerSection
	HTTP      HTTPSection
	Audit     AuditSection
	Archive   ArchiveSection
	RateLimit RateLimitSection
}

// BrokerSection mirrors internal/broker.Config's fields, including
// connection pool sizing.
type BrokerSection struct {
	Host           string
	Port           int
	Password       string
	DB             int
	PoolSize       int
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
}

// QueueSection configures the named queue a producer/worker pair is
// bound to and its in-process priority queue capacity.
type QueueSection struct {
	Name              string
	Priority          bool // true selects priq:<name>/ZAdd, false queue:<name>/LPush
	DedupEnabled      bool
	InProcessCapacity int
	TaskTTL           time.Duration
}

// WorkerSection configures the worker loop's polling and backoff.
type WorkerSection struct {
	ID             string
	PollTimeout    time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	MaxRetries     int
}

// HTTPSection configures the producer-facing HTTP API.
type HTTPSection struct {
	Addr        string
	MetricsAddr string
}

// AuditSection configures the durable terminal-transition log
// (SPEC_FULL.md §4.H). Disabled by default since it requires a running
// Postgres instance; a worker runs without one just fine.
type AuditSection struct {
	Enabled bool
	DSN     string
}

// ArchiveSection configures S3 archival of terminal task envelopes
// (SPEC_FULL.md §4.I). Disabled by default since it requires a bucket
// and credentials; a worker runs without one just fine.
type ArchiveSection struct {
	Enabled   bool
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// RateLimitSection configures the distributed per-tenant token bucket
// the producer-facing HTTP API enforces on top of its local limiter.
type RateLimitSection struct {
	Capacity        int
	RefillPerSecond float64
}

// Default returns the same baseline values the teacher's Load() used as
// its env-var defaults, translated into this spec's section layout.
func Default() Config {
	return Config{
		Broker: BrokerSection{
			Host:           "localhost",
			Port:           6379,
			DB:             0,
			PoolSize:       10,
			ConnectTimeout: 5 * time.Second,
			SocketTimeout:  3 * time.Second,
		},
		Queue: QueueSection{
			Name:              "default",
			Priority:          false,
			DedupEnabled:      false,
			InProcessCapacity: 10000,
			TaskTTL:           24 * time.Hour,
		},
		Worker: WorkerSection{
			PollTimeout:    time.Second,
			BackoffInitial: 500 * time.Millisecond,
			BackoffMax:     30 * time.Second,
			MaxRetries:     3,
		},
		HTTP: HTTPSection{
			Addr:        ":8080",
			MetricsAddr: ":9090",
		},
		Audit: AuditSection{
			Enabled: false,
		},
		Archive: ArchiveSection{
			Enabled: false,
		},
		RateLimit: RateLimitSection{
			Capacity:        100,
			RefillPerSecond: 10,
		},
	}
}

// Load reads file (an INI path) if non-empty, falling back to Default()
// for any key the file omits, then applies environment variable
// overrides exactly as the teacher's getEnv/getEnvInt/getEnvDuration
// helpers do.
func Load(file string) (Config, error) {
	cfg := Default()

	if file != "" {
		f, err := ini.Load(file)
		if err != nil {
			return Config{}, err
		}
		applyINI(&cfg, f)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyINI(cfg *Config, f *ini.File) {
	b := f.Section("broker")
	cfg.Broker.Host = b.Key("host").MustString(cfg.Broker.Host)
	cfg.Broker.Port = b.Key("port").MustInt(cfg.Broker.Port)
	cfg.Broker.Password = b.Key("password").MustString(cfg.Broker.Password)
	cfg.Broker.DB = b.Key("db").MustInt(cfg.Broker.DB)
	cfg.Broker.PoolSize = b.Key("pool_size").MustInt(cfg.Broker.PoolSize)
	cfg.Broker.ConnectTimeout = mustDuration(b.Key("connect_timeout"), cfg.Broker.ConnectTimeout)
	cfg.Broker.SocketTimeout = mustDuration(b.Key("socket_timeout"), cfg.Broker.SocketTimeout)

	q := f.Section("queue")
	cfg.Queue.Name = q.Key("name").MustString(cfg.Queue.Name)
	cfg.Queue.Priority = q.Key("priority").MustBool(cfg.Queue.Priority)
	cfg.Queue.DedupEnabled = q.Key("dedup_enabled").MustBool(cfg.Queue.DedupEnabled)
	cfg.Queue.InProcessCapacity = q.Key("in_process_capacity").MustInt(cfg.Queue.InProcessCapacity)
	cfg.Queue.TaskTTL = mustDuration(q.Key("task_ttl"), cfg.Queue.TaskTTL)

	w := f.Section("worker")
	cfg.Worker.ID = w.Key("id").MustString(cfg.Worker.ID)
	cfg.Worker.PollTimeout = mustDuration(w.Key("poll_timeout"), cfg.Worker.PollTimeout)
	cfg.Worker.BackoffInitial = mustDuration(w.Key("backoff_initial"), cfg.Worker.BackoffInitial)
	cfg.Worker.BackoffMax = mustDuration(w.Key("backoff_max"), cfg.Worker.BackoffMax)
	cfg.Worker.MaxRetries = w.Key("max_retries").MustInt(cfg.Worker.MaxRetries)

	h := f.Section("http")
	cfg.HTTP.Addr = h.Key("addr").MustString(cfg.HTTP.Addr)
	cfg.HTTP.MetricsAddr = h.Key("metrics_addr").MustString(cfg.HTTP.MetricsAddr)

	a := f.Section("audit")
	cfg.Audit.Enabled = a.Key("enabled").MustBool(cfg.Audit.Enabled)
	cfg.Audit.DSN = a.Key("dsn").MustString(cfg.Audit.DSN)

	ar := f.Section("archive")
	cfg.Archive.Enabled = ar.Key("enabled").MustBool(cfg.Archive.Enabled)
	cfg.Archive.Bucket = ar.Key("bucket").MustString(cfg.Archive.Bucket)
	cfg.Archive.Region = ar.Key("region").MustString(cfg.Archive.Region)
	cfg.Archive.Endpoint = ar.Key("endpoint").MustString(cfg.Archive.Endpoint)
	cfg.Archive.PathStyle = ar.Key("path_style").MustBool(cfg.Archive.PathStyle)

	rl := f.Section("rate_limit")
	cfg.RateLimit.Capacity = rl.Key("capacity").MustInt(cfg.RateLimit.Capacity)
	cfg.RateLimit.RefillPerSecond = rl.Key("refill_per_second").MustFloat64(cfg.RateLimit.RefillPerSecond)
}

func mustDuration(k *ini.Key, def time.Duration) time.Duration {
	if k.String() == "" {
		return def
	}
	if d, err := time.ParseDuration(k.String()); err == nil {
		return d
	}
	return def
}

// applyEnv overrides cfg with TELEMETRYHUB_-prefixed environment
// variables, following the teacher's getEnv-over-defaults pattern.
func applyEnv(cfg *Config) {
	cfg.Broker.Host = getEnv("TELEMETRYHUB_BROKER_HOST", cfg.Broker.Host)
	cfg.Broker.Port = getEnvInt("TELEMETRYHUB_BROKER_PORT", cfg.Broker.Port)
	cfg.Broker.Password = getEnv("TELEMETRYHUB_BROKER_PASSWORD", cfg.Broker.Password)
	cfg.Broker.DB = getEnvInt("TELEMETRYHUB_BROKER_DB", cfg.Broker.DB)
	cfg.Broker.PoolSize = getEnvInt("TELEMETRYHUB_BROKER_POOL_SIZE", cfg.Broker.PoolSize)
	cfg.Broker.ConnectTimeout = getEnvDuration("TELEMETRYHUB_BROKER_CONNECT_TIMEOUT", cfg.Broker.ConnectTimeout)
	cfg.Broker.SocketTimeout = getEnvDuration("TELEMETRYHUB_BROKER_SOCKET_TIMEOUT", cfg.Broker.SocketTimeout)

	cfg.Queue.Name = getEnv("TELEMETRYHUB_QUEUE_NAME", cfg.Queue.Name)
	cfg.Queue.Priority = getEnvBool("TELEMETRYHUB_QUEUE_PRIORITY", cfg.Queue.Priority)
	cfg.Queue.DedupEnabled = getEnvBool("TELEMETRYHUB_QUEUE_DEDUP_ENABLED", cfg.Queue.DedupEnabled)
	cfg.Queue.InProcessCapacity = getEnvInt("TELEMETRYHUB_QUEUE_IN_PROCESS_CAPACITY", cfg.Queue.InProcessCapacity)
	cfg.Queue.TaskTTL = getEnvDuration("TELEMETRYHUB_QUEUE_TASK_TTL", cfg.Queue.TaskTTL)

	cfg.Worker.ID = getEnv("TELEMETRYHUB_WORKER_ID", cfg.Worker.ID)
	cfg.Worker.PollTimeout = getEnvDuration("TELEMETRYHUB_WORKER_POLL_TIMEOUT", cfg.Worker.PollTimeout)
	cfg.Worker.BackoffInitial = getEnvDuration("TELEMETRYHUB_WORKER_BACKOFF_INITIAL", cfg.Worker.BackoffInitial)
	cfg.Worker.BackoffMax = getEnvDuration("TELEMETRYHUB_WORKER_BACKOFF_MAX", cfg.Worker.BackoffMax)
	cfg.Worker.MaxRetries = getEnvInt("TELEMETRYHUB_WORKER_MAX_RETRIES", cfg.Worker.MaxRetries)

	cfg.HTTP.Addr = getEnv("TELEMETRYHUB_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.MetricsAddr = getEnv("TELEMETRYHUB_HTTP_METRICS_ADDR", cfg.HTTP.MetricsAddr)

	cfg.Audit.Enabled = getEnvBool("TELEMETRYHUB_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.DSN = getEnv("TELEMETRYHUB_AUDIT_DSN", cfg.Audit.DSN)

	cfg.Archive.Enabled = getEnvBool("TELEMETRYHUB_ARCHIVE_ENABLED", cfg.Archive.Enabled)
	cfg.Archive.Bucket = getEnv("TELEMETRYHUB_ARCHIVE_BUCKET", cfg.Archive.Bucket)
	cfg.Archive.Region = getEnv("TELEMETRYHUB_ARCHIVE_REGION", cfg.Archive.Region)
	cfg.Archive.Endpoint = getEnv("TELEMETRYHUB_ARCHIVE_ENDPOINT", cfg.Archive.Endpoint)
	cfg.Archive.PathStyle = getEnvBool("TELEMETRYHUB_ARCHIVE_PATH_STYLE", cfg.Archive.PathStyle)

	cfg.RateLimit.Capacity = getEnvInt("TELEMETRYHUB_RATE_LIMIT_CAPACITY", cfg.RateLimit.Capacity)
	cfg.RateLimit.RefillPerSecond = getEnvFloat("TELEMETRYHUB_RATE_LIMIT_REFILL_PER_SECOND", cfg.RateLimit.RefillPerSecond)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Addr renders the broker host/port into a network address, the same
// shape internal/broker.Config.Addr() expects.
func (b BrokerSection) Addr() string {
	return b.Host + ":" + strconv.Itoa(b.Port)
}
