package main

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"telemetryhub/internal/archive"
	"telemetryhub/internal/audit"
	"telemetryhub/internal/broker"
	"telemetryhub/internal/config"
	"telemetryhub/internal/dedup"
	"telemetryhub/internal/logging"
	"telemetryhub/internal/producer"
	"telemetryhub/internal/ratelimit"
	"telemetryhub/internal/worker"
)

func loadConfig(configFile string) (config.Config, error) {
	return config.Load(configFile)
}

func setupLogging(logLevel string) {
	logging.SetStandard(logging.New(logLevel))
}

func newBrokerClient(cfg config.Config) broker.Client {
	return broker.NewRedisClient(broker.Config{
		Host:           cfg.Broker.Host,
		Port:           cfg.Broker.Port,
		Password:       cfg.Broker.Password,
		DB:             cfg.Broker.DB,
		PoolSize:       cfg.Broker.PoolSize,
		ConnectTimeout: cfg.Broker.ConnectTimeout,
		SocketTimeout:  cfg.Broker.SocketTimeout,
	})
}

func queueMode(cfg config.Config) producer.Mode {
	if cfg.Queue.Priority {
		return producer.PrioritySorted
	}
	return producer.FIFO
}

func newDedupGuard(client broker.Client, cfg config.Config) *dedup.Guard {
	if !cfg.Queue.DedupEnabled {
		return nil
	}
	return dedup.New(client, cfg.Queue.Name)
}

func producerFor(client broker.Client, cfg config.Config, mode producer.Mode, guard *dedup.Guard) *producer.Producer {
	return producer.New(client, cfg.Queue.Name, mode, guard)
}

// newAuditRecorder opens a *audit.Log when cfg.Audit.Enabled, otherwise
// returns nil. Callers check for nil before passing it to
// (*worker.Worker).WithAudit, since a nil *audit.Log would become a
// non-nil AuditRecorder interface value.
func newAuditRecorder(ctx context.Context, cfg config.Config) (*audit.Log, error) {
	if !cfg.Audit.Enabled {
		return nil, nil
	}
	return audit.New(ctx, cfg.Audit.DSN)
}

// newArchiver constructs a *archive.Archiver when cfg.Archive.Enabled,
// otherwise returns nil.
func newArchiver(ctx context.Context, cfg config.Config) (*archive.Archiver, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	return archive.New(ctx, archive.Config{
		Bucket:    cfg.Archive.Bucket,
		Region:    cfg.Archive.Region,
		Endpoint:  cfg.Archive.Endpoint,
		PathStyle: cfg.Archive.PathStyle,
	})
}

// attachTerminalHooks wires an enabled audit recorder and/or archiver into
// wrk, logging and continuing on a construction failure rather than
// refusing to start the worker loop over an optional durability feature.
func attachTerminalHooks(ctx context.Context, cfg config.Config, wrk *worker.Worker) {
	if rec, err := newAuditRecorder(ctx, cfg); err != nil {
		logrus.WithError(err).Warn("audit log unavailable, continuing without it")
	} else if rec != nil {
		wrk.WithAudit(rec)
	}
	if arc, err := newArchiver(ctx, cfg); err != nil {
		logrus.WithError(err).Warn("archiver unavailable, continuing without it")
	} else if arc != nil {
		wrk.WithArchiver(arc)
	}
}

// newDistributedLimiter builds the cross-process token bucket httpapi
// enforces on submissions, bound to the same Redis connection the broker
// client already holds open. client must be a *broker.RedisClient;
// anything else (e.g. the in-memory mock used by tests) disables it.
func newDistributedLimiter(client broker.Client, cfg config.Config) *ratelimit.TokenBucket {
	rc, ok := client.(*broker.RedisClient)
	if !ok {
		return nil
	}
	return ratelimit.NewTokenBucket(rc.Underlying(), cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond, time.Hour)
}

func resolveWorkerID() string {
	if v := os.Getenv("WORKER_ID"); v != "" {
		return v
	}
	hostname, err := os.Hostname()
	if err == nil && hostname != "" {
		return hostname
	}
	return "worker-unknown"
}
