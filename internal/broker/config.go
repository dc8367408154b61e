package broker

import (
	"strconv"
	"time"
)

// Config governs connection to the Redis-compatible broker, grounded on
// the teacher's config.Config (Addr/Password/DB) generalized with the
// timeout and pool knobs SPEC_FULL.md §6 names explicitly.
type Config struct {
	Host             string
	Port             int
	Password         string
	DB               int
	PoolSize         int
	ConnectTimeout   time.Duration
	SocketTimeout    time.Duration
}

// DefaultConfig returns sane local-development defaults, mirroring the
// teacher's getEnv-over-defaults pattern for the broker section.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           6379,
		DB:             0,
		PoolSize:       10,
		ConnectTimeout: 5 * time.Second,
		SocketTimeout:  3 * time.Second,
	}
}

// Addr renders host:port for go-redis.
func (c Config) Addr() string {
	if c.Port == 0 {
		return c.Host
	}
	return c.Host + ":" + strconv.Itoa(c.Port)
}
