// Package cache is the object cache in front of page reads. It has an
// in-process driver for single-node deployments and a Redis driver for
// clusters.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the cache operations.
type Client interface {
	// Get returns ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value; a zero ttl never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Flush removes every key under the client prefix.
	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver     string // "memory" | "redis" | "none"
	Addr       string
	Password   string
	DB         int
	Prefix     string
	DefaultTTL time.Duration
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverNone   = "none"
)

// ErrNotFound is returned by Get on a miss.
var ErrNotFound = eris.New("cache: key not found")

// IsNotFound reports whether err is a cache miss.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

// New builds the client selected by cfg.Driver.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverRedis:
		return NewRedis(cfg)
	case DriverMemory, "":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	case DriverNone:
		return Noop{}, nil
	default:
		return nil, eris.Errorf("unsupported cache driver %q", cfg.Driver)
	}
}

func prefixed(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

// Noop never stores anything. Used when the object cache is disabled.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, error)                { return "", ErrNotFound }
func (Noop) Set(context.Context, string, string, time.Duration) error { return nil }
func (Noop) Delete(context.Context, ...string) error                  { return nil }
func (Noop) Flush(context.Context) error                              { return nil }
func (Noop) Ping(context.Context) error                               { return nil }
func (Noop) Close() error                                             { return nil }
