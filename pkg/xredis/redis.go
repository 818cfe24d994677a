package xredis

import (
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultHost        = "127.0.0.1"
	defaultPort        = 6379
	defaultMinIdle     = 5
	defaultMaxIdle     = 10
	defaultPoolSize    = 10
	defaultMaxLifetime = 2 * time.Minute
	defaultMaxIdleTime = 5 * time.Minute
)

type ClientOption func(*redis.Options)

// NewClient builds a client on top of the defaults above.
func NewClient(opts ...ClientOption) *redis.Client {
	options := &redis.Options{
		Addr:            fmt.Sprintf("%s:%d", defaultHost, defaultPort),
		PoolSize:        defaultPoolSize,
		MinIdleConns:    defaultMinIdle,
		MaxIdleConns:    defaultMaxIdle,
		ConnMaxLifetime: defaultMaxLifetime,
		ConnMaxIdleTime: defaultMaxIdleTime,
	}
	for _, opt := range opts {
		opt(options)
	}
	return redis.NewClient(options)
}

// WithAddress sets host:port. Malformed addresses are ignored.
func WithAddress(addr string) ClientOption {
	return func(o *redis.Options) {
		if _, _, err := net.SplitHostPort(addr); err == nil {
			o.Addr = addr
		}
	}
}

func WithPassword(pass string) ClientOption {
	return func(o *redis.Options) {
		o.Password = pass
	}
}

func WithDB(db int) ClientOption {
	return func(o *redis.Options) {
		if db >= 0 {
			o.DB = db
		}
	}
}

func WithPoolSize(size int) ClientOption {
	return func(o *redis.Options) {
		if size > 0 {
			o.PoolSize = size
		}
	}
}

func WithDialTimeout(d time.Duration) ClientOption {
	return func(o *redis.Options) {
		if d > 0 {
			o.DialTimeout = d
		}
	}
}

func WithReadTimeout(d time.Duration) ClientOption {
	return func(o *redis.Options) {
		if d > 0 {
			o.ReadTimeout = d
		}
	}
}

func WithWriteTimeout(d time.Duration) ClientOption {
	return func(o *redis.Options) {
		if d > 0 {
			o.WriteTimeout = d
		}
	}
}

// WithMaxRetries caps command retries; -1 disables them.
func WithMaxRetries(n int) ClientOption {
	return func(o *redis.Options) {
		o.MaxRetries = n
	}
}
