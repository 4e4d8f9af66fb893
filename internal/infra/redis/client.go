package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/infra/config"
)

const pingTimeout = 5 * time.Second

// Client wraps redis.Client with health check and lifecycle management
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

func clientOptions(cfg config.RedisSettings) *redis.Options {
	opts := &redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:        10,
		MinIdleConns:    2,
		MaxRetries:      3,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	}

	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewClient connects and pings Redis. The pool is closed again if the ping fails.
func NewClient(ctx context.Context, cfg config.RedisSettings, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(clientOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("db", cfg.DB),
		zap.Bool("tls_enabled", cfg.TLSEnabled),
	)

	return &Client{client: client, logger: logger}, nil
}

// Client returns the underlying redis.Client for direct access
func (c *Client) Client() *redis.Client {
	return c.client
}

// HealthCheck performs a ping to verify Redis connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close gracefully closes the Redis connection pool
func (c *Client) Close() error {
	c.logger.Info("closing redis connection")
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

// RegisterPoolMetrics exposes connection pool statistics as gauges.
func (c *Client) RegisterPoolMetrics(reg prometheus.Registerer) error {
	gauges := map[string]func(*redis.PoolStats) uint32{
		"total_connections": func(s *redis.PoolStats) uint32 { return s.TotalConns },
		"idle_connections":  func(s *redis.PoolStats) uint32 { return s.IdleConns },
		"stale_connections": func(s *redis.PoolStats) uint32 { return s.StaleConns },
	}

	for name, read := range gauges {
		gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "directory",
			Subsystem: "redis_pool",
			Name:      name,
			Help:      "Redis connection pool " + name + ".",
		}, func() float64 { return float64(read(c.client.PoolStats())) })
		if err := reg.Register(gauge); err != nil {
			return fmt.Errorf("register redis pool %s: %w", name, err)
		}
	}
	return nil
}
