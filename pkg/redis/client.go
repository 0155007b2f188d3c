package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/angelmondragon/cart-service/pkg/config"
	"github.com/angelmondragon/cart-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const defaultNamespace = "cs"

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Client owns the bounded connection pool to the cache cluster. It is the
// only process-wide mutable resource; go-redis synchronises checkout and
// checkin internally.
type Client struct {
	store     cmdable
	raw       *redis.Client
	namespace string
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// PoolStats is a snapshot of the connection pool counters.
type PoolStats struct {
	TotalConns uint32
	IdleConns  uint32
	StaleConns uint32
	Hits       uint32
	Misses     uint32
	Timeouts   uint32
}

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"pool_size": opts.PoolSize,
			"tls":       opts.TLSConfig != nil,
		})
		logg.Info(ctx, "redis connection established")
	}
	return NewFromClient(raw, cfg.KeyNamespace), nil
}

// NewFromClient wraps an already configured go-redis client.
func NewFromClient(raw *redis.Client, namespace string) *Client {
	if strings.TrimSpace(namespace) == "" {
		namespace = defaultNamespace
	}
	c := &Client{raw: raw, namespace: strings.TrimSpace(namespace)}
	if raw != nil {
		c.store = raw
	}
	return c
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Endpoint == "" {
		return nil, errors.New("redis url or endpoint is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Endpoint,
			Username: cfg.Username,
			Password: cfg.AuthToken,
			DB:       cfg.DB,
		}
	}
	if opts.Password == "" && cfg.AuthToken != "" {
		opts.Password = cfg.AuthToken
	}
	if opts.Username == "" && cfg.Username != "" {
		opts.Username = cfg.Username
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if cfg.TLS && opts.TLSConfig == nil {
		host, _, err := net.SplitHostPort(opts.Addr)
		if err != nil {
			host = opts.Addr
		}
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.PoolTimeout == 0 {
		opts.PoolTimeout = cfg.PoolTimeout
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	// Scripts are bounded by the caller's deadline.
	opts.ContextTimeoutEnabled = true
	return opts, nil
}

// Key returns a namespaced key built from the given parts.
func (c *Client) Key(parts ...string) string {
	return buildKey(c.Namespace(), parts...)
}

// Namespace returns the key prefix shared by every key this client writes.
func (c *Client) Namespace() string {
	if c == nil || c.namespace == "" {
		return defaultNamespace
	}
	return c.namespace
}

// Del removes the provided keys and reports how many existed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	if c == nil || c.store == nil {
		return 0, errors.New("redis client not initialized")
	}
	return c.store.Del(ctx, keys...).Result()
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Ping(ctx).Err()
}

// Stats reports the pool counters for metrics and readiness.
func (c *Client) Stats() PoolStats {
	if c == nil || c.raw == nil {
		return PoolStats{}
	}
	s := c.raw.PoolStats()
	return PoolStats{
		TotalConns: s.TotalConns,
		IdleConns:  s.IdleConns,
		StaleConns: s.StaleConns,
		Hits:       s.Hits,
		Misses:     s.Misses,
		Timeouts:   s.Timeouts,
	}
}

// Scripts returns a registry that loads and runs scripts over this pool.
func (c *Client) Scripts(logg *logger.Logger) *ScriptRegistry {
	if c == nil || c.raw == nil {
		return NewScriptRegistry(nil, logg)
	}
	return NewScriptRegistry(c.raw, logg)
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	if err := c.raw.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}

func buildKey(namespace string, parts ...string) string {
	clean := []string{namespace}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}
