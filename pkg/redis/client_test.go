package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/cart-service/pkg/config"
)

func TestOptionsFromConfigEndpointPair(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		Endpoint:     "cache.internal:6380",
		AuthToken:    "token",
		TLS:          true,
		PoolSize:     50,
		PoolTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache.internal:6380" || opts.Password != "token" {
		t.Fatalf("endpoint pair not applied: addr=%s", opts.Addr)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.ServerName != "cache.internal" {
		t.Fatalf("expected tls config with server name")
	}
	if opts.PoolSize != 50 || opts.PoolTimeout != 5*time.Second {
		t.Fatalf("pool settings not applied: size=%d timeout=%v", opts.PoolSize, opts.PoolTimeout)
	}
	if !opts.ContextTimeoutEnabled {
		t.Fatalf("context deadlines should bound commands")
	}
}

func TestOptionsFromConfigURL(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", AuthToken: "token", PoolSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 {
		t.Fatalf("expected db 2 from url, got %d", opts.DB)
	}
	if opts.Password != "token" {
		t.Fatalf("auth token should fill an empty url password")
	}
	if opts.TLSConfig != nil {
		t.Fatalf("tls should stay off for redis:// urls")
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or endpoint")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := NewFromClient(nil, "")
	if got := client.Key("cart", "c1"); got != "cs:cart:c1" {
		t.Fatalf("unexpected cart key %s", got)
	}
	client = NewFromClient(nil, "shop")
	if got := client.Key("cart", " ", "c2"); got != "shop:cart:c2" {
		t.Fatalf("blank parts should be skipped, got %s", got)
	}
}

func TestClientPingDelAndStats(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := NewFromClient(raw, "cs")
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := mr.Set("cs:cart:c1", "{}"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	n, err := client.Del(ctx, "cs:cart:c1", "cs:cart:missing")
	if err != nil {
		t.Fatalf("del: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one deleted key, got %d", n)
	}
	if stats := client.Stats(); stats.TotalConns == 0 {
		t.Fatalf("expected at least one pooled connection, got %+v", stats)
	}
}

func TestUninitializedClient(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error from nil client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op: %v", err)
	}
}
