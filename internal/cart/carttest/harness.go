// Package carttest wires the cart engine against an in-process Redis for tests.
package carttest

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cart-service/internal/cart"
	"github.com/angelmondragon/cart-service/pkg/config"
	"github.com/angelmondragon/cart-service/pkg/logger"
	"github.com/angelmondragon/cart-service/pkg/metrics"
	redisx "github.com/angelmondragon/cart-service/pkg/redis"
	"github.com/angelmondragon/cart-service/pkg/retry"
	"github.com/angelmondragon/cart-service/pkg/security"
)

// Start is the fixed wall clock every harness begins at.
var Start = time.UnixMilli(1_700_000_000_000).UTC()

// Default limits and TTLs are small so edge cases are cheap to reach.
var (
	DefaultLimits = cart.Limits{MaxItems: 3, MaxQuantity: 5}
	DefaultTTL    = cart.TTLPolicy{User: 7 * 24 * time.Hour, Guest: 24 * time.Hour, Completed: time.Hour}
)

// Harness bundles a running engine and the knobs tests need.
type Harness struct {
	Redis    *miniredis.Miniredis
	Raw      *redis.Client
	Client   *redisx.Client
	Scripts  *redisx.ScriptRegistry
	Handles  cart.Handles
	Logger   *logger.Logger
	Logs     *SyncBuffer
	Registry *prometheus.Registry
	Metrics  *metrics.CartMetrics
	Runner   *retry.Policy
	Store    cart.Store
	Limits   cart.Limits
	TTL      cart.TTLPolicy

	mu  sync.Mutex
	now time.Time
}

// New starts miniredis, loads every cart script and builds a Store.
func New(t testing.TB) *Harness {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	client := redisx.NewFromClient(raw, "cs")
	t.Cleanup(func() { _ = client.Close() })

	logs := &SyncBuffer{}
	logg := logger.New(logger.Options{
		ServiceName: "cart-test",
		Level:       zerolog.DebugLevel,
		Output:      logs,
		Redactor:    security.NewRedactor("test-key"),
	})

	registry := client.Scripts(logg)
	handles, err := cart.LoadScripts(ctx, registry)
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	m := metrics.NewCartMetrics(promReg)
	runner := retry.New(config.RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         time.Millisecond,
		MaxDelay:          2 * time.Millisecond,
		PoolBackoffFactor: 2,
	}, logg, m)

	h := &Harness{
		Redis:    mr,
		Raw:      raw,
		Client:   client,
		Scripts:  registry,
		Handles:  handles,
		Logger:   logg,
		Logs:     logs,
		Registry: promReg,
		Metrics:  m,
		Runner:   runner,
		Limits:   DefaultLimits,
		TTL:      DefaultTTL,
		now:      Start,
	}

	h.Store, err = cart.NewStore(cart.StoreParams{
		Scripts:  registry,
		Handles:  handles,
		Keyspace: client,
		Runner:   runner,
		Limits:   h.Limits,
		TTL:      h.TTL,
		Logger:   logg,
		Clock:    h.Now,
	})
	require.NoError(t, err)
	return h
}

// Now is the harness clock.
func (h *Harness) Now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

// Advance moves both the harness clock and the server's TTL clock.
func (h *Harness) Advance(d time.Duration) {
	h.mu.Lock()
	h.now = h.now.Add(d)
	h.mu.Unlock()
	h.Redis.FastForward(d)
}

// Add is a shorthand for a positive UpsertItem.
func (h *Harness) Add(t testing.TB, cartID, userID, productID string, qty int, price string) *cart.Cart {
	t.Helper()
	c, err := h.Store.UpsertItem(context.Background(), cart.UpsertItemInput{
		CartID:    cartID,
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: price,
	})
	require.NoError(t, err)
	return c
}

// Counter returns the value of the counter series matching labels, or zero.
func (h *Harness) Counter(t testing.TB, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := h.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matches(m.GetLabel(), labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(pairs []*dto.LabelPair, want map[string]string) bool {
	for k, v := range want {
		found := false
		for _, p := range pairs {
			if p.GetName() == k && p.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SyncBuffer is a goroutine-safe log sink.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
