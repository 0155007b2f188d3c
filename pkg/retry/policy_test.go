package retry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cart-service/pkg/config"
	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
	"github.com/angelmondragon/cart-service/pkg/metrics"
	redisx "github.com/angelmondragon/cart-service/pkg/redis"
)

type replyErr string

func (e replyErr) Error() string { return string(e) }

func (replyErr) RedisError() {}

func fastPolicy(m *metrics.CartMetrics) *Policy {
	return New(config.RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		PoolBackoffFactor: 4,
	}, nil, m)
}

func TestPolicySucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := fastPolicy(nil).Do(context.Background(), "get_cart", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicyRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(nil).Do(context.Background(), "upsert_item", func(context.Context) error {
		calls++
		if calls < 3 {
			return io.EOF
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicyExhaustsRetryBudget(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCartMetrics(reg)
	calls := 0
	err := fastPolicy(m).Do(context.Background(), "upsert_item", func(context.Context) error {
		calls++
		return replyErr("LOADING Redis is loading the dataset in memory")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "attempt cap includes the first call")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTransientUnavailable))

	mfs, gatherErr := reg.Gather()
	require.NoError(t, gatherErr)
	var connErrors float64
	for _, mf := range mfs {
		if mf.GetName() == "redis_connection_errors_total" {
			connErrors = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(3), connErrors)
}

func TestPolicyNeverRetriesAuthFailures(t *testing.T) {
	calls := 0
	err := fastPolicy(nil).Do(context.Background(), "get_cart", func(context.Context) error {
		calls++
		return replyErr("WRONGPASS invalid username-password pair")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAuthenticationFailure))
}

func TestPolicyPassesTypedErrorsThrough(t *testing.T) {
	domainErr := pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "already started")
	calls := 0
	err := fastPolicy(nil).Do(context.Background(), "start_checkout", func(context.Context) error {
		calls++
		return domainErr
	})
	assert.Same(t, domainErr, err)
	assert.Equal(t, 1, calls)
}

func TestPolicyTreatsScriptErrorsAsIntegrity(t *testing.T) {
	calls := 0
	err := fastPolicy(nil).Do(context.Background(), "merge_carts", func(context.Context) error {
		calls++
		return replyErr("ERR user_script:12: attempt to compare nil with number")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIntegrity))
}

func TestPolicyCallerDeadlineMeansUnknownOutcome(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fastPolicy(nil).Do(ctx, "upsert_item", func(ctx context.Context) error {
		calls++
		cancel()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeTransientUnavailable, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "unknown", details["outcome"])
}

func TestPolicyUnknownErrorsAreInternal(t *testing.T) {
	err := fastPolicy(nil).Do(context.Background(), "get_cart", func(context.Context) error {
		return errors.New("strange")
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestPolicyBackoffStretchesAfterPoolExhaustion(t *testing.T) {
	p := New(config.RetryConfig{
		MaxAttempts:       4,
		BaseDelay:         10 * time.Millisecond,
		MaxDelay:          time.Second,
		PoolBackoffFactor: 4,
	}, nil, nil)

	kind := redisx.KindTransient
	b := p.backoff(&kind)
	first, stop := b.Next()
	require.False(t, stop)
	assert.Equal(t, 10*time.Millisecond, first)
	second, _ := b.Next()
	assert.Equal(t, 20*time.Millisecond, second)

	poolKind := redisx.KindPoolExhausted
	pb := p.backoff(&poolKind)
	pooled, _ := pb.Next()
	assert.Equal(t, 40*time.Millisecond, pooled)

	// Three retries allowed after the first attempt, then stop.
	_, stop = b.Next()
	assert.False(t, stop)
	_, stop = b.Next()
	assert.True(t, stop)
}

func TestNewFillsDefaults(t *testing.T) {
	p := New(config.RetryConfig{JitterPercent: 500}, nil, nil)
	assert.Equal(t, defaultMaxAttempts, p.maxAttempts)
	assert.Equal(t, defaultBaseDelay, p.baseDelay)
	assert.Equal(t, defaultMaxDelay, p.maxDelay)
	assert.Equal(t, uint64(100), p.jitter)
}
