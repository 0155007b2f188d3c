package retry

import (
	"context"
	"strings"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/angelmondragon/cart-service/pkg/config"
	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
	"github.com/angelmondragon/cart-service/pkg/logger"
	"github.com/angelmondragon/cart-service/pkg/metrics"
	redisx "github.com/angelmondragon/cart-service/pkg/redis"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 50 * time.Millisecond
	defaultMaxDelay    = time.Second
	defaultPoolFactor  = 4
)

// Runner is the call boundary every cart operation goes through.
type Runner interface {
	Do(ctx context.Context, op string, fn func(context.Context) error) error
}

// Policy retries transient cache failures with bounded exponential backoff
// and turns everything else into a typed error without retrying.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	poolFactor  int
	jitter      uint64
	logg        *logger.Logger
	metrics     *metrics.CartMetrics
}

var _ Runner = (*Policy)(nil)

// New builds a Policy from config, filling unset values with defaults.
func New(cfg config.RetryConfig, logg *logger.Logger, m *metrics.CartMetrics) *Policy {
	p := &Policy{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		poolFactor:  cfg.PoolBackoffFactor,
		jitter:      cfg.JitterPercent,
		logg:        logg,
		metrics:     m,
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = defaultMaxAttempts
	}
	if p.baseDelay <= 0 {
		p.baseDelay = defaultBaseDelay
	}
	if p.maxDelay <= 0 {
		p.maxDelay = defaultMaxDelay
	}
	if p.maxDelay < p.baseDelay {
		p.maxDelay = p.baseDelay
	}
	if p.poolFactor <= 0 {
		p.poolFactor = defaultPoolFactor
	}
	if p.jitter > 100 {
		p.jitter = 100
	}
	return p
}

// Do runs fn under the policy and records the outcome under op.
func (p *Policy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := p.run(ctx, op, fn)
	p.metrics.ObserveOperation(op, outcomeLabel(err), time.Since(start))
	return err
}

func (p *Policy) run(ctx context.Context, op string, fn func(context.Context) error) error {
	var (
		attempts int
		lastKind redisx.ErrorKind
	)
	err := goretry.Do(ctx, p.backoff(&lastKind), func(ctx context.Context) error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if pkgerrors.As(err) != nil {
			return err
		}
		kind := redisx.Classify(err)
		if isConnectionKind(kind) {
			p.metrics.IncConnectionError(string(kind))
		}
		if !kind.Retryable() {
			return err
		}
		lastKind = kind
		if p.logg != nil {
			lctx := p.logg.WithFields(ctx, map[string]any{"op": op, "attempt": attempts, "kind": string(kind)})
			p.logg.Warn(lctx, "cart.retry")
		}
		return goretry.RetryableError(err)
	})
	if err == nil {
		return nil
	}
	return p.translate(ctx, op, attempts, err)
}

// backoff doubles from baseDelay and stretches waits after a pool timeout so
// in-flight work can drain. The attempt cap counts the first call.
func (p *Policy) backoff(lastKind *redisx.ErrorKind) goretry.Backoff {
	attempt := 0
	var b goretry.Backoff = goretry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		d := p.baseDelay
		for i := 1; i < attempt && d < p.maxDelay; i++ {
			d *= 2
		}
		if *lastKind == redisx.KindPoolExhausted {
			d *= time.Duration(p.poolFactor)
		}
		return d, false
	})
	if p.jitter > 0 {
		b = goretry.WithJitterPercent(p.jitter, b)
	}
	b = goretry.WithCappedDuration(p.maxDelay, b)
	return goretry.WithMaxRetries(uint64(p.maxAttempts-1), b)
}

func (p *Policy) translate(ctx context.Context, op string, attempts int, err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		if typed.Code() == pkgerrors.CodeIntegrity || typed.Code() == pkgerrors.CodeInternal {
			p.logFatal(ctx, op, typed)
		}
		return err
	}

	kind := redisx.Classify(err)
	details := map[string]any{"op": op, "attempts": attempts, "kind": string(kind)}

	var out *pkgerrors.Error
	switch kind {
	case redisx.KindCanceled:
		// The server may still run the script; callers should re-read.
		details["outcome"] = "unknown"
		out = pkgerrors.Wrap(pkgerrors.CodeTransientUnavailable, err, "operation abandoned before the cache replied").WithDetails(details)
	case redisx.KindTransient, redisx.KindPoolExhausted, redisx.KindClosed:
		out = pkgerrors.Wrap(pkgerrors.CodeTransientUnavailable, err, "cache unavailable").WithDetails(details)
	case redisx.KindAuth:
		out = pkgerrors.Wrap(pkgerrors.CodeAuthenticationFailure, err, "cache authentication failed")
	case redisx.KindScript, redisx.KindNoScript:
		out = pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "script execution failed").WithDetails(details)
	default:
		out = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected cache error").WithDetails(details)
	}

	if out.Code() == pkgerrors.CodeTransientUnavailable {
		if p.logg != nil {
			p.logg.Warn(p.logg.WithFields(ctx, details), "cart.unavailable")
		}
	} else {
		p.logFatal(ctx, op, out)
	}
	return out
}

func (p *Policy) logFatal(ctx context.Context, op string, err *pkgerrors.Error) {
	if p.logg == nil {
		return
	}
	lctx := p.logg.WithFields(ctx, map[string]any{
		"op":          op,
		"error_code":  string(err.Code()),
		"error_chain": pkgerrors.Dump(err).Chain,
	})
	p.logg.Error(lctx, "cart.fatal_error", err)
}

func isConnectionKind(kind redisx.ErrorKind) bool {
	switch kind {
	case redisx.KindTransient, redisx.KindPoolExhausted, redisx.KindAuth, redisx.KindClosed:
		return true
	}
	return false
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}
