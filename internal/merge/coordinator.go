package merge

import (
	"context"
	"strconv"
	"time"

	"github.com/angelmondragon/cart-service/internal/cart"
	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
	"github.com/angelmondragon/cart-service/pkg/logger"
	"github.com/angelmondragon/cart-service/pkg/metrics"
	redisx "github.com/angelmondragon/cart-service/pkg/redis"
	"github.com/angelmondragon/cart-service/pkg/retry"
)

// OpMergeCarts labels merge metrics and retry logs.
const OpMergeCarts = "merge_carts"

// Resolution decides what happens to a product present in both carts.
type Resolution string

const (
	// ResolutionSum adds the quantities, capped at the per-product limit, and
	// keeps the user line's price, variant and add time.
	ResolutionSum Resolution = "sum"
	// ResolutionLastWriteWins replaces the user line with the guest line.
	ResolutionLastWriteWins Resolution = "last-write-wins"
)

// ParseResolution maps a request value onto a Resolution. Empty means sum.
func ParseResolution(raw string) (Resolution, error) {
	switch Resolution(raw) {
	case "", ResolutionSum:
		return ResolutionSum, nil
	case ResolutionLastWriteWins:
		return ResolutionLastWriteWins, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "conflict_resolution must be sum or last-write-wins").
		WithDetails(map[string]any{"field": "conflict_resolution"})
}

// Result describes a completed merge.
type Result struct {
	Cart *cart.Cart
	// MergedItems counts guest lines folded into the user cart.
	MergedItems int
	// Conflicts counts products present in both carts.
	Conflicts  int
	Resolution Resolution
}

// CoordinatorParams groups dependencies for the merge coordinator.
type CoordinatorParams struct {
	Store   cart.Store
	Scripts cart.ScriptInvoker
	Handle  redisx.ScriptHandle
	Runner  retry.Runner
	Metrics *metrics.CartMetrics
	Limits  cart.Limits
	TTL     cart.TTLPolicy
	Logger  *logger.Logger
	Clock   func() time.Time
}

// Coordinator folds a guest cart into a user cart on sign-in.
type Coordinator interface {
	Merge(ctx context.Context, guestCartID, userCartID, userID string) (*Result, error)
	MergeWith(ctx context.Context, guestCartID, userCartID, userID string, resolution Resolution) (*Result, error)
}

type coordinator struct {
	store   cart.Store
	scripts cart.ScriptInvoker
	handle  redisx.ScriptHandle
	runner  retry.Runner
	metrics *metrics.CartMetrics
	limits  cart.Limits
	ttl     cart.TTLPolicy
	logg    *logger.Logger
	clock   func() time.Time
}

// NewCoordinator builds a merge coordinator with the required dependencies.
func NewCoordinator(params CoordinatorParams) (Coordinator, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart store is required")
	}
	if params.Scripts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "script invoker is required")
	}
	if params.Handle.SHA == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merge script must be loaded")
	}
	if params.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "retry runner is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.Limits.MaxItems <= 0 || params.Limits.MaxQuantity <= 0 || params.TTL.User <= 0 || params.TTL.Guest <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merge limits and ttls must be positive")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &coordinator{
		store:   params.Store,
		scripts: params.Scripts,
		handle:  params.Handle,
		runner:  params.Runner,
		metrics: params.Metrics,
		limits:  params.Limits,
		ttl:     params.TTL,
		logg:    params.Logger,
		clock:   clock,
	}, nil
}

// Merge folds the guest cart into the user cart, summing shared products.
func (c *coordinator) Merge(ctx context.Context, guestCartID, userCartID, userID string) (*Result, error) {
	return c.MergeWith(ctx, guestCartID, userCartID, userID, ResolutionSum)
}

// MergeWith moves every guest line into the user cart in one atomic step and
// deletes the guest cart. An absent guest cart leaves the user cart untouched.
// A guest cart owned by someone other than userID is rejected.
func (c *coordinator) MergeWith(ctx context.Context, guestCartID, userCartID, userID string, resolution Resolution) (*Result, error) {
	resolution, err := ParseResolution(string(resolution))
	if err != nil {
		return nil, err
	}
	if err := cart.ValidateCartID(guestCartID); err != nil {
		return nil, err
	}
	if err := cart.ValidateCartID(userCartID); err != nil {
		return nil, err
	}
	if err := cart.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if guestCartID == userCartID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest and user carts must differ").
			WithDetails(map[string]any{"field": "guest_cart_id"})
	}

	ctx = c.logg.WithUserID(c.logg.WithCartID(ctx, userCartID), userID)
	ctx = c.logg.WithField(ctx, "guest_cart_hash", c.logg.HashID(guestCartID))

	var reply *cart.Reply
	err = c.runner.Do(ctx, OpMergeCarts, func(ctx context.Context) error {
		raw, err := c.scripts.Invoke(ctx, c.handle,
			[]string{c.store.Key(guestCartID), c.store.Key(userCartID)},
			userCartID,
			userID,
			cart.NowMillis(c.clock()),
			strconv.Itoa(c.limits.MaxItems),
			strconv.Itoa(c.limits.MaxQuantity),
			cart.Millis(c.ttl.User),
			cart.Millis(c.ttl.Guest),
			string(resolution),
		)
		if err != nil {
			return err
		}
		reply, err = cart.DecodeReply(cart.ScriptMerge, raw)
		return err
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInvalidStateTransition) || pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			c.logg.Warn(c.logg.WithField(ctx, "details", pkgerrors.As(err).Details()), "cart.merge_rejected")
		}
		return nil, err
	}

	merged, err := reply.Cart(userCartID)
	if err != nil {
		return nil, err
	}
	if merged.ItemCount() > c.limits.MaxItems {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "merged cart exceeds item limit")
	}

	c.metrics.AddMergeConflicts(reply.Conflicts)
	if reply.Changed {
		c.logg.Info(c.logg.WithFields(ctx, map[string]any{
			"merged_items": reply.Merged,
			"conflicts":    reply.Conflicts,
			"resolution":   string(resolution),
			"version":      merged.Version,
		}), "cart.merged")
	}
	return &Result{
		Cart:        merged,
		MergedItems: reply.Merged,
		Conflicts:   reply.Conflicts,
		Resolution:  resolution,
	}, nil
}
