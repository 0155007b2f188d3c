package cart

import (
	"context"
	"strconv"
	"time"

	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
	"github.com/angelmondragon/cart-service/pkg/logger"
	"github.com/angelmondragon/cart-service/pkg/retry"
)

// Operation names used for metrics and retry logs.
const (
	OpGetCart    = "get_cart"
	OpUpsertItem = "upsert_item"
	OpRemoveItem = "remove_item"
	OpClearCart  = "clear_cart"
)

const cartKeyPrefix = "cart"

// Keyspace builds namespaced keys and deletes them.
type Keyspace interface {
	Key(parts ...string) string
	Del(ctx context.Context, keys ...string) (int64, error)
}

// UpsertItemInput describes a set-quantity request. Quantity <= 0 removes
// the product. An empty Variant keeps whatever variant the line already has.
type UpsertItemInput struct {
	CartID    string
	UserID    string
	ProductID string
	Quantity  int
	UnitPrice string
	Variant   string
}

// StoreParams groups dependencies for the cart store.
type StoreParams struct {
	Scripts  ScriptInvoker
	Handles  Handles
	Keyspace Keyspace
	Runner   retry.Runner
	Limits   Limits
	TTL      TTLPolicy
	Logger   *logger.Logger
	Clock    func() time.Time
}

// Store reads and mutates individual carts. Every mutation is a single
// server-side script so concurrent writers never lose updates.
type Store interface {
	Get(ctx context.Context, cartID string) (*Cart, error)
	UpsertItem(ctx context.Context, input UpsertItemInput) (*Cart, error)
	RemoveItem(ctx context.Context, cartID, productID string) (*Cart, error)
	Clear(ctx context.Context, cartID string) (bool, error)
	Key(cartID string) string
}

type store struct {
	scripts  ScriptInvoker
	handles  Handles
	keyspace Keyspace
	runner   retry.Runner
	limits   Limits
	ttl      TTLPolicy
	logg     *logger.Logger
	clock    func() time.Time
}

// NewStore builds a cart store with the required dependencies.
func NewStore(params StoreParams) (Store, error) {
	if params.Scripts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "script invoker is required")
	}
	if params.Keyspace == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "keyspace is required")
	}
	if params.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "retry runner is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.Handles.Get.SHA == "" || params.Handles.UpsertItem.SHA == "" || params.Handles.RemoveItem.SHA == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart scripts must be loaded")
	}
	if params.Limits.MaxItems <= 0 || params.Limits.MaxQuantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart limits must be positive")
	}
	if params.TTL.User <= 0 || params.TTL.Guest <= 0 || params.TTL.Completed <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart ttls must be positive")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &store{
		scripts:  params.Scripts,
		handles:  params.Handles,
		keyspace: params.Keyspace,
		runner:   params.Runner,
		limits:   params.Limits,
		ttl:      params.TTL,
		logg:     params.Logger,
		clock:    clock,
	}, nil
}

// Key returns the cache key holding cartID.
func (s *store) Key(cartID string) string {
	return s.keyspace.Key(cartKeyPrefix, cartID)
}

// Get returns the cart or an empty, non-existent cart. It never extends the TTL.
func (s *store) Get(ctx context.Context, cartID string) (*Cart, error) {
	if err := ValidateCartID(cartID); err != nil {
		return nil, err
	}
	ctx = s.logg.WithCartID(ctx, cartID)

	var out *Cart
	err := s.runner.Do(ctx, OpGetCart, func(ctx context.Context) error {
		raw, err := s.scripts.Invoke(ctx, s.handles.Get, []string{s.Key(cartID)})
		if err != nil {
			return err
		}
		reply, err := DecodeReply(ScriptGetCart, raw)
		if err != nil {
			return err
		}
		out, err = reply.Cart(cartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertItem sets the quantity of a product, creating the cart on first add.
func (s *store) UpsertItem(ctx context.Context, input UpsertItemInput) (*Cart, error) {
	if err := ValidateCartID(input.CartID); err != nil {
		return nil, err
	}
	if err := ValidateProductID(input.ProductID); err != nil {
		return nil, err
	}
	if err := ValidateUserID(input.UserID); err != nil {
		return nil, err
	}
	if err := ValidateVariant(input.Variant); err != nil {
		return nil, err
	}
	price := "0"
	if input.Quantity > 0 {
		parsed, err := ParseUnitPrice(input.UnitPrice)
		if err != nil {
			return nil, err
		}
		price = parsed.String()
	}
	ctx = s.logg.WithUserID(s.logg.WithCartID(ctx, input.CartID), input.UserID)

	var out *Cart
	err := s.runner.Do(ctx, OpUpsertItem, func(ctx context.Context) error {
		raw, err := s.scripts.Invoke(ctx, s.handles.UpsertItem, []string{s.Key(input.CartID)},
			input.CartID,
			input.ProductID,
			strconv.Itoa(input.Quantity),
			price,
			NowMillis(s.clock()),
			strconv.Itoa(s.limits.MaxItems),
			strconv.Itoa(s.limits.MaxQuantity),
			Millis(s.ttl.User),
			Millis(s.ttl.Guest),
			input.UserID,
			input.Variant,
		)
		if err != nil {
			return err
		}
		reply, err := DecodeReply(ScriptUpsertItem, raw)
		if err != nil {
			return err
		}
		out, err = reply.Cart(input.CartID)
		return err
	})
	if err != nil {
		s.logRejection(ctx, OpUpsertItem, err)
		return nil, err
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"items":   out.ItemCount(),
		"version": out.Version,
	}), "cart.item_upserted")
	return out, nil
}

// RemoveItem drops a product. Removing an absent product or cart is a no-op.
func (s *store) RemoveItem(ctx context.Context, cartID, productID string) (*Cart, error) {
	if err := ValidateCartID(cartID); err != nil {
		return nil, err
	}
	if err := ValidateProductID(productID); err != nil {
		return nil, err
	}
	ctx = s.logg.WithCartID(ctx, cartID)

	var out *Cart
	err := s.runner.Do(ctx, OpRemoveItem, func(ctx context.Context) error {
		raw, err := s.scripts.Invoke(ctx, s.handles.RemoveItem, []string{s.Key(cartID)},
			productID,
			NowMillis(s.clock()),
			Millis(s.ttl.User),
			Millis(s.ttl.Guest),
		)
		if err != nil {
			return err
		}
		reply, err := DecodeReply(ScriptRemoveItem, raw)
		if err != nil {
			return err
		}
		out, err = reply.Cart(cartID)
		return err
	})
	if err != nil {
		s.logRejection(ctx, OpRemoveItem, err)
		return nil, err
	}
	return out, nil
}

// Clear deletes the cart key and reports whether it existed.
func (s *store) Clear(ctx context.Context, cartID string) (bool, error) {
	if err := ValidateCartID(cartID); err != nil {
		return false, err
	}
	ctx = s.logg.WithCartID(ctx, cartID)

	var deleted int64
	err := s.runner.Do(ctx, OpClearCart, func(ctx context.Context) error {
		n, err := s.keyspace.Del(ctx, s.Key(cartID))
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted > 0 {
		s.logg.Info(ctx, "cart.cleared")
	}
	return deleted > 0, nil
}

func (s *store) logRejection(ctx context.Context, op string, err error) {
	if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidStateTransition) {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"op":      op,
		"details": pkgerrors.As(err).Details(),
	}), "cart.mutation_rejected")
}
