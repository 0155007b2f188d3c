package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cart-service/internal/cart"
	"github.com/angelmondragon/cart-service/pkg/enums"
	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
	"github.com/angelmondragon/cart-service/pkg/logger"
	"github.com/angelmondragon/cart-service/pkg/pubsub"
	redisx "github.com/angelmondragon/cart-service/pkg/redis"
	"github.com/angelmondragon/cart-service/pkg/retry"
)

const (
	OpStartCheckout    = "start_checkout"
	OpCompleteCheckout = "complete_checkout"

	// EventCheckoutCompleted is published after a cart reaches CHECKOUT_COMPLETE.
	EventCheckoutCompleted = "checkout.completed"

	publishTimeout = 5 * time.Second
)

// Snapshot is the frozen view of a cart taken when checkout started.
type Snapshot struct {
	CheckoutID  string
	CartID      string
	UserID      string
	State       enums.CheckoutState
	Items       []cart.LineItem
	Subtotal    decimal.Decimal
	StartedAt   time.Time
	CompletedAt time.Time
}

// Publisher delivers domain events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event pubsub.Event) error
}

// StateMachineParams groups dependencies for the checkout state machine.
type StateMachineParams struct {
	Store     cart.Store
	Scripts   cart.ScriptInvoker
	Handle    redisx.ScriptHandle
	Runner    retry.Runner
	TTL       cart.TTLPolicy
	Logger    *logger.Logger
	Publisher Publisher
	Clock     func() time.Time
	NewID     func() string
}

// StateMachine moves carts through ACTIVE -> CHECKOUT_STARTED -> CHECKOUT_COMPLETE.
type StateMachine interface {
	Start(ctx context.Context, cartID string) (*Snapshot, error)
	Complete(ctx context.Context, cartID string) (*Snapshot, error)
}

type stateMachine struct {
	store     cart.Store
	scripts   cart.ScriptInvoker
	handle    redisx.ScriptHandle
	runner    retry.Runner
	ttl       cart.TTLPolicy
	logg      *logger.Logger
	publisher Publisher
	clock     func() time.Time
	newID     func() string
}

// NewStateMachine builds the checkout state machine. Publisher is optional.
func NewStateMachine(params StateMachineParams) (StateMachine, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart store is required")
	}
	if params.Scripts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "script invoker is required")
	}
	if params.Handle.SHA == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transition script must be loaded")
	}
	if params.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "retry runner is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.TTL.User <= 0 || params.TTL.Guest <= 0 || params.TTL.Completed <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout ttls must be positive")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := params.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &stateMachine{
		store:     params.Store,
		scripts:   params.Scripts,
		handle:    params.Handle,
		runner:    params.Runner,
		ttl:       params.TTL,
		logg:      params.Logger,
		publisher: params.Publisher,
		clock:     clock,
		newID:     newID,
	}, nil
}

// Start freezes the current items and moves the cart to CHECKOUT_STARTED.
func (m *stateMachine) Start(ctx context.Context, cartID string) (*Snapshot, error) {
	c, err := m.transition(ctx, OpStartCheckout, cartID, enums.CheckoutStateActive, enums.CheckoutStateStarted, m.newID())
	if err != nil {
		return nil, err
	}
	snap, err := snapshotOf(c)
	if err != nil {
		return nil, err
	}
	m.logg.Info(m.logg.WithFields(m.logg.WithCartID(ctx, cartID), map[string]any{
		"checkout_id": snap.CheckoutID,
		"items":       len(snap.Items),
	}), "checkout.started")
	return snap, nil
}

// Complete finalises a started checkout and returns the snapshot taken at
// start. The completed cart stays readable for the completed TTL.
func (m *stateMachine) Complete(ctx context.Context, cartID string) (*Snapshot, error) {
	c, err := m.transition(ctx, OpCompleteCheckout, cartID, enums.CheckoutStateStarted, enums.CheckoutStateComplete, m.newID())
	if err != nil {
		return nil, err
	}
	snap, err := snapshotOf(c)
	if err != nil {
		return nil, err
	}
	lctx := m.logg.WithFields(m.logg.WithCartID(ctx, cartID), map[string]any{"checkout_id": snap.CheckoutID})
	m.logg.Info(lctx, "checkout.completed")
	m.publishCompleted(lctx, snap)
	return snap, nil
}

// transition runs the transition script under the retry policy. token is
// fixed across attempts so a retry after a lost reply finds its own write.
func (m *stateMachine) transition(ctx context.Context, op, cartID string, from, to enums.CheckoutState, token string) (*cart.Cart, error) {
	if err := cart.ValidateCartID(cartID); err != nil {
		return nil, err
	}
	if !from.CanTransitionTo(to) {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unsupported checkout transition")
	}
	ctx = m.logg.WithCartID(ctx, cartID)

	var out *cart.Cart
	err := m.runner.Do(ctx, op, func(ctx context.Context) error {
		raw, err := m.scripts.Invoke(ctx, m.handle, []string{m.store.Key(cartID)},
			string(from),
			string(to),
			cart.NowMillis(m.clock()),
			token,
			cart.Millis(m.ttl.User),
			cart.Millis(m.ttl.Guest),
			cart.Millis(m.ttl.Completed),
		)
		if err != nil {
			return err
		}
		reply, err := cart.DecodeReply(cart.ScriptTransition, raw)
		if err != nil {
			return err
		}
		out, err = reply.Cart(cartID)
		return err
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInvalidStateTransition) {
			m.logg.Warn(m.logg.WithFields(ctx, map[string]any{
				"op":      op,
				"from":    string(from),
				"to":      string(to),
				"details": pkgerrors.As(err).Details(),
			}), "checkout.illegal_transition")
		}
		return nil, err
	}
	return out, nil
}

func (m *stateMachine) publishCompleted(ctx context.Context, snap *Snapshot) {
	if m.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	err := m.publisher.Publish(pctx, pubsub.Event{
		Type:    EventCheckoutCompleted,
		Key:     snap.CheckoutID,
		Payload: newCompletedEvent(snap),
	})
	if err != nil {
		m.logg.Error(ctx, "checkout.event_publish_failed", err)
	}
}

func snapshotOf(c *cart.Cart) (*Snapshot, error) {
	if c == nil || c.Checkout == nil || len(c.Checkout.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "checkout snapshot missing from cart")
	}
	return &Snapshot{
		CheckoutID:  c.Checkout.ID,
		CartID:      c.ID,
		UserID:      c.UserID,
		State:       c.State,
		Items:       cart.SortItems(c.Checkout.Items),
		Subtotal:    cart.Subtotal(c.Checkout.Items),
		StartedAt:   c.Checkout.StartedAt,
		CompletedAt: c.Checkout.CompletedAt,
	}, nil
}
