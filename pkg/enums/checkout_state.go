package enums

import "fmt"

// CheckoutState tracks where a cart sits in the checkout flow.
type CheckoutState string

const (
	CheckoutStateActive   CheckoutState = "ACTIVE"
	CheckoutStateStarted  CheckoutState = "CHECKOUT_STARTED"
	CheckoutStateComplete CheckoutState = "CHECKOUT_COMPLETE"
	// CheckoutStateAbandoned is never stored; a cart reaches it by expiring.
	CheckoutStateAbandoned CheckoutState = "ABANDONED"
)

var validCheckoutStates = []CheckoutState{
	CheckoutStateActive,
	CheckoutStateStarted,
	CheckoutStateComplete,
	CheckoutStateAbandoned,
}

var checkoutTransitions = map[CheckoutState]CheckoutState{
	CheckoutStateActive:  CheckoutStateStarted,
	CheckoutStateStarted: CheckoutStateComplete,
}

// String implements fmt.Stringer.
func (c CheckoutState) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutState.
func (c CheckoutState) IsValid() bool {
	for _, candidate := range validCheckoutStates {
		if candidate == c {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is the single explicit successor of c.
func (c CheckoutState) CanTransitionTo(next CheckoutState) bool {
	to, ok := checkoutTransitions[c]
	return ok && to == next
}

// AcceptsItemMutations reports whether items may still be changed.
func (c CheckoutState) AcceptsItemMutations() bool {
	return c == CheckoutStateActive || c == CheckoutStateStarted
}

// ParseCheckoutState converts raw input into a CheckoutState.
func ParseCheckoutState(value string) (CheckoutState, error) {
	for _, candidate := range validCheckoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout state %q", value)
}
