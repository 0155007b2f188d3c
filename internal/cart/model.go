package cart

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cart-service/pkg/enums"
)

// LineItem is one product in a cart. UnitPrice is the price captured when
// the product was first added. Variant is an optional product option label.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	AddedAt   time.Time
	Variant   string
}

// Total returns quantity times unit price.
func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CheckoutInfo is the frozen copy of the items taken when checkout started.
type CheckoutInfo struct {
	ID          string
	StartedAt   time.Time
	CompletedAt time.Time
	Items       map[string]LineItem
}

// Cart is the decoded state of one cart key.
type Cart struct {
	ID        string
	UserID    string
	State     enums.CheckoutState
	Items     map[string]LineItem
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
	// Exists is false when the key is absent; the cart is then empty.
	Exists bool
	// TTL is the remaining lifetime as observed by Get. Zero elsewhere.
	TTL      time.Duration
	Checkout *CheckoutInfo
}

func emptyCart(id string) *Cart {
	return &Cart{
		ID:    id,
		State: enums.CheckoutStateActive,
		Items: map[string]LineItem{},
	}
}

// IsGuest reports whether the cart has no owning user.
func (c *Cart) IsGuest() bool {
	return c.UserID == ""
}

// IsEmpty reports whether the cart holds no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount returns the number of distinct products.
func (c *Cart) ItemCount() int {
	return len(c.Items)
}

// TotalQuantity sums quantities across all items.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Subtotal sums the line totals.
func (c *Cart) Subtotal() decimal.Decimal {
	return Subtotal(c.Items)
}

// SortedItems returns the items ordered by add time, then product id.
func (c *Cart) SortedItems() []LineItem {
	return SortItems(c.Items)
}

// Subtotal sums the line totals of items.
func Subtotal(items map[string]LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total())
	}
	return total
}

// SortItems flattens items into a stable order.
func SortItems(items map[string]LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}
