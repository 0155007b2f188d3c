package cart

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cart-service/pkg/enums"
	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
)

// document is the JSON value stored under a cart key. Scripts read and
// rewrite it as a whole; timestamps are unix milliseconds.
type document struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	State     string            `json:"state"`
	Items     itemMap           `json:"items"`
	CreatedAt int64             `json:"created_at"`
	UpdatedAt int64             `json:"updated_at"`
	Version   int64             `json:"version"`
	Checkout  *checkoutDocument `json:"checkout,omitempty"`
}

type itemDocument struct {
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	AddedAt   int64  `json:"added_at"`
	Variant   string `json:"variant,omitempty"`
}

type checkoutDocument struct {
	ID           string  `json:"id"`
	CompletionID string  `json:"completion_id,omitempty"`
	StartedAt    int64   `json:"started_at"`
	CompletedAt  int64   `json:"completed_at"`
	Items        itemMap `json:"items"`
}

// itemMap tolerates the encodings Lua JSON libraries use for an empty
// table: {}, [] or null.
type itemMap map[string]itemDocument

func (m *itemMap) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*m = itemMap{}
		return nil
	}
	if trimmed[0] == '[' {
		if !bytes.Equal(bytes.Join(bytes.Fields(trimmed), nil), []byte("[]")) {
			return fmt.Errorf("items: expected object, got non-empty array")
		}
		*m = itemMap{}
		return nil
	}
	raw := map[string]itemDocument{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	*m = raw
	return nil
}

func (d *document) toCart(fallbackID string) (*Cart, error) {
	state := enums.CheckoutStateActive
	if d.State != "" {
		parsed, err := enums.ParseCheckoutState(d.State)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "stored cart has unknown state")
		}
		state = parsed
	}
	items, err := d.Items.toLineItems()
	if err != nil {
		return nil, err
	}
	id := d.ID
	if id == "" {
		id = fallbackID
	}
	c := &Cart{
		ID:        id,
		UserID:    d.UserID,
		State:     state,
		Items:     items,
		CreatedAt: fromMillis(d.CreatedAt),
		UpdatedAt: fromMillis(d.UpdatedAt),
		Version:   d.Version,
		Exists:    true,
	}
	if d.Checkout != nil {
		snapshot, err := d.Checkout.Items.toLineItems()
		if err != nil {
			return nil, err
		}
		c.Checkout = &CheckoutInfo{
			ID:          d.Checkout.ID,
			StartedAt:   fromMillis(d.Checkout.StartedAt),
			CompletedAt: fromMillis(d.Checkout.CompletedAt),
			Items:       snapshot,
		}
	}
	return c, nil
}

func (m itemMap) toLineItems() (map[string]LineItem, error) {
	out := make(map[string]LineItem, len(m))
	for productID, item := range m {
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "stored item has invalid price").
				WithDetails(map[string]any{"product_id": productID})
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "stored item has non-positive quantity").
				WithDetails(map[string]any{"product_id": productID})
		}
		out[productID] = LineItem{
			ProductID: productID,
			Quantity:  item.Quantity,
			UnitPrice: price,
			AddedAt:   fromMillis(item.AddedAt),
			Variant:   item.Variant,
		}
	}
	return out, nil
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
