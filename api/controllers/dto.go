package controllers

import (
	"time"

	"github.com/angelmondragon/cart-service/internal/cart"
	"github.com/angelmondragon/cart-service/internal/checkout"
	"github.com/angelmondragon/cart-service/internal/merge"
)

type upsertItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=128"`
	Quantity  *int   `json:"quantity" validate:"required"`
	UnitPrice string `json:"unit_price"`
	Variant   string `json:"variant" validate:"omitempty,max=64"`
}

type mergeCartsRequest struct {
	GuestCartID        string `json:"guest_cart_id" validate:"required,max=128"`
	UserCartID         string `json:"user_cart_id" validate:"required,max=128,nefield=GuestCartID"`
	ConflictResolution string `json:"conflict_resolution" validate:"omitempty,oneof=sum last-write-wins"`
}

type lineItemResponse struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	LineTotal string    `json:"line_total"`
	Variant   string    `json:"variant,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

type checkoutInfoResponse struct {
	CheckoutID  string     `json:"checkout_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type cartResponse struct {
	CartID           string                `json:"cart_id"`
	UserID           string                `json:"user_id,omitempty"`
	State            string                `json:"state"`
	Exists           bool                  `json:"exists"`
	Items            []lineItemResponse    `json:"items"`
	ItemCount        int                   `json:"item_count"`
	TotalQuantity    int                   `json:"total_quantity"`
	Subtotal         string                `json:"subtotal"`
	Version          int64                 `json:"version"`
	CreatedAt        *time.Time            `json:"created_at,omitempty"`
	UpdatedAt        *time.Time            `json:"updated_at,omitempty"`
	ExpiresInSeconds int64                 `json:"expires_in_seconds,omitempty"`
	Checkout         *checkoutInfoResponse `json:"checkout,omitempty"`
}

type mergeResponse struct {
	Cart        cartResponse `json:"cart"`
	MergedItems int          `json:"merged_items"`
	Conflicts   int          `json:"conflicts"`
	Resolution  string       `json:"resolution"`
}

type clearResponse struct {
	CartID  string `json:"cart_id"`
	Cleared bool   `json:"cleared"`
}

type checkoutResponse struct {
	CheckoutID  string             `json:"checkout_id"`
	CartID      string             `json:"cart_id"`
	State       string             `json:"state"`
	Items       []lineItemResponse `json:"items"`
	Subtotal    string             `json:"subtotal"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

func newLineItems(items []cart.LineItem) []lineItemResponse {
	out := make([]lineItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, lineItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
			LineTotal: item.Total().String(),
			Variant:   item.Variant,
			AddedAt:   item.AddedAt,
		})
	}
	return out
}

func newCartResponse(c *cart.Cart) cartResponse {
	resp := cartResponse{
		CartID:        c.ID,
		UserID:        c.UserID,
		State:         string(c.State),
		Exists:        c.Exists,
		Items:         newLineItems(c.SortedItems()),
		ItemCount:     c.ItemCount(),
		TotalQuantity: c.TotalQuantity(),
		Subtotal:      c.Subtotal().String(),
		Version:       c.Version,
		CreatedAt:     optionalTime(c.CreatedAt),
		UpdatedAt:     optionalTime(c.UpdatedAt),
	}
	if c.TTL > 0 {
		resp.ExpiresInSeconds = int64(c.TTL / time.Second)
	}
	if c.Checkout != nil {
		resp.Checkout = &checkoutInfoResponse{
			CheckoutID:  c.Checkout.ID,
			StartedAt:   c.Checkout.StartedAt,
			CompletedAt: optionalTime(c.Checkout.CompletedAt),
		}
	}
	return resp
}

func newMergeResponse(res *merge.Result) mergeResponse {
	return mergeResponse{
		Cart:        newCartResponse(res.Cart),
		MergedItems: res.MergedItems,
		Conflicts:   res.Conflicts,
		Resolution:  string(res.Resolution),
	}
}

func newCheckoutResponse(snap *checkout.Snapshot) checkoutResponse {
	return checkoutResponse{
		CheckoutID:  snap.CheckoutID,
		CartID:      snap.CartID,
		State:       string(snap.State),
		Items:       newLineItems(snap.Items),
		Subtotal:    snap.Subtotal.String(),
		StartedAt:   snap.StartedAt,
		CompletedAt: optionalTime(snap.CompletedAt),
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
