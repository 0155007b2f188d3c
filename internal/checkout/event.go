package checkout

import "time"

// CompletedEvent is the payload of EventCheckoutCompleted.
type CompletedEvent struct {
	CheckoutID  string      `json:"checkout_id"`
	CartID      string      `json:"cart_id"`
	UserID      string      `json:"user_id,omitempty"`
	Items       []EventItem `json:"items"`
	Subtotal    string      `json:"subtotal"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
}

// EventItem is one purchased line.
type EventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Variant   string `json:"variant,omitempty"`
}

func newCompletedEvent(snap *Snapshot) CompletedEvent {
	items := make([]EventItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, EventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
			Variant:   item.Variant,
		})
	}
	return CompletedEvent{
		CheckoutID:  snap.CheckoutID,
		CartID:      snap.CartID,
		UserID:      snap.UserID,
		Items:       items,
		Subtotal:    snap.Subtotal.String(),
		StartedAt:   snap.StartedAt,
		CompletedAt: snap.CompletedAt,
	}
}
