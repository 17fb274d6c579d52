package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int32           `json:"quantity"`
	ImageRef  string          `json:"image_ref,omitempty"`
}

// CartSnapshot is the full cart state captured at checkout entry. The live
// cart stays untouched until finalization; the snapshot never changes.
type CartSnapshot struct {
	Items      []CartItem `json:"items"`
	Currency   string     `json:"currency"`
	CapturedAt time.Time  `json:"captured_at"`
}

func (s *CartSnapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Subtotal sums unit price times quantity over all items.
func (s *CartSnapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	return total
}
