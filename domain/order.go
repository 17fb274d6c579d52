package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderPayment struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Order is the authoritative record owned by the backend. The client never
// mutates it, only reads it back for display.
type Order struct {
	ID          string           `json:"id"`
	OrderNumber string           `json:"order_number"`
	Items       []CartItem       `json:"items"`
	Customer    CustomerInfo     `json:"customer"`
	Totals      PricingBreakdown `json:"totals"`
	Payment     OrderPayment     `json:"payment"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
}

// OrderSummary is the best-effort local projection of a finished checkout,
// used for confirmation rendering when the authoritative order cannot be
// fetched.
type OrderSummary struct {
	OrderNumber      string          `json:"order_number"`
	Total            decimal.Decimal `json:"total"`
	SettlementAmount decimal.Decimal `json:"settlement_amount"`
	Asset            string          `json:"asset"`
	Reference        string          `json:"reference"`
}
