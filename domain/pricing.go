package domain

import "github.com/shopspring/decimal"

// PricingPolicy holds the storefront pricing knobs. Monetary values are in
// the display currency.
type PricingPolicy struct {
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
	FlatShippingFee       decimal.Decimal `json:"flat_shipping_fee"`
	TaxRate               decimal.Decimal `json:"tax_rate"`
}

// PricingBreakdown is the derived cost of a cart snapshot. All fields are
// rounded to two decimal places.
type PricingBreakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}
