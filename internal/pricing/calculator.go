package pricing

import (
	"github.com/shopspring/decimal"

	d "github.com/toosale/checkout-service/domain"
)

// DefaultPolicy mirrors the storefront defaults: free shipping at $100,
// $10 flat fee below it, 8% tax.
func DefaultPolicy() d.PricingPolicy {
	return d.PricingPolicy{
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShippingFee:       decimal.NewFromInt(10),
		TaxRate:               decimal.NewFromFloat(0.08),
	}
}

// Compute derives shipping, tax and total from a cart snapshot. Pure and
// deterministic: no I/O, no clock, same inputs give the same breakdown.
// All results are rounded half-up to two decimal places. Shipping is free
// when the subtotal reaches the threshold (boundary inclusive).
func Compute(cart *d.CartSnapshot, policy d.PricingPolicy) d.PricingBreakdown {
	subtotal := cart.Subtotal().Round(2)

	shipping := policy.FlatShippingFee
	if subtotal.GreaterThanOrEqual(policy.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	shipping = shipping.Round(2)

	tax := subtotal.Mul(policy.TaxRate).Round(2)

	return d.PricingBreakdown{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax).Round(2),
	}
}
