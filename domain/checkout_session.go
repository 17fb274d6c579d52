package domain

import "time"

// CheckoutSession carries one checkout workflow from cart snapshot to
// completion. Persisted between steps; keyed by an idempotency key so a
// duplicate start request returns the existing session.
type CheckoutSession struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	IdempotencyKey string           `json:"idempotency_key"`
	Status         CheckoutStatus   `json:"status"`
	Cart           CartSnapshot     `json:"cart"`
	Pricing        PricingBreakdown `json:"pricing"`
	Customer       *CustomerInfo    `json:"customer,omitempty"`
	Payment        *PaymentRequest  `json:"payment,omitempty"`
	ProofReference string           `json:"proof_reference,omitempty"`

	// Retryable qualifies a FAILED status: true after a transport-level
	// verification error, false after an explicit rejection.
	Retryable     bool   `json:"retryable"`
	FailureReason string `json:"failure_reason,omitempty"`

	OrderID     string     `json:"order_id,omitempty"`
	OrderNumber string     `json:"order_number,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocalSummary builds the client-held projection used for confirmation
// rendering when the authoritative order is unavailable.
func (s *CheckoutSession) LocalSummary() OrderSummary {
	summary := OrderSummary{
		OrderNumber: s.OrderNumber,
		Total:       s.Pricing.Total,
		Reference:   s.ProofReference,
	}
	if s.Payment != nil {
		summary.SettlementAmount = s.Payment.SettlementAmount
		summary.Asset = s.Payment.Asset
	}
	return summary
}
