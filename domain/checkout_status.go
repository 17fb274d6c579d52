package domain

type CheckoutStatus string

const (
	// CheckoutStatusInitiated: cart snapshot captured, awaiting customer info.
	CheckoutStatusInitiated CheckoutStatus = "INITIATED"
	// CheckoutStatusPaymentPending: payment request shown, awaiting proof.
	CheckoutStatusPaymentPending CheckoutStatus = "PAYMENT_PENDING"
	// CheckoutStatusPaymentProcessing: verification call in flight.
	CheckoutStatusPaymentProcessing CheckoutStatus = "PAYMENT_PROCESSING"
	// CheckoutStatusConfirmed: payment verified, finalization not yet done.
	CheckoutStatusConfirmed CheckoutStatus = "CONFIRMED"
	// CheckoutStatusCompleted: order created, cart cleared.
	CheckoutStatusCompleted CheckoutStatus = "COMPLETED"
	CheckoutStatusFailed    CheckoutStatus = "FAILED"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCompleted || s == CheckoutStatusFailed
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the checkout status machine allows moving
// from one status to another. Confirmed may fall back to Initiated when the
// order gateway rejects the customer data at submission time; Failed may
// re-enter PaymentPending on a retry (the service additionally requires the
// failure to be retryable).
func CanTransitionTo(from, to CheckoutStatus) bool {
	switch from {
	case CheckoutStatusInitiated:
		return to == CheckoutStatusPaymentPending
	case CheckoutStatusPaymentPending:
		return to == CheckoutStatusPaymentProcessing
	case CheckoutStatusPaymentProcessing:
		return to == CheckoutStatusConfirmed ||
			to == CheckoutStatusFailed ||
			to == CheckoutStatusPaymentPending
	case CheckoutStatusConfirmed:
		return to == CheckoutStatusCompleted || to == CheckoutStatusInitiated
	case CheckoutStatusFailed:
		return to == CheckoutStatusPaymentPending
	default:
		return false
	}
}
