package service

import (
	"context"
	"fmt"
	"log"

	d "github.com/toosale/checkout-service/domain"
	"github.com/toosale/checkout-service/internal/payment"
)

// SubmitCustomerInfo validates the buyer details and, when they pass,
// advances the session to PAYMENT_PENDING with a payment request built from
// the session total. Validation failures leave the session untouched and
// come back as domain.FieldErrors.
//
// The payment request is built once per session. If the session fell back to
// INITIATED after the order gateway rejected the customer data, the original
// request is kept, because the buyer may already have sent funds against it.
func (s *CheckoutService) SubmitCustomerInfo(ctx context.Context, sessionID string, info d.CustomerInfo) (*d.CheckoutSession, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != d.CheckoutStatusInitiated {
		return nil, ErrCustomerInfoNotAllowed
	}

	trimmed := info.Trimmed()
	if errs := trimmed.Validate(); errs != nil {
		return nil, errs
	}

	if !d.CanTransitionTo(session.Status, d.CheckoutStatusPaymentPending) {
		return nil, IllegalTransitionError
	}

	session.Customer = &trimmed
	if session.Payment == nil {
		request, err := payment.Build(session.Pricing.Total, s.settlement)
		if err != nil {
			return nil, fmt.Errorf("failed to build payment request: %w", err)
		}
		session.Payment = request
	}
	session.Status = d.CheckoutStatusPaymentPending
	session.FailureReason = ""

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save customer info: %w", err)
	}

	log.Printf("customer info accepted session_id = %v settlement_amount = %v",
		session.ID, session.Payment.SettlementAmount)
	return session, nil
}
