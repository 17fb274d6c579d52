package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	d "github.com/toosale/checkout-service/domain"
	"github.com/toosale/checkout-service/internal/gateway"
)

// Finalize runs the one-time completion sequence for a confirmed session:
// submit the order, flip the finalized marker, then clear the live cart.
// Strictly in that order - the cart is only cleared after the backend has
// durably created the order. Safe to call repeatedly: once the marker is
// set, later calls return the completed session without side effects.
//
// Gateway failures never clear the cart. A network or conflict error leaves
// the session CONFIRMED so Finalize can be called again; a validation error
// re-opens the customer-info step with the backend's field errors.
func (s *CheckoutService) Finalize(ctx context.Context, sessionID string) (*d.CheckoutSession, error) {
	if !s.finalizing.tryAcquire(sessionID) {
		return nil, ErrFinalizationInFlight
	}
	defer s.finalizing.release(sessionID)

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.FinalizedAt != nil {
		// Duplicate confirmation signal; the order already exists.
		return session, nil
	}
	if session.Status != d.CheckoutStatusConfirmed {
		return nil, IllegalTransitionError
	}
	if session.Customer == nil {
		return nil, IllegalTransitionError
	}

	order, err := s.orders.Submit(ctx, session.Cart, *session.Customer, d.PaymentProof{Reference: session.ProofReference})
	if err != nil {
		return s.handleSubmitError(ctx, session, err)
	}

	payload, err := finalizationPayload(session, order)
	if err != nil {
		return nil, err
	}
	marked, err := s.repo.MarkFinalized(ctx, session.ID, order.ID, order.OrderNumber, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to mark session finalized: %w", err)
	}
	if !marked {
		// Lost the race to a concurrent finalization; its effects stand.
		return s.repo.GetSession(ctx, sessionID)
	}

	// Order is durable; clearing the live cart is now safe. A clear failure
	// is logged and left to the cart owner to reconcile - the order must not
	// be rolled back for it.
	if clearErr := s.cart.Clear(ctx, session.UserID); clearErr != nil {
		log.Printf("failed to clear cart after finalization session_id = %v error = %v", session.ID, clearErr)
	}

	session.Status = d.CheckoutStatusCompleted
	session.OrderID = order.ID
	session.OrderNumber = order.OrderNumber
	now := time.Now().UTC()
	session.FinalizedAt = &now
	log.Printf("checkout completed session_id = %v order_number = %v", session.ID, order.OrderNumber)
	return session, nil
}

func (s *CheckoutService) handleSubmitError(ctx context.Context, session *d.CheckoutSession, err error) (*d.CheckoutSession, error) {
	gerr, ok := gateway.AsGatewayError(err)
	if !ok || gerr.Retryable() {
		// Transport trouble or server-side conflict: the session stays
		// CONFIRMED and finalization can be repeated. No order was created,
		// so the cart stays intact.
		log.Printf("order submission failed (retryable) session_id = %v error = %v", session.ID, err)
		return session, fmt.Errorf("order submission failed: %w", err)
	}

	// The backend rejected the customer data outright. Re-open the
	// customer-info step; the payment request (and any funds in flight
	// against it) is preserved.
	if !d.CanTransitionTo(session.Status, d.CheckoutStatusInitiated) {
		return nil, IllegalTransitionError
	}
	session.Status = d.CheckoutStatusInitiated
	session.FailureReason = gerr.Message
	if updateErr := s.repo.UpdateSession(ctx, session); updateErr != nil {
		return nil, fmt.Errorf("failed to persist customer-info fallback: %w", updateErr)
	}
	log.Printf("order submission rejected, customer step re-opened session_id = %v", session.ID)
	return session, gerr
}

func finalizationPayload(session *d.CheckoutSession, order *d.Order) ([]byte, error) {
	payload := map[string]interface{}{
		"session_id":   session.ID,
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"items":        session.Cart.Items,
		"total":        session.Pricing.Total,
		"currency":     session.Cart.Currency,
		"reference":    session.ProofReference,
		"completed_at": time.Now().UTC(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal finalization payload: %w", err)
	}
	return data, nil
}
