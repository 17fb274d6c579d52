package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	d "github.com/toosale/checkout-service/domain"
)

// User-visible failure messages. Off-band payments cannot be un-sent, so
// both spell out what the buyer should do about funds already in flight.
const (
	failureVerificationUnavailable = "We could not verify your payment right now. " +
		"If you already sent funds they remain valid - retry with the same transaction reference."
	failurePaymentRejected = "The payment was rejected. " +
		"Do not send funds again; contact support if you believe funds are already in flight."
)

// SubmitProof accepts a proof-of-payment reference and runs verification.
// An empty reference is rejected without a state change. While verification
// is in flight, further submissions are rejected even if the caller's UI
// failed to disable the action. A transport-level verification failure lands
// in FAILED with the retryable flag set; an explicit rejection lands in
// FAILED non-retryable. Approval confirms the session and triggers
// finalization.
func (s *CheckoutService) SubmitProof(ctx context.Context, sessionID string, proof d.PaymentProof) (*d.CheckoutSession, error) {
	proof.Reference = strings.TrimSpace(proof.Reference)
	if proof.Reference == "" {
		return nil, ErrEmptyProofReference
	}

	if !s.verifying.tryAcquire(sessionID) {
		return nil, ErrVerificationInFlight
	}
	defer s.verifying.release(sessionID)

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch {
	case session.Status == d.CheckoutStatusPaymentProcessing:
		return nil, ErrVerificationInFlight
	case !d.CanTransitionTo(session.Status, d.CheckoutStatusPaymentProcessing):
		return nil, IllegalTransitionError
	case session.Payment == nil:
		return nil, IllegalTransitionError
	}

	session.Status = d.CheckoutStatusPaymentProcessing
	session.ProofReference = proof.Reference
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist processing state: %w", err)
	}

	// The verification window is bounded by verifyTimeout alone, not by the
	// request lifetime: the buyer's funds may already be in flight, so a
	// client disconnect or handler timeout must not abort the attempt or
	// strand the session in PAYMENT_PROCESSING.
	verifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.verifyTimeout)
	defer cancel()
	result, verifyErr := s.verifier.Verify(verifyCtx, *session.Payment, proof)
	if verifyErr == nil && result == nil {
		verifyErr = errors.New("verifier returned no result")
	}

	// From here on every write runs detached from the request context; the
	// outcome has to land even when the caller is gone.
	ctx = context.WithoutCancel(ctx)

	// The session may have been cancelled back to PAYMENT_PENDING while the
	// verification call was in flight; in that case the result is dropped.
	session, err = s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != d.CheckoutStatusPaymentProcessing {
		log.Printf("verification result dropped after cancellation session_id = %v status = %v",
			session.ID, session.Status)
		return session, nil
	}

	if verifyErr != nil {
		// Internal detail stays in the log; the session carries only the
		// user-safe message.
		log.Printf("payment verification errored session_id = %v error = %v", session.ID, verifyErr)
		return s.fail(ctx, session, true, failureVerificationUnavailable)
	}

	if result.Outcome == VerificationRejected {
		reason := failurePaymentRejected
		if result.Reason != "" {
			reason = fmt.Sprintf("%s %s", result.Reason, failurePaymentRejected)
		}
		log.Printf("payment rejected session_id = %v", session.ID)
		return s.fail(ctx, session, false, reason)
	}

	if !d.CanTransitionTo(session.Status, d.CheckoutStatusConfirmed) {
		return nil, IllegalTransitionError
	}
	session.Status = d.CheckoutStatusConfirmed
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist confirmed state: %w", err)
	}
	log.Printf("payment confirmed session_id = %v reference = %v", session.ID, session.ProofReference)

	return s.Finalize(ctx, sessionID)
}

// Cancel explicitly abandons an in-flight verification, returning the
// session to PAYMENT_PENDING. The payment request is untouched.
func (s *CheckoutService) Cancel(ctx context.Context, sessionID string) (*d.CheckoutSession, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != d.CheckoutStatusPaymentProcessing {
		return nil, IllegalTransitionError
	}
	session.Status = d.CheckoutStatusPaymentPending
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist cancellation: %w", err)
	}
	return session, nil
}

// Retry re-enters PAYMENT_PENDING after a retryable failure. The original
// payment request is reused so funds already sent stay valid.
func (s *CheckoutService) Retry(ctx context.Context, sessionID string) (*d.CheckoutSession, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != d.CheckoutStatusFailed {
		return nil, IllegalTransitionError
	}
	if !session.Retryable {
		return nil, ErrNotRetryable
	}
	session.Status = d.CheckoutStatusPaymentPending
	session.Retryable = false
	session.FailureReason = ""
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist retry: %w", err)
	}
	log.Printf("checkout retry session_id = %v", session.ID)
	return session, nil
}

func (s *CheckoutService) fail(ctx context.Context, session *d.CheckoutSession, retryable bool, reason string) (*d.CheckoutSession, error) {
	session.Status = d.CheckoutStatusFailed
	session.Retryable = retryable
	session.FailureReason = reason
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist failure: %w", err)
	}
	return session, nil
}
