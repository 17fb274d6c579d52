package service

import (
	"context"
	"time"

	d "github.com/toosale/checkout-service/domain"
)

type VerificationOutcome string

const (
	VerificationApproved VerificationOutcome = "APPROVED"
	VerificationRejected VerificationOutcome = "REJECTED"
)

type VerificationResult struct {
	Outcome VerificationOutcome
	// Reason is safe to show to the user when the outcome is REJECTED.
	Reason string
}

// VerificationService checks a proof of payment against a payment request.
// A returned error means the check itself could not run (timeout, transport
// failure) and the attempt may be retried with the same proof; an explicit
// REJECTED outcome is final for that proof.
type VerificationService interface {
	Verify(ctx context.Context, request d.PaymentRequest, proof d.PaymentProof) (*VerificationResult, error)
}

// SimulatedVerifier approves every proof after a fixed delay. Stands in for
// a real settlement-network lookup in development and demos.
type SimulatedVerifier struct {
	Delay time.Duration
}

func (v *SimulatedVerifier) Verify(ctx context.Context, _ d.PaymentRequest, _ d.PaymentProof) (*VerificationResult, error) {
	select {
	case <-time.After(v.Delay):
		return &VerificationResult{Outcome: VerificationApproved}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
