package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	d "github.com/toosale/checkout-service/domain"
	"github.com/toosale/checkout-service/internal/gateway"
	"github.com/toosale/checkout-service/internal/pricing"
	r "github.com/toosale/checkout-service/internal/repository"
)

// CheckoutService drives one checkout session from cart snapshot through
// payment confirmation to order finalization. All state lives in the
// session record; the service applies guarded transitions to it.
type CheckoutService struct {
	repo       r.RepoInterface
	cart       gateway.CartGateway
	orders     gateway.OrderGateway
	verifier   VerificationService
	policy     d.PricingPolicy
	settlement d.SettlementConfig

	// verifyTimeout bounds the PAYMENT_PROCESSING suspension so a hung
	// verification call cannot strand the session.
	verifyTimeout time.Duration

	verifying  *inflightGuard
	finalizing *inflightGuard
}

func NewCheckoutService(
	repo r.RepoInterface,
	cart gateway.CartGateway,
	orders gateway.OrderGateway,
	verifier VerificationService,
	policy d.PricingPolicy,
	settlement d.SettlementConfig,
	verifyTimeout time.Duration,
) *CheckoutService {
	return &CheckoutService{
		repo:          repo,
		cart:          cart,
		orders:        orders,
		verifier:      verifier,
		policy:        policy,
		settlement:    settlement,
		verifyTimeout: verifyTimeout,
		verifying:     newInflightGuard(),
		finalizing:    newInflightGuard(),
	}
}

// Start snapshots the live cart and opens a checkout session. A repeated
// start with the same idempotency key returns the existing session instead
// of opening a second one.
func (s *CheckoutService) Start(ctx context.Context, userID, idempotencyKey string) (*d.CheckoutSession, error) {
	existing, err := s.repo.GetSessionByIdempotencyKey(ctx, idempotencyKey)
	if err != nil && !errors.Is(err, r.ErrIdempotencyKeyNotFound) {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		log.Printf("Duplicate checkout request detected idempotency_key = %v with session_id = %v and status = %v",
			idempotencyKey, existing.ID, existing.Status)
		return existing, nil
	}

	snapshot, err := s.cart.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot cart: %w", err)
	}
	if snapshot.IsEmpty() {
		return nil, ErrEmptyCart
	}

	session := &d.CheckoutSession{
		ID:             uuid.New().String(),
		UserID:         userID,
		IdempotencyKey: idempotencyKey,
		Status:         d.CheckoutStatusInitiated,
		Cart:           *snapshot,
		Pricing:        pricing.Compute(snapshot, s.policy),
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		// Two concurrent starts with the same key both pass the lookup
		// above; the loser trips the unique constraint and adopts the
		// winner's session.
		if errors.Is(err, r.ErrDuplicateIdempotencyKey) {
			log.Printf("lost checkout start race idempotency_key = %v", idempotencyKey)
			return s.repo.GetSessionByIdempotencyKey(ctx, idempotencyKey)
		}
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	log.Printf("checkout session started session_id = %v total = %v", session.ID, session.Pricing.Total)
	return session, nil
}

// Get returns the current state of a session.
func (s *CheckoutService) Get(ctx context.Context, sessionID string) (*d.CheckoutSession, error) {
	return s.repo.GetSession(ctx, sessionID)
}
