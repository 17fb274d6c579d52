package service

import (
	"context"
	"errors"
	"log"
	"time"

	d "github.com/toosale/checkout-service/domain"
	"github.com/toosale/checkout-service/internal/cache"
	"github.com/toosale/checkout-service/internal/gateway"
)

// SummaryView is the reconciliation of the locally-held checkout result with
// the authoritative order. Authoritative is false when the read-back failed
// and only the local projection is available.
type SummaryView struct {
	Order         *d.Order       `json:"order,omitempty"`
	Summary       d.OrderSummary `json:"summary"`
	Authoritative bool           `json:"authoritative"`
}

// SummaryService renders post-purchase confirmation. The order read-back is
// bounded and best-effort: a failed fetch falls back to the local summary
// and is never surfaced to the buyer.
type SummaryService struct {
	orders       gateway.OrderGateway
	cache        cache.OrderCache
	fetchTimeout time.Duration
}

func NewSummaryService(orders gateway.OrderGateway, orderCache cache.OrderCache, fetchTimeout time.Duration) *SummaryService {
	return &SummaryService{
		orders:       orders,
		cache:        orderCache,
		fetchTimeout: fetchTimeout,
	}
}

// Reconcile fetches the authoritative order for orderID and merges it over
// the local summary. With an empty orderID, or when the fetch fails, the
// local summary is rendered as-is.
func (s *SummaryService) Reconcile(ctx context.Context, orderID string, local d.OrderSummary) SummaryView {
	if orderID == "" {
		return SummaryView{Summary: local}
	}

	order := s.lookup(ctx, orderID)
	if order == nil {
		return SummaryView{Summary: local}
	}

	merged := local
	if order.OrderNumber != "" {
		merged.OrderNumber = order.OrderNumber
	}
	if !order.Totals.Total.IsZero() {
		merged.Total = order.Totals.Total
	}
	if order.Payment.Reference != "" {
		merged.Reference = order.Payment.Reference
	}
	return SummaryView{Order: order, Summary: merged, Authoritative: true}
}

func (s *SummaryService) lookup(ctx context.Context, orderID string) *d.Order {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, orderID)
		if err == nil {
			return cached
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("order cache lookup failed order_id = %v error = %v", orderID, err)
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	order, err := s.orders.GetOrder(fetchCtx, orderID)
	if err != nil {
		log.Printf("order read-back failed, falling back to local summary order_id = %v error = %v", orderID, err)
		return nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, order); err != nil {
			log.Printf("order cache store failed order_id = %v error = %v", orderID, err)
		}
	}
	return order
}
