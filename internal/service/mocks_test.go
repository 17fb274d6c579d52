package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	d "github.com/toosale/checkout-service/domain"
	r "github.com/toosale/checkout-service/internal/repository"
)

// MockRepository implements r.RepoInterface with an in-memory session table
type MockRepository struct {
	mu       sync.Mutex
	sessions map[string]d.CheckoutSession
	byKey    map[string]string
	events   []*r.OutboxEvent

	CreateErr error
	UpdateErr error
	GetErr    error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		sessions: make(map[string]d.CheckoutSession),
		byKey:    make(map[string]string),
	}
}

func (m *MockRepository) Close() error {
	return nil
}

func (m *MockRepository) RunMigrations(*r.Credentials) error {
	return nil
}

func (m *MockRepository) CreateSession(_ context.Context, session *d.CheckoutSession) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byKey[session.IdempotencyKey]; ok {
		return r.ErrDuplicateIdempotencyKey
	}
	m.sessions[session.ID] = *session
	m.byKey[session.IdempotencyKey] = session.ID
	return nil
}

func (m *MockRepository) GetSession(_ context.Context, id string) (*d.CheckoutSession, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, r.ErrSessionNotFound
	}
	copied := session
	return &copied, nil
}

func (m *MockRepository) GetSessionByIdempotencyKey(_ context.Context, key string) (*d.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[key]
	if !ok {
		return nil, r.ErrIdempotencyKeyNotFound
	}
	session := m.sessions[id]
	copied := session
	return &copied, nil
}

func (m *MockRepository) UpdateSession(_ context.Context, session *d.CheckoutSession) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return r.ErrSessionNotFound
	}
	m.sessions[session.ID] = *session
	return nil
}

func (m *MockRepository) MarkFinalized(_ context.Context, id, orderID, orderNumber string, payload []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return false, r.ErrSessionNotFound
	}
	if session.FinalizedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	session.Status = d.CheckoutStatusCompleted
	session.OrderID = orderID
	session.OrderNumber = orderNumber
	session.FinalizedAt = &now
	m.sessions[id] = session
	m.events = append(m.events, &r.OutboxEvent{
		ID:          int64(len(m.events) + 1),
		AggregateId: id,
		EventType:   "order.confirmed",
		Payload:     payload,
		CreatedAt:   now,
	})
	return true, nil
}

func (m *MockRepository) GetUnprocessedEvents(_ context.Context, limit int) ([]*r.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) > limit {
		return m.events[:limit], nil
	}
	return m.events, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, _ int64) error {
	return nil
}

func (m *MockRepository) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// MockCartGateway implements gateway.CartGateway for testing
type MockCartGateway struct {
	mu          sync.Mutex
	SnapshotVal *d.CartSnapshot
	SnapshotErr error
	ClearErr    error
	clearCalls  int
}

func (m *MockCartGateway) Snapshot(_ context.Context, _ string) (*d.CartSnapshot, error) {
	if m.SnapshotErr != nil {
		return nil, m.SnapshotErr
	}
	copied := *m.SnapshotVal
	return &copied, nil
}

func (m *MockCartGateway) Clear(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	return m.ClearErr
}

func (m *MockCartGateway) ClearCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearCalls
}

// MockOrderGateway implements gateway.OrderGateway for testing
type MockOrderGateway struct {
	mu          sync.Mutex
	SubmitOrder *d.Order
	SubmitErr   error
	submitCalls int

	Orders map[string]*d.Order
	GetErr error
}

func (m *MockOrderGateway) Submit(_ context.Context, _ d.CartSnapshot, _ d.CustomerInfo, _ d.PaymentProof) (*d.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitCalls++
	if m.SubmitErr != nil {
		return nil, m.SubmitErr
	}
	return m.SubmitOrder, nil
}

func (m *MockOrderGateway) GetOrder(_ context.Context, orderID string) (*d.Order, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	order, ok := m.Orders[orderID]
	if !ok {
		return nil, errors.New("order not found")
	}
	return order, nil
}

func (m *MockOrderGateway) SubmitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitCalls
}

// stubVerifier returns a scripted result or error
type stubVerifier struct {
	Result *VerificationResult
	Err    error
}

func (v *stubVerifier) Verify(_ context.Context, _ d.PaymentRequest, _ d.PaymentProof) (*VerificationResult, error) {
	if v.Err != nil {
		return nil, v.Err
	}
	return v.Result, nil
}

func testCart() *d.CartSnapshot {
	return &d.CartSnapshot{
		Items: []d.CartItem{
			{ProductID: "p-1", Name: "Desk Lamp", UnitPrice: decimal.NewFromInt(50), Quantity: 2},
		},
		Currency:   "USD",
		CapturedAt: time.Now().UTC(),
	}
}

func testSettlement() d.SettlementConfig {
	return d.SettlementConfig{
		Asset:          "USDT",
		Scheme:         "tether",
		Destination:    "TQrY8bkbpXKPt2LZbU8jLKNCSBY2VyeZLm",
		ConversionRate: decimal.NewFromFloat(0.999),
	}
}

func policyForTest() d.PricingPolicy {
	return d.PricingPolicy{
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShippingFee:       decimal.NewFromInt(10),
		TaxRate:               decimal.NewFromFloat(0.08),
	}
}

// newTestCheckoutService wires a CheckoutService against the mocks
func newTestCheckoutService(repo r.RepoInterface, cart *MockCartGateway, orders *MockOrderGateway, verifier VerificationService) *CheckoutService {
	return NewCheckoutService(repo, cart, orders, verifier, policyForTest(), testSettlement(), time.Second)
}

func approvedVerifier() *stubVerifier {
	return &stubVerifier{Result: &VerificationResult{Outcome: VerificationApproved}}
}

func testOrder() *d.Order {
	return &d.Order{
		ID:          "order-1",
		OrderNumber: "TS-1001",
		Status:      "processing",
		Payment:     d.OrderPayment{Method: "crypto", Reference: "tx123", Status: "confirmed"},
	}
}
