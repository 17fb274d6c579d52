package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	d "github.com/toosale/checkout-service/domain"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func testSession(idempotencyKey string) *d.CheckoutSession {
	return &d.CheckoutSession{
		ID:             uuid.New().String(),
		UserID:         "user-123",
		IdempotencyKey: idempotencyKey,
		Status:         d.CheckoutStatusInitiated,
		Cart: d.CartSnapshot{
			Items: []d.CartItem{
				{ProductID: "p-1", Name: "Desk Lamp", UnitPrice: decimal.NewFromInt(50), Quantity: 2},
			},
			Currency:   "USD",
			CapturedAt: time.Now().UTC(),
		},
		Pricing: d.PricingBreakdown{
			Subtotal: decimal.RequireFromString("100.00"),
			Shipping: decimal.Zero,
			Tax:      decimal.RequireFromString("8.00"),
			Total:    decimal.RequireFromString("108.00"),
		},
	}
}

func TestGetSessionByIdempotencyKey_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetSessionByIdempotencyKey(context.Background(), "nonexistent-key")

	assert.ErrorIs(t, err, ErrIdempotencyKeyNotFound)
}

func TestGetSession_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetSession(context.Background(), uuid.New().String())

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCreateSession_RoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	session := testSession("round-trip-key")
	require.NoError(t, repo.CreateSession(ctx, session))

	stored, err := repo.GetSessionByIdempotencyKey(ctx, "round-trip-key")
	require.NoError(t, err)

	assert.Equal(t, session.ID, stored.ID)
	assert.Equal(t, "user-123", stored.UserID)
	assert.Equal(t, d.CheckoutStatusInitiated, stored.Status)
	assert.Len(t, stored.Cart.Items, 1)
	assert.Equal(t, "108.00", stored.Pricing.Total.StringFixed(2))
	assert.Nil(t, stored.Customer)
	assert.Nil(t, stored.Payment)
	assert.Nil(t, stored.FinalizedAt)
}

func TestCreateSession_DuplicateIdempotencyKey(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.CreateSession(ctx, testSession("duplicate-key")))

	err := repo.CreateSession(ctx, testSession("duplicate-key"))

	assert.ErrorIs(t, err, ErrDuplicateIdempotencyKey)
}

func TestUpdateSession_PersistsCustomerAndPayment(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	session := testSession("update-key")
	require.NoError(t, repo.CreateSession(ctx, session))

	session.Status = d.CheckoutStatusPaymentPending
	session.Customer = &d.CustomerInfo{
		Email:     "buyer@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Address:   "12 Analytical Way",
		City:      "London",
		State:     "LDN",
		ZipCode:   "E1 6AN",
		Country:   "UK",
	}
	session.Payment = &d.PaymentRequest{
		SettlementAmount: decimal.RequireFromString("107.892"),
		Asset:            "USDT",
		Destination:      "TQrY8bkbpXKPt2LZbU8jLKNCSBY2VyeZLm",
		DisplayPayload:   "tether:TQrY8bkbpXKPt2LZbU8jLKNCSBY2VyeZLm?amount=107.892000&asset=USDT",
	}
	session.ProofReference = "tx123"
	require.NoError(t, repo.UpdateSession(ctx, session))

	stored, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusPaymentPending, stored.Status)
	require.NotNil(t, stored.Customer)
	assert.Equal(t, "buyer@example.com", stored.Customer.Email)
	require.NotNil(t, stored.Payment)
	assert.Equal(t, "107.892000", stored.Payment.SettlementAmount.StringFixed(6))
	assert.Equal(t, "tx123", stored.ProofReference)
}

func TestUpdateSession_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.UpdateSession(context.Background(), testSession("missing"))

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMarkFinalized_WinnerFlipsMarkerAndWritesOutbox(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	session := testSession("finalize-key")
	require.NoError(t, repo.CreateSession(ctx, session))
	session.Status = d.CheckoutStatusConfirmed
	require.NoError(t, repo.UpdateSession(ctx, session))

	payload := []byte(`{"session_id":"` + session.ID + `","order_number":"TS-1001"}`)
	marked, err := repo.MarkFinalized(ctx, session.ID, "order-1", "TS-1001", payload)
	require.NoError(t, err)
	assert.True(t, marked)

	stored, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusCompleted, stored.Status)
	assert.Equal(t, "order-1", stored.OrderID)
	assert.Equal(t, "TS-1001", stored.OrderNumber)
	require.NotNil(t, stored.FinalizedAt)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, session.ID, events[0].AggregateId)
	assert.Equal(t, "order.confirmed", events[0].EventType)
}

func TestMarkFinalized_LoserSkipsSideEffects(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	session := testSession("finalize-twice-key")
	require.NoError(t, repo.CreateSession(ctx, session))
	session.Status = d.CheckoutStatusConfirmed
	require.NoError(t, repo.UpdateSession(ctx, session))

	marked, err := repo.MarkFinalized(ctx, session.ID, "order-1", "TS-1001", []byte(`{}`))
	require.NoError(t, err)
	require.True(t, marked)

	// The marker is monotonic: a repeat finalization loses and must not
	// write a second outbox row.
	marked, err = repo.MarkFinalized(ctx, session.ID, "order-2", "TS-9999", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, marked)

	stored, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "order-1", stored.OrderID)
	assert.Equal(t, "TS-1001", stored.OrderNumber)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMarkEventAsProcessed_RemovesFromUnprocessed(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	session := testSession("outbox-key")
	require.NoError(t, repo.CreateSession(ctx, session))
	session.Status = d.CheckoutStatusConfirmed
	require.NoError(t, repo.UpdateSession(ctx, session))

	_, err := repo.MarkFinalized(ctx, session.ID, "order-1", "TS-1001", []byte(`{}`))
	require.NoError(t, err)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond) // Ensure context is cancelled

	_, err := repo.GetSessionByIdempotencyKey(ctx, "any-key")
	assert.Error(t, err)
}
