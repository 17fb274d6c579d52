package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"

	d "github.com/toosale/checkout-service/domain"
)

var (
	ErrIdempotencyKeyNotFound  = errors.New("idempotency key not found")
	ErrSessionNotFound         = errors.New("checkout session not found")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already exists")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OutboxEvent struct {
	ID          int64
	AggregateId string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type RepoInterface interface {
	Close() error
	RunMigrations(*Credentials) error
	CreateSession(ctx context.Context, session *d.CheckoutSession) error
	GetSession(ctx context.Context, id string) (*d.CheckoutSession, error)
	GetSessionByIdempotencyKey(ctx context.Context, key string) (*d.CheckoutSession, error)
	UpdateSession(ctx context.Context, session *d.CheckoutSession) error
	MarkFinalized(ctx context.Context, id, orderID, orderNumber string, eventPayload []byte) (bool, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, eventID int64) error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) CreateSession(ctx context.Context, session *d.CheckoutSession) error {
	cartJSON, err := json.Marshal(session.Cart)
	if err != nil {
		return fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}
	pricingJSON, err := json.Marshal(session.Pricing)
	if err != nil {
		return fmt.Errorf("failed to marshal pricing: %w", err)
	}

	query := `INSERT INTO checkout_sessions
	            (id, user_id, idempotency_key, status, cart_snapshot, pricing, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`
	_, err = r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.IdempotencyKey,
		session.Status,
		cartJSON,
		pricingJSON,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to insert checkout session: %w", err)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, id string) (*d.CheckoutSession, error) {
	return r.querySession(ctx, `WHERE id = $1`, id, ErrSessionNotFound)
}

func (r *Repository) GetSessionByIdempotencyKey(ctx context.Context, key string) (*d.CheckoutSession, error) {
	return r.querySession(ctx, `WHERE idempotency_key = $1`, key, ErrIdempotencyKeyNotFound)
}

func (r *Repository) querySession(ctx context.Context, where, arg string, notFound error) (*d.CheckoutSession, error) {
	query := `SELECT id, user_id, idempotency_key, status, cart_snapshot, pricing,
	                 customer, payment, proof_reference, retryable, failure_reason,
	                 order_id, order_number, finalized_at, created_at, updated_at
	          FROM checkout_sessions ` + where

	var (
		session       d.CheckoutSession
		cartJSON      []byte
		pricingJSON   []byte
		customerJSON  []byte
		paymentJSON   []byte
		proofRef      sql.NullString
		failureReason sql.NullString
		orderID       sql.NullString
		orderNumber   sql.NullString
		finalizedAt   sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&session.ID,
		&session.UserID,
		&session.IdempotencyKey,
		&session.Status,
		&cartJSON,
		&pricingJSON,
		&customerJSON,
		&paymentJSON,
		&proofRef,
		&session.Retryable,
		&failureReason,
		&orderID,
		&orderNumber,
		&finalizedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query checkout session: %w", err)
	}

	if err := json.Unmarshal(cartJSON, &session.Cart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart snapshot: %w", err)
	}
	if err := json.Unmarshal(pricingJSON, &session.Pricing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing: %w", err)
	}
	if len(customerJSON) > 0 {
		session.Customer = &d.CustomerInfo{}
		if err := json.Unmarshal(customerJSON, session.Customer); err != nil {
			return nil, fmt.Errorf("failed to unmarshal customer info: %w", err)
		}
	}
	if len(paymentJSON) > 0 {
		session.Payment = &d.PaymentRequest{}
		if err := json.Unmarshal(paymentJSON, session.Payment); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment request: %w", err)
		}
	}
	session.ProofReference = proofRef.String
	session.FailureReason = failureReason.String
	session.OrderID = orderID.String
	session.OrderNumber = orderNumber.String
	if finalizedAt.Valid {
		t := finalizedAt.Time
		session.FinalizedAt = &t
	}
	return &session, nil
}

func (r *Repository) UpdateSession(ctx context.Context, session *d.CheckoutSession) error {
	var (
		customerJSON []byte
		paymentJSON  []byte
		err          error
	)
	if session.Customer != nil {
		if customerJSON, err = json.Marshal(session.Customer); err != nil {
			return fmt.Errorf("failed to marshal customer info: %w", err)
		}
	}
	if session.Payment != nil {
		if paymentJSON, err = json.Marshal(session.Payment); err != nil {
			return fmt.Errorf("failed to marshal payment request: %w", err)
		}
	}

	query := `UPDATE checkout_sessions
	          SET status = $2, customer = $3, payment = $4, proof_reference = $5,
	              retryable = $6, failure_reason = $7, updated_at = NOW()
	          WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.Status,
		nullableJSON(customerJSON),
		nullableJSON(paymentJSON),
		nullableString(session.ProofReference),
		session.Retryable,
		nullableString(session.FailureReason),
	)
	if err != nil {
		return fmt.Errorf("failed to update checkout session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// MarkFinalized flips the finalized marker and records the outbox event in
// one transaction. Returns false when another finalization already won; the
// caller must then skip all completion side effects.
func (r *Repository) MarkFinalized(ctx context.Context, id, orderID, orderNumber string, eventPayload []byte) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE checkout_sessions
	          SET status = $2, order_id = $3, order_number = $4,
	              finalized_at = NOW(), updated_at = NOW()
	          WHERE id = $1 AND finalized_at IS NULL`
	result, err := tx.ExecContext(ctx, query, id, d.CheckoutStatusCompleted, orderID, orderNumber)
	if err != nil {
		return false, fmt.Errorf("failed to mark session finalized: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	eventQuery := `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
	               VALUES ($1, $2, $3, NOW())`
	if _, err := tx.ExecContext(ctx, eventQuery, id, "order.confirmed", eventPayload); err != nil {
		return false, fmt.Errorf("failed to insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit finalization: %w", err)
	}
	return true, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events
	          WHERE processed_at IS NULL
	          ORDER BY id
	          LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var event OutboxEvent
		if err := rows.Scan(&event.ID, &event.AggregateId, &event.EventType, &event.Payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, eventID int64) error {
	query := `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}

func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return data
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
