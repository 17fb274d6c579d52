package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	d "github.com/toosale/checkout-service/domain"
)

// OrderGateway is the boundary to the storefront backend that persists
// orders. Submit must be called at most once per finalized checkout; the
// service enforces that with the finalized marker on the session.
type OrderGateway interface {
	Submit(ctx context.Context, cart d.CartSnapshot, customer d.CustomerInfo, proof d.PaymentProof) (*d.Order, error)
	GetOrder(ctx context.Context, orderID string) (*d.Order, error)
}

type submitOrderRequest struct {
	Items    []d.CartItem   `json:"items"`
	Customer d.CustomerInfo `json:"customer"`
	Payment  d.PaymentProof `json:"payment"`
}

type errorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Fields  d.FieldErrors `json:"fields,omitempty"`
}

// OrderClient talks JSON over HTTP to the backend order API with bearer-token
// auth. Calls run through a circuit breaker so a struggling backend fails
// fast instead of tying up every in-flight checkout.
type OrderClient struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*d.Order]
}

func NewOrderClient(baseURL, token string, timeout time.Duration) *OrderClient {
	settings := gobreaker.Settings{
		Name:    "order-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s changed state from %v to %v", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Backend rejecting a payload is not a backend outage.
			if gerr, ok := AsGatewayError(err); ok {
				return gerr.Kind != KindNetwork
			}
			return err == nil
		},
	}
	return &OrderClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[*d.Order](settings),
	}
}

func (c *OrderClient) Submit(ctx context.Context, cart d.CartSnapshot, customer d.CustomerInfo, proof d.PaymentProof) (*d.Order, error) {
	payload := submitOrderRequest{
		Items:    cart.Items,
		Customer: customer,
		Payment:  proof,
	}
	return c.execute(func() (*d.Order, error) {
		return c.doJSON(ctx, http.MethodPost, "/api/orders", payload)
	})
}

func (c *OrderClient) GetOrder(ctx context.Context, orderID string) (*d.Order, error) {
	return c.execute(func() (*d.Order, error) {
		return c.doJSON(ctx, http.MethodGet, "/api/orders/"+orderID, nil)
	})
}

// execute routes a call through the breaker; an open breaker surfaces as a
// retryable network error.
func (c *OrderClient) execute(fn func() (*d.Order, error)) (*d.Order, error) {
	order, err := c.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, NewNetworkError(err)
	}
	return order, err
}

func (c *OrderClient) doJSON(ctx context.Context, method, path string, payload any) (*d.Order, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var order d.Order
		if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
			return nil, NewNetworkError(fmt.Errorf("failed to decode order: %w", err))
		}
		return &order, nil
	case resp.StatusCode == http.StatusConflict:
		return nil, NewConflictError(decodeErrorMessage(resp.Body))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return nil, NewValidationError("", nil)
		}
		return nil, NewValidationError(errResp.Message, errResp.Fields)
	default:
		return nil, NewNetworkError(fmt.Errorf("backend returned status %d", resp.StatusCode))
	}
}

func decodeErrorMessage(body io.Reader) string {
	var errResp errorResponse
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		return ""
	}
	return errResp.Message
}
