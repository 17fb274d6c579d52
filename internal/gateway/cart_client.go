package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	d "github.com/toosale/checkout-service/domain"
)

// CartGateway is the cart collaborator. Snapshot returns a read-only copy of
// the live cart; Clear empties it. The checkout service calls Clear exactly
// once, after the order is durably created.
type CartGateway interface {
	Snapshot(ctx context.Context, userID string) (*d.CartSnapshot, error)
	Clear(ctx context.Context, userID string) error
}

type CartClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewCartClient(baseURL, token string, timeout time.Duration) *CartClient {
	return &CartClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *CartClient) Snapshot(ctx context.Context, userID string) (*d.CartSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/cart", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build cart request: %w", err)
	}
	c.authorize(req, userID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewNetworkError(fmt.Errorf("cart service returned status %d", resp.StatusCode))
	}

	var snapshot d.CartSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, NewNetworkError(fmt.Errorf("failed to decode cart: %w", err))
	}
	snapshot.CapturedAt = time.Now().UTC()
	return &snapshot, nil
}

func (c *CartClient) Clear(ctx context.Context, userID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/cart", nil)
	if err != nil {
		return fmt.Errorf("failed to build cart clear request: %w", err)
	}
	c.authorize(req, userID)

	resp, err := c.client.Do(req)
	if err != nil {
		return NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return NewNetworkError(fmt.Errorf("cart clear returned status %d", resp.StatusCode))
	}
	return nil
}

func (c *CartClient) authorize(req *http.Request, userID string) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
}
