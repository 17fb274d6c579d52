package cache

import (
	"context"
	"errors"

	d "github.com/toosale/checkout-service/domain"
)

type OrderCache interface {
	Get(ctx context.Context, orderID string) (*d.Order, error)
	Set(ctx context.Context, order *d.Order) error
	Delete(ctx context.Context, orderID string) error
}

var ErrCacheMiss = errors.New("cache miss")
