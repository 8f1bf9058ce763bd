package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/order"
)

type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, ord *domain.Order) error {
	_ = ctx
	if ord == nil || ord.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[ord.ID]; exists {
		return fmt.Errorf("order repository: duplicate id %s", ord.ID)
	}
	r.orders[ord.ID] = ord.Clone()
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	ord, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ord.Clone(), nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0)
	for _, ord := range r.orders {
		if ord.UserID == userID {
			out = append(out, ord.Clone())
		}
	}
	return out, nil
}

// Len reports the number of stored orders; test helper.
func (r *OrderRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}
