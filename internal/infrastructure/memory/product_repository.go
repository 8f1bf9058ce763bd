package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/product"
)

// ProductRepository is an in-memory inventory ledger used by tests and local
// runs. The mutex makes every compare-and-decrement atomic, mirroring the
// conditional updates of the document store.
type ProductRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.Product
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		items: make(map[string]*domain.Product),
	}
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *ProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Product, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, cloneProduct(p))
	}
	return out, nil
}

func (r *ProductRepository) Save(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[p.ID] = cloneProduct(p)
	return nil
}

func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, qty int64) error {
	_ = ctx
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[productID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Stock < qty {
		return domain.ErrInsufficientStock
	}
	p.Stock -= qty
	return nil
}

func (r *ProductRepository) IncrementStock(ctx context.Context, productID string, qty int64) error {
	_ = ctx
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Stock += qty
	return nil
}

func (r *ProductRepository) DecrementSizeStock(ctx context.Context, productID, size string, qty int64) error {
	_ = ctx
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[productID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range p.SizeInventory {
		if p.SizeInventory[i].Code != size {
			continue
		}
		if p.SizeInventory[i].Qty < qty {
			return domain.ErrInsufficientStock
		}
		p.SizeInventory[i].Qty -= qty
		return nil
	}
	return domain.ErrUnknownSize
}

func (r *ProductRepository) IncrementSizeStock(ctx context.Context, productID, size string, qty int64) error {
	_ = ctx
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[productID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range p.SizeInventory {
		if p.SizeInventory[i].Code == size {
			p.SizeInventory[i].Qty += qty
			return nil
		}
	}
	return domain.ErrUnknownSize
}

func cloneProduct(p *domain.Product) *domain.Product {
	if p == nil {
		return nil
	}
	clone := *p
	clone.SizeInventory = append([]domain.SizeStock(nil), p.SizeInventory...)
	return &clone
}
