package product

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("product: not found")
	ErrInvalidQuantity   = errors.New("product: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("product: insufficient stock")
	ErrUnknownSize       = errors.New("product: size code not tracked")
)

// SizeStock is one entry of a per-size inventory ledger.
type SizeStock struct {
	Code string `bson:"code" json:"code"`
	Qty  int64  `bson:"qty" json:"qty"`
}

// Product is the catalog entry whose stock the checkout flow decrements.
// Exactly one of Stock or SizeInventory is authoritative: when
// TrackInventoryBySize is set, the flat Stock count is ignored.
type Product struct {
	ID                   string      `bson:"_id" json:"id"`
	Title                string      `bson:"title" json:"title"`
	Description          string      `bson:"description,omitempty" json:"description,omitempty"`
	PriceMinor           int64       `bson:"priceMinor" json:"priceMinor"`
	Stock                int64       `bson:"stock" json:"stock"`
	TrackInventoryBySize bool        `bson:"trackInventoryBySize" json:"trackInventoryBySize"`
	SizeInventory        []SizeStock `bson:"sizeInventory,omitempty" json:"sizeInventory,omitempty"`
	CreatedAt            time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// SizeQty returns the tracked quantity for a size code.
func (p *Product) SizeQty(code string) (int64, bool) {
	for _, s := range p.SizeInventory {
		if s.Code == code {
			return s.Qty, true
		}
	}
	return 0, false
}

// Repository is the inventory ledger port. Decrement operations are
// conditional: they fail with ErrInsufficientStock unless the remaining
// quantity still covers the request at the moment of the write, so two
// concurrent checkouts can never drive a count negative.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	Save(ctx context.Context, p *Product) error

	DecrementStock(ctx context.Context, productID string, qty int64) error
	IncrementStock(ctx context.Context, productID string, qty int64) error
	DecrementSizeStock(ctx context.Context, productID, size string, qty int64) error
	IncrementSizeStock(ctx context.Context, productID, size string, qty int64) error
}
