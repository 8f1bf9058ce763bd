package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/product"
)

func seed(t *testing.T, r *ProductRepository, p *domain.Product) {
	t.Helper()
	if err := r.Save(context.Background(), p); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestDecrementStock_Conditional(t *testing.T) {
	r := NewProductRepository()
	seed(t, r, &domain.Product{ID: "P1", Title: "Tee", Stock: 3})
	ctx := context.Background()

	if err := r.DecrementStock(ctx, "P1", 2); err != nil {
		t.Fatalf("decrement within stock: %v", err)
	}
	if err := r.DecrementStock(ctx, "P1", 2); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	p, err := r.GetByID(ctx, "P1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Stock != 1 {
		t.Errorf("failed decrement must not change stock, got %d", p.Stock)
	}

	if err := r.DecrementStock(ctx, "P1", 0); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("zero quantity: got %v", err)
	}
	if err := r.DecrementStock(ctx, "ghost", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown product: got %v", err)
	}
}

func TestDecrementSizeStock_Conditional(t *testing.T) {
	r := NewProductRepository()
	seed(t, r, &domain.Product{
		ID:                   "P1",
		Title:                "Tee",
		TrackInventoryBySize: true,
		SizeInventory: []domain.SizeStock{
			{Code: "M", Qty: 2},
			{Code: "L", Qty: 5},
		},
	})
	ctx := context.Background()

	if err := r.DecrementSizeStock(ctx, "P1", "M", 2); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if err := r.DecrementSizeStock(ctx, "P1", "M", 1); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("drained size: got %v", err)
	}
	if err := r.DecrementSizeStock(ctx, "P1", "XL", 1); !errors.Is(err, domain.ErrUnknownSize) {
		t.Fatalf("untracked size: got %v", err)
	}

	p, err := r.GetByID(ctx, "P1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if qty, _ := p.SizeQty("L"); qty != 5 {
		t.Errorf("sibling size must be untouched, got %d", qty)
	}
}

// Forty buyers race for ten units; exactly ten decrements may win and the
// count must end at zero, never below.
func TestDecrementStock_NeverOversells(t *testing.T) {
	r := NewProductRepository()
	seed(t, r, &domain.Product{ID: "P1", Title: "Drop", Stock: 10})
	ctx := context.Background()

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.DecrementStock(ctx, "P1", 1); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 10 {
		t.Errorf("expected exactly 10 winners, got %d", wins.Load())
	}
	p, err := r.GetByID(ctx, "P1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Stock != 0 {
		t.Errorf("expected stock 0, got %d", p.Stock)
	}
}

func TestIncrementRestoresStock(t *testing.T) {
	r := NewProductRepository()
	seed(t, r, &domain.Product{ID: "P1", Title: "Tee", Stock: 5})
	ctx := context.Background()

	if err := r.DecrementStock(ctx, "P1", 3); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if err := r.IncrementStock(ctx, "P1", 3); err != nil {
		t.Fatalf("increment: %v", err)
	}
	p, _ := r.GetByID(ctx, "P1")
	if p.Stock != 5 {
		t.Errorf("expected stock restored to 5, got %d", p.Stock)
	}
}

func TestGetByID_ReturnsCopy(t *testing.T) {
	r := NewProductRepository()
	seed(t, r, &domain.Product{
		ID:            "P1",
		Title:         "Tee",
		SizeInventory: []domain.SizeStock{{Code: "M", Qty: 2}},
	})

	p, err := r.GetByID(context.Background(), "P1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	p.Title = "mutated"
	p.SizeInventory[0].Qty = 99

	again, _ := r.GetByID(context.Background(), "P1")
	if again.Title != "Tee" {
		t.Error("caller mutation leaked into the store")
	}
	if qty, _ := again.SizeQty("M"); qty != 2 {
		t.Error("caller slice mutation leaked into the store")
	}
}
