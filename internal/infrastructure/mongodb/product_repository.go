package mongodb

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/product"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const productCollection = "products"

type ProductRepository struct {
	col *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{col: db.Collection(productCollection)}
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb: find product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: list products: %w", err)
	}

	var out []*domain.Product
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongodb: decode products: %w", err)
	}
	return out, nil
}

func (r *ProductRepository) Save(ctx context.Context, p *domain.Product) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts); err != nil {
		return fmt.Errorf("mongodb: save product: %w", err)
	}
	return nil
}

// DecrementStock is the conditional flat-stock decrement: the filter only
// matches while the remaining count still covers qty, so a concurrent
// checkout that lost the race observes an unmatched update, never a negative
// count.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, qty int64) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": productID, "stock": bson.M{"$gte": qty}},
		bson.M{
			"$inc":         bson.M{"stock": -qty},
			"$currentDate": bson.M{"updatedAt": true},
		},
	)
	if err != nil {
		return fmt.Errorf("mongodb: decrement stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.classifyMiss(ctx, productID, "")
	}
	return nil
}

func (r *ProductRepository) IncrementStock(ctx context.Context, productID string, qty int64) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": productID},
		bson.M{
			"$inc":         bson.M{"stock": qty},
			"$currentDate": bson.M{"updatedAt": true},
		},
	)
	if err != nil {
		return fmt.Errorf("mongodb: increment stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DecrementSizeStock decrements one size entry with the same conditional
// pattern, leaving every other size code untouched.
func (r *ProductRepository) DecrementSizeStock(ctx context.Context, productID, size string, qty int64) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id":           productID,
			"sizeInventory": bson.M{"$elemMatch": bson.M{"code": size, "qty": bson.M{"$gte": qty}}},
		},
		bson.M{
			"$inc":         bson.M{"sizeInventory.$.qty": -qty},
			"$currentDate": bson.M{"updatedAt": true},
		},
	)
	if err != nil {
		return fmt.Errorf("mongodb: decrement size stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.classifyMiss(ctx, productID, size)
	}
	return nil
}

func (r *ProductRepository) IncrementSizeStock(ctx context.Context, productID, size string, qty int64) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": productID, "sizeInventory.code": size},
		bson.M{
			"$inc":         bson.M{"sizeInventory.$.qty": qty},
			"$currentDate": bson.M{"updatedAt": true},
		},
	)
	if err != nil {
		return fmt.Errorf("mongodb: increment size stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUnknownSize
	}
	return nil
}

// classifyMiss disambiguates an unmatched conditional update: the product may
// be missing, the size code untracked, or the stock genuinely insufficient.
func (r *ProductRepository) classifyMiss(ctx context.Context, productID, size string) error {
	p, err := r.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if size != "" {
		if _, tracked := p.SizeQty(size); !tracked {
			return domain.ErrUnknownSize
		}
	}
	return domain.ErrInsufficientStock
}
