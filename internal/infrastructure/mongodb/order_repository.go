package mongodb

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/order"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const orderCollection = "orders"

type OrderRepository struct {
	col *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{col: db.Collection(orderCollection)}
}

func (r *OrderRepository) Insert(ctx context.Context, ord *domain.Order) error {
	if _, err := r.col.InsertOne(ctx, ord); err != nil {
		return fmt.Errorf("mongodb: insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var ord domain.Order
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&ord)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb: find order: %w", err)
	}
	return &ord, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: list orders: %w", err)
	}

	var out []*domain.Order
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongodb: decode orders: %w", err)
	}
	return out, nil
}
