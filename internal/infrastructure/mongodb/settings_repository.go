package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/storefront/internal/razorpay"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	settingsCollection = "settings"
	settingsDocID      = "site"
)

type siteSettings struct {
	ID                string `bson:"_id"`
	RazorpayKeyID     string `bson:"razorpayKeyId,omitempty"`
	RazorpayKeySecret string `bson:"razorpayKeySecret,omitempty"`
}

// SettingsRepository reads the per-deployment settings document. It is
// consulted on every credential resolution so a live update of the document
// takes effect without a restart.
type SettingsRepository struct {
	col *mongo.Collection
}

func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{col: db.Collection(settingsCollection)}
}

func (r *SettingsRepository) GatewayCredentials(ctx context.Context) (razorpay.Credentials, error) {
	var doc siteSettings
	err := r.col.FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return razorpay.Credentials{}, nil
	}
	if err != nil {
		return razorpay.Credentials{}, fmt.Errorf("mongodb: load settings: %w", err)
	}
	return razorpay.Credentials{KeyID: doc.RazorpayKeyID, KeySecret: doc.RazorpayKeySecret}, nil
}
