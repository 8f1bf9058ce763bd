package checkout

import (
	"context"

	"github.com/Zhima-Mochi/storefront/internal/razorpay"
)

// Gateway is the slice of the payment provider the orchestrator depends on.
// Signature verification itself is a pure function and stays out of the port.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*razorpay.RemoteOrder, error)
	KeyID(ctx context.Context) (string, error)
	Secret(ctx context.Context) (string, error)
}

// IdempotencyStore claims single-use keys. Claim returns false when the key
// was already taken by an earlier request. Release hands a claim back so a
// failed attempt does not block a legitimate retry.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type IDGenerator interface {
	NewID() string
}
