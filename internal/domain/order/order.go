package order

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("order: not found")
	ErrInvalidItems = errors.New("order: at least one item is required")
	ErrInvalidUser  = errors.New("order: user id is required")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Item is a purchase-time snapshot of a product line, not a live reference.
type Item struct {
	ProductID string `bson:"productId" json:"productId"`
	Title     string `bson:"title" json:"title"`
	Qty       int64  `bson:"qty" json:"qty"`
	Size      string `bson:"size,omitempty" json:"size,omitempty"`
}

// UPIDetails records a manual bank-transfer reference awaiting reconciliation.
type UPIDetails struct {
	TxnID     string `bson:"txnId" json:"txnId"`
	PayerName string `bson:"payerName,omitempty" json:"payerName,omitempty"`
}

// Shipping carries the destination fields captured with the order.
type Shipping struct {
	Name    string `bson:"name,omitempty" json:"name,omitempty"`
	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
	Address string `bson:"address,omitempty" json:"address,omitempty"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	Pincode string `bson:"pincode" json:"pincode"`
}

// Order is the durable record of one purchase attempt. It is created exactly
// once per successful checkout, and only after inventory has been confirmed.
type Order struct {
	ID                string      `bson:"_id" json:"id"`
	UserID            string      `bson:"userId" json:"userId"`
	Shipping          Shipping    `bson:"shipping" json:"shipping"`
	PaymentMethod     string      `bson:"paymentMethod" json:"paymentMethod"`
	Items             []Item      `bson:"items" json:"items"`
	TotalMinor        int64       `bson:"totalMinor" json:"totalMinor"`
	Status            Status      `bson:"status" json:"status"`
	Coupon            string      `bson:"coupon,omitempty" json:"coupon,omitempty"`
	UPI               *UPIDetails `bson:"upi,omitempty" json:"upi,omitempty"`
	RazorpayOrderID   string      `bson:"razorpayOrderId,omitempty" json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string      `bson:"razorpayPaymentId,omitempty" json:"razorpayPaymentId,omitempty"`
	CreatedAt         time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time   `bson:"updatedAt" json:"updatedAt"`
}

func New(id, userID string, items []Item, status Status) (*Order, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	if len(items) == 0 {
		return nil, ErrInvalidItems
	}

	now := time.Now().UTC()
	return &Order{
		ID:        id,
		UserID:    userID,
		Items:     items,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	if o.UPI != nil {
		upi := *o.UPI
		clone.UPI = &upi
	}
	return &clone
}

type Repository interface {
	Insert(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
}
