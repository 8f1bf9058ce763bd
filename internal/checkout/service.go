package checkout

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	domorder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/storefront/internal/domain/outbox"
	domproduct "github.com/Zhima-Mochi/storefront/internal/domain/product"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"
	"github.com/Zhima-Mochi/storefront/internal/razorpay"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	componentCheckout = "checkout_service"

	opCreateGatewayOrder = "checkout.create_gateway_order"
	opConfirmPayment     = "checkout.confirm_payment"
	opManualPayment      = "checkout.manual_payment"

	defaultCurrency      = "INR"
	methodRazorpay       = "Razorpay"
	methodUPI            = "UPI"
	keyIdemManualPayment = "idem:payment:manual:%s"
)

var pincodePattern = regexp.MustCompile(`^\d{4,8}$`)

// Service orchestrates the checkout flow: provider order creation, payment
// signature verification, inventory decrement, and order persistence.
type Service struct {
	products  domproduct.Repository
	orders    domorder.Repository
	gateway   Gateway
	publisher domoutbox.Publisher
	idem      IdempotencyStore
	idGen     IDGenerator

	tel        observability.Telemetry
	log        observability.Logger
	reqCounter observability.Counter
	durHist    observability.Histogram
	conflicts  observability.Counter
}

func NewService(
	products domproduct.Repository,
	orders domorder.Repository,
	gateway Gateway,
	publisher domoutbox.Publisher,
	idem IdempotencyStore,
	idGen IDGenerator,
	tel observability.Telemetry,
) *Service {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Service{
		products:   products,
		orders:     orders,
		gateway:    gateway,
		publisher:  publisher,
		idem:       idem,
		idGen:      idGen,
		tel:        tel,
		log:        tel.Logger().With(observability.F("component", componentCheckout)),
		reqCounter: tel.Counter(observability.MCheckoutRequests),
		durHist:    tel.Histogram(observability.MCheckoutDuration),
		conflicts:  tel.Counter(observability.MInventoryStockConflicts),
	}
}

// LineItem is one requested purchase line. Title and Size travel into the
// order snapshot untouched.
type LineItem struct {
	ProductID string
	Title     string
	Qty       int64
	Size      string
}

func (li LineItem) quantity() int64 {
	if li.Qty <= 0 {
		return 1
	}
	return li.Qty
}

// ShippingInput carries the destination fields from the request body.
type ShippingInput struct {
	Name    string
	Phone   string
	Address string
	City    string
	State   string
	Pincode string
}

// Customer is the authenticated user as seen by the checkout flow; missing
// shipping fields default from it.
type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

type CreateGatewayOrderInput struct {
	AmountMinor int64
	Currency    string
	Items       []LineItem
	Coupon      string
}

type CreateGatewayOrderResult struct {
	RemoteOrderID string
	AmountMinor   int64
	Currency      string
	KeyID         string
}

// CreateGatewayOrder registers a provider order for the client to pay against.
// It mutates no local state and is safe to retry.
func (s *Service) CreateGatewayOrder(ctx context.Context, in CreateGatewayOrderInput) (_ *CreateGatewayOrderResult, err error) {
	ctx, finish := s.begin(ctx, opCreateGatewayOrder)
	defer func() { finish(err) }()

	if in.AmountMinor <= 0 {
		return nil, validation("amount must be a positive number of minor currency units")
	}
	if len(in.Items) == 0 {
		return nil, validation("at least one item is required")
	}

	currency := in.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	notes := map[string]string{"itemCount": fmt.Sprintf("%d", len(in.Items))}
	if in.Coupon != "" {
		// Coupon is metadata only; it never changes the charged amount here.
		notes["appliedCoupon"] = in.Coupon
	}

	remote, err := s.gateway.CreateOrder(ctx, in.AmountMinor, currency, s.idGen.NewID(), notes)
	if err != nil {
		return nil, err
	}

	keyID, err := s.gateway.KeyID(ctx)
	if err != nil {
		return nil, err
	}

	return &CreateGatewayOrderResult{
		RemoteOrderID: remote.ID,
		AmountMinor:   remote.AmountMinor,
		Currency:      remote.Currency,
		KeyID:         keyID,
	}, nil
}

type ConfirmGatewayPaymentInput struct {
	RemoteOrderID   string
	RemotePaymentID string
	Signature       string

	Items       []LineItem
	Coupon      string
	TotalMinor  int64
	Shipping    ShippingInput
	PaymentTag  string
}

type ConfirmGatewayPaymentResult struct {
	// Order is nil on the pure verification path (no items supplied).
	Order           *domorder.Order
	RemoteOrderID   string
	RemotePaymentID string
}

// ConfirmGatewayPayment verifies the provider callback signature and, when an
// item payload is present, decrements inventory and records the paid order.
// The signature check is the sole proof that the payment succeeded.
func (s *Service) ConfirmGatewayPayment(ctx context.Context, customer Customer, in ConfirmGatewayPaymentInput) (_ *ConfirmGatewayPaymentResult, err error) {
	ctx, finish := s.begin(ctx, opConfirmPayment)
	defer func() { finish(err) }()

	if in.RemoteOrderID == "" || in.RemotePaymentID == "" || in.Signature == "" {
		return nil, validation("orderId, paymentId and signature are required")
	}

	secret, err := s.gateway.Secret(ctx)
	if err != nil {
		return nil, err
	}
	if !razorpay.VerifySignature(in.RemoteOrderID, in.RemotePaymentID, in.Signature, secret) {
		return nil, validation("invalid payment signature")
	}

	result := &ConfirmGatewayPaymentResult{
		RemoteOrderID:   in.RemoteOrderID,
		RemotePaymentID: in.RemotePaymentID,
	}

	// No items means the order was created through another path; this call
	// only proves the payment and must not touch inventory or orders.
	if len(in.Items) == 0 {
		return result, nil
	}

	shipping, err := s.resolveShipping(in.Shipping, customer)
	if err != nil {
		return nil, err
	}

	reserved, snapshotTotal, err := s.reserveItems(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	total := in.TotalMinor
	if total <= 0 {
		total = snapshotTotal
	}

	method := in.PaymentTag
	if method == "" {
		method = methodRazorpay
	}

	ord, err := s.persistOrder(ctx, customer, in.Items, reserved, func(o *domorder.Order) {
		o.Shipping = shipping
		o.PaymentMethod = method
		o.TotalMinor = total
		o.Status = domorder.StatusPaid
		o.Coupon = in.Coupon
		o.RazorpayOrderID = in.RemoteOrderID
		o.RazorpayPaymentID = in.RemotePaymentID
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, ord, customer.Email)

	result.Order = ord
	return result, nil
}

type SubmitManualPaymentInput struct {
	TxnID         string
	AmountMinor   int64
	PaymentMethod string
	PayerName     string
	Items         []LineItem
	Coupon        string
	Shipping      ShippingInput
}

type SubmitManualPaymentResult struct {
	Order *domorder.Order
}

// SubmitManualPayment records an offline bank-transfer payment by transaction
// reference only. The gateway is never consulted; the order stays pending
// until an operator reconciles it.
func (s *Service) SubmitManualPayment(ctx context.Context, customer Customer, in SubmitManualPaymentInput) (_ *SubmitManualPaymentResult, err error) {
	ctx, finish := s.begin(ctx, opManualPayment)
	defer func() { finish(err) }()

	if in.TxnID == "" {
		return nil, validation("transaction id is required")
	}
	if in.AmountMinor <= 0 {
		return nil, validation("amount must be a positive number of minor currency units")
	}
	if len(in.Items) == 0 {
		return nil, validation("at least one item is required")
	}

	shipping, err := s.resolveShipping(in.Shipping, customer)
	if err != nil {
		return nil, err
	}

	if s.idem != nil {
		key := fmt.Sprintf(keyIdemManualPayment, in.TxnID)
		ok, claimErr := s.idem.Claim(ctx, key)
		if claimErr != nil {
			return nil, fmt.Errorf("checkout: idempotency claim: %w", claimErr)
		}
		if !ok {
			return nil, ErrDuplicateTransaction
		}
		// A failed attempt must not burn the transaction reference: hand the
		// claim back so the same reference can be resubmitted.
		defer func() {
			if err == nil {
				return
			}
			if relErr := s.idem.Release(context.WithoutCancel(ctx), key); relErr != nil {
				logctx.FromOr(ctx, s.log).Error("idempotency_release_failed",
					observability.F("key", key),
					observability.F("error", relErr.Error()),
				)
			}
		}()
	}

	reserved, snapshotTotal, err := s.reserveItems(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	total := in.AmountMinor
	if total <= 0 {
		total = snapshotTotal
	}

	method := in.PaymentMethod
	if method == "" {
		method = methodUPI
	}
	payer := in.PayerName
	if payer == "" {
		payer = shipping.Name
	}

	ord, err := s.persistOrder(ctx, customer, in.Items, reserved, func(o *domorder.Order) {
		o.Shipping = shipping
		o.PaymentMethod = method
		o.TotalMinor = total
		o.Status = domorder.StatusPending
		o.Coupon = in.Coupon
		o.UPI = &domorder.UPIDetails{TxnID: in.TxnID, PayerName: payer}
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, ord, customer.Email)

	return &SubmitManualPaymentResult{Order: ord}, nil
}

func (s *Service) resolveShipping(in ShippingInput, customer Customer) (domorder.Shipping, error) {
	if in.City == "" || in.State == "" || in.Pincode == "" {
		return domorder.Shipping{}, validation("city, state and pincode are required")
	}
	if !pincodePattern.MatchString(in.Pincode) {
		return domorder.Shipping{}, validation("pincode must be 4 to 8 digits")
	}

	shipping := domorder.Shipping{
		Name:    in.Name,
		Phone:   in.Phone,
		Address: in.Address,
		City:    in.City,
		State:   in.State,
		Pincode: in.Pincode,
	}
	if shipping.Name == "" {
		shipping.Name = customer.Name
	}
	if shipping.Phone == "" {
		shipping.Phone = customer.Phone
	}
	return shipping, nil
}

type reservation struct {
	productID string
	size      string
	qty       int64
}

// reserveItems applies a conditional decrement per line item. The batch is
// all-or-nothing: any insufficient stock releases every decrement already
// applied and surfaces an InsufficientStockError for the failing line.
// Items whose product (or size code) cannot be resolved are skipped.
func (s *Service) reserveItems(ctx context.Context, items []LineItem) (applied []reservation, totalMinor int64, err error) {
	logger := logctx.FromOr(ctx, s.log)

	for _, item := range items {
		if item.ProductID == "" {
			continue
		}

		p, getErr := s.products.GetByID(ctx, item.ProductID)
		if errors.Is(getErr, domproduct.ErrNotFound) {
			continue
		}
		if getErr != nil {
			s.release(ctx, applied)
			return nil, 0, fmt.Errorf("checkout: load product %s: %w", item.ProductID, getErr)
		}

		qty := item.quantity()

		switch {
		case p.TrackInventoryBySize && item.Size != "":
			available, tracked := p.SizeQty(item.Size)
			if !tracked {
				continue
			}
			decErr := s.products.DecrementSizeStock(ctx, p.ID, item.Size, qty)
			if errors.Is(decErr, domproduct.ErrInsufficientStock) {
				s.conflicts.Add(1, observability.L("product_id", p.ID))
				s.release(ctx, applied)
				return nil, 0, &InsufficientStockError{
					ProductID: p.ID,
					Title:     p.Title,
					Size:      item.Size,
					Requested: qty,
					Available: available,
				}
			}
			if decErr != nil {
				s.release(ctx, applied)
				return nil, 0, fmt.Errorf("checkout: decrement %s size %s: %w", p.ID, item.Size, decErr)
			}
			applied = append(applied, reservation{productID: p.ID, size: item.Size, qty: qty})

		case !p.TrackInventoryBySize:
			decErr := s.products.DecrementStock(ctx, p.ID, qty)
			if errors.Is(decErr, domproduct.ErrInsufficientStock) {
				s.conflicts.Add(1, observability.L("product_id", p.ID))
				s.release(ctx, applied)
				return nil, 0, &InsufficientStockError{
					ProductID: p.ID,
					Title:     p.Title,
					Requested: qty,
					Available: p.Stock,
				}
			}
			if decErr != nil {
				s.release(ctx, applied)
				return nil, 0, fmt.Errorf("checkout: decrement %s: %w", p.ID, decErr)
			}
			applied = append(applied, reservation{productID: p.ID, qty: qty})

		default:
			// Size-tracked product without a size on the line: no stock effect.
			logger.Debug("checkout_item_without_size_skipped",
				observability.F("product_id", p.ID),
			)
			continue
		}

		totalMinor += p.PriceMinor * qty
	}

	return applied, totalMinor, nil
}

// release undoes reservations after a later failure in the same batch.
func (s *Service) release(ctx context.Context, applied []reservation) {
	logger := logctx.FromOr(ctx, s.log)
	for _, r := range applied {
		var err error
		if r.size != "" {
			err = s.products.IncrementSizeStock(ctx, r.productID, r.size, r.qty)
		} else {
			err = s.products.IncrementStock(ctx, r.productID, r.qty)
		}
		if err != nil {
			logger.Error("checkout_reservation_release_failed",
				observability.F("product_id", r.productID),
				observability.F("size", r.size),
				observability.F("qty", r.qty),
				observability.F("error", err.Error()),
			)
		}
	}
}

func (s *Service) persistOrder(ctx context.Context, customer Customer, items []LineItem, reserved []reservation, shape func(*domorder.Order)) (*domorder.Order, error) {
	snapshot := make([]domorder.Item, 0, len(items))
	for _, it := range items {
		snapshot = append(snapshot, domorder.Item{
			ProductID: it.ProductID,
			Title:     it.Title,
			Qty:       it.quantity(),
			Size:      it.Size,
		})
	}

	ord, err := domorder.New(s.idGen.NewID(), customer.ID, snapshot, domorder.StatusPending)
	if err != nil {
		s.release(ctx, reserved)
		return nil, err
	}
	shape(ord)

	if err := s.orders.Insert(ctx, ord); err != nil {
		// Inventory was already decremented; hand the units back rather than
		// leaving them stranded on a failed persist.
		s.release(ctx, reserved)
		return nil, fmt.Errorf("checkout: persist order: %w", err)
	}
	return ord, nil
}

// notify dispatches the order-confirmation event. It never blocks the
// response path and its failure never unwinds the order.
func (s *Service) notify(ctx context.Context, ord *domorder.Order, email string) {
	if s.publisher == nil {
		return
	}
	logger := logctx.FromOr(ctx, s.log)
	if err := s.publisher.Publish(context.WithoutCancel(ctx), domorder.NewOrderPlacedEvent(ord, email)); err != nil {
		logger.Warn("order_notification_enqueue_failed",
			observability.F("order_id", ord.ID),
			observability.F("error", err.Error()),
		)
	}
}

// begin opens a span and returns a closer recording RED metrics and the
// outcome log line for the operation.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := s.tel.Tracer().Start(ctx, op,
		attribute.String("operation", op),
	)
	start := time.Now()
	logger := logctx.FromOr(ctx, s.log)

	return ctx, func(err error) {
		lat := time.Since(start).Seconds()
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		s.reqCounter.Add(1,
			observability.L("operation", op),
			observability.L("outcome", outcome),
		)
		s.durHist.Observe(lat, observability.L("operation", op))

		fields := []observability.Field{
			observability.F("operation", op),
			observability.F("outcome", outcome),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("checkout_done", fields...)
	}
}
