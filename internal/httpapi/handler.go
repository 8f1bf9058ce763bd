package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/storefront/internal/auth"
	"github.com/Zhima-Mochi/storefront/internal/checkout"
	domorder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	domproduct "github.com/Zhima-Mochi/storefront/internal/domain/product"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/razorpay"
	"github.com/go-chi/chi/v5"
)

const componentHTTPHandler = "http_server"

// StatusCache fronts order status reads; nil disables caching. Keys are
// owner-scoped, see statusCacheKey.
type StatusCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, status string)
}

type Handler struct {
	checkout    *checkout.Service
	products    domproduct.Repository
	orders      domorder.Repository
	statusCache StatusCache
	jwtSecret   string
	log         observability.Logger
	tel         observability.Telemetry
}

func NewHandler(
	checkoutSvc *checkout.Service,
	products domproduct.Repository,
	orders domorder.Repository,
	statusCache StatusCache,
	jwtSecret string,
	tel observability.Telemetry,
) *Handler {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Handler{
		checkout:    checkoutSvc,
		products:    products,
		orders:      orders,
		statusCache: statusCache,
		jwtSecret:   jwtSecret,
		log:         tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:         tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Observability(h.log, h.tel))

	r.Get("/health", h.handleHealth)
	r.Get("/products", h.handleListProducts)
	r.Get("/products/{id}", h.handleGetProduct)

	r.Post("/payment/create-order", h.handleCreateGatewayOrder)

	r.Group(func(r chi.Router) {
		r.Use(auth.Require(h.jwtSecret))
		r.Post("/payment/verify", h.handleVerifyPayment)
		r.Post("/payment/manual", h.handleManualPayment)
		r.Get("/orders", h.handleListOrders)
		r.Get("/orders/{id}", h.handleGetOrder)
	})

	return r
}

type lineItemPayload struct {
	ProductID string `json:"productId"`
	Title     string `json:"title,omitempty"`
	Qty       int64  `json:"qty"`
	Size      string `json:"size,omitempty"`
}

func toLineItems(items []lineItemPayload) []checkout.LineItem {
	out := make([]checkout.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, checkout.LineItem{
			ProductID: it.ProductID,
			Title:     it.Title,
			Qty:       it.Qty,
			Size:      it.Size,
		})
	}
	return out
}

type createGatewayOrderRequest struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency,omitempty"`
	Items         []lineItemPayload `json:"items"`
	AppliedCoupon string            `json:"appliedCoupon,omitempty"`
}

type createGatewayOrderData struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}

func (h *Handler) handleCreateGatewayOrder(w http.ResponseWriter, r *http.Request) {
	var req createGatewayOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := h.checkout.CreateGatewayOrder(r.Context(), checkout.CreateGatewayOrderInput{
		AmountMinor: req.Amount,
		Currency:    req.Currency,
		Items:       toLineItems(req.Items),
		Coupon:      req.AppliedCoupon,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeOK(w, http.StatusOK, "", createGatewayOrderData{
		OrderID:  result.RemoteOrderID,
		Amount:   result.AmountMinor,
		Currency: result.Currency,
		KeyID:    result.KeyID,
	})
}

type shippingPayload struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

func (p shippingPayload) toInput() checkout.ShippingInput {
	return checkout.ShippingInput{
		Name:    p.Name,
		Phone:   p.Phone,
		Address: p.Address,
		City:    p.City,
		State:   p.State,
		Pincode: p.Pincode,
	}
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string            `json:"razorpayOrderId"`
	RazorpayPaymentID string            `json:"razorpayPaymentId"`
	RazorpaySignature string            `json:"razorpaySignature"`
	Items             []lineItemPayload `json:"items,omitempty"`
	AppliedCoupon     string            `json:"appliedCoupon,omitempty"`
	Total             int64             `json:"total,omitempty"`
	shippingPayload
}

type verifyPaymentData struct {
	Order             *domorder.Order `json:"order,omitempty"`
	RazorpayOrderID   string          `json:"razorpayOrderId"`
	RazorpayPaymentID string          `json:"razorpayPaymentId"`
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req verifyPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := h.checkout.ConfirmGatewayPayment(r.Context(), customerFromClaims(claims), checkout.ConfirmGatewayPaymentInput{
		RemoteOrderID:   req.RazorpayOrderID,
		RemotePaymentID: req.RazorpayPaymentID,
		Signature:       req.RazorpaySignature,
		Items:           toLineItems(req.Items),
		Coupon:          req.AppliedCoupon,
		TotalMinor:      req.Total,
		Shipping:        req.shippingPayload.toInput(),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if result.Order != nil && h.statusCache != nil {
		h.statusCache.Set(r.Context(), statusCacheKey(result.Order.UserID, result.Order.ID), string(result.Order.Status))
	}

	writeOK(w, http.StatusOK, "payment verified", verifyPaymentData{
		Order:             result.Order,
		RazorpayOrderID:   result.RemoteOrderID,
		RazorpayPaymentID: result.RemotePaymentID,
	})
}

type manualPaymentRequest struct {
	TransactionID string            `json:"transactionId"`
	Amount        int64             `json:"amount"`
	PaymentMethod string            `json:"paymentMethod,omitempty"`
	PayerName     string            `json:"payerName,omitempty"`
	Items         []lineItemPayload `json:"items"`
	AppliedCoupon string            `json:"appliedCoupon,omitempty"`
	shippingPayload
}

func (h *Handler) handleManualPayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req manualPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := h.checkout.SubmitManualPayment(r.Context(), customerFromClaims(claims), checkout.SubmitManualPaymentInput{
		TxnID:         req.TransactionID,
		AmountMinor:   req.Amount,
		PaymentMethod: req.PaymentMethod,
		PayerName:     req.PayerName,
		Items:         toLineItems(req.Items),
		Coupon:        req.AppliedCoupon,
		Shipping:      req.shippingPayload.toInput(),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if h.statusCache != nil {
		h.statusCache.Set(r.Context(), statusCacheKey(result.Order.UserID, result.Order.ID), string(result.Order.Status))
	}

	writeOK(w, http.StatusOK, "payment recorded, awaiting confirmation", result.Order)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", products)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", p)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "authentication required")
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", orders)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	orderID := chi.URLParam(r, "id")

	// The cache key carries the owner, so a hit already proves ownership.
	if h.statusCache != nil {
		if status, hit := h.statusCache.Get(r.Context(), statusCacheKey(claims.UserID, orderID)); hit {
			writeOK(w, http.StatusOK, "", map[string]string{"id": orderID, "status": status})
			return
		}
	}

	ord, err := h.orders.FindByID(r.Context(), orderID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if ord.UserID != claims.UserID {
		writeFail(w, http.StatusNotFound, "order not found")
		return
	}

	if h.statusCache != nil {
		h.statusCache.Set(r.Context(), statusCacheKey(ord.UserID, ord.ID), string(ord.Status))
	}
	writeOK(w, http.StatusOK, "", ord)
}

func statusCacheKey(userID, orderID string) string {
	return userID + ":" + orderID
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func customerFromClaims(claims *auth.Claims) checkout.Customer {
	return checkout.Customer{
		ID:    claims.UserID,
		Name:  claims.Name,
		Email: claims.Email,
		Phone: claims.Phone,
	}
}

// envelope is the uniform response shape of every JSON endpoint.
type envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{OK: true, Message: message, Data: data})
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{OK: false, Message: message})
}

// writeDomainError maps the checkout error taxonomy onto client-facing
// statuses. Anything unrecognized becomes a generic 500 so internals never
// leak to the client.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *checkout.ValidationError
		stockErr      *checkout.InsufficientStockError
		gatewayErr    *razorpay.GatewayError
	)

	switch {
	case errors.As(err, &validationErr):
		writeFail(w, http.StatusBadRequest, validationErr.Reason)
	case errors.As(err, &stockErr):
		writeFail(w, http.StatusConflict, stockErr.Error())
	case errors.Is(err, checkout.ErrDuplicateTransaction):
		writeFail(w, http.StatusConflict, "transaction already submitted")
	case errors.Is(err, razorpay.ErrNotConfigured):
		writeFail(w, http.StatusInternalServerError, "payment gateway is not configured")
	case errors.As(err, &gatewayErr):
		writeFail(w, http.StatusBadGateway, "payment gateway request failed")
	case errors.Is(err, domproduct.ErrNotFound), errors.Is(err, domorder.ErrNotFound):
		writeFail(w, http.StatusNotFound, "not found")
	default:
		h.log.Error("request_failed", observability.F("error", err.Error()))
		writeFail(w, http.StatusInternalServerError, "internal error")
	}
}
