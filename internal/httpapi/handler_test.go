package httpapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/storefront/internal/auth"
	"github.com/Zhima-Mochi/storefront/internal/checkout"
	domproduct "github.com/Zhima-Mochi/storefront/internal/domain/product"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/storefront/internal/razorpay"
)

const (
	testJWTSecret     = "jwt-secret"
	testGatewaySecret = "gateway-secret"
)

func signPayment(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testGatewaySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type fakeGateway struct {
	configured bool
}

func (g *fakeGateway) CreateOrder(_ context.Context, amountMinor int64, currency, _ string, _ map[string]string) (*razorpay.RemoteOrder, error) {
	if !g.configured {
		return nil, razorpay.ErrNotConfigured
	}
	return &razorpay.RemoteOrder{ID: "order_remote_1", AmountMinor: amountMinor, Currency: currency}, nil
}

func (g *fakeGateway) KeyID(context.Context) (string, error) {
	if !g.configured {
		return "", razorpay.ErrNotConfigured
	}
	return "key_1", nil
}

func (g *fakeGateway) Secret(context.Context) (string, error) {
	if !g.configured {
		return "", razorpay.ErrNotConfigured
	}
	return testGatewaySecret, nil
}

type memIdem struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func (m *memIdem) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed == nil {
		m.claimed = make(map[string]bool)
	}
	if m.claimed[key] {
		return false, nil
	}
	m.claimed[key] = true
	return true, nil
}

func (m *memIdem) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, key)
	return nil
}

type seqID struct{ n int }

func (s *seqID) NewID() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

type mapStatusCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMapStatusCache() *mapStatusCache {
	return &mapStatusCache{values: make(map[string]string)}
}

func (c *mapStatusCache) Get(_ context.Context, orderID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[orderID]
	return v, ok
}

func (c *mapStatusCache) Set(_ context.Context, orderID, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[orderID] = status
}

type testServer struct {
	router   http.Handler
	products *memory.ProductRepository
	orders   *memory.OrderRepository
	cache    *mapStatusCache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	products := memory.NewProductRepository()
	orders := memory.NewOrderRepository()
	svc := checkout.NewService(products, orders, &fakeGateway{configured: true}, nil, &memIdem{}, &seqID{}, nil)
	cache := newMapStatusCache()
	h := NewHandler(svc, products, orders, cache, testJWTSecret, nil)
	return &testServer{router: h.Router(), products: products, orders: orders, cache: cache}
}

func (s *testServer) seedProduct(t *testing.T, id string, stock, priceMinor int64) {
	t.Helper()
	err := s.products.Save(context.Background(), &domproduct.Product{
		ID:         id,
		Title:      "Product " + id,
		PriceMinor: priceMinor,
		Stock:      stock,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
		}
	}
	return rec, env
}

func userToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(testJWTSecret, auth.Claims{
		UserID: "user-1",
		Name:   "Asha",
		Email:  "asha@example.com",
		Phone:  "9990001111",
	})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func shippingBody() map[string]any {
	return map[string]any{"city": "Mumbai", "state": "MH", "pincode": "400001"}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("got %d, want 200", rec.Code)
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/payment/create-order", "", map[string]any{
		"amount": 49900,
		"items":  []map[string]any{{"productId": "P1", "qty": 2}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, body %s", rec.Code, rec.Body.String())
	}
	if !env.OK {
		t.Fatal("expected ok envelope")
	}
	data := env.Data.(map[string]any)
	if data["amount"].(float64) != 49900 {
		t.Errorf("amount must be echoed, got %v", data["amount"])
	}
	if data["keyId"].(string) == "" {
		t.Error("key id must be returned for the client widget")
	}
	if data["orderId"].(string) == "" {
		t.Error("remote order id must be returned")
	}
}

func TestCreateOrderEndpoint_BadAmount(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/payment/create-order", "", map[string]any{
		"amount": 0,
		"items":  []map[string]any{{"productId": "P1"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
	if env.OK {
		t.Error("envelope must report failure")
	}
}

func TestCreateOrderEndpoint_InvalidJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/payment/create-order", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/payment/verify"},
		{http.MethodPost, "/payment/manual"},
		{http.MethodGet, "/orders"},
		{http.MethodGet, "/orders/ord-1"},
	} {
		rec, _ := s.do(t, tc.method, tc.path, "", map[string]any{})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: got %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

func TestVerifyEndpoint_FullCheckout(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "P1", 5, 24950)
	token := userToken(t)

	body := map[string]any{
		"razorpayOrderId":   "o1",
		"razorpayPaymentId": "p1",
		"razorpaySignature": signPayment("o1", "p1"),
		"items":             []map[string]any{{"productId": "P1", "title": "Tee", "qty": 2}},
		"total":             49900,
	}
	for k, v := range shippingBody() {
		body[k] = v
	}

	rec, env := s.do(t, http.MethodPost, "/payment/verify", token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, body %s", rec.Code, rec.Body.String())
	}
	if env.Message != "payment verified" {
		t.Errorf("unexpected message %q", env.Message)
	}

	data := env.Data.(map[string]any)
	ord, ok := data["order"].(map[string]any)
	if !ok {
		t.Fatalf("expected order in response, got %v", data)
	}
	if ord["status"].(string) != "paid" {
		t.Errorf("expected paid order, got %v", ord["status"])
	}
	if ord["razorpayPaymentId"].(string) != "p1" {
		t.Error("provider payment id must be recorded")
	}

	p, err := s.products.GetByID(context.Background(), "P1")
	if err != nil {
		t.Fatalf("load product: %v", err)
	}
	if p.Stock != 3 {
		t.Errorf("expected stock 3 after checkout, got %d", p.Stock)
	}
}

func TestVerifyEndpoint_BadSignature(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "P1", 5, 100)
	token := userToken(t)

	body := map[string]any{
		"razorpayOrderId":   "o1",
		"razorpayPaymentId": "p1",
		"razorpaySignature": "wrong",
		"items":             []map[string]any{{"productId": "P1", "qty": 1}},
	}
	for k, v := range shippingBody() {
		body[k] = v
	}

	rec, env := s.do(t, http.MethodPost, "/payment/verify", token, body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
	if env.OK {
		t.Error("envelope must report failure")
	}
}

func TestVerifyEndpoint_VerificationOnly(t *testing.T) {
	s := newTestServer(t)
	token := userToken(t)

	rec, env := s.do(t, http.MethodPost, "/payment/verify", token, map[string]any{
		"razorpayOrderId":   "o1",
		"razorpayPaymentId": "p1",
		"razorpaySignature": signPayment("o1", "p1"),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, body %s", rec.Code, rec.Body.String())
	}
	data := env.Data.(map[string]any)
	if _, present := data["order"]; present {
		t.Error("verification-only response must omit the order")
	}
	if s.orders.Len() != 0 {
		t.Errorf("expected no orders, got %d", s.orders.Len())
	}
}

func TestVerifyEndpoint_InsufficientStock(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "P1", 1, 100)
	token := userToken(t)

	body := map[string]any{
		"razorpayOrderId":   "o1",
		"razorpayPaymentId": "p1",
		"razorpaySignature": signPayment("o1", "p1"),
		"items":             []map[string]any{{"productId": "P1", "qty": 2}},
	}
	for k, v := range shippingBody() {
		body[k] = v
	}

	rec, _ := s.do(t, http.MethodPost, "/payment/verify", token, body)
	if rec.Code != http.StatusConflict {
		t.Errorf("got %d, want 409", rec.Code)
	}
}

func TestManualEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "P1", 5, 100)
	token := userToken(t)

	body := map[string]any{
		"transactionId": "TXN-789",
		"amount":        200,
		"items":         []map[string]any{{"productId": "P1", "qty": 2}},
	}
	for k, v := range shippingBody() {
		body[k] = v
	}

	rec, env := s.do(t, http.MethodPost, "/payment/manual", token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, body %s", rec.Code, rec.Body.String())
	}
	ord := env.Data.(map[string]any)
	if ord["status"].(string) != "pending" {
		t.Errorf("manual payment must stay pending, got %v", ord["status"])
	}
	upi := ord["upi"].(map[string]any)
	if upi["txnId"].(string) != "TXN-789" {
		t.Error("transaction id must be recorded on the order")
	}

	// Same transaction id again is a conflict, not a second order.
	rec, _ = s.do(t, http.MethodPost, "/payment/manual", token, body)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate txn: got %d, want 409", rec.Code)
	}
	if s.orders.Len() != 1 {
		t.Errorf("expected one order, got %d", s.orders.Len())
	}
}

func TestGetOrder_OwnershipAndCache(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "P1", 5, 100)
	token := userToken(t)

	body := map[string]any{
		"transactionId": "TXN-1",
		"amount":        100,
		"items":         []map[string]any{{"productId": "P1", "qty": 1}},
	}
	for k, v := range shippingBody() {
		body[k] = v
	}
	rec, env := s.do(t, http.MethodPost, "/payment/manual", token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("seed order: got %d", rec.Code)
	}
	orderID := env.Data.(map[string]any)["id"].(string)

	rec, env = s.do(t, http.MethodGet, "/orders/"+orderID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, body %s", rec.Code, rec.Body.String())
	}
	if env.Data.(map[string]any)["status"].(string) != "pending" {
		t.Error("unexpected order status")
	}

	if status, hit := s.cache.Get(context.Background(), "user-1:"+orderID); !hit || status != "pending" {
		t.Errorf("status cache not populated: %q %v", status, hit)
	}

	// Another user's token must not see the order, even with the status cached.
	other, err := auth.GenerateToken(testJWTSecret, auth.Claims{UserID: "user-2"})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	rec, _ = s.do(t, http.MethodGet, "/orders/"+orderID, other, nil)
	if rec.Code == http.StatusOK {
		t.Error("foreign order must not be readable")
	}

	rec, _ = s.do(t, http.MethodGet, "/orders/missing", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing order: got %d, want 404", rec.Code)
	}
}

func TestListOrders_ScopedToUser(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "P1", 5, 100)
	token := userToken(t)

	body := map[string]any{
		"transactionId": "TXN-1",
		"amount":        100,
		"items":         []map[string]any{{"productId": "P1", "qty": 1}},
	}
	for k, v := range shippingBody() {
		body[k] = v
	}
	if rec, _ := s.do(t, http.MethodPost, "/payment/manual", token, body); rec.Code != http.StatusOK {
		t.Fatalf("seed order: got %d", rec.Code)
	}

	rec, env := s.do(t, http.MethodGet, "/orders", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	if got := len(env.Data.([]any)); got != 1 {
		t.Errorf("expected 1 order, got %d", got)
	}

	other, err := auth.GenerateToken(testJWTSecret, auth.Claims{UserID: "user-2"})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	rec, env = s.do(t, http.MethodGet, "/orders", other, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	if env.Data != nil {
		if got := len(env.Data.([]any)); got != 0 {
			t.Errorf("foreign user must see no orders, got %d", got)
		}
	}
}

func TestGetProduct(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, "P1", 5, 100)

	rec, env := s.do(t, http.MethodGet, "/products/P1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	if env.Data.(map[string]any)["id"].(string) != "P1" {
		t.Error("unexpected product payload")
	}

	rec, _ = s.do(t, http.MethodGet, "/products/missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing product: got %d, want 404", rec.Code)
	}
}
