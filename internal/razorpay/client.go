package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/observability"
)

// ErrNotConfigured signals that no gateway credentials could be resolved.
// It maps to a server-side configuration failure, never a client error.
var ErrNotConfigured = errors.New("razorpay: credentials not configured")

// GatewayError wraps any failure of the remote provider call, including
// timeouts, non-2xx responses, and malformed response bodies.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string { return fmt.Sprintf("razorpay: %s: %v", e.Op, e.Err) }
func (e *GatewayError) Unwrap() error { return e.Err }

// Credentials is one resolved key pair.
type Credentials struct {
	KeyID     string
	KeySecret string
}

func (c Credentials) complete() bool { return c.KeyID != "" && c.KeySecret != "" }

// CredentialSource resolves gateway credentials per call, so a runtime update
// of the settings document takes effect without a restart.
type CredentialSource func(ctx context.Context) (Credentials, error)

// SettingsSource is the persisted fallback behind the environment credentials.
type SettingsSource interface {
	GatewayCredentials(ctx context.Context) (Credentials, error)
}

// EnvThenSettings builds the resolution chain: environment configuration wins,
// the settings document is consulted on every call it falls through to.
func EnvThenSettings(env Credentials, settings SettingsSource) CredentialSource {
	return func(ctx context.Context) (Credentials, error) {
		if env.complete() {
			return env, nil
		}
		if settings == nil {
			return Credentials{}, ErrNotConfigured
		}
		creds, err := settings.GatewayCredentials(ctx)
		if err != nil || !creds.complete() {
			return Credentials{}, ErrNotConfigured
		}
		return creds, nil
	}
}

// StaticCredentials is a CredentialSource for fixtures and tests.
func StaticCredentials(keyID, keySecret string) CredentialSource {
	return func(context.Context) (Credentials, error) {
		c := Credentials{KeyID: keyID, KeySecret: keySecret}
		if !c.complete() {
			return Credentials{}, ErrNotConfigured
		}
		return c, nil
	}
}

// RemoteOrder is the provider-side order, held only for one checkout attempt.
type RemoteOrder struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
}

const (
	endpointCreateOrder = "orders.create"
	componentGateway    = "razorpay_client"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      CredentialSource

	log        observability.Logger
	reqCounter observability.Counter
	reqHist    observability.Histogram
}

func NewClient(baseURL string, timeout time.Duration, creds CredentialSource, tel observability.Telemetry) *Client {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		creds:      creds,
		log:        tel.Logger().With(observability.F("component", componentGateway)),
		reqCounter: tel.Counter(observability.MGatewayRequests),
		reqHist:    tel.Histogram(observability.MGatewayRequestDuration),
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// CreateOrder registers an order with the provider and returns its identifier.
// The amount is already in minor currency units; no scaling happens here.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*RemoteOrder, error) {
	creds, err := c.creds(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(createOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return nil, &GatewayError{Op: endpointCreateOrder, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, &GatewayError{Op: endpointCreateOrder, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(creds.KeyID, creds.KeySecret)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	outcome := "success"
	defer func() {
		c.reqCounter.Add(1,
			observability.L("endpoint", endpointCreateOrder),
			observability.L("outcome", outcome),
		)
		c.reqHist.Observe(time.Since(start).Seconds(),
			observability.L("endpoint", endpointCreateOrder),
		)
	}()
	if err != nil {
		outcome = "error"
		return nil, &GatewayError{Op: endpointCreateOrder, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "error"
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("gateway_order_create_failed",
			observability.F("status", resp.StatusCode),
			observability.F("body", string(snippet)),
		)
		return nil, &GatewayError{Op: endpointCreateOrder, Err: fmt.Errorf("provider returned status %d", resp.StatusCode)}
	}

	var remote RemoteOrder
	if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
		outcome = "error"
		return nil, &GatewayError{Op: endpointCreateOrder, Err: fmt.Errorf("decode response: %w", err)}
	}
	if remote.ID == "" {
		outcome = "error"
		return nil, &GatewayError{Op: endpointCreateOrder, Err: errors.New("response missing order id")}
	}

	return &remote, nil
}

// KeyID resolves the public key id the browser needs to open the payment UI.
func (c *Client) KeyID(ctx context.Context) (string, error) {
	creds, err := c.creds(ctx)
	if err != nil {
		return "", err
	}
	return creds.KeyID, nil
}

// Secret resolves the shared secret used for signature verification.
func (c *Client) Secret(ctx context.Context) (string, error) {
	creds, err := c.creds(ctx)
	if err != nil {
		return "", err
	}
	return creds.KeySecret, nil
}
