package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateOrder_EchoesAmount(t *testing.T) {
	var gotAuthUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthUser, _, _ = r.BasicAuth()

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		// Echo the requested amount back like the real provider.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "order_abc",
			"amount":   req["amount"],
			"currency": req["currency"],
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, StaticCredentials("key_1", "secret_1"), nil)

	remote, err := client.CreateOrder(context.Background(), 49900, "INR", "rcpt-1", map[string]string{"appliedCoupon": "SAVE10"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remote.ID != "order_abc" {
		t.Errorf("expected order_abc, got %s", remote.ID)
	}
	if remote.AmountMinor != 49900 {
		t.Errorf("expected amount 49900 echoed, got %d", remote.AmountMinor)
	}
	if remote.Currency != "INR" {
		t.Errorf("expected INR, got %s", remote.Currency)
	}
	if gotAuthUser != "key_1" {
		t.Errorf("expected basic auth key id, got %q", gotAuthUser)
	}
}

func TestCreateOrder_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"amount": 100})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, StaticCredentials("key_1", "secret_1"), nil)

	_, err := client.CreateOrder(context.Background(), 100, "INR", "", nil)
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
}

func TestCreateOrder_ProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"description":"bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, StaticCredentials("key_1", "secret_1"), nil)

	_, err := client.CreateOrder(context.Background(), 100, "INR", "", nil)
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
}

func TestCreateOrder_NotConfigured(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, StaticCredentials("", ""), nil)

	_, err := client.CreateOrder(context.Background(), 100, "INR", "", nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if called {
		t.Error("no provider call should happen without credentials")
	}
}

type staticSettings struct {
	creds Credentials
	err   error
	calls int
}

func (s *staticSettings) GatewayCredentials(context.Context) (Credentials, error) {
	s.calls++
	return s.creds, s.err
}

func TestEnvThenSettings(t *testing.T) {
	t.Run("env wins", func(t *testing.T) {
		settings := &staticSettings{creds: Credentials{KeyID: "db_key", KeySecret: "db_secret"}}
		source := EnvThenSettings(Credentials{KeyID: "env_key", KeySecret: "env_secret"}, settings)

		creds, err := source(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if creds.KeyID != "env_key" {
			t.Errorf("expected env credentials, got %s", creds.KeyID)
		}
		if settings.calls != 0 {
			t.Error("settings must not be consulted when env credentials are complete")
		}
	})

	t.Run("settings fallback consulted per call", func(t *testing.T) {
		settings := &staticSettings{creds: Credentials{KeyID: "db_key", KeySecret: "db_secret"}}
		source := EnvThenSettings(Credentials{}, settings)

		for i := 0; i < 2; i++ {
			creds, err := source(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if creds.KeyID != "db_key" {
				t.Errorf("expected settings credentials, got %s", creds.KeyID)
			}
		}
		if settings.calls != 2 {
			t.Errorf("expected settings consulted on every call, got %d", settings.calls)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		source := EnvThenSettings(Credentials{}, &staticSettings{})
		if _, err := source(context.Background()); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	})
}
