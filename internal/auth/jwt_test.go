package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	in := Claims{UserID: "user-1", Name: "Asha", Email: "asha@example.com", Phone: "9990001111"}

	token, err := GenerateToken("secret", in)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	out, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.UserID != in.UserID || out.Name != in.Name || out.Email != in.Email || out.Phone != in.Phone {
		t.Errorf("claims mangled in transit: %+v", out)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseToken("other", token); err == nil {
		t.Error("token signed with another secret must be rejected")
	}
}

func TestParseToken_Garbage(t *testing.T) {
	if _, err := ParseToken("secret", "not.a.token"); err == nil {
		t.Error("malformed token must be rejected")
	}
}

func TestRequire(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if !ok {
			t.Error("claims missing from request context")
		} else if claims.UserID != "user-1" {
			t.Errorf("unexpected user id %q", claims.UserID)
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := Require("secret")(next)

	token, err := GenerateToken("secret", Claims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"no bearer prefix", token, http.StatusUnauthorized},
		{"tampered", "Bearer " + token + "x", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("got status %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
