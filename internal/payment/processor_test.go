package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fairyhunter13/vending-kiosk-service/internal/config"
)

func TestHTTPProcessorCreateTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key_id" || pass != "key_secret" {
			t.Errorf("missing basic auth")
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req["amount"] != float64(550) || req["receipt"] != "order_abc" {
			t.Errorf("unexpected payload: %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "txn_42"})
	}))
	defer srv.Close()

	p := NewHTTPProcessor(config.Config{
		ProcessorURL:       srv.URL,
		ProcessorKeyID:     "key_id",
		ProcessorKeySecret: "key_secret",
	})
	ref, err := p.CreateTransaction(context.Background(), 550, "order_abc")
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if ref != "txn_42" {
		t.Fatalf("expected txn_42, got %q", ref)
	}
}

func TestHTTPProcessorErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewHTTPProcessor(config.Config{ProcessorURL: srv.URL})
	if _, err := p.CreateTransaction(context.Background(), 100, "order_x"); err == nil {
		t.Fatalf("expected error on non-2xx")
	}
}

func TestHTTPProcessorMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	p := NewHTTPProcessor(config.Config{ProcessorURL: srv.URL})
	if _, err := p.CreateTransaction(context.Background(), 100, "order_x"); err == nil {
		t.Fatalf("expected error on missing id")
	}
}
