package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fairyhunter13/vending-kiosk-service/internal/checkout"
	"github.com/fairyhunter13/vending-kiosk-service/internal/config"
	"github.com/fairyhunter13/vending-kiosk-service/internal/model"
	"github.com/fairyhunter13/vending-kiosk-service/internal/payment"
	"github.com/fairyhunter13/vending-kiosk-service/internal/scan"
	"github.com/fairyhunter13/vending-kiosk-service/internal/store"
)

const testSecret = "kiosk-test-secret"

type fakeProcessor struct{ n int }

func (f *fakeProcessor) CreateTransaction(ctx context.Context, amountCents int64, receipt string) (string, error) {
	f.n++
	return fmt.Sprintf("txn_%d", f.n), nil
}

func setupApp(t *testing.T) (*store.Store, *payment.Verifier, http.Handler) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	cfg := config.Load()
	v := payment.NewVerifier(testSecret, st)
	co := checkout.New(st, &fakeProcessor{})
	l := scan.NewListener(func(ctx context.Context, payload []byte) {}, 0)
	app := NewApp(cfg, st, co, v, l)
	return st, v, NewRouter(app)
}

func seedCatalog(t *testing.T, st *store.Store) model.User {
	t.Helper()
	ctx := context.Background()
	u, err := st.CreateUser(ctx, model.User{Name: "U1", Email: "u1@example.com", CardID: "AA:BB:CC:DD"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := st.CreateProduct(ctx, model.Product{ID: "7", Name: "Cola", PriceCents: 150, Stock: 10}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return u
}

func postJSON(t *testing.T, mux http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestCheckoutHappyPath(t *testing.T) {
	st, _, mux := setupApp(t)
	u := seedCatalog(t, st)

	rr := postJSON(t, mux, "/checkout", fmt.Sprintf(
		`{"user_id":%q,"items":[{"product_id":"7","quantity":2}]}`, u.ID))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		OrderID        string `json:"order_id"`
		TransactionRef string `json:"transaction_ref"`
		TotalCents     int64  `json:"total_cents"`
		Status         string `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalCents != 300 || resp.TransactionRef != "txn_1" || resp.Status != "awaiting_payment" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCheckoutRejectsClientTotal(t *testing.T) {
	st, _, mux := setupApp(t)
	u := seedCatalog(t, st)

	// A client-supplied total is an unknown field, not an input.
	rr := postJSON(t, mux, "/checkout", fmt.Sprintf(
		`{"user_id":%q,"items":[{"product_id":"7","quantity":1}],"total_cents":1}`, u.ID))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCheckoutUnavailable(t *testing.T) {
	st, _, mux := setupApp(t)
	u := seedCatalog(t, st)

	rr := postJSON(t, mux, "/checkout", fmt.Sprintf(
		`{"user_id":%q,"items":[{"product_id":"7","quantity":99}]}`, u.ID))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "7") {
		t.Fatalf("offending product not named: %s", rr.Body.String())
	}
}

func TestCheckoutUnsupportedMediaType(t *testing.T) {
	_, _, mux := setupApp(t)
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString("user_id=x"))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rr.Code)
	}
}

func TestVerifyPaymentHappyPathAndReplay(t *testing.T) {
	st, v, mux := setupApp(t)
	u := seedCatalog(t, st)
	ctx := context.Background()
	o, err := st.CreateOrder(ctx, model.Order{
		UserID:         u.ID,
		Items:          []model.LineItem{{ProductID: "7", Quantity: 1, UnitPriceCents: 150}},
		TotalCents:     150,
		TransactionRef: "txn_cb",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	body := fmt.Sprintf(`{"transaction_id":"txn_cb","payment_id":"pay_1","signature":%q}`,
		v.Signature("txn_cb", "pay_1"))
	rr := postJSON(t, mux, "/payments/verify", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	stored, _ := st.GetOrder(ctx, o.ID)
	if stored.Status != model.StatusPaid {
		t.Fatalf("status %q", stored.Status)
	}

	// Replayed delivery: rejected as conflict, state unchanged.
	rr = postJSON(t, mux, "/payments/verify", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %d", rr.Code)
	}
	stored, _ = st.GetOrder(ctx, o.ID)
	if stored.Status != model.StatusPaid {
		t.Fatalf("replay changed status to %q", stored.Status)
	}
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	st, _, mux := setupApp(t)
	u := seedCatalog(t, st)
	if _, err := st.CreateOrder(context.Background(), model.Order{
		UserID:         u.ID,
		Items:          []model.LineItem{{ProductID: "7", Quantity: 1, UnitPriceCents: 150}},
		TotalCents:     150,
		TransactionRef: "txn_cb",
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	rr := postJSON(t, mux, "/payments/verify",
		`{"transaction_id":"txn_cb","payment_id":"pay_1","signature":"deadbeef"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestFindUser(t *testing.T) {
	st, _, mux := setupApp(t)
	seedCatalog(t, st)

	req := httptest.NewRequest(http.MethodGet, "/users/find?card_id=AA:BB:CC:DD", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var u map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u["name"] != "U1" {
		t.Fatalf("unexpected user: %v", u)
	}
	if _, leaked := u["card_id"]; leaked {
		t.Fatalf("card_id must not be exposed")
	}

	req = httptest.NewRequest(http.MethodGet, "/users/find?card_id=DE:AD:BE:EF", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/users/find", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestProductsListAndCreate(t *testing.T) {
	st, _, mux := setupApp(t)
	seedCatalog(t, st)

	rr := postJSON(t, mux, "/products", `{"name":"Water","price_cents":80,"stock":20}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var products []model.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &products); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
}

func TestHealthzOK(t *testing.T) {
	_, _, mux := setupApp(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestMetricsHandler(t *testing.T) {
	_, _, mux := setupApp(t)
	req := httptest.NewRequest(http.MethodGet, "/debug/metrics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("metrics json decode: %v", err)
	}
	if _, ok := m["scans_received"]; !ok {
		t.Fatalf("missing scans_received")
	}
}

func TestOpenAPIServed(t *testing.T) {
	_, _, mux := setupApp(t)
	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("openapi:")) {
		t.Fatalf("expected openapi content")
	}
}

func TestDocsServed(t *testing.T) {
	_, _, mux := setupApp(t)
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "swagger-ui") {
		t.Fatalf("expected swagger-ui in docs body")
	}
}

func TestShutdownRefusesCheckout(t *testing.T) {
	st, _, _ := setupApp(t)
	u := seedCatalog(t, st)
	cfg := config.Load()
	v := payment.NewVerifier(testSecret, st)
	co := checkout.New(st, &fakeProcessor{})
	l := scan.NewListener(func(ctx context.Context, payload []byte) {}, 0)
	app := NewApp(cfg, st, co, v, l)
	mux := NewRouter(app)
	app.StartShutdown()

	rr := postJSON(t, mux, "/checkout", fmt.Sprintf(
		`{"user_id":%q,"items":[{"product_id":"7","quantity":1}]}`, u.ID))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !l.IsShuttingDown() {
		t.Fatalf("listener intake should be closed")
	}
}
