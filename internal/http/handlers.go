package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/vending-kiosk-service/internal/checkout"
	"github.com/fairyhunter13/vending-kiosk-service/internal/config"
	"github.com/fairyhunter13/vending-kiosk-service/internal/model"
	"github.com/fairyhunter13/vending-kiosk-service/internal/obs"
	httpopenapi "github.com/fairyhunter13/vending-kiosk-service/internal/http/openapi"
	"github.com/fairyhunter13/vending-kiosk-service/internal/payment"
	"github.com/fairyhunter13/vending-kiosk-service/internal/scan"
	"github.com/fairyhunter13/vending-kiosk-service/internal/store"
)

// App holds the handler dependencies of the HTTP API.
type App struct {
	Cfg      config.Config
	Store    *store.Store
	Checkout *checkout.Service
	Verifier *payment.Verifier
	Listener *scan.Listener
	closing  bool
	started  time.Time
}

// NewApp wires the HTTP API against its collaborators.
func NewApp(cfg config.Config, st *store.Store, co *checkout.Service, v *payment.Verifier, l *scan.Listener) *App {
	return &App{Cfg: cfg, Store: st, Checkout: co, Verifier: v, Listener: l, started: time.Now()}
}

// StartShutdown stops accepting work: HTTP requests are refused and the scan
// intake is closed so the listener can drain.
func (a *App) StartShutdown() {
	a.closing = true
	if a.Listener != nil {
		a.Listener.CloseIntake()
	}
}

type checkoutResponse struct {
	OrderID        string `json:"order_id"`
	TransactionRef string `json:"transaction_ref"`
	TotalCents     int64  `json:"total_cents"`
	Status         string `json:"status"`
	RequestID      string `json:"request_id"`
}

func (a *App) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if a.closing {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return
	}
	var req checkout.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	order, err := a.Checkout.Checkout(r.Context(), req)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(checkoutResponse{
		OrderID:        order.ID,
		TransactionRef: order.TransactionRef,
		TotalCents:     order.TotalCents,
		Status:         string(order.Status),
		RequestID:      RequestIDFromContext(r.Context()),
	})
}

type verifyResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
}

func (a *App) verifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	var cb model.PaymentCallback
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cb); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	order, err := a.Verifier.VerifyCallback(r.Context(), cb)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(verifyResponse{Status: string(order.Status), OrderID: order.ID})
}

// userResponse carries the user's public fields only; the card identifier
// stays private.
type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (a *App) findUserHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	cardID := r.URL.Query().Get("card_id")
	if cardID == "" {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "card_id query parameter is required")
		return
	}
	u, err := a.Store.GetUserByCardID(r.Context(), cardID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(userResponse{ID: u.ID, Name: u.Name, Email: u.Email})
}

func (a *App) productsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.Store.ListProducts(r.Context())
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		if products == nil {
			products = []model.Product{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(products)
	case http.MethodPost:
		var p model.Product
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		if p.Name == "" || p.PriceCents < 0 || p.Stock < 0 {
			WriteJSONError(w, http.StatusBadRequest, "validation_error", "name is required; price_cents and stock must be >= 0")
			return
		}
		created, err := a.Store.CreateProduct(r.Context(), p)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(created)
		obs.Logger.Info("product_created", "product_id", created.ID, "request_id", RequestIDFromContext(r.Context()))
	default:
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	m := map[string]any{
		"uptime_sec": time.Since(a.started).Seconds(),
	}
	if a.Listener != nil {
		received, processed, backlog := a.Listener.Metrics()
		m["scans_received"] = received
		m["scans_processed"] = processed
		m["scan_backlog"] = backlog
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m)
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
