package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fairyhunter13/vending-kiosk-service/internal/config"
)

// Processor opens a payment transaction with the external processor. The
// hosted checkout widget and capture flow are the processor's concern; only
// the opened transaction reference matters here.
type Processor interface {
	CreateTransaction(ctx context.Context, amountCents int64, receipt string) (string, error)
}

// HTTPProcessor talks to the processor's order-create endpoint with key-id /
// key-secret basic auth.
type HTTPProcessor struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

// NewHTTPProcessor builds an HTTPProcessor from configuration.
func NewHTTPProcessor(cfg config.Config) *HTTPProcessor {
	return &HTTPProcessor{
		baseURL:   cfg.ProcessorURL,
		keyID:     cfg.ProcessorKeyID,
		keySecret: cfg.ProcessorKeySecret,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type createTransactionRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type createTransactionResponse struct {
	ID string `json:"id"`
}

// CreateTransaction opens a transaction for the given amount and returns the
// processor-issued reference.
func (p *HTTPProcessor) CreateTransaction(ctx context.Context, amountCents int64, receipt string) (string, error) {
	body, err := json.Marshal(createTransactionRequest{
		Amount:         amountCents,
		Currency:       "INR",
		Receipt:        receipt,
		PaymentCapture: 1,
	})
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.keyID, p.keySecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("create transaction: processor returned %s", resp.Status)
	}

	var out createTransactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("create transaction: decode response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create transaction: processor response missing id")
	}
	return out.ID, nil
}
