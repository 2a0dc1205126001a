// Package payment verifies processor payment callbacks and opens processor
// transactions for checkout.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/fairyhunter13/vending-kiosk-service/internal/model"
	"github.com/fairyhunter13/vending-kiosk-service/internal/obs"
	"github.com/fairyhunter13/vending-kiosk-service/internal/store"
)

// Verifier authenticates payment-confirmation callbacks and arms the order
// for dispense by moving it from awaiting_payment to paid.
type Verifier struct {
	secret []byte
	st     *store.Store
}

// NewVerifier constructs a Verifier with the shared processor secret.
func NewVerifier(secret string, st *store.Store) *Verifier {
	return &Verifier{secret: []byte(secret), st: st}
}

// Signature computes the hex HMAC-SHA256 the processor is expected to send
// for the given transaction and payment ids.
func (v *Verifier) Signature(transactionID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(transactionID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallback authenticates the callback and transitions the referenced
// order to paid. A replayed callback for an already-paid order is rejected
// with model.ErrConflict and causes no state change, which makes
// processor-side delivery retries safe.
func (v *Verifier) VerifyCallback(ctx context.Context, cb model.PaymentCallback) (model.Order, error) {
	if cb.TransactionID == "" || cb.PaymentID == "" || cb.Signature == "" {
		return model.Order{}, fmt.Errorf("transaction_id, payment_id, and signature are required: %w", model.ErrValidation)
	}

	expected := v.Signature(cb.TransactionID, cb.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(cb.Signature))) {
		obs.Logger.Warn("payment_signature_mismatch", "transaction_id", cb.TransactionID, "payment_id", cb.PaymentID)
		return model.Order{}, fmt.Errorf("callback for transaction %s: %w", cb.TransactionID, model.ErrBadSignature)
	}

	order, err := v.st.GetOrderByTransactionRef(ctx, cb.TransactionID)
	if err != nil {
		return model.Order{}, err
	}

	if err := v.st.TransitionOrder(ctx, order.ID, model.StatusAwaitingPayment, model.StatusPaid); err != nil {
		if errors.Is(err, model.ErrConflict) {
			obs.Logger.Info("payment_callback_replayed", "order_id", order.ID, "transaction_id", cb.TransactionID)
		}
		return model.Order{}, err
	}
	order.Status = model.StatusPaid
	obs.Logger.Info("order_paid", "order_id", order.ID, "transaction_id", cb.TransactionID, "payment_id", cb.PaymentID)
	return order, nil
}
