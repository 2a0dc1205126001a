// Package checkout validates cart contents, computes the authoritative
// total, and opens a processor transaction for the new order.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fairyhunter13/vending-kiosk-service/internal/model"
	"github.com/fairyhunter13/vending-kiosk-service/internal/obs"
	"github.com/fairyhunter13/vending-kiosk-service/internal/payment"
	"github.com/fairyhunter13/vending-kiosk-service/internal/store"
)

// ItemRequest is one requested line of a checkout.
type ItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// Request is a checkout submission. The client never supplies a total; the
// service computes it from current catalog prices.
type Request struct {
	UserID string        `json:"user_id"`
	Items  []ItemRequest `json:"items"`
}

// Service is the checkout initiator.
type Service struct {
	st   *store.Store
	proc payment.Processor
}

// New constructs a checkout Service.
func New(st *store.Store, proc payment.Processor) *Service {
	return &Service{st: st, proc: proc}
}

// Checkout validates every requested quantity against live stock, persists
// the order in awaiting_payment with unit prices captured at order time,
// opens a processor transaction for the computed total, and stores the
// returned reference on the order. Stock is only checked here; the debit
// happens at dispense.
func (s *Service) Checkout(ctx context.Context, req Request) (model.Order, error) {
	if req.UserID == "" {
		return model.Order{}, fmt.Errorf("user_id is required: %w", model.ErrValidation)
	}
	if len(req.Items) == 0 {
		return model.Order{}, fmt.Errorf("no items in cart: %w", model.ErrValidation)
	}

	var (
		total int64
		items = make([]model.LineItem, 0, len(req.Items))
	)
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return model.Order{}, fmt.Errorf("each item needs a product_id and a positive quantity: %w", model.ErrValidation)
		}
		p, err := s.st.GetProduct(ctx, it.ProductID)
		if errors.Is(err, model.ErrNotFound) {
			return model.Order{}, &model.UnavailableError{ProductID: it.ProductID, Requested: it.Quantity}
		}
		if err != nil {
			return model.Order{}, err
		}
		if p.Stock < it.Quantity {
			return model.Order{}, &model.UnavailableError{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: p.Stock,
			}
		}
		total += p.PriceCents * it.Quantity
		items = append(items, model.LineItem{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			UnitPriceCents: p.PriceCents,
		})
	}

	order, err := s.st.CreateOrder(ctx, model.Order{
		UserID:     req.UserID,
		Items:      items,
		TotalCents: total,
		Status:     model.StatusAwaitingPayment,
	})
	if err != nil {
		return model.Order{}, err
	}

	ref, err := s.proc.CreateTransaction(ctx, total, "order_"+order.ID)
	if err != nil {
		// No processor transaction exists; the order is dead on arrival.
		if terr := s.st.TransitionOrder(ctx, order.ID, model.StatusAwaitingPayment, model.StatusFailed); terr != nil {
			obs.Logger.Error("checkout_fail_transition", "order_id", order.ID, "error", terr)
		}
		return model.Order{}, fmt.Errorf("open processor transaction: %w", err)
	}

	if err := s.st.SetTransactionRef(ctx, order.ID, ref); err != nil {
		return model.Order{}, err
	}
	order.TransactionRef = ref
	obs.Logger.Info("checkout_opened", "order_id", order.ID, "user_id", req.UserID, "total_cents", total, "transaction_ref", ref)
	return order, nil
}
