// Package dispense resolves card scans to paid orders and drives the paced
// outbound message sequence to the dispensing device.
package dispense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fairyhunter13/vending-kiosk-service/internal/config"
	"github.com/fairyhunter13/vending-kiosk-service/internal/model"
	"github.com/fairyhunter13/vending-kiosk-service/internal/obs"
	"github.com/fairyhunter13/vending-kiosk-service/internal/scan"
	"github.com/fairyhunter13/vending-kiosk-service/internal/store"
)

// Outbound device messages. The device matches these strings verbatim.
const (
	MsgError          = "ERROR"
	MsgNoUser         = "Hi, Sorry No orders"
	MsgNoPendingOrder = "Hi, Sorry No pending orders"
)

// Publisher sends one plain-text message on the dispense channel. Delivery
// is best-effort: the device never acknowledges, so a failed publish is
// logged and the remaining sequence is truncated.
type Publisher interface {
	Publish(ctx context.Context, message string) error
}

// Orchestrator owns the scan-to-dispense pipeline: normalize the identifier,
// resolve the user and their paid order, commit the atomic dispense unit,
// then emit the paced message sequence.
type Orchestrator struct {
	cfg config.Config
	st  *store.Store
	pub Publisher

	// sleep is replaceable so tests do not pay the protocol pacing.
	sleep func(time.Duration)
}

// New constructs an Orchestrator publishing on pub.
func New(cfg config.Config, st *store.Store, pub Publisher) *Orchestrator {
	return &Orchestrator{cfg: cfg, st: st, pub: pub, sleep: time.Sleep}
}

// HandleScan processes one raw scan payload to completion. Every outcome is
// terminal for the scan: a distinct message is published and no retry is
// attempted.
func (o *Orchestrator) HandleScan(ctx context.Context, payload []byte) {
	cardID, ok := scan.Normalize(payload, o.cfg.HeartbeatSentinel)
	if !ok {
		obs.Logger.Info("device_heartbeat")
		return
	}
	obs.Logger.Info("card_scanned", "card_id", cardID)

	user, err := o.st.GetUserByCardID(ctx, cardID)
	if errors.Is(err, model.ErrNotFound) {
		obs.Logger.Info("scan_no_user", "card_id", cardID)
		o.publish(ctx, MsgNoUser)
		return
	}
	if err != nil {
		obs.Logger.Error("scan_user_lookup_failed", "card_id", cardID, "error", err)
		o.publish(ctx, MsgError)
		return
	}

	order, err := o.st.LatestOrderByUser(ctx, user.ID, model.StatusPaid, o.cfg.ResolvePolicy)
	if errors.Is(err, model.ErrNotFound) {
		obs.Logger.Info("scan_no_pending_order", "user_id", user.ID)
		o.publish(ctx, MsgNoPendingOrder)
		return
	}
	if err != nil {
		obs.Logger.Error("scan_order_lookup_failed", "user_id", user.ID, "error", err)
		o.publish(ctx, MsgError)
		return
	}

	if err := o.st.DispenseOrder(ctx, order); err != nil {
		switch {
		case errors.Is(err, model.ErrConflict):
			obs.Logger.Warn("dispense_already_handled", "order_id", order.ID, "error", err)
		case errors.Is(err, model.ErrInsufficientStock):
			obs.Logger.Error("dispense_stock_underflow", "order_id", order.ID, "error", err)
		default:
			obs.Logger.Error("dispense_failed", "order_id", order.ID, "error", err)
		}
		o.publish(ctx, MsgError)
		return
	}

	// The debit is committed; from here the sequence is fire-and-forget.
	for i, item := range order.Items {
		if i > 0 {
			o.sleep(o.cfg.ItemDelay)
		}
		o.publish(ctx, ItemMessage(item.ProductID, item.Quantity))
	}
	o.sleep(o.cfg.CompletionDelay)
	o.publish(ctx, CompletionMessage(order.ID))
	obs.Logger.Info("order_dispensed", "order_id", order.ID, "user_id", user.ID, "items", len(order.Items))
}

func (o *Orchestrator) publish(ctx context.Context, message string) {
	if err := o.pub.Publish(ctx, message); err != nil {
		obs.Logger.Error("dispense_publish_failed", "message", message, "error", err)
	}
}

// ItemMessage formats the per-line-item device message.
func ItemMessage(productID string, quantity int64) string {
	return fmt.Sprintf("ITEM:%s,QTY:%d", productID, quantity)
}

// CompletionMessage formats the end-of-sequence device message.
func CompletionMessage(orderID string) string {
	return fmt.Sprintf("DISPENSED:%s", orderID)
}
