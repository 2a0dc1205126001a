package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/vending-kiosk-service/internal/config"
	"github.com/fairyhunter13/vending-kiosk-service/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateOrder persists an order together with its line items in one
// transaction. A missing ID, status, or creation time is filled in; the
// caller is responsible for the total (computed once at checkout).
func (s *Store) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = model.StatusAwaitingPayment
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if len(o.Items) == 0 {
		return model.Order{}, fmt.Errorf("order has no line items: %w", model.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Order{}, fmt.Errorf("create order: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var ref any
	if o.TransactionRef != "" {
		ref = o.TransactionRef
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_cents, transaction_ref, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, o.ID, o.UserID, o.TotalCents, ref, string(o.Status), o.CreatedAt)
	if err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}

	for i, item := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, quantity, unit_price_cents)
			VALUES (?, ?, ?, ?, ?)
		`, o.ID, i, item.ProductID, item.Quantity, item.UnitPriceCents)
		if err != nil {
			return model.Order{}, fmt.Errorf("create order item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Order{}, fmt.Errorf("create order: commit: %w", err)
	}
	return o, nil
}

// GetOrder fetches one order with its line items.
func (s *Store) GetOrder(ctx context.Context, id string) (model.Order, error) {
	return s.getOrderWhere(ctx, "id = ?", id)
}

// GetOrderByTransactionRef locates an order by its processor transaction
// reference.
func (s *Store) GetOrderByTransactionRef(ctx context.Context, ref string) (model.Order, error) {
	return s.getOrderWhere(ctx, "transaction_ref = ?", ref)
}

func (s *Store) getOrderWhere(ctx context.Context, where string, arg any) (model.Order, error) {
	var (
		o   model.Order
		ref sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_cents, transaction_ref, status, created_at
		FROM orders WHERE `+where,
		arg,
	).Scan(&o.ID, &o.UserID, &o.TotalCents, &ref, &o.Status, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, fmt.Errorf("order (%s %v): %w", where, arg, model.ErrNotFound)
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	o.TransactionRef = ref.String

	o.Items, err = loadItems(ctx, s.db, o.ID)
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// SetTransactionRef records the processor transaction opened for the order.
func (s *Store) SetTransactionRef(ctx context.Context, orderID, ref string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET transaction_ref = ? WHERE id = ?
	`, ref, orderID)
	if err != nil {
		return fmt.Errorf("set transaction ref: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", orderID, model.ErrNotFound)
	}
	return nil
}

// LatestOrderByUser returns the single order a scan should serve: the user's
// newest (or, under the oldest policy, the oldest) order in the given status.
// Returns model.ErrNotFound when the user has no order in that status.
func (s *Store) LatestOrderByUser(ctx context.Context, userID string, status model.OrderStatus, policy config.ResolvePolicy) (model.Order, error) {
	dir := "DESC"
	if policy == config.ResolveOldest {
		dir = "ASC"
	}
	var (
		o   model.Order
		ref sql.NullString
	)
	// rowid breaks ties between orders created in the same instant.
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_cents, transaction_ref, status, created_at
		FROM orders
		WHERE user_id = ? AND status = ?
		ORDER BY created_at `+dir+`, rowid `+dir+`
		LIMIT 1
	`, userID, string(status)).Scan(&o.ID, &o.UserID, &o.TotalCents, &ref, &o.Status, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, fmt.Errorf("no %s order for user %s: %w", status, userID, model.ErrNotFound)
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("latest order by user: %w", err)
	}
	o.TransactionRef = ref.String

	o.Items, err = loadItems(ctx, s.db, o.ID)
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// TransitionOrder moves an order from the expected status to the next one as
// a single guarded update (compare-and-swap). Returns model.ErrConflict when
// the order is no longer in the expected status, so two racing triggers can
// never both succeed, and model.ErrNotFound for an unknown order.
func (s *Store) TransitionOrder(ctx context.Context, orderID string, from, to model.OrderStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("transition %s -> %s: %w", from, to, model.ErrConflict)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = ? WHERE id = ? AND status = ?
	`, string(to), orderID, string(from))
	if err != nil {
		return fmt.Errorf("transition order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.classifyTransitionFailure(ctx, s.db, orderID, from)
	}
	return nil
}

// DispenseOrder commits the dispense unit: the paid -> dispensed transition
// and every line-item stock debit inside one transaction. Any failed guard
// rolls the whole unit back, so a lost transition race or an underflowing
// debit leaves both the order and the stock untouched.
func (s *Store) DispenseOrder(ctx context.Context, o model.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dispense order: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ? WHERE id = ? AND status = ?
	`, string(model.StatusDispensed), o.ID, string(model.StatusPaid))
	if err != nil {
		return fmt.Errorf("dispense order: transition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.classifyTransitionFailure(ctx, tx, o.ID, model.StatusPaid)
	}

	for _, item := range o.Items {
		res, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?
		`, item.Quantity, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("dispense order: debit %s: %w", item.ProductID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var available int64
			err := tx.QueryRowContext(ctx,
				`SELECT stock FROM products WHERE id = ?`, item.ProductID,
			).Scan(&available)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("product %s: %w", item.ProductID, model.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("dispense order: %w", err)
			}
			return &model.UnavailableError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: available,
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dispense order: commit: %w", err)
	}
	return nil
}

func (s *Store) classifyTransitionFailure(ctx context.Context, q querier, orderID string, expected model.OrderStatus) error {
	var current string
	err := q.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, orderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("order %s: %w", orderID, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("transition order: %w", err)
	}
	return fmt.Errorf("order %s is %s, expected %s: %w", orderID, current, expected, model.ErrConflict)
}

func loadItems(ctx context.Context, q querier, orderID string) ([]model.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price_cents
		FROM order_items WHERE order_id = ? ORDER BY position
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	var items []model.LineItem
	for rows.Next() {
		var it model.LineItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, fmt.Errorf("load order items: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	return items, nil
}
