package market

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrdersRepo struct {
	DB    *pgxpool.Pool
	Stock Store
}

type CheckoutItem struct {
	DocumentID string  `json:"document_id"`
	LineID     string  `json:"line_id"`
	QtyKg      float64 `json:"qty_kg"`
}

// Checkout materializes an order from a cart's held items, idempotent via
// external_id. The stock effect already happened when the cart reserved;
// this transaction only records the order and prices it from the lines, so
// a retried request can never re-charge or re-reserve.
func (r *OrdersRepo) Checkout(ctx context.Context, externalID, cartID, userID string, items []CheckoutItem) (orderID string, total int, existed bool, err error) {
	row := r.DB.QueryRow(ctx, `SELECT id, total_cents FROM orders WHERE external_id=$1`, externalID)
	if err = row.Scan(&orderID, &total); err == nil {
		return orderID, total, true, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return "", 0, false, err
	}

	if len(items) == 0 {
		return "", 0, false, fmt.Errorf("%w: empty cart", ErrInvalidInput)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", 0, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// price from the lines, never from the client
	prices := make([]int, 0, len(items))
	total = 0
	for _, it := range items {
		if it.QtyKg <= 0 {
			return "", 0, false, fmt.Errorf("%w: quantity for line %s", ErrInvalidInput, it.LineID)
		}
		var p int
		err := tx.QueryRow(ctx, `SELECT price_cents FROM stock_lines WHERE document_id=$1 AND id=$2`,
			it.DocumentID, it.LineID).Scan(&p)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, false, fmt.Errorf("line %s: %w", it.LineID, ErrNotFound)
		}
		if err != nil {
			return "", 0, false, err
		}
		prices = append(prices, p)
		total += int(math.Round(float64(p) * it.QtyKg))
	}

	orderID = uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, external_id, cart_id, user_id, status, total_cents)
		VALUES ($1, $2, $3, $4, 'PLACED', $5)`, orderID, externalID, cartID, userID, total)
	if err != nil {
		return "", 0, false, err
	}
	for i, it := range items {
		if _, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, document_id, line_id, qty_kg, price_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			orderID, it.DocumentID, it.LineID, it.QtyKg, prices[i]); err != nil {
			return "", 0, false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", 0, false, err
	}
	return orderID, total, false, nil
}

func (r *OrdersRepo) GetOrder(ctx context.Context, orderID string) (Order, []OrderItem, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, external_id, cart_id, user_id, status, total_cents, created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.ExternalID, &o.CartID, &o.UserID, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, nil, ErrNotFound
	}
	if err != nil {
		return Order{}, nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT order_id, document_id, line_id, qty_kg, price_cents
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.OrderID, &it.DocumentID, &it.LineID, &it.QtyKg, &it.PriceCents); err != nil {
			return Order{}, nil, err
		}
		items = append(items, it)
	}
	return o, items, rows.Err()
}

func (r *OrdersRepo) GetStatus(ctx context.Context, orderID string) (OrderStatus, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return OrderStatus(s), nil
}

// UpdateStatus moves an order along the picker flow (PLACED -> PICKED ->
// DELIVERED). Cancellation goes through Cancel, which also releases stock.
func (r *OrdersRepo) UpdateStatus(ctx context.Context, orderID string, to OrderStatus) error {
	if to == OrderCancelled {
		return ErrBadTransition
	}
	froms := orderTransitionSources(to)
	if len(froms) == 0 {
		return ErrBadTransition
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now()
		WHERE id=$1 AND status = ANY($3)`, orderID, string(to), froms)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetStatus(ctx, orderID); err != nil {
		return err
	}
	return ErrBadTransition
}

func orderTransitionSources(to OrderStatus) []string {
	var out []string
	for from := range validOrderNext {
		if CanTransitionOrder(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}

// Cancel claims the cancellation first (a single conditional UPDATE, so
// concurrent cancels cannot both win), then releases every held line back
// to the pool. A line removed in the meantime is skipped.
func (r *OrdersRepo) Cancel(ctx context.Context, orderID string) ([]OrderItem, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status='CANCELLED', updated_at=now()
		WHERE id=$1 AND status='PLACED'`, orderID)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.GetStatus(ctx, orderID); err != nil {
			return nil, err
		}
		return nil, ErrBadTransition
	}

	_, items, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		_, err := r.Stock.AdjustQuantity(ctx, it.DocumentID, it.LineID, it.QtyKg, false)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return items, nil
}
