package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

func (r *Repository) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	order.ID = uuid.New()
	order.CreatedAt = time.Now().UTC()
	order.Lines = nil

	query := `INSERT INTO orders (id, user_id, total_amount, status, created_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.TotalAmount,
		string(order.Status),
		order.CreatedAt)
	if violatedConstraint(err) == uniqueViolation {
		return domain.Order{}, ErrDuplicate
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return order, nil
}

func (r *Repository) InsertOrderLine(ctx context.Context, line domain.OrderLine) error {
	productID, err := parseProductID(line.ProductID)
	if err != nil {
		return err
	}

	query := `INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.ExecContext(ctx, query,
		line.OrderID,
		productID,
		line.ProductName,
		line.Quantity,
		line.UnitPrice)
	if violatedConstraint(err) == foreignKeyViolation {
		return ErrMissingReference
	}
	if err != nil {
		return fmt.Errorf("insert order line: %w", err)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, user_id, total_amount, status, created_at FROM orders WHERE id = $1`

	var order domain.Order
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.TotalAmount,
		&order.Status,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	if order.Lines, err = r.orderLines(ctx, order.ID); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns every order, newest first, with its lines.
func (r *Repository) ListOrders(ctx context.Context) ([]domain.Order, error) {
	query := `SELECT id, user_id, total_amount, status, created_at FROM orders ORDER BY created_at DESC`
	return r.listOrders(ctx, query)
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]domain.Order, error) {
	query := `SELECT id, user_id, total_amount, status, created_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.listOrders(ctx, query, userID)
}

func (r *Repository) listOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.TotalAmount,
			&order.Status,
			&order.CreatedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	// released before the line queries; sqlite runs on a single connection
	rows.Close()

	for i := range orders {
		if orders[i].Lines, err = r.orderLines(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *Repository) orderLines(ctx context.Context, orderID uuid.UUID) (domain.OrderLines, error) {
	query := `SELECT order_id, product_id, product_name, quantity, price
	          FROM order_items WHERE order_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	lines := make(domain.OrderLines, 0)
	for rows.Next() {
		var (
			line      domain.OrderLine
			productID sql.NullInt64
		)
		if err := rows.Scan(
			&line.OrderID,
			&productID,
			&line.ProductName,
			&line.Quantity,
			&line.UnitPrice,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		// product_id is cleared when the product is deleted
		if productID.Valid {
			line.ProductID = strconv.FormatInt(productID.Int64, 10)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}
