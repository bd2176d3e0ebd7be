package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const productColumns = `id, name, description, price, stock, category_id, image_ref, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.CategoryID,
		&p.ImageRef,
		&p.CreatedAt,
	)
	return p, err
}

func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return &p, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.Stock < 0 {
		return nil, ErrNegativeStock
	}
	p.CreatedAt = time.Now().UTC()

	query := `INSERT INTO products (name, description, price, stock, category_id, image_ref, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.Stock,
		p.CategoryID,
		p.ImageRef,
		p.CreatedAt,
	).Scan(&p.ID)
	if violatedConstraint(err) == foreignKeyViolation {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return &p, nil
}

// UpdateProduct rewrites the descriptive fields. Stock is changed only
// through the stock operations.
func (r *Repository) UpdateProduct(ctx context.Context, p domain.Product) error {
	query := `UPDATE products SET name = $1, description = $2, price = $3, category_id = $4, image_ref = $5
	          WHERE id = $6`

	res, err := r.db.ExecContext(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.CategoryID,
		p.ImageRef,
		p.ID,
	)
	if violatedConstraint(err) == foreignKeyViolation {
		return ErrCategoryNotFound
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return expectOneRow(res, ErrProductNotFound)
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectOneRow(res, ErrProductNotFound)
}

func (r *Repository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

func (r *Repository) GetStock(ctx context.Context, productID string) (int, error) {
	id, err := parseProductID(productID)
	if err != nil {
		return 0, err
	}

	var stock int
	err = r.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query stock: %w", err)
	}
	return stock, nil
}

func (r *Repository) SetStock(ctx context.Context, productID string, stock int) error {
	id, err := parseProductID(productID)
	if err != nil {
		return err
	}
	if stock < 0 {
		return ErrNegativeStock
	}

	res, err := r.db.ExecContext(ctx, `UPDATE products SET stock = $1 WHERE id = $2`, stock, id)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	return expectOneRow(res, ErrProductNotFound)
}

func (r *Repository) CompareAndSetStock(ctx context.Context, productID string, expected, stock int) (bool, error) {
	id, err := parseProductID(productID)
	if err != nil {
		return false, err
	}
	if stock < 0 {
		return false, ErrNegativeStock
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = $1 WHERE id = $2 AND stock = $3`, stock, id, expected)
	if err != nil {
		return false, fmt.Errorf("conditional update stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	// zero rows: either the product is gone or the level moved on
	if _, err := r.GetStock(ctx, productID); err != nil {
		return false, err
	}
	return false, nil
}

// DecrementStock subtracts quantity in a single statement, flooring at zero,
// and returns the new level.
func (r *Repository) DecrementStock(ctx context.Context, productID string, quantity int) (int, error) {
	id, err := parseProductID(productID)
	if err != nil {
		return 0, err
	}

	query := `UPDATE products SET stock = CASE WHEN stock > $1 THEN stock - $1 ELSE 0 END
	          WHERE id = $2 RETURNING stock`

	var stock int
	err = r.db.QueryRowContext(ctx, query, quantity, id).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return stock, nil
}

func (r *Repository) IncrementStock(ctx context.Context, productID string, quantity int) (int, error) {
	id, err := parseProductID(productID)
	if err != nil {
		return 0, err
	}

	var stock int
	err = r.db.QueryRowContext(ctx,
		`UPDATE products SET stock = stock + $1 WHERE id = $2 RETURNING stock`, quantity, id).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment stock: %w", err)
	}
	return stock, nil
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
