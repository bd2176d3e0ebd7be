package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CreateReconciliation stores one reconciliation request. A second request
// for the same order returns ErrDuplicate.
func (r *Repository) CreateReconciliation(ctx context.Context, rec domain.Reconciliation) (*domain.Reconciliation, error) {
	rec.ReceivedAt = time.Now().UTC()

	query := `INSERT INTO reconciliations
	              (order_id, session_id, kind, failed_product_id, lines_inserted, stock_updated, cause, failed_at, received_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		rec.OrderID,
		rec.SessionID,
		rec.Kind,
		rec.FailedProductID,
		rec.LinesInserted,
		rec.StockUpdated,
		rec.Cause,
		rec.FailedAt.UTC(),
		rec.ReceivedAt,
	).Scan(&rec.ID)
	if violatedConstraint(err) == uniqueViolation {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert reconciliation: %w", err)
	}
	return &rec, nil
}

// ListReconciliations returns every request, newest first.
func (r *Repository) ListReconciliations(ctx context.Context) ([]domain.Reconciliation, error) {
	query := `SELECT id, order_id, session_id, kind, failed_product_id, lines_inserted, stock_updated,
	                 cause, failed_at, received_at
	          FROM reconciliations ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query reconciliations: %w", err)
	}
	defer rows.Close()

	recs := make([]domain.Reconciliation, 0)
	for rows.Next() {
		var rec domain.Reconciliation
		if err := rows.Scan(
			&rec.ID,
			&rec.OrderID,
			&rec.SessionID,
			&rec.Kind,
			&rec.FailedProductID,
			&rec.LinesInserted,
			&rec.StockUpdated,
			&rec.Cause,
			&rec.FailedAt,
			&rec.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reconciliation: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return recs, nil
}
