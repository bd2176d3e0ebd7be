package repository

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrDuplicate        = errors.New("record already exists")
	ErrNegativeStock    = errors.New("stock cannot be negative")
	// ErrMissingReference is returned when an order line points at an order
	// or product that does not exist.
	ErrMissingReference = errors.New("referenced order or product does not exist")
)

type constraint int

const (
	noConstraint constraint = iota
	uniqueViolation
	foreignKeyViolation
)

// violatedConstraint recognises unique and foreign key violations from both
// drivers.
func violatedConstraint(err error) constraint {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return uniqueViolation
		case "23503":
			return foreignKeyViolation
		}
		return noConstraint
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return uniqueViolation
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return foreignKeyViolation
		}
	}
	return noConstraint
}

// parseProductID converts a cart line id into the products primary key.
func parseProductID(productID string) (int64, error) {
	id, err := strconv.ParseInt(productID, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrProductNotFound, productID)
	}
	return id, nil
}
