package store

import "errors"

// Common errors returned by the in-process store
var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrNegativeStock   = errors.New("stock cannot be negative")
)
