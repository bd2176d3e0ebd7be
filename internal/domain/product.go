package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	ImageRef    string          `json:"image_ref,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CartID is the identifier a product carries as a cart line.
func (p Product) CartID() string {
	return strconv.FormatInt(p.ID, 10)
}

type ProductStock struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
}
