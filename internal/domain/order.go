package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	// OrderStatusCompleted is the only status checkout writes; payment is simulated.
	OrderStatusCompleted OrderStatus = "completed"
)

type OrderLine struct {
	OrderID     uuid.UUID       `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type OrderLines []OrderLine

// Total sums quantity * unit price over the lines. It should equal the
// owning order's TotalAmount.
func (ls OrderLines) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range ls {
		total = total.Add(l.Subtotal())
	}
	return total
}

type Order struct {
	ID          uuid.UUID       `json:"id"`
	UserID      string          `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	Lines       OrderLines      `json:"lines,omitempty"`
}
