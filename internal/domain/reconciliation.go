package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reconciliation records a checkout that stopped after persisting part of
// its rows. Nothing undoes those rows; an operator resolves them by hand.
type Reconciliation struct {
	ID              int64     `json:"id"`
	OrderID         uuid.UUID `json:"order_id"`
	SessionID       string    `json:"session_id"`
	Kind            string    `json:"kind"`
	FailedProductID string    `json:"failed_product_id,omitempty"`
	LinesInserted   int       `json:"lines_inserted"`
	StockUpdated    int       `json:"stock_updated"`
	Cause           string    `json:"cause"`
	FailedAt        time.Time `json:"failed_at"`
	ReceivedAt      time.Time `json:"received_at"`
}
