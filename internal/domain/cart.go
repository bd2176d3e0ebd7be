package domain

import "github.com/shopspring/decimal"

// CartLine is one aggregated product entry in a cart, keyed by product id.
type CartLine struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"image_ref,omitempty"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an immutable view of a cart store. Totals are always derived
// from Lines and never cached.
type Cart struct {
	Lines []CartLine `json:"lines"`
	Open  bool       `json:"open"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c Cart) TotalItemCount() int {
	count := 0
	for _, line := range c.Lines {
		count += line.Quantity
	}
	return count
}

func (c Cart) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
