package cart

import (
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// Item is what the catalog hands to the cart when a product is added.
type Item struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	ImageRef  string
}

// Store holds the lines of one browsing session's cart and its open flag.
// Every operation holds the mutex for its whole duration, so mutations never
// interleave. Totals are recomputed from the lines on every read.
type Store struct {
	mu    sync.Mutex
	lines []domain.CartLine
	open  bool
}

func NewStore() *Store {
	return &Store{}
}

// AddItem increments the quantity of an existing line with the same id, or
// appends a new line with quantity 1.
func (s *Store) AddItem(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(item.ID); i >= 0 {
		s.lines[i].Quantity++
		return
	}
	s.lines = append(s.lines, domain.CartLine{
		ID:        item.ID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		Quantity:  1,
		ImageRef:  item.ImageRef,
	})
}

// SetQuantity sets an absolute quantity. A quantity of zero or less removes
// the line. Unknown ids are ignored.
func (s *Store) SetQuantity(id string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		s.removeAt(i)
		return
	}
	s.lines[i].Quantity = quantity
}

func (s *Store) RemoveItem(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		s.removeAt(i)
	}
}

// RemoveLines takes the given quantities off the matching lines, dropping a
// line once nothing is left of it. Lines added after the snapshot that was
// checked out are kept.
func (s *Store) RemoveLines(lines []domain.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range lines {
		i := s.indexOf(l.ID)
		if i < 0 {
			continue
		}
		s.lines[i].Quantity -= l.Quantity
		if s.lines[i].Quantity <= 0 {
			s.removeAt(i)
		}
	}
}

func (s *Store) OpenCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
}

func (s *Store) CloseCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
}

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLines()
}

func (s *Store) TotalItemCount() int {
	return s.Snapshot().TotalItemCount()
}

func (s *Store) TotalAmount() decimal.Decimal {
	return s.Snapshot().TotalAmount()
}

// Snapshot returns a copy of the cart that later mutations do not affect.
func (s *Store) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Cart{Lines: s.copyLines(), Open: s.open}
}

func (s *Store) indexOf(id string) int {
	for i := range s.lines {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeAt(i int) {
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
}

func (s *Store) copyLines() []domain.CartLine {
	if len(s.lines) == 0 {
		return []domain.CartLine{}
	}
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}
