package engine

import (
	"backsim/internal/domain"
)

// Fill pairs an order with the price it executed at during matching.
type Fill struct {
	Order *domain.Order
	Price float64
}

// Book owns the set of open orders and matches them against incoming bars.
// An order fills at most once per bar and is removed from the open set when
// it fills or is cancelled.
type Book struct {
	open []*domain.Order
}

// NewBook creates an empty order book.
func NewBook() *Book {
	return &Book{}
}

// Reset discards all open orders.
func (b *Book) Reset() {
	b.open = nil
}

// Add places an order into the open set. Validation happens at the
// PlaceOrder boundary; the book trusts its input.
func (b *Book) Add(o *domain.Order) {
	b.open = append(b.open, o)
}

// Cancel removes the order with the given ID from the open set. It returns
// false for unknown or already-filled IDs; this is a local failure, not an
// error condition.
func (b *Book) Cancel(id string) bool {
	for i, o := range b.open {
		if o.ID == id && o.Status == domain.OrderStatusOpen {
			b.open = append(b.open[:i], b.open[i+1:]...)
			return true
		}
	}
	return false
}

// Open returns copies of the currently open orders in submission order.
func (b *Book) Open() []domain.Order {
	out := make([]domain.Order, 0, len(b.open))
	for _, o := range b.open {
		out = append(out, *o)
	}
	return out
}

// Match runs every open order for the bar's symbol against the bar and
// returns the resulting fills. Filled orders are removed from the open set.
//
// Fill prices deliberately approximate intrabar execution without modeling a
// full order book: limit fills tie-break on the bar close, stop fills on the
// bar open. This is a stated simplification, not a best-available-price
// guarantee.
func (b *Book) Match(bar domain.Bar) []Fill {
	var fills []Fill
	remaining := b.open[:0]

	for _, o := range b.open {
		if o.Symbol != bar.Symbol {
			remaining = append(remaining, o)
			continue
		}

		price, filled := fillPrice(o, bar)
		if !filled {
			remaining = append(remaining, o)
			continue
		}
		fills = append(fills, Fill{Order: o, Price: price})
	}

	b.open = remaining
	return fills
}

// fillPrice applies the per-kind matching rules and reports whether the
// order fills on this bar.
func fillPrice(o *domain.Order, bar domain.Bar) (float64, bool) {
	switch o.Type {
	case domain.OrderTypeMarket:
		return bar.Close, true

	case domain.OrderTypeLimit:
		if o.Side == domain.OrderSideBuy && bar.Low <= o.LimitPrice {
			return min(o.LimitPrice, bar.Close), true
		}
		if o.Side == domain.OrderSideSell && bar.High >= o.LimitPrice {
			return max(o.LimitPrice, bar.Close), true
		}

	case domain.OrderTypeStop:
		if o.Side == domain.OrderSideBuy && bar.High >= o.StopPrice {
			return max(o.StopPrice, bar.Open), true
		}
		if o.Side == domain.OrderSideSell && bar.Low <= o.StopPrice {
			return min(o.StopPrice, bar.Open), true
		}
	}
	return 0, false
}
