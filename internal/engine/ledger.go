package engine

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"backsim/internal/domain"
)

// Ledger owns the cash balance, per-symbol positions, and the append-only
// trade record of a run. It applies fills and computes realized P&L.
type Ledger struct {
	cash           float64
	commissionRate float64

	positions map[string]*domain.Position
	trades    []domain.Trade

	totalTrades   int
	winningTrades int
}

// NewLedger creates a ledger holding initialCash with the given proportional
// commission rate.
func NewLedger(initialCash, commissionRate float64) *Ledger {
	l := &Ledger{commissionRate: commissionRate}
	l.Reset(initialCash)
	return l
}

// Reset returns the ledger to a clean state holding initialCash, with no
// positions or trades.
func (l *Ledger) Reset(initialCash float64) {
	l.cash = initialCash
	l.positions = make(map[string]*domain.Position)
	l.trades = nil
	l.totalTrades = 0
	l.winningTrades = 0
}

// ApplyFill executes a filled order against the ledger: it charges
// commission, adjusts cash and the position, marks the order filled, and
// records the resulting trade.
//
// Selling more than the current long quantity clamps the position to flat
// rather than flipping it short, mirroring the reference behavior; the
// excess quantity is sold with no cost basis attributed to it.
func (l *Ledger) ApplyFill(o *domain.Order, price float64, ts time.Time) domain.Trade {
	commission := math.Abs(o.Qty * price * l.commissionRate)

	trade := domain.Trade{
		ID:         uuid.NewString(),
		Symbol:     o.Symbol,
		Side:       o.Side,
		Qty:        o.Qty,
		Price:      price,
		Timestamp:  ts,
		OrderID:    o.ID,
		Commission: commission,
	}
	l.trades = append(l.trades, trade)

	pos, ok := l.positions[o.Symbol]
	if !ok {
		pos = &domain.Position{Symbol: o.Symbol}
		l.positions[o.Symbol] = pos
	}

	var fillPnL float64
	if o.Side == domain.OrderSideBuy {
		totalCost := pos.Qty*pos.AvgPrice + o.Qty*price
		pos.Qty += o.Qty
		if pos.Qty > 0 {
			pos.AvgPrice = totalCost / pos.Qty
		} else {
			pos.AvgPrice = 0
		}
		l.cash -= o.Qty*price + commission
	} else {
		if pos.Qty > 0 {
			closed := math.Min(o.Qty, pos.Qty)
			fillPnL = (price - pos.AvgPrice) * closed
			pos.RealizedPnL += fillPnL
		}
		pos.Qty -= o.Qty
		if pos.Qty <= 0 {
			pos.Qty = 0
			pos.AvgPrice = 0
			pos.UnrealizedPnL = 0
		}
		l.cash += o.Qty*price - commission
	}

	o.Status = domain.OrderStatusFilled
	o.FilledPrice = price
	o.FilledQty = o.Qty

	l.totalTrades++
	if o.Side == domain.OrderSideSell && fillPnL > 0 {
		l.winningTrades++
	}

	return trade
}

// Mark recomputes the unrealized P&L of the bar's symbol against the bar
// close. Other symbols retain their last mark.
func (l *Ledger) Mark(bar domain.Bar) {
	pos, ok := l.positions[bar.Symbol]
	if !ok {
		return
	}
	if pos.Qty == 0 {
		pos.UnrealizedPnL = 0
		return
	}
	pos.UnrealizedPnL = (bar.Close - pos.AvgPrice) * pos.Qty
}

// Equity returns cash plus the unrealized P&L of all positions at their
// last mark.
func (l *Ledger) Equity() float64 {
	equity := l.cash
	for _, pos := range l.positions {
		equity += pos.UnrealizedPnL
	}
	return equity
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Position returns a copy of the position for symbol, or a zero-quantity
// position if none exists yet.
func (l *Ledger) Position(symbol string) domain.Position {
	if pos, ok := l.positions[symbol]; ok {
		return *pos
	}
	return domain.Position{Symbol: symbol}
}

// Positions returns copies of all positions, sorted by symbol.
func (l *Ledger) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Trades returns a copy of the full trade record in execution order.
func (l *Ledger) Trades() []domain.Trade {
	out := make([]domain.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// RecentTrades returns copies of the most recent n trades.
func (l *Ledger) RecentTrades(n int) []domain.Trade {
	if n > len(l.trades) {
		n = len(l.trades)
	}
	out := make([]domain.Trade, n)
	copy(out, l.trades[len(l.trades)-n:])
	return out
}

// Counts returns the total and winning trade counters.
func (l *Ledger) Counts() (total, winning int) {
	return l.totalTrades, l.winningTrades
}
