package builtins

import (
	"context"
	"fmt"

	"backsim/internal/domain"
	"backsim/internal/engine"
	"backsim/internal/strategy"
)

// Compile-time interface check.
var _ engine.Strategy = (*MACross)(nil)

var maCrossInfo = strategy.Info{
	Name:        "ma_crossover",
	Description: "Buys when the fast moving average crosses above the slow one, sells when it crosses back below.",
	Parameters: map[string]strategy.ParamSpec{
		"fast_period": {Type: "int", Default: 10, Min: 2, Max: 100},
		"slow_period": {Type: "int", Default: 20, Min: 5, Max: 200},
	},
	Validate: func(p strategy.Params) error {
		fast, slow := p.Get("fast_period", 10), p.Get("slow_period", 20)
		if fast >= slow {
			return fmt.Errorf("fast_period (%v) must be less than slow_period (%v)", fast, slow)
		}
		return nil
	},
}

// MACross enters a long position when the fast-period moving average of
// closes crosses above the slow-period average, and exits when it crosses
// below.
type MACross struct {
	symbol string
	fast   int
	slow   int

	closes []float64
}

// NewMACross builds a moving average crossover strategy for symbol.
func NewMACross(symbol string, params strategy.Params) engine.Strategy {
	return &MACross{
		symbol: symbol,
		fast:   int(params.Get("fast_period", 10)),
		slow:   int(params.Get("slow_period", 20)),
	}
}

// Name returns "ma_crossover".
func (s *MACross) Name() string { return "ma_crossover" }

// OnBar appends the bar close and trades on crossovers once enough history
// has accumulated for the slow average.
func (s *MACross) OnBar(_ context.Context, h *engine.Handle, bar domain.Bar) error {
	s.closes = append(s.closes, bar.Close)
	n := len(s.closes)
	if n < s.slow {
		return nil
	}

	fastMA := mean(s.closes[n-s.fast:])
	slowMA := mean(s.closes[n-s.slow:])

	// The previous averages fall back to the current ones until a full
	// extra bar of history exists, which suppresses a phantom crossover on
	// the first evaluable bar.
	prevFast, prevSlow := fastMA, slowMA
	if n > s.fast {
		prevFast = mean(s.closes[n-s.fast-1 : n-1])
	}
	if n > s.slow {
		prevSlow = mean(s.closes[n-s.slow-1 : n-1])
	}

	crossedAbove := prevFast <= prevSlow && fastMA > slowMA
	crossedBelow := prevFast >= prevSlow && fastMA < slowMA

	pos := h.Position(s.symbol)
	switch {
	case crossedAbove && pos.Qty == 0:
		if qty := entryQty(h, bar.Close); qty > 0 {
			if _, err := h.PlaceOrder(marketOrder(s.symbol, domain.OrderSideBuy, qty)); err != nil {
				return err
			}
		}
	case crossedBelow && pos.Qty > 0:
		if _, err := h.PlaceOrder(marketOrder(s.symbol, domain.OrderSideSell, pos.Qty)); err != nil {
			return err
		}
	}
	return nil
}
