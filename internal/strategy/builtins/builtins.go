// Package builtins provides the built-in strategy implementations that ship
// with the platform.
package builtins

import (
	"math"

	"backsim/internal/domain"
	"backsim/internal/engine"
	"backsim/internal/strategy"
)

// RegisterAll adds every built-in strategy to the registry.
func RegisterAll(r *strategy.Registry) {
	r.Register(maCrossInfo, NewMACross)
	r.Register(rsiInfo, NewRSI)
	r.Register(bollingerInfo, NewBollinger)
}

// entryQty sizes a new long position at 95% of available cash, in whole
// shares.
func entryQty(h *engine.Handle, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return math.Floor(h.Cash() * 0.95 / price)
}

func marketOrder(symbol string, side domain.OrderSide, qty float64) engine.OrderRequest {
	return engine.OrderRequest{
		Symbol: symbol,
		Side:   side,
		Type:   domain.OrderTypeMarket,
		Qty:    qty,
	}
}

// mean returns the arithmetic mean of vs. It panics on an empty slice; every
// caller guards the window length first.
func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
