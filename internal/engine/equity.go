package engine

import (
	"math"
	"time"

	"backsim/internal/domain"
)

// tradingDaysPerYear is the annualization factor for daily samples. The
// summary assumes one equity sample per trading day regardless of the feed's
// actual bar interval; intraday feeds overstate annualized figures.
const tradingDaysPerYear = 252

// Tracker derives mark-to-market equity once per bar and maintains the peak
// equity and running max drawdown of a run. Both peak equity and max
// drawdown are non-decreasing for the life of a run.
type Tracker struct {
	peak        float64
	maxDrawdown float64
	curve       []domain.EquitySample
}

// NewTracker creates a tracker seeded with the run's initial capital as the
// starting peak.
func NewTracker(initialCapital float64) *Tracker {
	t := &Tracker{}
	t.Reset(initialCapital)
	return t
}

// Reset clears the equity curve and reseeds the peak with initialCapital.
func (t *Tracker) Reset(initialCapital float64) {
	t.peak = initialCapital
	t.maxDrawdown = 0
	t.curve = nil
}

// Sample appends one equity observation and returns it. Drawdown is the
// fractional decline from peak equity, defined as 0 when the peak is 0.
func (t *Tracker) Sample(ts time.Time, equity, cash float64) domain.EquitySample {
	if equity > t.peak {
		t.peak = equity
	}

	var drawdown float64
	if t.peak > 0 {
		drawdown = (t.peak - equity) / t.peak
	}
	if drawdown > t.maxDrawdown {
		t.maxDrawdown = drawdown
	}

	sample := domain.EquitySample{
		Timestamp: ts,
		Equity:    equity,
		Cash:      cash,
		Drawdown:  drawdown,
	}
	t.curve = append(t.curve, sample)
	return sample
}

// Peak returns the highest equity observed so far.
func (t *Tracker) Peak() float64 { return t.peak }

// MaxDrawdown returns the largest drawdown observed so far.
func (t *Tracker) MaxDrawdown() float64 { return t.maxDrawdown }

// Curve returns a copy of the equity curve in bar order.
func (t *Tracker) Curve() []domain.EquitySample {
	out := make([]domain.EquitySample, len(t.curve))
	copy(out, t.curve)
	return out
}

// summarize computes the performance summary from the equity curve and trade
// record. Every division is zero-guarded so degenerate inputs (zero bars,
// zero trades) produce a neutral summary by construction.
func summarize(
	initialCapital float64,
	curve []domain.EquitySample,
	trades []domain.Trade,
	totalTrades, winningTrades int,
	peak, maxDrawdown float64,
) domain.Summary {
	s := domain.Summary{
		MaxDrawdown:   maxDrawdown,
		TotalTrades:   totalTrades,
		WinningTrades: winningTrades,
		FinalEquity:   initialCapital,
		PeakEquity:    peak,
		EquityCurve:   curve,
		Trades:        trades,
	}
	if s.EquityCurve == nil {
		s.EquityCurve = []domain.EquitySample{}
	}
	if s.Trades == nil {
		s.Trades = []domain.Trade{}
	}

	if len(curve) > 0 {
		s.FinalEquity = curve[len(curve)-1].Equity
	}
	if initialCapital > 0 {
		s.TotalReturn = (s.FinalEquity - initialCapital) / initialCapital
	}
	if len(curve) > 1 {
		s.AnnualReturn = s.TotalReturn * (tradingDaysPerYear / float64(len(curve)))
	}
	s.Volatility = annualizedVolatility(curve)
	if s.Volatility > 0 {
		s.SharpeRatio = s.AnnualReturn / s.Volatility
	}
	if totalTrades > 0 {
		s.WinRate = float64(winningTrades) / float64(totalTrades)
	}
	return s
}

// annualizedVolatility is the sample standard deviation of period-over-period
// equity percent changes, scaled by sqrt(252). It returns 0 when fewer than
// two return observations exist.
func annualizedVolatility(curve []domain.EquitySample) float64 {
	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	stdev := math.Sqrt(ss / float64(len(returns)-1))
	return stdev * math.Sqrt(tradingDaysPerYear)
}
