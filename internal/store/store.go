// Package store defines the local market-data cache used between the data
// provider and its upstream feed, with Parquet and SQLite backends.
package store

import (
	"context"
	"time"

	"backsim/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bar data. Implementations also
// track when each symbol was last written so callers can decide whether the
// cached range is fresh enough to serve.
type BarStore interface {
	// WriteBars persists a batch of bars, merging with any overlapping
	// cached data by (symbol, timestamp).
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns cached bars for symbol within [start, end], sorted
	// by timestamp. A symbol with no cached data yields an empty slice.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with cached data, sorted.
	ListSymbols(ctx context.Context) ([]string, error)

	// LastUpdated reports when bars for symbol were last written. The
	// second return value is false when the symbol has never been cached.
	LastUpdated(ctx context.Context, symbol string) (time.Time, bool, error)
}
