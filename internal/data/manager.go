// Package data provides the market-data layer: fetching daily bars from the
// Alpaca market-data API with a local cache-first policy.
package data

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"backsim/internal/domain"
	"backsim/internal/store"
	"backsim/internal/util"
)

// DefaultCacheTTL is how long cached bars are served without consulting the
// upstream feed.
const DefaultCacheTTL = 24 * time.Hour

// knownSymbols is the curated universe offered to API consumers. Any symbol
// the upstream feed recognizes can still be requested directly.
var knownSymbols = []string{
	"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA", "META", "NVDA", "NFLX",
	"SPY", "QQQ", "IWM", "GLD", "SLV", "USO", "TLT", "VTI",
}

// barFetcher is the upstream feed dependency, narrowed for testability.
type barFetcher interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// Manager serves daily bars cache-first: a symbol whose cache entry is
// younger than the TTL and covers the requested range never touches the
// upstream feed.
type Manager struct {
	fetcher barFetcher
	store   store.BarStore
	ttl     time.Duration
	limiter *util.RateLimiter
	log     *slog.Logger

	// now is stubbed in tests.
	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the cache freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithRateLimit bounds upstream fetches to perMinute calls per minute.
func WithRateLimit(perMinute int) Option {
	return func(m *Manager) { m.limiter = util.NewRateLimiter(perMinute) }
}

// NewManager creates a Manager backed by the Alpaca market-data API and the
// given bar cache.
func NewManager(apiKey, apiSecret, dataURL string, s store.BarStore, log *slog.Logger, opts ...Option) *Manager {
	clientOpts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		clientOpts.BaseURL = dataURL
	}
	return newManager(&alpacaFetcher{client: marketdata.NewClient(clientOpts)}, s, log, opts...)
}

func newManager(f barFetcher, s store.BarStore, log *slog.Logger, opts ...Option) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		fetcher: f,
		store:   s,
		ttl:     DefaultCacheTTL,
		log:     log.With("component", "data"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetBars returns daily bars for symbol within [start, end], sorted by
// timestamp. Cached data is served when fresh; otherwise the upstream feed is
// queried and the cache refreshed. A fetch failure falls back to stale cached
// data when any exists.
func (m *Manager) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	updated, ok, err := m.store.LastUpdated(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("checking cache for %s: %w", symbol, err)
	}
	if ok && m.now().Sub(updated) < m.ttl {
		bars, err := m.store.ReadBars(ctx, symbol, start, end)
		if err != nil {
			return nil, fmt.Errorf("reading cache for %s: %w", symbol, err)
		}
		if len(bars) > 0 {
			m.log.Debug("cache hit", "symbol", symbol, "bars", len(bars))
			return bars, nil
		}
	}

	bars, err := m.fetch(ctx, symbol, start, end)
	if err != nil {
		// Stale cache beats no data.
		if cached, cerr := m.store.ReadBars(ctx, symbol, start, end); cerr == nil && len(cached) > 0 {
			m.log.Warn("serving stale cache after fetch failure", "symbol", symbol, "err", err)
			return cached, nil
		}
		return nil, err
	}

	if err := m.store.WriteBars(ctx, bars); err != nil {
		m.log.Warn("caching bars failed", "symbol", symbol, "err", err)
	}
	return bars, nil
}

// fetch queries the upstream feed with rate limiting and retry, then
// validates and sorts the result.
func (m *Manager) fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var bars []domain.Bar
	err := util.Retry(ctx, 3, 500*time.Millisecond, func() error {
		var ferr error
		bars, ferr = m.fetcher.FetchBars(ctx, symbol, start, end)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("fetching bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no data for symbol %s in %s..%s",
			symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	for i, b := range bars {
		if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
			return nil, fmt.Errorf("upstream bar %d for %s has inconsistent OHLC", i, symbol)
		}
	}
	m.log.Info("fetched bars", "symbol", symbol, "bars", len(bars))
	return bars, nil
}

// Symbols returns the curated symbol universe merged with every symbol
// already present in the cache, sorted.
func (m *Manager) Symbols(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{}, len(knownSymbols))
	for _, s := range knownSymbols {
		seen[s] = struct{}{}
	}

	cached, err := m.store.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range cached {
		seen[s] = struct{}{}
	}

	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// alpacaFetcher adapts the Alpaca market-data client to barFetcher.
type alpacaFetcher struct {
	client *marketdata.Client
}

func (f *alpacaFetcher) FetchBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	alpacaBars, err := f.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      "iex",
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars: %w", err)
	}

	bars := make([]domain.Bar, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		bars = append(bars, domain.Bar{
			Symbol:    strings.ToUpper(symbol),
			Timestamp: ab.Timestamp,
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    int64(ab.Volume),
		})
	}
	return bars, nil
}
