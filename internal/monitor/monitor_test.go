package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywhale/whalewatch/internal/polymarket"
)

// fakeFetcher serves canned books per token, with optional per-token
// errors, and counts calls.
type fakeFetcher struct {
	mu    sync.Mutex
	books map[string]*polymarket.Book
	errs  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		books: make(map[string]*polymarket.Book),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) GetOrderbook(_ context.Context, tokenID string) (*polymarket.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[tokenID]++
	if err := f.errs[tokenID]; err != nil {
		return nil, err
	}
	if book, ok := f.books[tokenID]; ok {
		return book, nil
	}
	return &polymarket.Book{TokenID: tokenID, Timestamp: time.Now()}, nil
}

func (f *fakeFetcher) callCount(tokenID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tokenID]
}

type fakeSource struct {
	markets []TrackedMarket
	err     error
	calls   int
}

func (s *fakeSource) DiscoverMarkets(context.Context, int) ([]TrackedMarket, error) {
	s.calls++
	return s.markets, s.err
}

func testCfg() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.FetchTimeout = time.Second
	cfg.StopTimeout = time.Second
	return cfg
}

func bookWith(tokenID string, bids, asks []polymarket.Level) *polymarket.Book {
	return &polymarket.Book{
		TokenID:   tokenID,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now(),
	}
}

func lvl(price, size string) polymarket.Level {
	return polymarket.Level{Price: d(price), Size: d(size)}
}

func TestMonitorDetectsAndDeduplicates(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.books["tok1"] = bookWith("tok1",
		[]polymarket.Level{lvl("0.5", "600"), lvl("0.49", "10")}, // first is big by size
		[]polymarket.Level{lvl("0.52", "20")},
	)

	m := New(testCfg(), fetcher, nil)
	m.SetTrackedMarkets([]TrackedMarket{{TokenID: "tok1", Outcome: "Yes", Question: "Will it?", MarketSlug: "will-it"}})

	var mu sync.Mutex
	var received []BigTrade
	m.RegisterConsumer(ConsumerFunc{ConsumerName: "capture", Fn: func(tr BigTrade) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, tr)
		return nil
	}})

	require.NoError(t, m.Start(context.Background(), false, 0))
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.GetStats().BigDetected == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Let a few more cycles run over the unchanged book.
	require.Eventually(t, func() bool {
		return fetcher.callCount("tok1") >= 4
	}, 2*time.Second, 5*time.Millisecond)

	stats := m.GetStats()
	assert.Equal(t, uint64(1), stats.BigDetected, "unchanged resting order must not re-alert")
	assert.Equal(t, uint64(1), stats.AlertsSent)
	assert.GreaterOrEqual(t, stats.TotalChecked, uint64(9), "every level of every cycle is counted")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	got := received[0]
	assert.Equal(t, "tok1", got.TokenID)
	assert.Equal(t, SideBid, got.Side)
	assert.True(t, got.Size.Equal(d("600")))
	assert.True(t, got.Value.Equal(d("300")))
	assert.Equal(t, "Yes", got.Outcome)
	assert.Equal(t, "will-it", got.MarketSlug)
	assert.Equal(t, TradeTypeLimitOrder, got.Type)
	assert.False(t, got.DetectionTime.IsZero())

	trades := m.GetBigTrades()
	require.Len(t, trades, 1)
	assert.Equal(t, got.ObservationID(), trades[0].ObservationID())
}

func TestMonitorMarketFailureDoesNotAbortCycle(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.books["a"] = bookWith("a", []polymarket.Level{lvl("0.4", "700")}, nil)
	fetcher.errs["bad"] = errors.New("connection refused")
	fetcher.books["c"] = bookWith("c", nil, []polymarket.Level{lvl("0.6", "800")})

	m := New(testCfg(), fetcher, nil)
	m.SetTrackedMarkets([]TrackedMarket{{TokenID: "a"}, {TokenID: "bad"}, {TokenID: "c"}})

	require.NoError(t, m.Start(context.Background(), false, 0))
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.GetStats().BigDetected == 2
	}, 2*time.Second, 5*time.Millisecond)

	// The failing market keeps being retried each cycle.
	require.Eventually(t, func() bool {
		return fetcher.callCount("bad") >= 2
	}, 2*time.Second, 5*time.Millisecond)

	tokens := make(map[string]bool)
	for _, tr := range m.GetBigTrades() {
		tokens[tr.TokenID] = true
	}
	assert.True(t, tokens["a"])
	assert.True(t, tokens["c"])
}

func TestMonitorStartNoMarkets(t *testing.T) {
	m := New(testCfg(), newFakeFetcher(), nil)

	err := m.Start(context.Background(), false, 0)
	assert.ErrorIs(t, err, ErrNoMarkets)
	assert.False(t, m.IsRunning())
}

func TestMonitorStartAlreadyRunning(t *testing.T) {
	fetcher := newFakeFetcher()
	m := New(testCfg(), fetcher, nil)
	m.SetTrackedMarkets([]TrackedMarket{{TokenID: "tok1"}})

	require.NoError(t, m.Start(context.Background(), false, 0))
	defer m.Stop()

	assert.NoError(t, m.Start(context.Background(), false, 0))
	assert.True(t, m.IsRunning())
}

func TestMonitorStopWithinTimeout(t *testing.T) {
	fetcher := newFakeFetcher()
	m := New(testCfg(), fetcher, nil)
	m.SetTrackedMarkets([]TrackedMarket{{TokenID: "tok1"}})

	require.NoError(t, m.Start(context.Background(), false, 0))
	require.True(t, m.IsRunning())

	start := time.Now()
	m.Stop()
	assert.Less(t, time.Since(start), testCfg().StopTimeout)
	assert.False(t, m.IsRunning())

	// Stopping again is a no-op.
	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestMonitorRestartAfterStop(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.books["tok1"] = bookWith("tok1", []polymarket.Level{lvl("0.5", "600")}, nil)

	m := New(testCfg(), fetcher, nil)
	m.SetTrackedMarkets([]TrackedMarket{{TokenID: "tok1"}})

	require.NoError(t, m.Start(context.Background(), false, 0))
	m.Stop()

	require.NoError(t, m.Start(context.Background(), false, 0))
	defer m.Stop()
	assert.True(t, m.IsRunning())
}

func TestMonitorAutoDiscovery(t *testing.T) {
	fetcher := newFakeFetcher()
	source := &fakeSource{markets: []TrackedMarket{{TokenID: "tok1", Outcome: "Yes"}}}

	m := New(testCfg(), fetcher, source)
	require.NoError(t, m.Start(context.Background(), true, 5))
	defer m.Stop()

	assert.Equal(t, 1, source.calls)
	require.Len(t, m.TrackedMarkets(), 1)
	assert.Equal(t, "tok1", m.TrackedMarkets()[0].TokenID)
}

func TestMonitorDiscoverySkippedWhenMarketsSet(t *testing.T) {
	fetcher := newFakeFetcher()
	source := &fakeSource{markets: []TrackedMarket{{TokenID: "discovered"}}}

	m := New(testCfg(), fetcher, source)
	m.SetTrackedMarkets([]TrackedMarket{{TokenID: "manual"}})

	require.NoError(t, m.Start(context.Background(), true, 5))
	defer m.Stop()

	assert.Equal(t, 0, source.calls)
	assert.Equal(t, "manual", m.TrackedMarkets()[0].TokenID)
}

func TestMonitorDiscoveryFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("gamma down")}
	m := New(testCfg(), newFakeFetcher(), source)

	err := m.Start(context.Background(), true, 5)
	assert.ErrorIs(t, err, ErrNoMarkets)
	assert.False(t, m.IsRunning())
}

func TestMonitorSetThresholds(t *testing.T) {
	m := New(testCfg(), newFakeFetcher(), nil)

	size := d("250")
	m.SetThresholds(&size, nil)

	m.mu.RLock()
	assert.True(t, m.thresholds.Size.Equal(d("250")))
	assert.True(t, m.thresholds.Value.Equal(d("100")), "nil leaves value threshold unchanged")
	m.mu.RUnlock()

	value := d("5000")
	m.SetThresholds(nil, &value)

	m.mu.RLock()
	assert.True(t, m.thresholds.Size.Equal(d("250")))
	assert.True(t, m.thresholds.Value.Equal(d("5000")))
	m.mu.RUnlock()
}

func TestMonitorClearHistory(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.books["tok1"] = bookWith("tok1", []polymarket.Level{lvl("0.5", "600")}, nil)

	m := New(testCfg(), fetcher, nil)
	m.SetTrackedMarkets([]TrackedMarket{{TokenID: "tok1"}})

	require.NoError(t, m.Start(context.Background(), false, 0))
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.GetStats().BigDetected == 1
	}, 2*time.Second, 5*time.Millisecond)

	m.ClearHistory()

	assert.Empty(t, m.GetBookSummaries())
	assert.Empty(t, m.GetSpreads())

	// Counters reset, and with the dedup store cleared the same resting
	// order is detected again on a later cycle.
	require.Eventually(t, func() bool {
		stats := m.GetStats()
		return stats.BigDetected == 1 && len(m.GetBigTrades()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMonitorBookAndSpreadHistory(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.books["tok1"] = bookWith("tok1",
		[]polymarket.Level{lvl("0.48", "10")},
		[]polymarket.Level{lvl("0.52", "20")},
	)

	m := New(testCfg(), fetcher, nil)
	m.SetTrackedMarkets([]TrackedMarket{{TokenID: "tok1"}})

	require.NoError(t, m.Start(context.Background(), false, 0))
	defer m.Stop()

	require.Eventually(t, func() bool {
		return len(m.GetBookSummaries()) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	summary := m.GetBookSummaries()[0]
	assert.Equal(t, "tok1", summary.TokenID)
	assert.Equal(t, 1, summary.NumBids)
	assert.Equal(t, 1, summary.NumAsks)

	spreads := m.GetSpreads()
	require.NotEmpty(t, spreads)
	assert.True(t, spreads[0].BestBid.Equal(d("0.48")))
	assert.True(t, spreads[0].BestAsk.Equal(d("0.52")))
	assert.True(t, spreads[0].Spread.Equal(d("0.04")))
}

func TestLatestSpreads(t *testing.T) {
	m := New(testCfg(), newFakeFetcher(), nil)

	m.spreads.Push(polymarket.Spread{TokenID: "a", BestBid: d("0.40")})
	m.spreads.Push(polymarket.Spread{TokenID: "b", BestBid: d("0.30")})
	m.spreads.Push(polymarket.Spread{TokenID: "a", BestBid: d("0.45")})

	latest := m.LatestSpreads()
	require.Len(t, latest, 2)
	assert.Equal(t, "a", latest[0].TokenID)
	assert.True(t, latest[0].BestBid.Equal(d("0.45")), "newest record per token wins")
	assert.Equal(t, "b", latest[1].TokenID)
}

func TestMonitorSkipsEmptyTokenID(t *testing.T) {
	fetcher := newFakeFetcher()
	m := New(testCfg(), fetcher, nil)
	m.SetTrackedMarkets([]TrackedMarket{{TokenID: ""}, {TokenID: "tok1"}})

	require.NoError(t, m.Start(context.Background(), false, 0))
	defer m.Stop()

	require.Eventually(t, func() bool {
		return fetcher.callCount("tok1") >= 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, fetcher.callCount(""))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.True(t, cfg.SizeThreshold.Equal(decimal.NewFromInt(500)))
	assert.True(t, cfg.ValueThreshold.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1000, cfg.BookHistorySize)
	assert.Equal(t, 1000, cfg.SpreadHistorySize)
	assert.Equal(t, 10000, cfg.BigTradeHistorySize)
	assert.Equal(t, 5*time.Second, cfg.StopTimeout)
}
