package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/polywhale/whalewatch/internal/polymarket"
)

// ErrNoMarkets is returned by Start when there is nothing to monitor
// after discovery.
var ErrNoMarkets = errors.New("no markets to monitor")

// Fetcher provides orderbook snapshots for a token. Both the REST and
// the WebSocket Polymarket clients satisfy it.
type Fetcher interface {
	GetOrderbook(ctx context.Context, tokenID string) (*polymarket.Book, error)
}

// MarketSource discovers markets to track when none were set before
// Start.
type MarketSource interface {
	DiscoverMarkets(ctx context.Context, limit int) ([]TrackedMarket, error)
}

// Config holds monitor tuning knobs.
type Config struct {
	PollInterval time.Duration

	SizeThreshold  decimal.Decimal
	ValueThreshold decimal.Decimal

	BookHistorySize     int
	SpreadHistorySize   int
	BigTradeHistorySize int
	DedupCapacity       int

	FetchTimeout time.Duration
	StopTimeout  time.Duration
}

// DefaultConfig returns the reference configuration: a 3s poll with
// size/value thresholds of 500/100.
func DefaultConfig() Config {
	return Config{
		PollInterval:        3 * time.Second,
		SizeThreshold:       decimal.NewFromInt(500),
		ValueThreshold:      decimal.NewFromInt(100),
		BookHistorySize:     1000,
		SpreadHistorySize:   1000,
		BigTradeHistorySize: 10000,
		DedupCapacity:       100000,
		FetchTimeout:        10 * time.Second,
		StopTimeout:         5 * time.Second,
	}
}

// Monitor polls tracked markets for big orders on a background worker.
// Configuration calls and history/stats reads are safe from any
// goroutine while the worker runs.
type Monitor struct {
	cfg        Config
	fetcher    Fetcher
	source     MarketSource
	dispatcher *Dispatcher

	dedup     *DedupStore
	bigTrades *History[BigTrade]
	books     *History[BookSummary]
	spreads   *History[polymarket.Spread]

	// procMu excludes ClearHistory against an in-flight market's
	// item processing.
	procMu sync.Mutex

	mu         sync.RWMutex
	running    bool
	markets    []TrackedMarket
	thresholds Thresholds
	startTime  time.Time
	stopCh     chan struct{}
	doneCh     chan struct{}

	totalChecked atomic.Uint64
	bigDetected  atomic.Uint64
	alertsSent   atomic.Uint64
}

// New creates a monitor. source may be nil when auto-discovery is
// never used.
func New(cfg Config, fetcher Fetcher, source MarketSource) *Monitor {
	return &Monitor{
		cfg:        cfg,
		fetcher:    fetcher,
		source:     source,
		dispatcher: NewDispatcher(),
		dedup:      NewDedupStore(cfg.DedupCapacity),
		bigTrades:  NewHistory[BigTrade](cfg.BigTradeHistorySize),
		books:      NewHistory[BookSummary](cfg.BookHistorySize),
		spreads:    NewHistory[polymarket.Spread](cfg.SpreadHistorySize),
		thresholds: Thresholds{Size: cfg.SizeThreshold, Value: cfg.ValueThreshold},
	}
}

// RegisterConsumer adds an alert consumer. Consumers are invoked in
// registration order.
func (m *Monitor) RegisterConsumer(c Consumer) {
	m.dispatcher.Register(c)
}

// SetThresholds updates the alert thresholds. A nil argument leaves
// that threshold unchanged. Takes effect at the next cycle boundary.
func (m *Monitor) SetThresholds(size, value *decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if size != nil {
		m.thresholds.Size = *size
		log.Info().Str("size_threshold", size.String()).Msg("Size threshold updated")
	}
	if value != nil {
		m.thresholds.Value = *value
		log.Info().Str("value_threshold", value.String()).Msg("Value threshold updated")
	}
}

// SetTrackedMarkets replaces the tracked-market set. Takes effect at
// the next cycle boundary.
func (m *Monitor) SetTrackedMarkets(markets []TrackedMarket) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.markets = append([]TrackedMarket(nil), markets...)
	log.Info().Int("markets", len(markets)).Msg("🎯 Tracked markets updated")
}

// TrackedMarkets returns a copy of the tracked-market set.
func (m *Monitor) TrackedMarkets() []TrackedMarket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]TrackedMarket(nil), m.markets...)
}

// Start begins monitoring on a background worker. When no markets are
// tracked and autoDiscover is set, the market source populates the set
// first, bounded by marketLimit. Starting an already-running monitor is
// a logged no-op. Returns ErrNoMarkets when there is nothing to
// monitor; the monitor stays stopped in that case.
func (m *Monitor) Start(ctx context.Context, autoDiscover bool, marketLimit int) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		log.Warn().Msg("Monitor already running")
		return nil
	}
	needDiscovery := autoDiscover && len(m.markets) == 0 && m.source != nil
	m.mu.Unlock()

	if needDiscovery {
		log.Info().Int("limit", marketLimit).Msg("Discovering active markets...")
		markets, err := m.source.DiscoverMarkets(ctx, marketLimit)
		if err != nil {
			log.Error().Err(err).Msg("Market discovery failed")
		} else {
			m.SetTrackedMarkets(markets)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		log.Warn().Msg("Monitor already running")
		return nil
	}
	if len(m.markets) == 0 {
		return ErrNoMarkets
	}

	m.running = true
	m.startTime = time.Now()
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	log.Info().
		Dur("poll_interval", m.cfg.PollInterval).
		Str("size_threshold", m.thresholds.Size.String()).
		Str("value_threshold", m.thresholds.Value.String()).
		Int("markets", len(m.markets)).
		Int("consumers", m.dispatcher.Count()).
		Msg("🚀 Big trade monitor started")

	go m.run(ctx, m.stopCh, m.doneCh)
	return nil
}

// Stop signals the worker and waits up to the configured stop timeout
// for it to exit its current cycle. Stopping a stopped monitor is a
// no-op. The worker re-checks the stop flag between markets, so stop
// latency is bounded by one market's fetch, not a full cycle; a worker
// stuck in a hung fetch is detached after the timeout.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		log.Warn().Msg("Monitor not running")
		return
	}
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	log.Info().Msg("🛑 Stopping monitor...")
	close(stopCh)

	select {
	case <-doneCh:
	case <-time.After(m.cfg.StopTimeout):
		log.Warn().Dur("timeout", m.cfg.StopTimeout).Msg("Monitor worker did not exit in time, detaching")
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	log.Info().Msg("Monitor stopped")
}

// IsRunning reports whether the worker is active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// run is the worker loop: one poll cycle per interval, where the
// interval is a floor on inter-cycle spacing rather than an additive
// delay on top of fetch latency.
func (m *Monitor) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	cycle := 0
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		cycle++
		cycleStart := time.Now()
		m.safeCycle(ctx, stopCh, cycle)
		elapsed := time.Since(cycleStart)

		sleep := m.cfg.PollInterval - elapsed
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// safeCycle runs one poll cycle, recovering from unexpected panics so
// the loop only ever stops on an explicit Stop. After a panic the full
// poll interval is slept by the caller's normal path since elapsed time
// is discarded with the cycle.
func (m *Monitor) safeCycle(ctx context.Context, stopCh chan struct{}, cycle int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int("cycle", cycle).Msg("❌ Monitor cycle panicked")
			select {
			case <-stopCh:
			case <-time.After(m.cfg.PollInterval):
			}
		}
	}()
	m.runCycle(ctx, stopCh, cycle)
}

// runCycle visits every tracked market once, in order. A single
// market's fetch failure is logged and skipped; it never aborts the
// cycle for the remaining markets.
func (m *Monitor) runCycle(ctx context.Context, stopCh chan struct{}, cycle int) {
	m.mu.RLock()
	markets := m.markets
	thresholds := m.thresholds
	m.mu.RUnlock()

	start := time.Now()
	checked := uint64(0)

	for _, market := range markets {
		select {
		case <-stopCh:
			return
		default:
		}

		if market.TokenID == "" {
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
		book, err := m.fetcher.GetOrderbook(fetchCtx, market.TokenID)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("token", market.TokenID).Msg("Orderbook fetch failed")
			continue
		}

		checked += uint64(len(book.Bids) + len(book.Asks))
		m.processBook(book, market, thresholds)
	}

	log.Debug().
		Int("cycle", cycle).
		Int("markets", len(markets)).
		Uint64("orders", checked).
		Dur("elapsed", time.Since(start)).
		Msg("Cycle complete")
}

// processBook feeds one fetched book through history, dedup, threshold
// evaluation and alert dispatch. Held under procMu so ClearHistory is
// mutually exclusive with these writes.
func (m *Monitor) processBook(book *polymarket.Book, market TrackedMarket, thresholds Thresholds) {
	m.procMu.Lock()
	defer m.procMu.Unlock()

	m.books.Push(BookSummary{
		TokenID:   book.TokenID,
		NumBids:   len(book.Bids),
		NumAsks:   len(book.Asks),
		Timestamp: book.Timestamp,
	})
	m.spreads.Push(polymarket.SpreadFromBook(book))

	m.processSide(book, book.Bids, SideBid, market, thresholds)
	m.processSide(book, book.Asks, SideAsk, market, thresholds)
}

func (m *Monitor) processSide(book *polymarket.Book, levels []polymarket.Level, side Side, market TrackedMarket, thresholds Thresholds) {
	for _, level := range levels {
		m.totalChecked.Add(1)

		order := Order{
			TokenID:   book.TokenID,
			Side:      side,
			Price:     level.Price,
			Size:      level.Size,
			Timestamp: book.Timestamp,
		}

		// Mark before evaluation: an ID is processed at most once
		// across the store's lifetime, big or not.
		if !m.dedup.MarkIfNew(order.ObservationID()) {
			continue
		}

		if !thresholds.IsBig(order.Size, order.Price) {
			continue
		}

		m.bigDetected.Add(1)
		trade := BigTrade{
			Order:         order,
			Value:         order.Value(),
			DetectionTime: time.Now(),
			Outcome:       market.Outcome,
			Question:      market.Question,
			MarketSlug:    market.MarketSlug,
			Type:          TradeTypeLimitOrder,
		}
		m.bigTrades.Push(trade)

		sent := m.dispatcher.Dispatch(trade)
		m.alertsSent.Add(uint64(sent))
	}
}

// GetStats returns a point-in-time copy of the monitoring statistics.
func (m *Monitor) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		TotalChecked:     m.totalChecked.Load(),
		BigDetected:      m.bigDetected.Load(),
		AlertsSent:       m.alertsSent.Load(),
		MarketsMonitored: len(m.markets),
		StartTime:        m.startTime,
	}
	if !m.startTime.IsZero() {
		stats.Uptime = time.Since(m.startTime)
	}
	return stats
}

// GetBigTrades returns detected big trades, oldest first.
func (m *Monitor) GetBigTrades() []BigTrade {
	return m.bigTrades.Snapshot()
}

// GetBookSummaries returns the buffered per-snapshot book summaries,
// oldest first.
func (m *Monitor) GetBookSummaries() []BookSummary {
	return m.books.Snapshot()
}

// GetSpreads returns the buffered spread records, oldest first.
func (m *Monitor) GetSpreads() []polymarket.Spread {
	return m.spreads.Snapshot()
}

// LatestSpreads returns the most recent spread per tracked token,
// newest first.
func (m *Monitor) LatestSpreads() []polymarket.Spread {
	all := m.spreads.Snapshot()
	seen := make(map[string]bool)
	var latest []polymarket.Spread
	for i := len(all) - 1; i >= 0; i-- {
		s := all[i]
		if seen[s.TokenID] {
			continue
		}
		seen[s.TokenID] = true
		latest = append(latest, s)
	}
	return latest
}

// ClearHistory empties the history buffers and the dedup store and
// resets the statistics counters. Mutually exclusive with an in-flight
// cycle's item processing.
func (m *Monitor) ClearHistory() {
	m.procMu.Lock()
	defer m.procMu.Unlock()

	m.bigTrades.Clear()
	m.books.Clear()
	m.spreads.Clear()
	m.dedup.Clear()
	m.totalChecked.Store(0)
	m.bigDetected.Store(0)
	m.alertsSent.Store(0)

	log.Info().Msg("History cleared")
}
