// Package positions tracks open positions and realized/unrealized P&L
// for markets surfaced by the monitor.
package positions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/polywhale/whalewatch/internal/polymarket"
)

// PositionSide is the direction of a position.
type PositionSide string

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
)

// Position is one open position.
type Position struct {
	TokenID       string
	MarketName    string
	Side          PositionSide
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	EntryTime     time.Time
	CurrentPrice  decimal.Decimal
	UnrealizedPnL decimal.Decimal
	// UnrealizedPnLPct is the unrealized P&L over the entry cost, in percent.
	UnrealizedPnLPct decimal.Decimal
}

// ClosedTrade records a closed position with realized P&L.
type ClosedTrade struct {
	TokenID        string
	MarketName     string
	Side           PositionSide
	Size           decimal.Decimal
	EntryPrice     decimal.Decimal
	ExitPrice      decimal.Decimal
	EntryTime      time.Time
	ExitTime       time.Time
	RealizedPnL    decimal.Decimal
	RealizedPnLPct decimal.Decimal
}

// Summary aggregates portfolio statistics.
type Summary struct {
	OpenPositions      int
	ClosedPositions    int
	TotalUnrealizedPnL decimal.Decimal
	TotalRealizedPnL   decimal.Decimal
	TotalPnL           decimal.Decimal
	WinningTrades      int
	LosingTrades       int
	WinRatePct         decimal.Decimal
	Timestamp          time.Time
}

// PriceSource provides top-of-book data for mark-to-market updates.
// The Polymarket REST client satisfies it.
type PriceSource interface {
	GetTopOfBook(ctx context.Context, tokenIDs []string) []polymarket.Spread
}

// Manager owns positions and P&L bookkeeping. Safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	prices    PriceSource
	positions map[string]*Position
	closed    []ClosedTrade
}

// NewManager creates a position manager. prices may be nil when
// mark-to-market updates are not needed.
func NewManager(prices PriceSource) *Manager {
	return &Manager{
		prices:    prices,
		positions: make(map[string]*Position),
	}
}

// Open adds a position. An existing position on the same token is
// replaced.
func (m *Manager) Open(tokenID, marketName string, side PositionSide, size, entryPrice decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.positions[tokenID] = &Position{
		TokenID:      tokenID,
		MarketName:   marketName,
		Side:         side,
		Size:         size,
		EntryPrice:   entryPrice,
		EntryTime:    time.Now(),
		CurrentPrice: entryPrice,
	}
	log.Info().
		Str("token", tokenID).
		Str("side", string(side)).
		Str("size", size.String()).
		Str("entry", entryPrice.String()).
		Str("market", marketName).
		Msg("📈 Position opened")
}

// Close closes a position at exitPrice and returns the realized P&L.
func (m *Manager) Close(tokenID string, exitPrice decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[tokenID]
	if !ok {
		return decimal.Zero, fmt.Errorf("no position for token %s", tokenID)
	}

	pnl := realizedPnL(pos.Side, pos.Size, pos.EntryPrice, exitPrice)
	cost := pos.Size.Mul(pos.EntryPrice)
	pnlPct := decimal.Zero
	if cost.IsPositive() {
		pnlPct = pnl.Div(cost).Mul(decimal.NewFromInt(100))
	}

	m.closed = append(m.closed, ClosedTrade{
		TokenID:        pos.TokenID,
		MarketName:     pos.MarketName,
		Side:           pos.Side,
		Size:           pos.Size,
		EntryPrice:     pos.EntryPrice,
		ExitPrice:      exitPrice,
		EntryTime:      pos.EntryTime,
		ExitTime:       time.Now(),
		RealizedPnL:    pnl,
		RealizedPnLPct: pnlPct,
	})
	delete(m.positions, tokenID)

	log.Info().
		Str("token", tokenID).
		Str("exit", exitPrice.String()).
		Str("pnl", pnl.StringFixed(2)).
		Msg("📉 Position closed")
	return pnl, nil
}

func realizedPnL(side PositionSide, size, entry, exit decimal.Decimal) decimal.Decimal {
	if side == Long {
		return size.Mul(exit.Sub(entry))
	}
	return size.Mul(entry.Sub(exit))
}

// UpdateAll refreshes current prices and unrealized P&L for all open
// positions using mid prices from the price source.
func (m *Manager) UpdateAll(ctx context.Context) {
	m.mu.RLock()
	tokenIDs := make([]string, 0, len(m.positions))
	for id := range m.positions {
		tokenIDs = append(tokenIDs, id)
	}
	m.mu.RUnlock()

	if len(tokenIDs) == 0 || m.prices == nil {
		return
	}

	spreads := m.prices.GetTopOfBook(ctx, tokenIDs)

	m.mu.Lock()
	defer m.mu.Unlock()

	two := decimal.NewFromInt(2)
	for _, s := range spreads {
		pos, ok := m.positions[s.TokenID]
		if !ok {
			continue
		}

		price := pos.EntryPrice
		if s.BestBid.IsPositive() && s.BestAsk.IsPositive() {
			price = s.BestBid.Add(s.BestAsk).Div(two)
		}
		pos.CurrentPrice = price

		pos.UnrealizedPnL = realizedPnL(pos.Side, pos.Size, pos.EntryPrice, price)
		cost := pos.Size.Mul(pos.EntryPrice)
		if cost.IsPositive() {
			pos.UnrealizedPnLPct = pos.UnrealizedPnL.Div(cost).Mul(decimal.NewFromInt(100))
		} else {
			pos.UnrealizedPnLPct = decimal.Zero
		}
	}
}

// Positions returns a copy of the open positions.
func (m *Manager) Positions() []Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// ClosedTrades returns a copy of the closed-trade history.
func (m *Manager) ClosedTrades() []ClosedTrade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ClosedTrade(nil), m.closed...)
}

// PortfolioSummary aggregates open and closed P&L.
func (m *Manager) PortfolioSummary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{
		OpenPositions:   len(m.positions),
		ClosedPositions: len(m.closed),
		Timestamp:       time.Now(),
	}
	for _, p := range m.positions {
		s.TotalUnrealizedPnL = s.TotalUnrealizedPnL.Add(p.UnrealizedPnL)
	}
	for _, t := range m.closed {
		s.TotalRealizedPnL = s.TotalRealizedPnL.Add(t.RealizedPnL)
		if t.RealizedPnL.IsPositive() {
			s.WinningTrades++
		} else if t.RealizedPnL.IsNegative() {
			s.LosingTrades++
		}
	}
	s.TotalPnL = s.TotalUnrealizedPnL.Add(s.TotalRealizedPnL)
	if s.ClosedPositions > 0 {
		s.WinRatePct = decimal.NewFromInt(int64(s.WinningTrades)).
			Div(decimal.NewFromInt(int64(s.ClosedPositions))).
			Mul(decimal.NewFromInt(100))
	}
	return s
}

// BestTrade returns the closed trade with the highest realized P&L.
func (m *Manager) BestTrade() (ClosedTrade, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.closed) == 0 {
		return ClosedTrade{}, false
	}
	best := m.closed[0]
	for _, t := range m.closed[1:] {
		if t.RealizedPnL.GreaterThan(best.RealizedPnL) {
			best = t
		}
	}
	return best, true
}

// WorstTrade returns the closed trade with the lowest realized P&L.
func (m *Manager) WorstTrade() (ClosedTrade, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.closed) == 0 {
		return ClosedTrade{}, false
	}
	worst := m.closed[0]
	for _, t := range m.closed[1:] {
		if t.RealizedPnL.LessThan(worst.RealizedPnL) {
			worst = t
		}
	}
	return worst, true
}

// StopLossHits returns open positions at or below the stop-loss
// percentage (a negative number, e.g. -10).
func (m *Manager) StopLossHits(stopLossPct decimal.Decimal) []Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Position
	for _, p := range m.positions {
		if p.UnrealizedPnLPct.LessThanOrEqual(stopLossPct) {
			hits = append(hits, *p)
			log.Warn().
				Str("token", p.TokenID).
				Str("market", p.MarketName).
				Str("pnl_pct", p.UnrealizedPnLPct.StringFixed(2)).
				Msg("🛑 Stop loss triggered")
		}
	}
	return hits
}

// TakeProfitHits returns open positions at or above the take-profit
// percentage.
func (m *Manager) TakeProfitHits(takeProfitPct decimal.Decimal) []Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Position
	for _, p := range m.positions {
		if p.UnrealizedPnLPct.GreaterThanOrEqual(takeProfitPct) {
			hits = append(hits, *p)
			log.Info().
				Str("token", p.TokenID).
				Str("market", p.MarketName).
				Str("pnl_pct", p.UnrealizedPnLPct.StringFixed(2)).
				Msg("🎯 Take profit triggered")
		}
	}
	return hits
}
