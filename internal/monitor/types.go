// Package monitor implements the big-trade monitoring engine: a
// background polling loop that fetches orderbooks for tracked markets,
// flags oversized or high-value orders against configurable thresholds,
// deduplicates repeat observations and dispatches alerts to registered
// consumers while keeping bounded history buffers.
package monitor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side marks which side of the book an observation came from.
type Side string

const (
	SideBid Side = "BID"
	SideAsk Side = "ASK"
)

// TrackedMarket is one tokenID/outcome pair under monitoring.
// Immutable once added to the tracked set.
type TrackedMarket struct {
	TokenID    string
	Outcome    string
	Question   string
	MarketSlug string
	Volume     float64
	Liquidity  float64
}

// Order is a single resting order observed in an orderbook snapshot.
type Order struct {
	TokenID   string
	Side      Side
	Price     decimal.Decimal
	Size      decimal.Decimal
	Timestamp time.Time
}

// Value returns price * size.
func (o Order) Value() decimal.Decimal {
	return o.Price.Mul(o.Size)
}

// ObservationID is the dedup key for an order. Two observations with
// identical token, side, price and size collapse to the same ID, so an
// unchanged resting order is never re-alerted.
func (o Order) ObservationID() string {
	return fmt.Sprintf("%s_%s_%s_%s", o.TokenID, o.Side, o.Price.String(), o.Size.String())
}

// BigTrade is a flagged order enriched with market metadata.
// Immutable once created.
type BigTrade struct {
	Order

	Value         decimal.Decimal
	DetectionTime time.Time
	Outcome       string
	Question      string
	MarketSlug    string
	Type          string // always "LIMIT_ORDER" for book-derived records
}

// TradeTypeLimitOrder marks records detected from resting book orders.
const TradeTypeLimitOrder = "LIMIT_ORDER"

// BookSummary is a compact per-snapshot record kept in history.
type BookSummary struct {
	TokenID   string
	NumBids   int
	NumAsks   int
	Timestamp time.Time
}

// Thresholds define what counts as a big order. A record is big when
// size >= Size OR price*size >= Value.
type Thresholds struct {
	Size  decimal.Decimal
	Value decimal.Decimal
}

// IsBig evaluates an observation against the thresholds. Negative
// inputs never qualify; the caller is expected to have already dropped
// unparseable API rows, so every value reaching here is a real number.
func (t Thresholds) IsBig(size, price decimal.Decimal) bool {
	if size.IsNegative() || price.IsNegative() {
		return false
	}
	return size.GreaterThanOrEqual(t.Size) || size.Mul(price).GreaterThanOrEqual(t.Value)
}

// Stats is a point-in-time copy of monitoring statistics.
type Stats struct {
	TotalChecked     uint64
	BigDetected      uint64
	AlertsSent       uint64
	MarketsMonitored int
	StartTime        time.Time
	Uptime           time.Duration
}
