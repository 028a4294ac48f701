// Package polymarket provides Polymarket API integration.
//
// client.go - REST client for the Gamma markets API and the CLOB
// orderbook/trades endpoints. All requests go through a shared
// minimum-delay rate limiter.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	DefaultGammaURL = "https://gamma-api.polymarket.com"
	DefaultCLOBURL  = "https://clob.polymarket.com"

	// DefaultRateLimitDelay is the minimum spacing between API calls.
	DefaultRateLimitDelay = 500 * time.Millisecond

	requestTimeout = 10 * time.Second
)

// Level is a single price level in an orderbook.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Book is an orderbook snapshot for one token.
type Book struct {
	TokenID   string
	Bids      []Level // best bid first
	Asks      []Level // best ask first
	Timestamp time.Time
}

// BestBid returns the top bid price, or zero if the bid side is empty.
func (b *Book) BestBid() decimal.Decimal {
	if len(b.Bids) == 0 {
		return decimal.Zero
	}
	return b.Bids[0].Price
}

// BestAsk returns the top ask price, or zero if the ask side is empty.
func (b *Book) BestAsk() decimal.Decimal {
	if len(b.Asks) == 0 {
		return decimal.Zero
	}
	return b.Asks[0].Price
}

// Depth sums bid and ask volume over the top priceLevels levels.
func (b *Book) Depth(priceLevels int) (bidDepth, askDepth decimal.Decimal) {
	for i := 0; i < priceLevels && i < len(b.Bids); i++ {
		bidDepth = bidDepth.Add(b.Bids[i].Size)
	}
	for i := 0; i < priceLevels && i < len(b.Asks); i++ {
		askDepth = askDepth.Add(b.Asks[i].Size)
	}
	return bidDepth, askDepth
}

// Imbalance returns (bidVolume - askVolume) / totalVolume over the top
// priceLevels levels. Range -1..+1, positive means bid-heavy.
func (b *Book) Imbalance(priceLevels int) decimal.Decimal {
	bidVol, askVol := b.Depth(priceLevels)
	total := bidVol.Add(askVol)
	if total.IsZero() {
		return decimal.Zero
	}
	return bidVol.Sub(askVol).Div(total)
}

// Spread holds top-of-book data for one token.
type Spread struct {
	TokenID   string
	BestBid   decimal.Decimal
	BestAsk   decimal.Decimal
	Spread    decimal.Decimal
	SpreadPct decimal.Decimal
	Timestamp time.Time
}

// Trade is a single fill from the CLOB trades endpoint.
type Trade struct {
	TokenID   string
	Side      string
	Price     decimal.Decimal
	Size      decimal.Decimal
	Timestamp time.Time
}

// Market is a market row from the Gamma API.
type Market struct {
	ID           string  `json:"id"`
	Question     string  `json:"question"`
	Slug         string  `json:"slug"`
	Active       bool    `json:"active"`
	Closed       bool    `json:"closed"`
	Volume       float64 `json:"volumeNum"`
	Liquidity    float64 `json:"liquidityNum"`
	ClobTokenIDs string  `json:"clobTokenIds"` // JSON array encoded as a string
	Outcomes     string  `json:"outcomes"`     // JSON array encoded as a string
}

// MarketsQuery controls Gamma /markets discovery.
type MarketsQuery struct {
	Closed       bool
	Limit        int
	Offset       int
	VolumeNumMin float64
	EndDateMin   time.Time
	EndDateMax   time.Time
	SportsTypes  []string // e.g. ["moneyline"]
}

// DefaultMarketsQuery mirrors the discovery defaults: open moneyline
// markets with at least $100k volume resolving within a week.
func DefaultMarketsQuery(limit int) MarketsQuery {
	now := time.Now()
	return MarketsQuery{
		Closed:       false,
		Limit:        limit,
		VolumeNumMin: 100000,
		EndDateMin:   now,
		EndDateMax:   now.AddDate(0, 0, 7),
		SportsTypes:  []string{"moneyline"},
	}
}

// Client is a rate-limited REST client for the Polymarket APIs.
type Client struct {
	gammaURL string
	clobURL  string
	http     *http.Client

	rateMu      sync.Mutex
	rateDelay   time.Duration
	lastRequest time.Time
}

// NewClient creates a client against the given API base URLs.
// Empty URLs fall back to the production endpoints.
func NewClient(gammaURL, clobURL string) *Client {
	if gammaURL == "" {
		gammaURL = DefaultGammaURL
	}
	if clobURL == "" {
		clobURL = DefaultCLOBURL
	}
	return &Client{
		gammaURL:  gammaURL,
		clobURL:   clobURL,
		http:      &http.Client{Timeout: requestTimeout},
		rateDelay: DefaultRateLimitDelay,
	}
}

// SetRateLimitDelay overrides the minimum spacing between requests.
func (c *Client) SetRateLimitDelay(d time.Duration) {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()
	c.rateDelay = d
}

// rateLimit blocks until the minimum delay since the previous request
// has elapsed, or the context is cancelled.
func (c *Client) rateLimit(ctx context.Context) error {
	c.rateMu.Lock()
	wait := c.rateDelay - time.Since(c.lastRequest)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = time.Now().Add(wait)
	c.rateMu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values, out interface{}) error {
	if err := c.rateLimit(ctx); err != nil {
		return err
	}

	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetMarkets fetches markets from the Gamma API.
func (c *Client) GetMarkets(ctx context.Context, q MarketsQuery) ([]Market, error) {
	params := url.Values{}
	params.Set("closed", strconv.FormatBool(q.Closed))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	params.Set("offset", strconv.Itoa(q.Offset))
	if q.VolumeNumMin > 0 {
		params.Set("volume_num_min", strconv.FormatFloat(q.VolumeNumMin, 'f', -1, 64))
	}
	if !q.EndDateMin.IsZero() {
		params.Set("end_date_min", q.EndDateMin.Format("2006-01-02"))
	}
	if !q.EndDateMax.IsZero() {
		params.Set("end_date_max", q.EndDateMax.Format("2006-01-02"))
	}
	for _, t := range q.SportsTypes {
		params.Add("sports_market_types", t)
	}

	var markets []Market
	if err := c.get(ctx, c.gammaURL+"/markets", params, &markets); err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}

	log.Debug().Int("count", len(markets)).Msg("📋 Markets fetched")
	return markets, nil
}

// rawLevel is the wire format of a CLOB price level.
type rawLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type rawBook struct {
	Bids []rawLevel `json:"bids"`
	Asks []rawLevel `json:"asks"`
}

// parseLevels converts wire levels to decimal levels, skipping rows
// that do not parse.
func parseLevels(raw []rawLevel) []Level {
	levels := make([]Level, 0, len(raw))
	for _, r := range raw {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(r.Size)
		if err != nil {
			continue
		}
		levels = append(levels, Level{Price: price, Size: size})
	}
	return levels
}

// GetOrderbook fetches the current orderbook for a token.
func (c *Client) GetOrderbook(ctx context.Context, tokenID string) (*Book, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var raw rawBook
	if err := c.get(ctx, c.clobURL+"/book", params, &raw); err != nil {
		return nil, fmt.Errorf("fetch orderbook %s: %w", tokenID, err)
	}

	return &Book{
		TokenID:   tokenID,
		Bids:      parseLevels(raw.Bids),
		Asks:      parseLevels(raw.Asks),
		Timestamp: time.Now(),
	}, nil
}

// GetSpread fetches the orderbook and computes top-of-book spread data.
func (c *Client) GetSpread(ctx context.Context, tokenID string) (Spread, error) {
	book, err := c.GetOrderbook(ctx, tokenID)
	if err != nil {
		return Spread{}, err
	}
	return SpreadFromBook(book), nil
}

// SpreadFromBook derives top-of-book spread data from a fetched book.
func SpreadFromBook(book *Book) Spread {
	s := Spread{
		TokenID:   book.TokenID,
		BestBid:   book.BestBid(),
		BestAsk:   book.BestAsk(),
		Timestamp: book.Timestamp,
	}
	if s.BestBid.IsPositive() && s.BestAsk.IsPositive() {
		s.Spread = s.BestAsk.Sub(s.BestBid)
	}
	if s.BestAsk.IsPositive() {
		s.SpreadPct = s.Spread.Div(s.BestAsk).Mul(decimal.NewFromInt(100))
	}
	return s
}

type rawTrade struct {
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}

// GetTrades fetches recent fills for a token. Requires an API key on
// the production endpoint; kept for deployments that have one.
func (c *Client) GetTrades(ctx context.Context, tokenID string, limit int) ([]Trade, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var raw []rawTrade
	if err := c.get(ctx, c.clobURL+"/trades", params, &raw); err != nil {
		return nil, fmt.Errorf("fetch trades %s: %w", tokenID, err)
	}

	trades := make([]Trade, 0, len(raw))
	for _, r := range raw {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(r.Size)
		if err != nil {
			continue
		}
		ts := time.Now()
		if unix, err := strconv.ParseInt(r.Timestamp, 10, 64); err == nil {
			ts = time.Unix(unix, 0)
		}
		trades = append(trades, Trade{
			TokenID:   tokenID,
			Side:      r.Side,
			Price:     price,
			Size:      size,
			Timestamp: ts,
		})
	}
	return trades, nil
}

// GetTopOfBook fetches spreads for multiple tokens sequentially.
// Individual fetch failures are logged and skipped.
func (c *Client) GetTopOfBook(ctx context.Context, tokenIDs []string) []Spread {
	spreads := make([]Spread, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		s, err := c.GetSpread(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("token", id).Msg("Failed to fetch spread")
			continue
		}
		spreads = append(spreads, s)
	}
	return spreads
}
