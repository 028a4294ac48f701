package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	// DefaultWSURL is the CLOB market-channel WebSocket endpoint.
	DefaultWSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

	wsReconnectDelay = 5 * time.Second
)

// WSClient maintains live orderbooks over the CLOB market channel.
// It satisfies the same fetcher contract as the REST client, serving
// books from its in-memory cache instead of making a request.
type WSClient struct {
	url string

	mu          sync.RWMutex
	conn        *websocket.Conn
	isConnected bool
	subscribed  map[string]bool // tokenID -> subscribed

	booksMu sync.RWMutex
	books   map[string]*Book // tokenID -> latest book

	stopCh chan struct{}
}

// wsSnapshot is the initial orderbook snapshot for a subscription.
type wsSnapshot struct {
	Market    string     `json:"market"`
	AssetID   string     `json:"asset_id"`
	Timestamp string     `json:"timestamp"`
	Bids      []rawLevel `json:"bids"`
	Asks      []rawLevel `json:"asks"`
}

// wsPriceChange is an incremental level update.
type wsPriceChange struct {
	Market       string `json:"market"`
	EventType    string `json:"event_type"`
	PriceChanges []struct {
		AssetID string `json:"asset_id"`
		Price   string `json:"price"`
		Size    string `json:"size"`
		Side    string `json:"side"`
	} `json:"price_changes"`
}

// NewWSClient creates a WebSocket client for the given endpoint.
// An empty URL falls back to the production endpoint.
func NewWSClient(url string) *WSClient {
	if url == "" {
		url = DefaultWSURL
	}
	return &WSClient{
		url:        url,
		subscribed: make(map[string]bool),
		books:      make(map[string]*Book),
		stopCh:     make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the reader.
func (c *WSClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isConnected {
		return nil
	}

	log.Info().Str("url", c.url).Msg("Connecting to Polymarket WebSocket...")

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	c.conn = conn
	c.isConnected = true

	go c.readMessages(conn)

	log.Info().Msg("✅ Connected to Polymarket WebSocket")
	return nil
}

// Subscribe subscribes to book updates for the given tokens.
func (c *WSClient) Subscribe(tokenIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected {
		return fmt.Errorf("not connected")
	}

	fresh := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if !c.subscribed[id] {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	msg := map[string]interface{}{
		"type":       "market",
		"assets_ids": fresh,
	}
	msgBytes, _ := json.Marshal(msg)
	if err := c.conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	for _, id := range fresh {
		c.subscribed[id] = true
	}
	log.Info().Int("tokens", len(fresh)).Msg("📡 Subscribed to market WebSocket")
	return nil
}

// GetOrderbook returns the cached book for a token. The context is
// accepted for contract compatibility with the REST client; the call
// never blocks on the network.
func (c *WSClient) GetOrderbook(_ context.Context, tokenID string) (*Book, error) {
	c.booksMu.RLock()
	defer c.booksMu.RUnlock()

	book, ok := c.books[tokenID]
	if !ok {
		return nil, fmt.Errorf("no cached book for token %s", tokenID)
	}

	// Copy so callers never observe concurrent updates.
	cp := &Book{
		TokenID:   book.TokenID,
		Bids:      append([]Level(nil), book.Bids...),
		Asks:      append([]Level(nil), book.Asks...),
		Timestamp: book.Timestamp,
	}
	return cp, nil
}

func (c *WSClient) readMessages(conn *websocket.Conn) {
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}
			log.Error().Err(err).Msg("WebSocket read error")
			c.handleDisconnect()
			return
		}

		c.handleMessage(message)
	}
}

func (c *WSClient) handleMessage(data []byte) {
	// Incremental update first, then the initial snapshot array.
	var pc wsPriceChange
	if err := json.Unmarshal(data, &pc); err == nil && pc.EventType == "price_change" {
		c.applyPriceChange(&pc)
		return
	}

	var snapshots []wsSnapshot
	if err := json.Unmarshal(data, &snapshots); err == nil && len(snapshots) > 0 {
		for i := range snapshots {
			c.applySnapshot(&snapshots[i])
		}
	}
}

func (c *WSClient) applySnapshot(snap *wsSnapshot) {
	book := &Book{
		TokenID:   snap.AssetID,
		Bids:      parseLevels(snap.Bids),
		Asks:      parseLevels(snap.Asks),
		Timestamp: time.Now(),
	}
	sortBook(book)

	c.booksMu.Lock()
	c.books[snap.AssetID] = book
	c.booksMu.Unlock()

	log.Debug().
		Str("token", shortToken(snap.AssetID)).
		Int("bids", len(book.Bids)).
		Int("asks", len(book.Asks)).
		Msg("📊 Book snapshot received")
}

func (c *WSClient) applyPriceChange(pc *wsPriceChange) {
	c.booksMu.Lock()
	defer c.booksMu.Unlock()

	for _, change := range pc.PriceChanges {
		book, ok := c.books[change.AssetID]
		if !ok {
			continue
		}

		price, err := decimal.NewFromString(change.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(change.Size)
		if err != nil {
			continue
		}

		switch change.Side {
		case "BUY", "BID":
			book.Bids = updateLevel(book.Bids, price, size)
		case "SELL", "ASK":
			book.Asks = updateLevel(book.Asks, price, size)
		}
		sortBook(book)
		book.Timestamp = time.Now()
	}
}

// updateLevel replaces the size at a price level, removing it when the
// size drops to zero and inserting it when new.
func updateLevel(levels []Level, price, size decimal.Decimal) []Level {
	for i := range levels {
		if levels[i].Price.Equal(price) {
			if size.IsZero() {
				return append(levels[:i], levels[i+1:]...)
			}
			levels[i].Size = size
			return levels
		}
	}
	if size.IsZero() {
		return levels
	}
	return append(levels, Level{Price: price, Size: size})
}

func sortBook(book *Book) {
	sort.Slice(book.Bids, func(i, j int) bool {
		return book.Bids[i].Price.GreaterThan(book.Bids[j].Price)
	})
	sort.Slice(book.Asks, func(i, j int) bool {
		return book.Asks[i].Price.LessThan(book.Asks[j].Price)
	})
}

func (c *WSClient) handleDisconnect() {
	c.mu.Lock()
	c.isConnected = false
	c.mu.Unlock()

	log.Warn().Msg("WebSocket disconnected, reconnecting in 5s...")

	select {
	case <-time.After(wsReconnectDelay):
	case <-c.stopCh:
		return
	}

	// Re-subscribe after the reconnect.
	c.mu.Lock()
	resub := make([]string, 0, len(c.subscribed))
	for id := range c.subscribed {
		resub = append(resub, id)
	}
	c.subscribed = make(map[string]bool)
	c.mu.Unlock()

	if err := c.Connect(); err != nil {
		log.Error().Err(err).Msg("Reconnect failed")
		return
	}
	if len(resub) > 0 {
		if err := c.Subscribe(resub...); err != nil {
			log.Error().Err(err).Msg("Resubscribe failed")
		}
	}
}

// Close shuts down the connection.
func (c *WSClient) Close() {
	close(c.stopCh)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
	}
	c.isConnected = false
}

// IsConnected reports the connection status.
func (c *WSClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func shortToken(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:16] + "..."
}
