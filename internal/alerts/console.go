// Package alerts ships the default big-trade alert consumers: console,
// append-only log file, Telegram and database.
package alerts

import (
	"github.com/rs/zerolog/log"

	"github.com/polywhale/whalewatch/internal/monitor"
)

// Console logs each big trade as a structured alert line.
type Console struct{}

// NewConsole creates the console consumer.
func NewConsole() *Console {
	return &Console{}
}

func (c *Console) Name() string { return "console" }

func (c *Console) HandleAlert(trade monitor.BigTrade) error {
	log.Info().
		Str("market", truncate(trade.Question, 60)).
		Str("outcome", trade.Outcome).
		Str("side", string(trade.Side)).
		Str("size", trade.Size.StringFixed(2)).
		Str("price", trade.Price.StringFixed(4)).
		Str("value", trade.Value.StringFixed(2)).
		Time("observed", trade.Timestamp).
		Msg("🚨 BIG TRADE ALERT")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
