package alerts

import (
	"fmt"

	"github.com/polywhale/whalewatch/internal/database"
	"github.com/polywhale/whalewatch/internal/monitor"
)

// Store archives each big trade in the database.
type Store struct {
	db *database.Database
}

// NewStore creates a database-backed consumer.
func NewStore(db *database.Database) *Store {
	return &Store{db: db}
}

func (s *Store) Name() string { return "database" }

func (s *Store) HandleAlert(trade monitor.BigTrade) error {
	record := &database.BigTrade{
		TokenID:       trade.TokenID,
		Side:          string(trade.Side),
		Price:         trade.Price,
		Size:          trade.Size,
		Value:         trade.Value,
		Outcome:       trade.Outcome,
		Question:      trade.Question,
		MarketSlug:    trade.MarketSlug,
		TradeType:     trade.Type,
		ObservedAt:    trade.Timestamp,
		DetectionTime: trade.DetectionTime,
	}
	if err := s.db.SaveBigTrade(record); err != nil {
		return fmt.Errorf("persist big trade: %w", err)
	}
	return nil
}
