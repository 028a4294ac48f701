// Package database persists detected big trades and tracked markets
// in SQLite or PostgreSQL through gorm.
package database

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

// Models

// BigTrade is the persisted form of a detected big trade.
type BigTrade struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	TokenID       string `gorm:"index"`
	Side          string
	Price         decimal.Decimal `gorm:"type:decimal(10,6)"`
	Size          decimal.Decimal `gorm:"type:decimal(20,6)"`
	Value         decimal.Decimal `gorm:"type:decimal(20,6)"`
	Outcome       string
	Question      string
	MarketSlug    string `gorm:"index"`
	TradeType     string
	ObservedAt    time.Time
	DetectionTime time.Time
	CreatedAt     time.Time
}

// Market is a persisted tracked market.
type Market struct {
	TokenID     string `gorm:"primaryKey"`
	Outcome     string
	Question    string
	Slug        string          `gorm:"index"`
	Volume      decimal.Decimal `gorm:"type:decimal(20,2)"`
	Liquidity   decimal.Decimal `gorm:"type:decimal(20,2)"`
	LastChecked time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New opens the database. Connection strings with a postgres:// prefix
// use PostgreSQL; anything else is treated as a SQLite file path.
func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&BigTrade{}, &Market{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Big trade operations

func (d *Database) SaveBigTrade(trade *BigTrade) error {
	return d.db.Create(trade).Error
}

func (d *Database) GetRecentBigTrades(limit int) ([]BigTrade, error) {
	var trades []BigTrade
	err := d.db.Order("detection_time DESC").Limit(limit).Find(&trades).Error
	return trades, err
}

func (d *Database) GetBigTradesByToken(tokenID string, limit int) ([]BigTrade, error) {
	var trades []BigTrade
	err := d.db.Where("token_id = ?", tokenID).Order("detection_time DESC").Limit(limit).Find(&trades).Error
	return trades, err
}

// Market operations

func (d *Database) SaveMarket(market *Market) error {
	return d.db.Save(market).Error
}

func (d *Database) GetMarkets() ([]Market, error) {
	var markets []Market
	err := d.db.Order("volume DESC").Find(&markets).Error
	return markets, err
}

// Stats operations

func (d *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var tradeCount int64
	d.db.Model(&BigTrade{}).Count(&tradeCount)
	stats["total_big_trades"] = tradeCount

	var marketCount int64
	d.db.Model(&Market{}).Count(&marketCount)
	stats["tracked_markets"] = marketCount

	var valueResult struct {
		Total decimal.Decimal
	}
	d.db.Model(&BigTrade{}).Select("COALESCE(SUM(value), 0) as total").Scan(&valueResult)
	stats["total_value"] = valueResult.Total

	return stats, nil
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
