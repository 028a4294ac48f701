// Package config loads monitor configuration from environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the monitor.
type Config struct {
	// Mode
	Debug bool

	// Polymarket API
	GammaAPIURL string
	CLOBAPIURL  string
	WSURL       string
	UseWS       bool

	// Polling
	PollInterval   time.Duration
	RateLimitDelay time.Duration
	FetchTimeout   time.Duration
	StopTimeout    time.Duration

	// Detection thresholds
	SizeThreshold  decimal.Decimal
	ValueThreshold decimal.Decimal

	// Discovery
	AutoDiscover bool
	MarketLimit  int

	// History capacities
	BookHistorySize     int
	SpreadHistorySize   int
	BigTradeHistorySize int
	DedupCapacity       int

	// Alert sinks
	AlertLogPath   string
	TelegramToken  string
	TelegramChatID int64

	// Database
	DatabasePath string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		GammaAPIURL: getEnv("POLYMARKET_GAMMA_URL", "https://gamma-api.polymarket.com"),
		CLOBAPIURL:  getEnv("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		WSURL:       getEnv("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		UseWS:       getEnvBool("USE_WEBSOCKET", false),

		PollInterval:   getEnvDuration("POLL_INTERVAL", 3*time.Second),
		RateLimitDelay: getEnvDuration("RATE_LIMIT_DELAY", 500*time.Millisecond),
		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		StopTimeout:    getEnvDuration("STOP_TIMEOUT", 5*time.Second),

		SizeThreshold:  getEnvDecimal("SIZE_THRESHOLD", decimal.NewFromInt(500)),
		ValueThreshold: getEnvDecimal("VALUE_THRESHOLD", decimal.NewFromInt(100)),

		AutoDiscover: getEnvBool("AUTO_DISCOVER", true),
		MarketLimit:  getEnvInt("MARKET_LIMIT", 50),

		BookHistorySize:     getEnvInt("BOOK_HISTORY_SIZE", 1000),
		SpreadHistorySize:   getEnvInt("SPREAD_HISTORY_SIZE", 1000),
		BigTradeHistorySize: getEnvInt("BIG_TRADE_HISTORY_SIZE", 10000),
		DedupCapacity:       getEnvInt("DEDUP_CAPACITY", 100000),

		AlertLogPath:  getEnv("ALERT_LOG_PATH", "big_trades.log"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DatabasePath: getEnv("DATABASE_PATH", "data/whalewatch.db"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
