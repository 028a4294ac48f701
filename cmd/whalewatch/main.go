package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/polywhale/whalewatch/internal/alerts"
	"github.com/polywhale/whalewatch/internal/config"
	"github.com/polywhale/whalewatch/internal/database"
	"github.com/polywhale/whalewatch/internal/monitor"
	"github.com/polywhale/whalewatch/internal/polymarket"
	"github.com/polywhale/whalewatch/internal/sports"
)

// wsFirstFetcher serves orderbooks from the WebSocket cache when the
// socket is up, falling back to REST for tokens the cache has not seen
// yet. Cache misses trigger a subscription so the next cycle is served
// live.
type wsFirstFetcher struct {
	ws   *polymarket.WSClient
	rest *polymarket.Client
}

func (f *wsFirstFetcher) GetOrderbook(ctx context.Context, tokenID string) (*polymarket.Book, error) {
	if f.ws.IsConnected() {
		if book, err := f.ws.GetOrderbook(ctx, tokenID); err == nil {
			return book, nil
		}
		f.ws.Subscribe(tokenID)
	}
	return f.rest.GetOrderbook(ctx, tokenID)
}

func main() {
	// ═══════════════════════════════════════════════════════════════════════════════
	// BOOTSTRAP
	// ═══════════════════════════════════════════════════════════════════════════════

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Msg("═══════════════════════════════════════════════════════════════")
	log.Info().Msg("              WHALEWATCH - BIG TRADE MONITOR")
	log.Info().Msg("═══════════════════════════════════════════════════════════════")

	// ═══════════════════════════════════════════════════════════════════════════════
	// INITIALIZE COMPONENTS
	// ═══════════════════════════════════════════════════════════════════════════════

	// 1. Storage (for alert persistence)
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Warn().Err(err).Msg("Database connection failed, continuing without persistence")
		db = nil
	} else {
		log.Info().Msg("✅ Storage layer initialized")
	}

	// 2. Polymarket REST client
	rest := polymarket.NewClient(cfg.GammaAPIURL, cfg.CLOBAPIURL)
	rest.SetRateLimitDelay(cfg.RateLimitDelay)
	log.Info().Msg("✅ Polymarket REST client initialized")

	// 3. Optional WebSocket book feed
	var fetcher monitor.Fetcher = rest
	var ws *polymarket.WSClient
	if cfg.UseWS {
		ws = polymarket.NewWSClient(cfg.WSURL)
		if err := ws.Connect(); err != nil {
			log.Warn().Err(err).Msg("WebSocket connect failed, polling REST only")
			ws = nil
		} else {
			fetcher = &wsFirstFetcher{ws: ws, rest: rest}
			log.Info().Msg("✅ WebSocket book feed initialized")
		}
	}

	// 4. Market discovery (sports moneylines via Gamma)
	source := monitor.NewGammaSource(rest, sports.NewFilter())
	source.MoneylineOnly = true
	log.Info().Msg("✅ Market discovery initialized")

	// 5. Monitor engine
	mon := monitor.New(monitor.Config{
		PollInterval:        cfg.PollInterval,
		SizeThreshold:       cfg.SizeThreshold,
		ValueThreshold:      cfg.ValueThreshold,
		BookHistorySize:     cfg.BookHistorySize,
		SpreadHistorySize:   cfg.SpreadHistorySize,
		BigTradeHistorySize: cfg.BigTradeHistorySize,
		DedupCapacity:       cfg.DedupCapacity,
		FetchTimeout:        cfg.FetchTimeout,
		StopTimeout:         cfg.StopTimeout,
	}, fetcher, source)

	// 6. Alert consumers
	mon.RegisterConsumer(alerts.NewConsole())

	var fileLog *alerts.LogFile
	if cfg.AlertLogPath != "" {
		fileLog = alerts.NewLogFile(cfg.AlertLogPath)
		mon.RegisterConsumer(fileLog)
	}

	if cfg.TelegramToken != "" {
		tg, err := alerts.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram consumer disabled")
		} else {
			mon.RegisterConsumer(tg)
			log.Info().Msg("✅ Telegram alerts enabled")
		}
	}

	if db != nil {
		mon.RegisterConsumer(alerts.NewStore(db))
	}

	// ═══════════════════════════════════════════════════════════════════════════════
	// PRINT CONFIG
	// ═══════════════════════════════════════════════════════════════════════════════

	log.Info().Msg("")
	log.Info().Msg("╔══════════════════════════════════════════════════════════════╗")
	log.Info().Msg("║              🐋 WHALEWATCH - BIG ORDER DETECTION             ║")
	log.Info().Msg("╠══════════════════════════════════════════════════════════════╣")
	log.Info().Msgf("║  Poll Interval: %-44s ║", cfg.PollInterval)
	log.Info().Msgf("║  Size Threshold: %-43s ║", cfg.SizeThreshold.String()+" shares")
	log.Info().Msgf("║  Value Threshold: $%-41s ║", cfg.ValueThreshold.String())
	log.Info().Msgf("║  Auto-Discover: %-44v ║", cfg.AutoDiscover)
	log.Info().Msg("╚══════════════════════════════════════════════════════════════╝")
	log.Info().Msg("")

	// ═══════════════════════════════════════════════════════════════════════════════
	// START
	// ═══════════════════════════════════════════════════════════════════════════════

	ctx := context.Background()

	if err := mon.Start(ctx, cfg.AutoDiscover, cfg.MarketLimit); err != nil {
		log.Fatal().Err(err).Msg("Failed to start monitor")
	}

	tracked := mon.TrackedMarkets()

	// Pre-subscribe the WebSocket feed to every tracked token so the
	// first cycles hit the cache instead of REST.
	if ws != nil {
		tokens := make([]string, 0, len(tracked))
		for _, m := range tracked {
			tokens = append(tokens, m.TokenID)
		}
		if err := ws.Subscribe(tokens...); err != nil {
			log.Warn().Err(err).Msg("WebSocket subscribe failed")
		}
	}

	if db != nil {
		for _, m := range tracked {
			record := &database.Market{
				TokenID:     m.TokenID,
				Outcome:     m.Outcome,
				Question:    m.Question,
				Slug:        m.MarketSlug,
				Volume:      decimal.NewFromFloat(m.Volume),
				Liquidity:   decimal.NewFromFloat(m.Liquidity),
				LastChecked: time.Now(),
			}
			if err := db.SaveMarket(record); err != nil {
				log.Warn().Err(err).Str("token", m.TokenID).Msg("Failed to persist market")
			}
		}
	}

	log.Info().Int("markets", len(tracked)).Msg("🚀 All systems running...")

	// ═══════════════════════════════════════════════════════════════════════════════
	// GRACEFUL SHUTDOWN
	// ═══════════════════════════════════════════════════════════════════════════════

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("🛑 Shutting down...")
	mon.Stop()

	if ws != nil {
		ws.Close()
	}
	if fileLog != nil {
		fileLog.Close()
	}
	if db != nil {
		db.Close()
	}

	stats := mon.GetStats()
	log.Info().
		Uint64("checked", stats.TotalChecked).
		Uint64("big_detected", stats.BigDetected).
		Uint64("alerts_sent", stats.AlertsSent).
		Str("uptime", stats.Uptime.Round(time.Second).String()).
		Msg("📊 Final stats")

	log.Info().Msg("👋 Goodbye!")
}
