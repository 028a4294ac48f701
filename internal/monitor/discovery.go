package monitor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/polywhale/whalewatch/internal/polymarket"
	"github.com/polywhale/whalewatch/internal/sports"
)

// GammaSource discovers tracked markets from the Gamma API, one
// TrackedMarket per tokenID/outcome pair. An optional sports filter
// restricts the set to moneyline markets client-side on top of the
// API-side sports_market_types filter.
type GammaSource struct {
	client *polymarket.Client
	filter *sports.Filter

	// MoneylineOnly additionally drops markets whose question does
	// not read like a moneyline bet.
	MoneylineOnly bool
}

// NewGammaSource creates a market source backed by the REST client.
// filter may be nil to skip client-side classification.
func NewGammaSource(client *polymarket.Client, filter *sports.Filter) *GammaSource {
	return &GammaSource{client: client, filter: filter}
}

// DiscoverMarkets fetches active markets and expands them into tracked
// token/outcome pairs. Markets with malformed token or outcome arrays
// are skipped.
func (s *GammaSource) DiscoverMarkets(ctx context.Context, limit int) ([]TrackedMarket, error) {
	markets, err := s.client.GetMarkets(ctx, polymarket.DefaultMarketsQuery(limit))
	if err != nil {
		return nil, fmt.Errorf("discover markets: %w", err)
	}

	var tracked []TrackedMarket
	for _, market := range markets {
		if s.MoneylineOnly && s.filter != nil && !s.filter.IsMoneyline(market.Question) {
			continue
		}

		pairs, err := expandMarket(market)
		if err != nil {
			log.Debug().Err(err).Str("slug", market.Slug).Msg("Skipping market with malformed metadata")
			continue
		}
		tracked = append(tracked, pairs...)
	}

	log.Info().Int("markets", len(markets)).Int("tracked", len(tracked)).Msg("Found active markets")
	return tracked, nil
}

// expandMarket parses the JSON-encoded clobTokenIds/outcomes arrays
// into one TrackedMarket per token.
func expandMarket(market polymarket.Market) ([]TrackedMarket, error) {
	var tokenIDs []string
	if err := json.Unmarshal([]byte(market.ClobTokenIDs), &tokenIDs); err != nil {
		return nil, fmt.Errorf("parse clobTokenIds: %w", err)
	}

	var outcomes []string
	if market.Outcomes != "" {
		if err := json.Unmarshal([]byte(market.Outcomes), &outcomes); err != nil {
			return nil, fmt.Errorf("parse outcomes: %w", err)
		}
	}

	tracked := make([]TrackedMarket, 0, len(tokenIDs))
	for i, tokenID := range tokenIDs {
		outcome := "Unknown"
		if i < len(outcomes) {
			outcome = outcomes[i]
		}
		tracked = append(tracked, TrackedMarket{
			TokenID:    tokenID,
			Outcome:    outcome,
			Question:   market.Question,
			MarketSlug: market.Slug,
			Volume:     market.Volume,
			Liquidity:  market.Liquidity,
		})
	}
	return tracked, nil
}
