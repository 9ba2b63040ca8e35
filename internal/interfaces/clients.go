// Package interfaces defines service contracts for stockchat
package interfaces

import (
	"context"

	"github.com/nwillis/stockchat/internal/models"
)

// MarketDataClient provides access to the financial-data provider. Each
// operation returns a flat attribute mapping for one symbol; the keys emitted
// by distinct operations are disjoint (see the analysis registry).
type MarketDataClient interface {
	// GetQuote retrieves the current quote (price, change, volume, moving averages)
	GetQuote(ctx context.Context, symbol string) (models.Attributes, error)

	// GetCompanyOverview retrieves the company profile (sector, industry, description)
	GetCompanyOverview(ctx context.Context, symbol string) (models.Attributes, error)

	// GetValuation retrieves valuation metrics (pe, pb, market cap, beta)
	GetValuation(ctx context.Context, symbol string) (models.Attributes, error)

	// GetFinancials retrieves financial statement figures (revenue, earnings, growth)
	GetFinancials(ctx context.Context, symbol string) (models.Attributes, error)

	// GetRatios retrieves financial ratios (margins, liquidity, leverage)
	GetRatios(ctx context.Context, symbol string) (models.Attributes, error)

	// GetHistory retrieves the historical price series for a timeframe and
	// computes period performance from it
	GetHistory(ctx context.Context, symbol string, timeframe models.Timeframe) (models.Attributes, error)

	// GetRecommendations retrieves analyst recommendation counts
	GetRecommendations(ctx context.Context, symbol string) (models.Attributes, error)
}

// LLMClient provides access to the generative model.
type LLMClient interface {
	// GenerateContent generates text from a prompt
	GenerateContent(ctx context.Context, prompt string) (string, error)
}
