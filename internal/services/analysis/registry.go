// Package analysis implements the question-to-answer pipeline: classify the
// query, route metrics to upstream fetch operations, generate the narrative,
// and persist the exchange.
package analysis

import (
	"context"
	"sort"

	"github.com/nwillis/stockchat/internal/interfaces"
	"github.com/nwillis/stockchat/internal/models"
)

// OperationID identifies one upstream fetch operation. Metrics map many-to-one
// onto operations; the router invokes each operation at most once per request.
type OperationID string

const (
	OpQuote           OperationID = "quote"
	OpOverview        OperationID = "company_overview"
	OpValuation       OperationID = "valuation"
	OpFinancials      OperationID = "financials"
	OpRatios          OperationID = "ratios"
	OpHistory         OperationID = "history"
	OpRecommendations OperationID = "recommendations"
)

// categoryMetrics maps an analysis category to its default metric set, used
// when the classifier returns no specific metrics.
var categoryMetrics = map[models.AnalysisCategory][]string{
	models.CategoryPerformance: {
		"stock_price", "ytd_performance", "price_change", "volume", "market_cap",
	},
	models.CategoryValuation: {
		"pe_ratio", "price_to_book", "market_cap", "beta",
	},
	models.CategoryRecommendation: {
		"analyst_recommendations", "pe_ratio", "ytd_performance", "moving_avg_50", "moving_avg_200",
	},
	models.CategoryFundamentals: {
		"profit_margins", "revenue_growth", "market_cap", "sector", "industry",
	},
	models.CategoryComparison: {
		"pe_ratio", "market_cap", "ytd_performance", "profit_margins",
	},
}

// metricOperations maps each known metric to the operation that fetches it.
// Metrics outside this table are unknown and silently dropped by the router.
var metricOperations = map[string]OperationID{
	"stock_price":    OpQuote,
	"price_change":   OpQuote,
	"volume":         OpQuote,
	"moving_avg_50":  OpQuote,
	"moving_avg_200": OpQuote,
	"day_range":      OpQuote,

	"sector":          OpOverview,
	"industry":        OpOverview,
	"company_profile": OpOverview,

	"pe_ratio":       OpValuation,
	"price_to_book":  OpValuation,
	"market_cap":     OpValuation,
	"beta":           OpValuation,
	"dividend_yield": OpValuation,
	"eps":            OpValuation,

	"revenue":         OpFinancials,
	"revenue_growth":  OpFinancials,
	"earnings_growth": OpFinancials,

	"profit_margins":   OpRatios,
	"operating_margin": OpRatios,
	"gross_margin":     OpRatios,
	"return_on_equity": OpRatios,
	"debt_to_equity":   OpRatios,
	"current_ratio":    OpRatios,
	"quick_ratio":      OpRatios,

	"ytd_performance":    OpHistory,
	"mtd_performance":    OpHistory,
	"period_performance": OpHistory,
	"historical_prices":  OpHistory,

	"analyst_recommendations": OpRecommendations,
}

// timeframeMetrics is the set of metrics whose value depends on the requested
// timeframe. An operation receives the timeframe only when its metric group
// contains at least one of these.
var timeframeMetrics = map[string]bool{
	"ytd_performance":    true,
	"mtd_performance":    true,
	"period_performance": true,
	"historical_prices":  true,
}

// DefaultMetrics returns the default metric set for a category. Unknown
// categories get an empty set, not an error.
func DefaultMetrics(category models.AnalysisCategory) []string {
	defaults := categoryMetrics[category]
	out := make([]string, len(defaults))
	copy(out, defaults)
	return out
}

// EffectiveMetrics is the deduplicated union of the category defaults and the
// explicitly requested metrics, defaults first, order otherwise preserved.
func EffectiveMetrics(category models.AnalysisCategory, explicit []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range categoryMetrics[category] {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	for _, m := range explicit {
		if m != "" && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// operationGroup is the resolved unit of work for one upstream operation.
type operationGroup struct {
	op           OperationID
	metrics      []string
	useTimeframe bool
}

// resolveOperations groups metrics by fetch operation, dropping metrics the
// routing table does not know. Groups come back in stable operation-name order
// so merges and logs are deterministic.
func resolveOperations(metrics []string) []operationGroup {
	grouped := make(map[OperationID]*operationGroup)
	for _, m := range metrics {
		op, known := metricOperations[m]
		if !known {
			continue
		}
		g, ok := grouped[op]
		if !ok {
			g = &operationGroup{op: op}
			grouped[op] = g
		}
		g.metrics = append(g.metrics, m)
		if timeframeMetrics[m] {
			g.useTimeframe = true
		}
	}

	out := make([]operationGroup, 0, len(grouped))
	for _, g := range grouped {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].op < out[j].op })
	return out
}

// invoke dispatches one operation against the market data client.
func invoke(ctx context.Context, client interfaces.MarketDataClient, op OperationID, symbol string, timeframe models.Timeframe) (models.Attributes, error) {
	switch op {
	case OpQuote:
		return client.GetQuote(ctx, symbol)
	case OpOverview:
		return client.GetCompanyOverview(ctx, symbol)
	case OpValuation:
		return client.GetValuation(ctx, symbol)
	case OpFinancials:
		return client.GetFinancials(ctx, symbol)
	case OpRatios:
		return client.GetRatios(ctx, symbol)
	case OpHistory:
		return client.GetHistory(ctx, symbol, timeframe)
	case OpRecommendations:
		return client.GetRecommendations(ctx, symbol)
	}
	return models.Attributes{}, nil
}
