package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/interfaces"
	"github.com/nwillis/stockchat/internal/models"
)

const DefaultFetchBudget = 15 * time.Second

// Router fans a metric set out to the upstream fetch operations and merges
// the results into one attribute map.
type Router struct {
	client interfaces.MarketDataClient
	logger *common.Logger
	budget time.Duration
}

// NewRouter creates a metric router. budget caps each individual operation;
// zero or negative means the default.
func NewRouter(client interfaces.MarketDataClient, logger *common.Logger, budget time.Duration) *Router {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	if budget <= 0 {
		budget = DefaultFetchBudget
	}
	return &Router{
		client: client,
		logger: logger,
		budget: budget,
	}
}

// FetchRequiredData resolves the effective metric set for a category, invokes
// each required operation exactly once, concurrently, and merges the results.
// Any operation failure fails the whole fetch with the operation named in the
// error. Unknown metrics are dropped; a request resolving to no operations
// returns an empty CombinedData.
func (r *Router) FetchRequiredData(ctx context.Context, symbol string, category models.AnalysisCategory, explicitMetrics []string, timeframe models.Timeframe) (*models.CombinedData, error) {
	metrics := EffectiveMetrics(category, explicitMetrics)
	groups := resolveOperations(metrics)

	combined := &models.CombinedData{
		Metrics:   metrics,
		Data:      models.Attributes{},
		Timeframe: timeframe,
	}
	if len(groups) == 0 {
		r.logger.Debug().Str("symbol", symbol).Str("category", string(category)).Msg("No known metrics to fetch")
		return combined, nil
	}

	results := make([]models.Attributes, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		g.Go(func() error {
			opCtx, cancel := context.WithTimeout(gctx, r.budget)
			defer cancel()

			tf := models.TimeframeCurrent
			if group.useTimeframe {
				tf = timeframe
			}

			start := time.Now()
			attrs, err := invoke(opCtx, r.client, group.op, symbol, tf)
			if err != nil {
				return fmt.Errorf("%s: %w", group.op, err)
			}
			r.logger.Debug().
				Str("symbol", symbol).
				Str("operation", string(group.op)).
				Int("attributes", len(attrs)).
				Dur("elapsed", time.Since(start)).
				Msg("Fetch operation complete")
			results[i] = attrs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	// Operations emit disjoint keys; merge order only matters if that
	// invariant is broken, in which case last write wins.
	for _, attrs := range results {
		combined.Data.Merge(attrs)
	}
	return combined, nil
}

// FetchComparisons fetches the same metric set for each comparison ticker.
// The primary symbol is filtered out first, then duplicates. Any ticker
// failure fails the whole comparison, the same way a primary fetch failure
// does; no partial comparison set is returned.
func (r *Router) FetchComparisons(ctx context.Context, primary string, tickers []string, category models.AnalysisCategory, explicitMetrics []string, timeframe models.Timeframe) ([]models.ComparisonEntry, error) {
	var targets []string
	seen := map[string]bool{strings.ToUpper(primary): true}
	for _, t := range tickers {
		key := strings.ToUpper(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		targets = append(targets, key)
	}
	if len(targets) == 0 {
		return nil, nil
	}

	entries := make([]models.ComparisonEntry, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, ticker := range targets {
		g.Go(func() error {
			data, err := r.FetchRequiredData(gctx, ticker, category, explicitMetrics, timeframe)
			if err != nil {
				return err
			}
			entries[i] = models.ComparisonEntry{Ticker: ticker, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
