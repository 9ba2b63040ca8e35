// Package models defines the core data structures for stockchat
package models

import "strings"

// AnalysisCategory is the coarse intent classification of a stock question.
type AnalysisCategory string

const (
	CategoryPerformance    AnalysisCategory = "PERFORMANCE"
	CategoryValuation      AnalysisCategory = "VALUATION"
	CategoryRecommendation AnalysisCategory = "RECOMMENDATION"
	CategoryComparison     AnalysisCategory = "COMPARISON"
	CategoryFundamentals   AnalysisCategory = "FUNDAMENTALS"
)

// Categories lists every known analysis category.
var Categories = []AnalysisCategory{
	CategoryPerformance,
	CategoryValuation,
	CategoryRecommendation,
	CategoryComparison,
	CategoryFundamentals,
}

// ParseCategory normalizes a raw category string. The second return is false
// when the value is not part of the known vocabulary; the normalized value is
// still returned so lookups simply miss instead of failing.
func ParseCategory(raw string) (AnalysisCategory, bool) {
	c := AnalysisCategory(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return c, false
}

// Timeframe is the historical window over which a performance metric is computed.
type Timeframe string

const (
	TimeframeYTD     Timeframe = "YTD"
	TimeframeMTD     Timeframe = "MTD"
	TimeframeQTD     Timeframe = "QTD"
	TimeframeOneYear Timeframe = "1Y"
	TimeframeAll     Timeframe = "ALL"
	TimeframeCurrent Timeframe = "CURRENT"
)

// Timeframes lists every known timeframe.
var Timeframes = []Timeframe{
	TimeframeYTD,
	TimeframeMTD,
	TimeframeQTD,
	TimeframeOneYear,
	TimeframeAll,
	TimeframeCurrent,
}

// ParseTimeframe normalizes a raw timeframe string, defaulting to CURRENT for
// anything outside the known vocabulary.
func ParseTimeframe(raw string) (Timeframe, bool) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range Timeframes {
		if tf == known {
			return tf, true
		}
	}
	return TimeframeCurrent, false
}

// Attributes is the flat attribute mapping returned by one upstream fetch
// operation for one symbol.
type Attributes map[string]interface{}

// Merge applies other on top of a, overwriting keys present in both.
func (a Attributes) Merge(other Attributes) {
	for k, v := range other {
		a[k] = v
	}
}

// Classification is the validated output of the question classifier. Every
// field originates from LLM output and has been normalized against the known
// vocabularies; consumers still treat metric names as untrusted.
type Classification struct {
	Ticker            string           `json:"ticker,omitempty"`
	Category          AnalysisCategory `json:"category"`
	SpecificMetrics   []string         `json:"specificMetrics,omitempty"`
	Timeframe         Timeframe        `json:"timeframe"`
	ComparisonTickers []string         `json:"comparisonTickers,omitempty"`
}

// CombinedData is the merged result of all fetch operations for one request.
type CombinedData struct {
	Metrics   []string   `json:"metrics"`
	Data      Attributes `json:"data"`
	Timeframe Timeframe  `json:"timeframe"`
}

// ComparisonEntry holds the combined data fetched for one comparison ticker.
type ComparisonEntry struct {
	Ticker string        `json:"ticker"`
	Data   *CombinedData `json:"data"`
}

// AnalysisResult is the data payload returned by the analyze endpoint.
// Field names follow the public API contract (camelCase).
type AnalysisResult struct {
	Chat           *Chat             `json:"chat,omitempty"`
	Query          string            `json:"query"`
	Ticker         string            `json:"ticker,omitempty"`
	Analysis       *Classification   `json:"analysis,omitempty"`
	StockData      *CombinedData     `json:"stockData,omitempty"`
	ComparisonData []ComparisonEntry `json:"comparisonData,omitempty"`
	LLMResponse    string            `json:"llmResponse"`
}
