package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nwillis/stockchat/internal/models"
)

const quoteFixture = `{
  "quoteResponse": {
    "result": [{
      "symbol": "AAPL",
      "regularMarketPrice": 227.52,
      "regularMarketChange": 1.13,
      "regularMarketChangePercent": 0.499,
      "regularMarketVolume": 44923941,
      "fiftyDayAverage": 221.18,
      "twoHundredDayAverage": 205.46,
      "regularMarketDayHigh": 228.87,
      "regularMarketDayLow": 225.77,
      "regularMarketPreviousClose": 226.39
    }],
    "error": null
  }
}`

func TestGetQuote_ParsesResponse(t *testing.T) {
	var capturedQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(quoteFixture))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	attrs, err := client.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}

	if !strings.Contains(capturedQuery, "symbols=AAPL") {
		t.Errorf("expected symbols=AAPL in query, got %s", capturedQuery)
	}
	if attrs["current_price"] != 227.52 {
		t.Errorf("expected current_price 227.52, got %v", attrs["current_price"])
	}
	if attrs["price_change_percent"] != 0.499 {
		t.Errorf("expected price_change_percent 0.499, got %v", attrs["price_change_percent"])
	}
	if attrs["volume"] != float64(44923941) {
		t.Errorf("expected volume 44923941, got %v", attrs["volume"])
	}
	if attrs["two_hundred_day_average"] != 205.46 {
		t.Errorf("expected two_hundred_day_average 205.46, got %v", attrs["two_hundred_day_average"])
	}
}

func TestGetQuote_OmitsMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"quoteResponse":{"result":[{"regularMarketPrice":10.5}],"error":null}}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	attrs, err := client.GetQuote(context.Background(), "XYZ")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}

	if attrs["current_price"] != 10.5 {
		t.Errorf("expected current_price 10.5, got %v", attrs["current_price"])
	}
	if _, ok := attrs["volume"]; ok {
		t.Error("expected volume to be omitted when absent upstream")
	}
	if _, ok := attrs["fifty_day_average"]; ok {
		t.Error("expected fifty_day_average to be omitted when absent upstream")
	}
}

func TestGetQuote_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"quoteResponse":{"result":[],"error":null}}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.GetQuote(context.Background(), "NOSUCH")
	if err == nil {
		t.Fatal("expected error for empty result")
	}
}

func TestGetQuote_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.GetQuote(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("expected error on server error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", apiErr.StatusCode)
	}
}

func TestGetValuation_FormattedValues(t *testing.T) {
	// summaryDetail wraps numbers as {raw, fmt}; empty objects mean no value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
  "quoteSummary": {
    "result": [{
      "summaryDetail": {
        "trailingPE": {"raw": 34.67, "fmt": "34.67"},
        "marketCap": {"raw": 3450000000000, "fmt": "3.45T"},
        "beta": {"raw": 1.24, "fmt": "1.24"},
        "dividendYield": {}
      },
      "defaultKeyStatistics": {
        "priceToBook": {"raw": 61.2, "fmt": "61.20"},
        "trailingEps": {"raw": 6.57, "fmt": "6.57"}
      }
    }],
    "error": null
  }
}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	attrs, err := client.GetValuation(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetValuation failed: %v", err)
	}

	if attrs["pe_ratio"] != 34.67 {
		t.Errorf("expected pe_ratio 34.67, got %v", attrs["pe_ratio"])
	}
	if attrs["market_cap"] != 3.45e12 {
		t.Errorf("expected market_cap 3.45e12, got %v", attrs["market_cap"])
	}
	if attrs["price_to_book"] != 61.2 {
		t.Errorf("expected price_to_book 61.2, got %v", attrs["price_to_book"])
	}
	if _, ok := attrs["dividend_yield"]; ok {
		t.Error("expected dividend_yield to be omitted for empty formatted value")
	}
	if _, ok := attrs["forward_pe"]; ok {
		t.Error("expected forward_pe to be omitted when absent upstream")
	}
}

func TestGetCompanyOverview_ParsesProfile(t *testing.T) {
	var capturedModules string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedModules = r.URL.Query().Get("modules")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
  "quoteSummary": {
    "result": [{
      "assetProfile": {
        "sector": "Technology",
        "industry": "Consumer Electronics",
        "longBusinessSummary": "Apple Inc. designs smartphones.",
        "country": "United States",
        "website": "https://www.apple.com",
        "fullTimeEmployees": 161000
      },
      "price": {"longName": "Apple Inc.", "shortName": "Apple"}
    }],
    "error": null
  }
}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	attrs, err := client.GetCompanyOverview(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetCompanyOverview failed: %v", err)
	}

	if capturedModules != "assetProfile,price" {
		t.Errorf("expected modules assetProfile,price, got %s", capturedModules)
	}
	if attrs["sector"] != "Technology" {
		t.Errorf("expected sector Technology, got %v", attrs["sector"])
	}
	if attrs["company_name"] != "Apple Inc." {
		t.Errorf("expected company_name Apple Inc., got %v", attrs["company_name"])
	}
	if attrs["employees"] != float64(161000) {
		t.Errorf("expected employees 161000, got %v", attrs["employees"])
	}
}

func TestGetRecommendations_Consensus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
  "quoteSummary": {
    "result": [{
      "recommendationTrend": {
        "trend": [
          {"period": "0m", "strongBuy": 10, "buy": 20, "hold": 8, "sell": 1, "strongSell": 0},
          {"period": "-1m", "strongBuy": 9, "buy": 18, "hold": 10, "sell": 2, "strongSell": 1}
        ]
      }
    }],
    "error": null
  }
}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	attrs, err := client.GetRecommendations(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetRecommendations failed: %v", err)
	}

	// Current period only
	if attrs["analyst_strong_buy"] != float64(10) {
		t.Errorf("expected analyst_strong_buy 10, got %v", attrs["analyst_strong_buy"])
	}
	if attrs["analyst_buy"] != float64(20) {
		t.Errorf("expected analyst_buy 20, got %v", attrs["analyst_buy"])
	}
	if attrs["analyst_consensus"] != "buy" {
		t.Errorf("expected consensus buy, got %v", attrs["analyst_consensus"])
	}
}

func TestConsensus(t *testing.T) {
	tests := []struct {
		name                                  string
		strongBuy, buy, hold, sell, strongSell int
		expected                              string
	}{
		{"all strong buy", 10, 0, 0, 0, 0, "strong buy"},
		{"mostly buy", 5, 20, 5, 0, 0, "buy"},
		{"mixed", 2, 5, 15, 5, 2, "hold"},
		{"bearish", 0, 1, 5, 15, 4, "sell"},
		{"all strong sell", 0, 0, 0, 0, 8, "strong sell"},
		{"no analysts", 0, 0, 0, 0, 0, ""},
	}

	for _, tt := range tests {
		got := consensus(tt.strongBuy, tt.buy, tt.hold, tt.sell, tt.strongSell)
		if got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, got)
		}
	}
}

func TestGetHistory_ComputesPerformance(t *testing.T) {
	var capturedQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
  "chart": {
    "result": [{
      "timestamp": [1704153600, 1704240000, 1704326400, 1704412800],
      "indicators": {"quote": [{"close": [100.0, null, 105.0, 110.0]}]}
    }],
    "error": null
  }
}`))
	}))
	defer srv.Close()

	fixed := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	client := NewClient(WithBaseURL(srv.URL), WithClock(func() time.Time { return fixed }))
	attrs, err := client.GetHistory(context.Background(), "AAPL", models.TimeframeYTD)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}

	yearStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !strings.Contains(capturedQuery, "period1="+strconv.FormatInt(yearStart.Unix(), 10)) {
		t.Errorf("expected period1 at year start, got %s", capturedQuery)
	}
	if attrs["period_start_price"] != 100.0 {
		t.Errorf("expected period_start_price 100, got %v", attrs["period_start_price"])
	}
	if attrs["period_end_price"] != 110.0 {
		t.Errorf("expected period_end_price 110, got %v", attrs["period_end_price"])
	}
	// Null close dropped
	if attrs["trading_days"] != float64(3) {
		t.Errorf("expected trading_days 3, got %v", attrs["trading_days"])
	}
	perf, ok := attrs["period_performance"].(float64)
	if !ok {
		t.Fatal("expected period_performance to be set")
	}
	if perf < 9.99 || perf > 10.01 {
		t.Errorf("expected period_performance ~10.0, got %v", perf)
	}
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2024, 8, 20, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		timeframe models.Timeframe
		expected  time.Time
	}{
		{models.TimeframeYTD, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{models.TimeframeMTD, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)},
		{models.TimeframeQTD, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
		{models.TimeframeOneYear, time.Date(2023, 8, 20, 15, 30, 0, 0, time.UTC)},
		{models.TimeframeAll, time.Date(2019, 8, 20, 15, 30, 0, 0, time.UTC)},
		{models.TimeframeCurrent, time.Date(2024, 7, 20, 15, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got := periodStart(tt.timeframe, now)
		if !got.Equal(tt.expected) {
			t.Errorf("%s: expected %v, got %v", tt.timeframe, tt.expected, got)
		}
	}
}

const fullSummaryFixture = `{
  "quoteSummary": {
    "result": [{
      "assetProfile": {
        "sector": "Technology",
        "industry": "Consumer Electronics",
        "longBusinessSummary": "Summary.",
        "country": "United States",
        "website": "https://example.com",
        "fullTimeEmployees": 1000
      },
      "price": {"longName": "Example Inc."},
      "summaryDetail": {
        "trailingPE": {"raw": 30.0},
        "forwardPE": {"raw": 28.0},
        "marketCap": {"raw": 1000000000},
        "beta": {"raw": 1.1},
        "dividendYield": {"raw": 0.005}
      },
      "defaultKeyStatistics": {
        "priceToBook": {"raw": 10.0},
        "trailingEps": {"raw": 5.0}
      },
      "financialData": {
        "totalRevenue": {"raw": 400000000},
        "revenueGrowth": {"raw": 0.08},
        "earningsGrowth": {"raw": 0.05},
        "profitMargins": {"raw": 0.25},
        "operatingMargins": {"raw": 0.30},
        "grossMargins": {"raw": 0.45},
        "returnOnEquity": {"raw": 1.5},
        "debtToEquity": {"raw": 170.0},
        "currentRatio": {"raw": 0.95},
        "quickRatio": {"raw": 0.85}
      },
      "recommendationTrend": {
        "trend": [{"period": "0m", "strongBuy": 5, "buy": 10, "hold": 5, "sell": 1, "strongSell": 0}]
      }
    }],
    "error": null
  }
}`

// Every fetch operation owns its attribute keys; a key appearing in two
// operations would make merged results order-dependent.
func TestOperationKeys_Disjoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/v7/finance/quote"):
			w.Write([]byte(quoteFixture))
		case strings.HasPrefix(r.URL.Path, "/v8/finance/chart/"):
			w.Write([]byte(`{"chart":{"result":[{"timestamp":[1704153600,1704240000],"indicators":{"quote":[{"close":[100.0,110.0]}]}}],"error":null}}`))
		default:
			w.Write([]byte(fullSummaryFixture))
		}
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	ctx := context.Background()

	ops := map[string]func() (models.Attributes, error){
		"quote":           func() (models.Attributes, error) { return client.GetQuote(ctx, "X") },
		"overview":        func() (models.Attributes, error) { return client.GetCompanyOverview(ctx, "X") },
		"valuation":       func() (models.Attributes, error) { return client.GetValuation(ctx, "X") },
		"financials":      func() (models.Attributes, error) { return client.GetFinancials(ctx, "X") },
		"ratios":          func() (models.Attributes, error) { return client.GetRatios(ctx, "X") },
		"history":         func() (models.Attributes, error) { return client.GetHistory(ctx, "X", models.TimeframeYTD) },
		"recommendations": func() (models.Attributes, error) { return client.GetRecommendations(ctx, "X") },
	}

	owner := map[string]string{}
	for name, op := range ops {
		attrs, err := op()
		if err != nil {
			t.Fatalf("%s failed: %v", name, err)
		}
		if len(attrs) == 0 {
			t.Errorf("%s returned no attributes against full fixture", name)
		}
		for key := range attrs {
			if prev, taken := owner[key]; taken {
				t.Errorf("key %q emitted by both %s and %s", key, prev, name)
			}
			owner[key] = name
		}
	}
}
