// Package yahoo provides a client for the Yahoo Finance API
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/interfaces"
	"github.com/nwillis/stockchat/internal/models"
)

const (
	DefaultBaseURL   = "https://query2.finance.yahoo.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second

	// Yahoo rejects requests carrying the default Go user agent.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// rawNumber handles Yahoo's number encodings: plain numbers, numeric strings,
// and formatted-value objects like {"raw": 1.23, "fmt": "1.23%"}. Absent,
// null, or empty-object values decode with ok=false so callers can omit the
// attribute instead of emitting a zero.
type rawNumber struct {
	value float64
	ok    bool
}

func (n *rawNumber) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || string(data) == "{}" {
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		n.value = num
		n.ok = true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		n.value = num
		n.ok = true
		return nil
	}
	var wrapped struct {
		Raw *float64 `json:"raw"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		if wrapped.Raw != nil {
			n.value = *wrapped.Raw
			n.ok = true
		}
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into number", string(data))
}

// Client implements the MarketDataClient interface
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithClock overrides the clock used for timeframe windows
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Yahoo Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yahoo API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("yahoo API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func put(attrs models.Attributes, key string, n rawNumber) {
	if n.ok {
		attrs[key] = n.value
	}
}

func putString(attrs models.Attributes, key, s string) {
	if s != "" {
		attrs[key] = s
	}
}

// GetQuote retrieves the current quote for a symbol
func (c *Client) GetQuote(ctx context.Context, symbol string) (models.Attributes, error) {
	params := url.Values{}
	params.Set("symbols", symbol)

	var resp quoteEnvelope
	if err := c.get(ctx, "/v7/finance/quote", params, &resp); err != nil {
		return nil, err
	}
	if resp.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote %s: %s", symbol, resp.QuoteResponse.Error.Description)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data for %s", symbol)
	}

	q := resp.QuoteResponse.Result[0]
	attrs := models.Attributes{}
	put(attrs, "current_price", q.RegularMarketPrice)
	put(attrs, "price_change", q.RegularMarketChange)
	put(attrs, "price_change_percent", q.RegularMarketChangePercent)
	put(attrs, "volume", q.RegularMarketVolume)
	put(attrs, "fifty_day_average", q.FiftyDayAverage)
	put(attrs, "two_hundred_day_average", q.TwoHundredDayAverage)
	put(attrs, "day_high", q.RegularMarketDayHigh)
	put(attrs, "day_low", q.RegularMarketDayLow)
	put(attrs, "previous_close", q.RegularMarketPreviousClose)
	return attrs, nil
}

type quoteEnvelope struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  *apiErrorBody `json:"error"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	RegularMarketPrice         rawNumber `json:"regularMarketPrice"`
	RegularMarketChange        rawNumber `json:"regularMarketChange"`
	RegularMarketChangePercent rawNumber `json:"regularMarketChangePercent"`
	RegularMarketVolume        rawNumber `json:"regularMarketVolume"`
	FiftyDayAverage            rawNumber `json:"fiftyDayAverage"`
	TwoHundredDayAverage       rawNumber `json:"twoHundredDayAverage"`
	RegularMarketDayHigh       rawNumber `json:"regularMarketDayHigh"`
	RegularMarketDayLow        rawNumber `json:"regularMarketDayLow"`
	RegularMarketPreviousClose rawNumber `json:"regularMarketPreviousClose"`
}

type apiErrorBody struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// quoteSummary fetches the requested quoteSummary modules for a symbol
func (c *Client) quoteSummary(ctx context.Context, symbol, modules string) (*quoteSummaryResult, error) {
	params := url.Values{}
	params.Set("modules", modules)

	var resp quoteSummaryEnvelope
	if err := c.get(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(symbol), params, &resp); err != nil {
		return nil, err
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("quote summary %s: %s", symbol, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("no quote summary data for %s", symbol)
	}
	return &resp.QuoteSummary.Result[0], nil
}

type quoteSummaryEnvelope struct {
	QuoteSummary struct {
		Result []quoteSummaryResult `json:"result"`
		Error  *apiErrorBody        `json:"error"`
	} `json:"quoteSummary"`
}

type quoteSummaryResult struct {
	AssetProfile *struct {
		Sector              string `json:"sector"`
		Industry            string `json:"industry"`
		LongBusinessSummary string `json:"longBusinessSummary"`
		Country             string `json:"country"`
		Website             string `json:"website"`
		FullTimeEmployees   int64  `json:"fullTimeEmployees"`
	} `json:"assetProfile"`
	Price *struct {
		LongName  string `json:"longName"`
		ShortName string `json:"shortName"`
	} `json:"price"`
	SummaryDetail *struct {
		TrailingPE    rawNumber `json:"trailingPE"`
		ForwardPE     rawNumber `json:"forwardPE"`
		MarketCap     rawNumber `json:"marketCap"`
		Beta          rawNumber `json:"beta"`
		DividendYield rawNumber `json:"dividendYield"`
	} `json:"summaryDetail"`
	DefaultKeyStatistics *struct {
		PriceToBook rawNumber `json:"priceToBook"`
		TrailingEps rawNumber `json:"trailingEps"`
	} `json:"defaultKeyStatistics"`
	FinancialData *struct {
		TotalRevenue     rawNumber `json:"totalRevenue"`
		RevenueGrowth    rawNumber `json:"revenueGrowth"`
		EarningsGrowth   rawNumber `json:"earningsGrowth"`
		ProfitMargins    rawNumber `json:"profitMargins"`
		OperatingMargins rawNumber `json:"operatingMargins"`
		GrossMargins     rawNumber `json:"grossMargins"`
		ReturnOnEquity   rawNumber `json:"returnOnEquity"`
		DebtToEquity     rawNumber `json:"debtToEquity"`
		CurrentRatio     rawNumber `json:"currentRatio"`
		QuickRatio       rawNumber `json:"quickRatio"`
	} `json:"financialData"`
	RecommendationTrend *struct {
		Trend []struct {
			Period     string `json:"period"`
			StrongBuy  int    `json:"strongBuy"`
			Buy        int    `json:"buy"`
			Hold       int    `json:"hold"`
			Sell       int    `json:"sell"`
			StrongSell int    `json:"strongSell"`
		} `json:"trend"`
	} `json:"recommendationTrend"`
}

// GetCompanyOverview retrieves the company profile for a symbol
func (c *Client) GetCompanyOverview(ctx context.Context, symbol string) (models.Attributes, error) {
	result, err := c.quoteSummary(ctx, symbol, "assetProfile,price")
	if err != nil {
		return nil, err
	}

	attrs := models.Attributes{}
	if p := result.AssetProfile; p != nil {
		putString(attrs, "sector", p.Sector)
		putString(attrs, "industry", p.Industry)
		putString(attrs, "description", p.LongBusinessSummary)
		putString(attrs, "country", p.Country)
		putString(attrs, "website", p.Website)
		if p.FullTimeEmployees > 0 {
			attrs["employees"] = float64(p.FullTimeEmployees)
		}
	}
	if p := result.Price; p != nil {
		name := p.LongName
		if name == "" {
			name = p.ShortName
		}
		putString(attrs, "company_name", name)
	}
	return attrs, nil
}

// GetValuation retrieves valuation metrics for a symbol
func (c *Client) GetValuation(ctx context.Context, symbol string) (models.Attributes, error) {
	result, err := c.quoteSummary(ctx, symbol, "summaryDetail,defaultKeyStatistics")
	if err != nil {
		return nil, err
	}

	attrs := models.Attributes{}
	if d := result.SummaryDetail; d != nil {
		put(attrs, "pe_ratio", d.TrailingPE)
		put(attrs, "forward_pe", d.ForwardPE)
		put(attrs, "market_cap", d.MarketCap)
		put(attrs, "beta", d.Beta)
		put(attrs, "dividend_yield", d.DividendYield)
	}
	if s := result.DefaultKeyStatistics; s != nil {
		put(attrs, "price_to_book", s.PriceToBook)
		put(attrs, "eps", s.TrailingEps)
	}
	return attrs, nil
}

// GetFinancials retrieves revenue and earnings figures for a symbol
func (c *Client) GetFinancials(ctx context.Context, symbol string) (models.Attributes, error) {
	result, err := c.quoteSummary(ctx, symbol, "financialData")
	if err != nil {
		return nil, err
	}

	attrs := models.Attributes{}
	if f := result.FinancialData; f != nil {
		put(attrs, "total_revenue", f.TotalRevenue)
		put(attrs, "revenue_growth", f.RevenueGrowth)
		put(attrs, "earnings_growth", f.EarningsGrowth)
	}
	return attrs, nil
}

// GetRatios retrieves margin, liquidity and leverage ratios for a symbol
func (c *Client) GetRatios(ctx context.Context, symbol string) (models.Attributes, error) {
	result, err := c.quoteSummary(ctx, symbol, "financialData")
	if err != nil {
		return nil, err
	}

	attrs := models.Attributes{}
	if f := result.FinancialData; f != nil {
		put(attrs, "profit_margin", f.ProfitMargins)
		put(attrs, "operating_margin", f.OperatingMargins)
		put(attrs, "gross_margin", f.GrossMargins)
		put(attrs, "return_on_equity", f.ReturnOnEquity)
		put(attrs, "debt_to_equity", f.DebtToEquity)
		put(attrs, "current_ratio", f.CurrentRatio)
		put(attrs, "quick_ratio", f.QuickRatio)
	}
	return attrs, nil
}

// GetRecommendations retrieves analyst recommendation counts for a symbol
func (c *Client) GetRecommendations(ctx context.Context, symbol string) (models.Attributes, error) {
	result, err := c.quoteSummary(ctx, symbol, "recommendationTrend")
	if err != nil {
		return nil, err
	}

	attrs := models.Attributes{}
	if r := result.RecommendationTrend; r != nil && len(r.Trend) > 0 {
		t := r.Trend[0]
		attrs["analyst_strong_buy"] = float64(t.StrongBuy)
		attrs["analyst_buy"] = float64(t.Buy)
		attrs["analyst_hold"] = float64(t.Hold)
		attrs["analyst_sell"] = float64(t.Sell)
		attrs["analyst_strong_sell"] = float64(t.StrongSell)
		putString(attrs, "analyst_consensus", consensus(t.StrongBuy, t.Buy, t.Hold, t.Sell, t.StrongSell))
	}
	return attrs, nil
}

// consensus reduces recommendation counts to a single label using the
// standard 1-5 rating scale (1 = strong buy, 5 = strong sell).
func consensus(strongBuy, buy, hold, sell, strongSell int) string {
	total := strongBuy + buy + hold + sell + strongSell
	if total == 0 {
		return ""
	}
	score := float64(strongBuy*1+buy*2+hold*3+sell*4+strongSell*5) / float64(total)
	switch {
	case score < 1.5:
		return "strong buy"
	case score < 2.5:
		return "buy"
	case score < 3.5:
		return "hold"
	case score < 4.5:
		return "sell"
	default:
		return "strong sell"
	}
}

// GetHistory retrieves the daily price series for a timeframe and computes
// period performance from the first and last closes
func (c *Client) GetHistory(ctx context.Context, symbol string, timeframe models.Timeframe) (models.Attributes, error) {
	now := c.now()
	start := periodStart(timeframe, now)

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(now.Unix(), 10))
	params.Set("interval", "1d")

	var resp chartEnvelope
	if err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), params, &resp); err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %s", symbol, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}

	chart := resp.Chart.Result[0]
	if len(chart.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no price series for %s", symbol)
	}

	// Drop bars with null closes (holidays, partial sessions)
	closes := chart.Indicators.Quote[0].Close
	prices := make([]map[string]interface{}, 0, len(closes))
	for i, ts := range chart.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		prices = append(prices, map[string]interface{}{
			"date":  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			"close": *closes[i],
		})
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no price series for %s", symbol)
	}

	first := prices[0]["close"].(float64)
	last := prices[len(prices)-1]["close"].(float64)

	attrs := models.Attributes{
		"period_start_price": first,
		"period_end_price":   last,
		"trading_days":       float64(len(prices)),
		"prices":             prices,
	}
	if first != 0 {
		attrs["period_performance"] = (last - first) / first * 100
	}
	return attrs, nil
}

type chartEnvelope struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiErrorBody `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// periodStart resolves a timeframe to the start of its historical window.
// CURRENT and unknown values fall back to a one month window.
func periodStart(tf models.Timeframe, now time.Time) time.Time {
	switch tf {
	case models.TimeframeYTD:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	case models.TimeframeMTD:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case models.TimeframeQTD:
		quarterStart := time.Month((int(now.Month())-1)/3*3 + 1)
		return time.Date(now.Year(), quarterStart, 1, 0, 0, 0, 0, now.Location())
	case models.TimeframeOneYear:
		return now.AddDate(-1, 0, 0)
	case models.TimeframeAll:
		return now.AddDate(-5, 0, 0)
	default:
		return now.AddDate(0, -1, 0)
	}
}

// Ensure Client implements MarketDataClient
var _ interfaces.MarketDataClient = (*Client)(nil)
