package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/interfaces"
	"github.com/nwillis/stockchat/internal/models"
)

// Classifier turns a free-text stock question into a structured
// Classification using two LLM calls: ticker extraction, then question
// classification. Model output is untrusted; anything unparsable degrades to
// an unclassified result instead of an error.
type Classifier struct {
	llm    interfaces.LLMClient
	logger *common.Logger
}

// NewClassifier creates a classifier
func NewClassifier(llm interfaces.LLMClient, logger *common.Logger) *Classifier {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Classifier{llm: llm, logger: logger}
}

const tickerPrompt = `Extract the primary stock ticker symbol from this question.
If the question names a company instead of a ticker, resolve it to its ticker.
Respond with only a JSON object, no other text:
{"ticker": "SYMBOL"} or {"ticker": null} if the question is not about a specific stock.

Question: %s`

const classifyPrompt = `Classify this stock question. Respond with only a JSON object, no other text:
{
  "category": "PERFORMANCE" | "VALUATION" | "RECOMMENDATION" | "COMPARISON" | "FUNDAMENTALS",
  "specificMetrics": ["metric_name", ...],
  "timeframe": "YTD" | "MTD" | "QTD" | "1Y" | "ALL" | "CURRENT",
  "comparisonTickers": ["SYMBOL", ...]
}

Rules:
- specificMetrics lists only metrics the question explicitly asks for, in snake_case
  (e.g. pe_ratio, market_cap, ytd_performance, analyst_recommendations); leave it
  empty when the question is general.
- timeframe is CURRENT unless the question names a period.
- comparisonTickers is empty unless the question compares stocks.

Question about %s: %s`

// Classify runs ticker extraction followed by classification. A transport
// failure from the model propagates; unusable model output returns a
// classification with an empty Ticker so the caller can fall back to the
// conversational path.
func (c *Classifier) Classify(ctx context.Context, query string) (*models.Classification, error) {
	ticker, err := c.extractTicker(ctx, query)
	if err != nil {
		return nil, err
	}
	if ticker == "" {
		c.logger.Debug().Str("query", query).Msg("No ticker found in query")
		return &models.Classification{Timeframe: models.TimeframeCurrent}, nil
	}

	raw, err := c.llm.GenerateContent(ctx, fmt.Sprintf(classifyPrompt, ticker, query))
	if err != nil {
		return nil, fmt.Errorf("classify query: %w", err)
	}

	classification := &models.Classification{
		Ticker:    ticker,
		Timeframe: models.TimeframeCurrent,
	}

	payload, ok := extractJSON(raw)
	if !ok {
		c.logger.Warn().Str("ticker", ticker).Msg("Classifier returned no JSON, using defaults")
		return classification, nil
	}

	var parsed struct {
		Category          string   `json:"category"`
		SpecificMetrics   []string `json:"specificMetrics"`
		Timeframe         string   `json:"timeframe"`
		ComparisonTickers []string `json:"comparisonTickers"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		c.logger.Warn().Err(err).Str("ticker", ticker).Msg("Classifier JSON unparsable, using defaults")
		return classification, nil
	}

	category, known := models.ParseCategory(parsed.Category)
	if known {
		classification.Category = category
	} else if parsed.Category != "" {
		c.logger.Warn().Str("category", parsed.Category).Msg("Unknown category from classifier")
		classification.Category = category
	}
	classification.Timeframe, _ = models.ParseTimeframe(parsed.Timeframe)

	for _, m := range parsed.SpecificMetrics {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			classification.SpecificMetrics = append(classification.SpecificMetrics, m)
		}
	}
	for _, t := range parsed.ComparisonTickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			classification.ComparisonTickers = append(classification.ComparisonTickers, t)
		}
	}

	return classification, nil
}

// extractTicker returns the uppercased ticker the model found, or "".
func (c *Classifier) extractTicker(ctx context.Context, query string) (string, error) {
	raw, err := c.llm.GenerateContent(ctx, fmt.Sprintf(tickerPrompt, query))
	if err != nil {
		return "", fmt.Errorf("extract ticker: %w", err)
	}

	payload, ok := extractJSON(raw)
	if !ok {
		return "", nil
	}

	var parsed struct {
		Ticker *string `json:"ticker"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil || parsed.Ticker == nil {
		return "", nil
	}

	ticker := strings.ToUpper(strings.TrimSpace(*parsed.Ticker))
	if ticker == "" || ticker == "NULL" || ticker == "NONE" {
		return "", nil
	}
	return ticker, nil
}

// extractJSON pulls the first balanced top-level JSON object out of free-form
// model text, tolerating markdown fences and surrounding prose. Braces inside
// string literals do not count toward the balance.
func extractJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
