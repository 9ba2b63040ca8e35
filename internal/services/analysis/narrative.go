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

// Narrator turns fetched stock data into the user-facing answer text.
type Narrator struct {
	llm    interfaces.LLMClient
	logger *common.Logger
}

// NewNarrator creates a narrator
func NewNarrator(llm interfaces.LLMClient, logger *common.Logger) *Narrator {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Narrator{llm: llm, logger: logger}
}

const analysisPromptHeader = `You are a financial analyst assistant. Answer the user's question about %s
using ONLY the data provided below. Do not invent numbers that are not in the data.

Structure the answer with these section headings, omitting any section you have
no data for:

QUICK OVERVIEW
PRICE ANALYSIS
FUNDAMENTAL METRICS
KEY TAKEAWAYS
RISK FACTORS

Keep the tone factual and concise. Format large numbers readably
(e.g. $3.45T, $161.2B). Express ratios and percentages with two decimals.
`

// GenerateAnalysis builds the structured-analysis prompt and asks the model.
func (n *Narrator) GenerateAnalysis(ctx context.Context, query, ticker string, data *models.CombinedData, comparisons []models.ComparisonEntry, history []models.Message) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, analysisPromptHeader, ticker)

	sb.WriteString("\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n")

	if data != nil && len(data.Data) > 0 {
		payload, err := json.MarshalIndent(data.Data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal stock data: %w", err)
		}
		fmt.Fprintf(&sb, "\nData for %s (timeframe %s):\n%s\n", ticker, data.Timeframe, payload)
	}

	for _, cmp := range comparisons {
		if cmp.Data == nil || len(cmp.Data.Data) == 0 {
			continue
		}
		payload, err := json.MarshalIndent(cmp.Data.Data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal comparison data: %w", err)
		}
		fmt.Fprintf(&sb, "\nComparison data for %s:\n%s\n", cmp.Ticker, payload)
	}

	appendHistory(&sb, history)

	return n.llm.GenerateContent(ctx, sb.String())
}

const conversationPromptHeader = `You are a friendly stock-analysis assistant. The user's message is not a
question about a specific stock, so answer conversationally. If they seem to
want stock analysis, ask which ticker they are interested in. Do not fabricate
market data.
`

// GenerateConversation answers a message that resolved to no ticker.
func (n *Narrator) GenerateConversation(ctx context.Context, query string, history []models.Message) (string, error) {
	var sb strings.Builder
	sb.WriteString(conversationPromptHeader)
	appendHistory(&sb, history)
	sb.WriteString("\nUser message: ")
	sb.WriteString(query)
	return n.llm.GenerateContent(ctx, sb.String())
}

// appendHistory renders prior messages, oldest first, for model context.
func appendHistory(sb *strings.Builder, history []models.Message) {
	if len(history) == 0 {
		return
	}
	sb.WriteString("\nConversation so far:\n")
	for _, msg := range history {
		fmt.Fprintf(sb, "%s: %s\n", msg.Role, msg.Content)
	}
}
