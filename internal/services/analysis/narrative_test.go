package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/models"
)

func TestGenerateAnalysis_PromptContents(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"the answer"}}
	n := NewNarrator(llm, common.NewSilentLogger())

	data := &models.CombinedData{
		Metrics:   []string{"pe_ratio"},
		Data:      models.Attributes{"pe_ratio": 34.67},
		Timeframe: models.TimeframeYTD,
	}
	comparisons := []models.ComparisonEntry{
		{Ticker: "MSFT", Data: &models.CombinedData{Data: models.Attributes{"pe_ratio": 37.1}}},
		{Ticker: "EMPTY", Data: &models.CombinedData{Data: models.Attributes{}}},
	}
	history := []models.Message{
		{Role: models.RoleUser, Content: "previous question"},
	}

	out, err := n.GenerateAnalysis(context.Background(), "is AAPL overvalued?", "AAPL", data, comparisons, history)
	if err != nil {
		t.Fatalf("GenerateAnalysis failed: %v", err)
	}
	if out != "the answer" {
		t.Errorf("expected model output passthrough, got %q", out)
	}

	prompt := llm.prompts[0]
	for _, want := range []string{
		"QUICK OVERVIEW",
		"PRICE ANALYSIS",
		"FUNDAMENTAL METRICS",
		"KEY TAKEAWAYS",
		"RISK FACTORS",
		"is AAPL overvalued?",
		"pe_ratio",
		"34.67",
		"Comparison data for MSFT",
		"previous question",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
	if strings.Contains(prompt, "EMPTY") {
		t.Error("comparison entries without data must be omitted from the prompt")
	}
}

func TestGenerateConversation_PromptContents(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"hi"}}
	n := NewNarrator(llm, common.NewSilentLogger())

	_, err := n.GenerateConversation(context.Background(), "hello", []models.Message{
		{Role: models.RoleAssistant, Content: "earlier reply"},
	})
	if err != nil {
		t.Fatalf("GenerateConversation failed: %v", err)
	}

	prompt := llm.prompts[0]
	if !strings.Contains(prompt, "hello") || !strings.Contains(prompt, "earlier reply") {
		t.Errorf("expected query and history in prompt, got %q", prompt)
	}
	if strings.Contains(prompt, "QUICK OVERVIEW") {
		t.Error("conversational prompt must not carry the analysis template")
	}
}
