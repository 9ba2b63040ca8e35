package analysis

import (
	"context"
	"errors"
	"strings"

	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/interfaces"
	"github.com/nwillis/stockchat/internal/models"
)

// ErrEmptyQuery is returned before any upstream call when the query is blank.
var ErrEmptyQuery = errors.New("query is required")

const defaultChatTitle = "New chat"

// fetchFailedMessage is what gets persisted in the transcript when upstream
// data could not be fetched. No data payload accompanies it.
const fetchFailedMessage = "Sorry, I couldn't retrieve the stock data needed to answer that. Please try again."

// Service sequences the full analysis pipeline: classify, fetch, narrate,
// persist.
type Service struct {
	classifier *Classifier
	router     *Router
	narrator   *Narrator
	chats      interfaces.ChatService
	logger     *common.Logger
}

// NewService creates the analysis service
func NewService(classifier *Classifier, router *Router, narrator *Narrator, chats interfaces.ChatService, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		classifier: classifier,
		router:     router,
		narrator:   narrator,
		chats:      chats,
		logger:     logger,
	}
}

// Analyze answers one query. chatID may be empty, creating a new chat.
// Persistence is best-effort: a chat store failure is logged and the answer is
// still returned. Upstream data or model failures fail the whole request; in
// that case an assistant message with generic error text, and no data payload,
// is left in the transcript.
func (s *Service) Analyze(ctx context.Context, userID, chatID, query string) (*models.AnalysisResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	chat, history, err := s.prepareChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	chat = s.append(ctx, chat, models.Message{Role: models.RoleUser, Content: query})

	classification, err := s.classifier.Classify(ctx, query)
	if err != nil {
		s.append(ctx, chat, models.Message{Role: models.RoleAssistant, Content: fetchFailedMessage})
		return nil, err
	}

	result := &models.AnalysisResult{
		Chat:  chat,
		Query: query,
	}

	// No ticker resolves to the conversational path, no stock data fetched.
	if classification.Ticker == "" {
		response, err := s.narrator.GenerateConversation(ctx, query, history)
		if err != nil {
			s.append(ctx, chat, models.Message{Role: models.RoleAssistant, Content: fetchFailedMessage})
			return nil, err
		}
		result.LLMResponse = response
		result.Chat = s.append(ctx, chat, models.Message{Role: models.RoleAssistant, Content: response})
		return result, nil
	}

	result.Ticker = classification.Ticker
	result.Analysis = classification

	stockData, err := s.router.FetchRequiredData(ctx, classification.Ticker, classification.Category, classification.SpecificMetrics, classification.Timeframe)
	if err != nil {
		s.append(ctx, chat, models.Message{Role: models.RoleAssistant, Content: fetchFailedMessage})
		return nil, err
	}
	result.StockData = stockData

	if classification.Category == models.CategoryComparison && len(classification.ComparisonTickers) > 0 {
		comparisons, err := s.router.FetchComparisons(ctx, classification.Ticker, classification.ComparisonTickers, classification.Category, classification.SpecificMetrics, classification.Timeframe)
		if err != nil {
			s.append(ctx, chat, models.Message{Role: models.RoleAssistant, Content: fetchFailedMessage})
			return nil, err
		}
		result.ComparisonData = comparisons
	}

	response, err := s.narrator.GenerateAnalysis(ctx, query, classification.Ticker, stockData, result.ComparisonData, history)
	if err != nil {
		s.append(ctx, chat, models.Message{Role: models.RoleAssistant, Content: fetchFailedMessage})
		return nil, err
	}
	result.LLMResponse = response

	s.maybeSetTitle(ctx, chat, classification.Ticker)

	result.Chat = s.append(ctx, chat, models.Message{
		Role:    models.RoleAssistant,
		Content: response,
		Data: map[string]interface{}{
			"ticker":    classification.Ticker,
			"stockData": stockData,
		},
	})
	return result, nil
}

// prepareChat loads or creates the chat and captures the history snapshot
// from before this exchange.
func (s *Service) prepareChat(ctx context.Context, userID, chatID string) (*models.Chat, []models.Message, error) {
	if chatID == "" {
		chat, err := s.chats.CreateChat(ctx, userID, defaultChatTitle)
		if err != nil {
			return nil, nil, err
		}
		return chat, nil, nil
	}

	chat, err := s.chats.GetChat(ctx, userID, chatID)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.chats.History(ctx, userID, chatID, 0)
	if err != nil {
		s.logger.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to load chat history")
		history = nil
	}
	return chat, history, nil
}

// append persists a message best-effort. On failure the message is still
// attached to the in-memory chat so the response reflects the exchange.
func (s *Service) append(ctx context.Context, chat *models.Chat, msg models.Message) *models.Chat {
	updated, err := s.chats.AppendMessage(ctx, chat.UserID, chat.ID, msg)
	if err != nil {
		s.logger.Warn().Err(err).Str("chat_id", chat.ID).Msg("Failed to persist chat message")
		chat.Messages = append(chat.Messages, msg)
		return chat
	}
	return updated
}

// maybeSetTitle names a fresh chat after the first resolved ticker.
func (s *Service) maybeSetTitle(ctx context.Context, chat *models.Chat, ticker string) {
	if chat.Title != defaultChatTitle && chat.Title != "" {
		return
	}
	if err := s.chats.UpdateTitle(ctx, chat.UserID, chat.ID, ticker); err != nil {
		s.logger.Warn().Err(err).Str("chat_id", chat.ID).Msg("Failed to update chat title")
		return
	}
	chat.Title = ticker
}

// Ensure Service implements AnalysisService
var _ interfaces.AnalysisService = (*Service)(nil)
