package interfaces

import (
	"context"

	"github.com/nwillis/stockchat/internal/models"
)

// AnalysisService answers natural-language stock questions.
type AnalysisService interface {
	// Analyze runs the full pipeline for one query: classification, data
	// fetch, narrative generation, and best-effort chat persistence.
	// chatID may be empty, in which case a new chat is created.
	Analyze(ctx context.Context, userID, chatID, query string) (*models.AnalysisResult, error)
}

// ChatService manages chat transcripts for the analysis pipeline and the
// chat REST endpoints.
type ChatService interface {
	CreateChat(ctx context.Context, userID, title string) (*models.Chat, error)
	GetChat(ctx context.Context, userID, chatID string) (*models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error)
	DeleteChat(ctx context.Context, userID, chatID string) error

	// AppendMessage appends a message to the chat and bumps UpdatedAt.
	AppendMessage(ctx context.Context, userID, chatID string, msg models.Message) (*models.Chat, error)

	// UpdateTitle sets the chat title.
	UpdateTitle(ctx context.Context, userID, chatID, title string) error

	// History returns the role/content pairs of a chat for LLM context,
	// most recent last, capped at limit messages.
	History(ctx context.Context, userID, chatID string, limit int) ([]models.Message, error)
}
