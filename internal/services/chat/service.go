// Package chat manages persisted conversation transcripts.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/interfaces"
	"github.com/nwillis/stockchat/internal/models"
)

// DefaultHistoryLimit caps how many prior messages are handed to the model.
const DefaultHistoryLimit = 20

// Service implements interfaces.ChatService over a ChatStore.
type Service struct {
	store  interfaces.ChatStore
	logger *common.Logger
}

// NewService creates a chat service
func NewService(store interfaces.ChatStore, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{store: store, logger: logger}
}

// CreateChat creates and persists an empty chat.
func (s *Service) CreateChat(ctx context.Context, userID, title string) (*models.Chat, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if title == "" {
		title = "New chat"
	}

	now := time.Now().UTC()
	chat := &models.Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	s.logger.Debug().Str("chat_id", chat.ID).Str("user_id", userID).Msg("Chat created")
	return chat, nil
}

// GetChat returns one chat owned by the user.
func (s *Service) GetChat(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	return s.store.GetChat(ctx, userID, chatID)
}

// ListChats returns summaries of the user's chats, most recently updated first.
func (s *Service) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	chats, err := s.store.ListChats(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.ChatSummary, len(chats))
	for i, c := range chats {
		summaries[i] = c.Summary()
	}
	return summaries, nil
}

// DeleteChat removes one chat owned by the user.
func (s *Service) DeleteChat(ctx context.Context, userID, chatID string) error {
	return s.store.DeleteChat(ctx, userID, chatID)
}

// AppendMessage appends a message to the chat and bumps UpdatedAt. A missing
// message id or timestamp is filled in.
func (s *Service) AppendMessage(ctx context.Context, userID, chatID string, msg models.Message) (*models.Chat, error) {
	chat, err := s.store.GetChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	chat.Messages = append(chat.Messages, msg)
	chat.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return chat, nil
}

// UpdateTitle sets the chat title.
func (s *Service) UpdateTitle(ctx context.Context, userID, chatID, title string) error {
	chat, err := s.store.GetChat(ctx, userID, chatID)
	if err != nil {
		return err
	}
	chat.Title = title
	chat.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveChat(ctx, chat); err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	return nil
}

// History returns up to limit of the chat's most recent messages, oldest
// first. limit <= 0 means the default.
func (s *Service) History(ctx context.Context, userID, chatID string, limit int) ([]models.Message, error) {
	chat, err := s.store.GetChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	msgs := chat.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// Ensure Service implements ChatService
var _ interfaces.ChatService = (*Service)(nil)
