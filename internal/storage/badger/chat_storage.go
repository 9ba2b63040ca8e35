package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/interfaces"
	"github.com/nwillis/stockchat/internal/models"
)

type chatStorage struct {
	store  *Store
	logger *common.Logger
}

// NewChatStorage creates a new ChatStore backed by BadgerHold.
func NewChatStorage(store *Store, logger *common.Logger) *chatStorage {
	return &chatStorage{store: store, logger: logger}
}

// chatKey scopes chat records to their owner so one user can never address
// another user's chat by id.
func chatKey(userID, chatID string) string {
	return userID + ":" + chatID
}

func (s *chatStorage) GetChat(_ context.Context, userID, chatID string) (*models.Chat, error) {
	var chat models.Chat
	err := s.store.db.Get(chatKey(userID, chatID), &chat)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("chat '%s': %w", chatID, interfaces.ErrChatNotFound)
		}
		return nil, fmt.Errorf("failed to get chat '%s': %w", chatID, err)
	}
	return &chat, nil
}

func (s *chatStorage) SaveChat(_ context.Context, chat *models.Chat) error {
	if chat.ID == "" || chat.UserID == "" {
		return fmt.Errorf("chat id and user id are required")
	}
	if err := s.store.db.Upsert(chatKey(chat.UserID, chat.ID), chat); err != nil {
		return fmt.Errorf("failed to save chat '%s': %w", chat.ID, err)
	}
	s.logger.Debug().Str("chat_id", chat.ID).Int("messages", len(chat.Messages)).Msg("Chat saved")
	return nil
}

func (s *chatStorage) DeleteChat(_ context.Context, userID, chatID string) error {
	err := s.store.db.Delete(chatKey(userID, chatID), models.Chat{})
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("chat '%s': %w", chatID, interfaces.ErrChatNotFound)
		}
		return fmt.Errorf("failed to delete chat '%s': %w", chatID, err)
	}
	s.logger.Debug().Str("chat_id", chatID).Msg("Chat deleted")
	return nil
}

func (s *chatStorage) ListChats(_ context.Context, userID string) ([]*models.Chat, error) {
	var chats []models.Chat
	if err := s.store.db.Find(&chats, badgerhold.Where("UserID").Eq(userID)); err != nil {
		return nil, fmt.Errorf("failed to list chats for user '%s': %w", userID, err)
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	out := make([]*models.Chat, len(chats))
	for i := range chats {
		out[i] = &chats[i]
	}
	return out, nil
}
