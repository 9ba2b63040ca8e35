package interfaces

import (
	"context"
	"errors"

	"github.com/nwillis/stockchat/internal/models"
)

// ErrChatNotFound is returned by ChatStore implementations when no chat
// exists for the (userID, chatID) pair.
var ErrChatNotFound = errors.New("chat not found")

// StorageManager coordinates all storage backends
type StorageManager interface {
	UserStore() UserStore
	ChatStore() ChatStore

	// System key-value (non-user-scoped runtime settings)
	GetSystemKV(ctx context.Context, key string) (string, error)
	SetSystemKV(ctx context.Context, key, value string) error

	Close() error
}

// UserStore manages user accounts and per-user preferences.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context) ([]string, error)

	SetUserKV(ctx context.Context, userID, key, value string) error
	GetUserKV(ctx context.Context, userID, key string) (*models.UserKeyValue, error)
	ListUserKV(ctx context.Context, userID string) ([]*models.UserKeyValue, error)
}

// ChatStore persists chat transcripts keyed by (userID, chatID).
//
// SaveChat is a whole-record upsert; appends are read-modify-write at the
// service layer. Concurrent appends to the same chat may race: the store
// guarantees key-level atomicity only, there is no version field.
type ChatStore interface {
	GetChat(ctx context.Context, userID, chatID string) (*models.Chat, error)
	SaveChat(ctx context.Context, chat *models.Chat) error
	DeleteChat(ctx context.Context, userID, chatID string) error

	// ListChats returns all chats for a user sorted by UpdatedAt descending.
	ListChats(ctx context.Context, userID string) ([]*models.Chat, error)
}
