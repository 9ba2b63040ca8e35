package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/models"
)

type userStorage struct {
	store  *Store
	logger *common.Logger
}

// NewUserStorage creates a new UserStore backed by BadgerHold.
func NewUserStorage(store *Store, logger *common.Logger) *userStorage {
	return &userStorage{store: store, logger: logger}
}

func (s *userStorage) GetUser(_ context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.store.db.Get(userID, &user)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("user '%s' not found", userID)
		}
		return nil, fmt.Errorf("failed to get user '%s': %w", userID, err)
	}
	return &user, nil
}

func (s *userStorage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	var users []models.User
	err := s.store.db.Find(&users, badgerhold.Where("Email").Eq(strings.ToLower(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user with email '%s' not found", email)
	}
	return &users[0], nil
}

func (s *userStorage) SaveUser(_ context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	if err := s.store.db.Upsert(user.UserID, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	s.logger.Debug().Str("user_id", user.UserID).Msg("User saved")
	return nil
}

func (s *userStorage) DeleteUser(_ context.Context, userID string) error {
	err := s.store.db.Delete(userID, models.User{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete user '%s': %w", userID, err)
	}
	s.logger.Debug().Str("user_id", userID).Msg("User deleted")
	return nil
}

func (s *userStorage) ListUsers(_ context.Context) ([]string, error) {
	var users []models.User
	if err := s.store.db.Find(&users, nil); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.UserID
	}
	return ids, nil
}

func (s *userStorage) SetUserKV(_ context.Context, userID, key, value string) error {
	entry := models.UserKeyValue{
		UserID:     userID,
		Key:        key,
		Value:      value,
		ModifiedAt: time.Now().UTC(),
	}
	if err := s.store.db.Upsert(userID+":"+key, &entry); err != nil {
		return fmt.Errorf("failed to set user key '%s': %w", key, err)
	}
	return nil
}

func (s *userStorage) GetUserKV(_ context.Context, userID, key string) (*models.UserKeyValue, error) {
	var entry models.UserKeyValue
	err := s.store.db.Get(userID+":"+key, &entry)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("key '%s' not found for user '%s'", key, userID)
		}
		return nil, fmt.Errorf("failed to get user key '%s': %w", key, err)
	}
	return &entry, nil
}

func (s *userStorage) ListUserKV(_ context.Context, userID string) ([]*models.UserKeyValue, error) {
	var entries []models.UserKeyValue
	if err := s.store.db.Find(&entries, badgerhold.Where("UserID").Eq(userID)); err != nil {
		return nil, fmt.Errorf("failed to list keys for user '%s': %w", userID, err)
	}
	out := make([]*models.UserKeyValue, len(entries))
	for i := range entries {
		out[i] = &entries[i]
	}
	return out, nil
}
