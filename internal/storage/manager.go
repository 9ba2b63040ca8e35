// Package storage provides the top-level StorageManager over the embedded
// BadgerHold database.
package storage

import (
	"context"
	"fmt"

	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/interfaces"
	"github.com/nwillis/stockchat/internal/storage/badger"
)

// Manager implements interfaces.StorageManager over a single BadgerHold store.
type Manager struct {
	store  *badger.Store
	users  interfaces.UserStore
	chats  interfaces.ChatStore
	kv     systemKV
	logger *common.Logger
}

type systemKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// SchemaVersionKey is the system KV key holding the store's schema version.
const SchemaVersionKey = "stockchat_schema_version"

// schemaVersion identifies the current record layout. Bump it when a stored
// type changes shape so operators can spot stores written by older builds.
const schemaVersion = "1"

// NewManager opens the store, wires the storage areas, and stamps the schema
// version for a fresh store.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	store, err := badger.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	m := &Manager{
		store:  store,
		users:  badger.NewUserStorage(store, logger),
		chats:  badger.NewChatStorage(store, logger),
		kv:     badger.NewKVStorage(store, logger),
		logger: logger,
	}

	ctx := context.Background()
	current, err := m.kv.Get(ctx, SchemaVersionKey)
	if err != nil || current == "" {
		if err := m.kv.Set(ctx, SchemaVersionKey, schemaVersion); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to stamp schema version: %w", err)
		}
		current = schemaVersion
	}

	logger.Info().
		Str("path", config.Storage.Path).
		Str("schema_version", current).
		Msg("Storage manager initialized")

	return m, nil
}

func (m *Manager) UserStore() interfaces.UserStore {
	return m.users
}

func (m *Manager) ChatStore() interfaces.ChatStore {
	return m.chats
}

func (m *Manager) GetSystemKV(ctx context.Context, key string) (string, error) {
	return m.kv.Get(ctx, key)
}

func (m *Manager) SetSystemKV(ctx context.Context, key, value string) error {
	return m.kv.Set(ctx, key, value)
}

func (m *Manager) Close() error {
	return m.store.Close()
}

// Ensure Manager implements StorageManager
var _ interfaces.StorageManager = (*Manager)(nil)
