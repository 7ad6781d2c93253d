package handlers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/David-Krivoklatsky/GreedAdvisor/internal/storage"
)

var errAuditDown = errors.New("audit log unavailable")

type fakeClock struct {
	now time.Time
}

func (f fakeClock) Now() time.Time { return f.now }

// memStore is an in-memory stand-in for storage.Store used across the
// handler tests.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*storage.User
	keys   map[storage.KeyKind]map[int64]*storage.APIKey
	logs   []storage.KeyLog

	failLogs bool
}

func newMemStore() *memStore {
	return &memStore{
		nextID: 1,
		users:  map[int64]*storage.User{},
		keys: map[storage.KeyKind]map[int64]*storage.APIKey{
			storage.KindAI:         {},
			storage.KindTrading:    {},
			storage.KindMarketData: {},
		},
	}
}

func (m *memStore) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memStore) addUser(email, passwordHash string) *storage.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := &storage.User{
		ID:           m.id(),
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	m.users[user.ID] = user
	return user
}

func (m *memStore) addKey(kind storage.KeyKind, userID int64, title, discriminator, apiKey string) *storage.APIKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := &storage.APIKey{
		ID:            m.id(),
		UserID:        userID,
		Title:         title,
		Discriminator: discriminator,
		APIKey:        apiKey,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	m.keys[kind][key.ID] = key
	return key
}

func (m *memStore) CreateUser(_ context.Context, email, passwordHash string) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return nil, storage.ErrEmailTaken
		}
	}
	user := &storage.User{
		ID:           m.id(),
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, userID int64) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

func (m *memStore) UpdateUser(_ context.Context, userID int64, patch storage.UserPatch) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if patch.Email != nil {
		for id, other := range m.users {
			if id != userID && other.Email == *patch.Email {
				return nil, storage.ErrEmailTaken
			}
		}
		user.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	if patch.FirstName != nil {
		user.FirstName = patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = patch.LastName
	}
	if patch.ProfilePicture != nil {
		user.ProfilePicture = patch.ProfilePicture
	}
	user.UpdatedAt = time.Now().UTC()
	return user, nil
}

func (m *memStore) ListKeys(_ context.Context, kind storage.KeyKind, userID int64) ([]storage.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []storage.APIKey
	for _, key := range m.keys[kind] {
		if key.UserID == userID && key.DeletedAt == nil {
			items = append(items, *key)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (m *memStore) FindActiveOwned(_ context.Context, kind storage.KeyKind, userID, keyID int64) (*storage.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[kind][keyID]
	if !ok || key.UserID != userID || key.DeletedAt != nil {
		return nil, storage.ErrNotFound
	}
	copied := *key
	return &copied, nil
}

func (m *memStore) CreateKey(_ context.Context, kind storage.KeyKind, userID int64, title, discriminator, apiKey string, log storage.KeyLog) (*storage.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.appendLog(log); err != nil {
		return nil, err
	}
	key := &storage.APIKey{
		ID:            m.id(),
		UserID:        userID,
		Title:         title,
		Discriminator: discriminator,
		APIKey:        apiKey,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	m.keys[kind][key.ID] = key
	return key, nil
}

func (m *memStore) UpdateKey(_ context.Context, kind storage.KeyKind, userID, keyID int64, patch storage.KeyPatch, log storage.KeyLog) (*storage.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[kind][keyID]
	if !ok || key.UserID != userID || key.DeletedAt != nil {
		return nil, storage.ErrNotFound
	}
	if err := m.appendLog(log); err != nil {
		return nil, err
	}
	if patch.Title != nil {
		key.Title = *patch.Title
	}
	if patch.Discriminator != nil {
		key.Discriminator = *patch.Discriminator
	}
	if patch.APIKey != nil {
		key.APIKey = *patch.APIKey
	}
	if patch.IsActive != nil {
		key.IsActive = *patch.IsActive
	}
	key.UpdatedAt = time.Now().UTC()
	copied := *key
	return &copied, nil
}

func (m *memStore) SoftDeleteKey(_ context.Context, kind storage.KeyKind, userID, keyID int64, log storage.KeyLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[kind][keyID]
	if !ok || key.UserID != userID || key.DeletedAt != nil {
		return storage.ErrNotFound
	}
	if err := m.appendLog(log); err != nil {
		return err
	}
	now := time.Now().UTC()
	key.DeletedAt = &now
	key.IsActive = false
	return nil
}

func (m *memStore) TouchKeyLastUsed(_ context.Context, kind storage.KeyKind, keyID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[kind][keyID]
	if !ok {
		return storage.ErrNotFound
	}
	now := time.Now().UTC()
	key.LastUsed = &now
	return nil
}

func (m *memStore) appendLog(log storage.KeyLog) error {
	if m.failLogs {
		return errAuditDown
	}
	m.logs = append(m.logs, log)
	return nil
}
