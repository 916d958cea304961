package memory

import (
	"context"
	"strings"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/storage"
)

func (m *InMemoryStorage) CreateUser(_ context.Context, user models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := m.byEmail[email]; ok {
		return nil, storage.ErrUserExists
	}
	if _, ok := m.users[user.ID]; ok {
		return nil, storage.ErrUserExists
	}

	user.Email = email
	m.users[user.ID] = user
	m.byEmail[email] = user.ID
	return &user, nil
}

func (m *InMemoryStorage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &user, nil
}

func (m *InMemoryStorage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	user := m.users[id]
	return &user, nil
}
