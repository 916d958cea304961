package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/storage"
)

// InMemoryStorage keeps users and sessions in process memory.
// A single mutex makes ReplaceSubjectSession atomic.
type InMemoryStorage struct {
	mu sync.RWMutex

	sessions  map[string]models.Session // by session id
	bySession map[string]string         // session token -> session id
	byRefresh map[string]string         // refresh token -> session id

	users   map[string]models.User
	byEmail map[string]string

	log *zap.SugaredLogger
}

func NewStorage(log *zap.SugaredLogger) *InMemoryStorage {
	return &InMemoryStorage{
		sessions:  make(map[string]models.Session),
		bySession: make(map[string]string),
		byRefresh: make(map[string]string),
		users:     make(map[string]models.User),
		byEmail:   make(map[string]string),
		log:       log,
	}
}

func (m *InMemoryStorage) CreateSession(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertLocked(session)
}

func (m *InMemoryStorage) FindBySessionToken(_ context.Context, token string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lookupLocked(m.bySession, token)
}

func (m *InMemoryStorage) FindByRefreshToken(_ context.Context, token string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lookupLocked(m.byRefresh, token)
}

func (m *InMemoryStorage) DeleteAllForSubject(_ context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteSubjectLocked(subjectID)
	return nil
}

func (m *InMemoryStorage) ReplaceSubjectSession(ctx context.Context, session models.Session, rotatedFrom string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if rotatedFrom != "" {
		old, err := m.lookupLocked(m.byRefresh, rotatedFrom)
		if err != nil {
			return err
		}
		if old.SubjectID != session.SubjectID {
			return storage.ErrSessionNotFound
		}
	}

	removed := m.deleteSubjectLocked(session.SubjectID)
	if err := m.insertLocked(session); err != nil {
		// restore what was there so a failed replace is invisible
		for _, s := range removed {
			_ = m.insertLocked(s)
		}
		return err
	}

	m.log.Debugw("Session replaced", "subjectID", session.SubjectID, "removed", len(removed))
	return nil
}

// SessionCount returns how many sessions a subject currently holds.
func (m *InMemoryStorage) SessionCount(subjectID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.sessions {
		if s.SubjectID == subjectID {
			n++
		}
	}
	return n
}

func (m *InMemoryStorage) lookupLocked(index map[string]string, token string) (*models.Session, error) {
	id, ok := index[token]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	session := m.sessions[id]
	return &session, nil
}

func (m *InMemoryStorage) insertLocked(session models.Session) error {
	if _, ok := m.sessions[session.ID]; ok {
		return storage.ErrSessionConflict
	}
	if _, ok := m.bySession[session.SessionToken]; ok {
		return storage.ErrSessionConflict
	}
	if _, ok := m.byRefresh[session.RefreshToken]; ok {
		return storage.ErrSessionConflict
	}

	m.sessions[session.ID] = session
	m.bySession[session.SessionToken] = session.ID
	m.byRefresh[session.RefreshToken] = session.ID
	return nil
}

func (m *InMemoryStorage) deleteSubjectLocked(subjectID string) []models.Session {
	var removed []models.Session
	for id, s := range m.sessions {
		if s.SubjectID == subjectID {
			delete(m.sessions, id)
			delete(m.bySession, s.SessionToken)
			delete(m.byRefresh, s.RefreshToken)
			removed = append(removed, s)
		}
	}
	return removed
}
