package studio

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"uistudio/internal/model"
)

// memStore is an in-memory Store. Hooks run before the matching call and
// may block or return an error.
type memStore struct {
	mu       sync.Mutex
	nextID   uint
	sessions map[uint]*model.Session
	updates  []model.SessionPatch
	creates  int
	gets     int

	beforeUpdate func(ctx context.Context, n int) error
	beforeGet    func(ctx context.Context) error
	listErr      error
}

func newMemStore() *memStore {
	return &memStore{sessions: map[uint]*model.Session{}}
}

func (m *memStore) seed(name string, updatedAt time.Time) model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sess := model.NewSession(1, name)
	sess.ID = m.nextID
	sess.CreatedAt = updatedAt
	sess.UpdatedAt = updatedAt
	m.sessions[sess.ID] = sess
	return sess.Clone()
}

func (m *memStore) ListSessions(_ context.Context) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []model.Session{}
	for _, sess := range m.sessions {
		if sess.IsActive {
			out = append(out, sess.Clone())
		}
	}
	return out, nil
}

func (m *memStore) GetSession(ctx context.Context, id uint) (*model.Session, error) {
	if m.beforeGet != nil {
		if err := m.beforeGet(ctx); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	sess, ok := m.sessions[id]
	if !ok || !sess.IsActive {
		return nil, NewError(ErrNotFound, http.StatusNotFound, "", nil)
	}
	out := sess.Clone()
	return &out, nil
}

func (m *memStore) CreateSession(_ context.Context, name string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	m.nextID++
	sess := model.NewSession(1, strings.TrimSpace(name))
	sess.ID = m.nextID
	sess.CreatedAt = time.Now()
	sess.UpdatedAt = sess.CreatedAt
	m.sessions[sess.ID] = sess
	out := sess.Clone()
	return &out, nil
}

func (m *memStore) UpdateSession(ctx context.Context, id uint, patch model.SessionPatch) (*model.Session, error) {
	m.mu.Lock()
	n := len(m.updates)
	hook := m.beforeUpdate
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, n); err != nil {
			m.mu.Lock()
			m.updates = append(m.updates, patch)
			m.mu.Unlock()
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, patch)
	sess, ok := m.sessions[id]
	if !ok || !sess.IsActive {
		return nil, NewError(ErrNotFound, http.StatusNotFound, "", nil)
	}
	patch.Apply(sess)
	sess.UpdatedAt = time.Now()
	out := sess.Clone()
	return &out, nil
}

func (m *memStore) DeleteSession(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok || !sess.IsActive {
		return NewError(ErrNotFound, http.StatusNotFound, "", nil)
	}
	sess.IsActive = false
	return nil
}

func (m *memStore) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

func (m *memStore) update(i int) model.SessionPatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates[i]
}

func (m *memStore) stored(id uint) model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id].Clone()
}

func (m *memStore) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}
