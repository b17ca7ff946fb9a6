package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Manager wraps a Store with per-session locking, so each session
// processes one request at a time and read-modify-write cycles never
// lose updates.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager returns a Manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// With runs fn with exclusive access to the session, creating it empty
// when the store has none. The session is saved after fn returns nil;
// on error nothing is written and the stored session keeps its
// previous state.
func (m *Manager) With(ctx context.Context, id string, fn func(*Session) error) error {
	l := m.lock(id)
	l.Lock()
	defer l.Unlock()

	sess, err := m.store.Get(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		sess = &Session{ID: id}
	case err != nil:
		return fmt.Errorf("failed to load session %s: %w", id, err)
	}

	if err := fn(sess); err != nil {
		return err
	}

	if err := m.store.Put(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session %s: %w", id, err)
	}
	return nil
}
