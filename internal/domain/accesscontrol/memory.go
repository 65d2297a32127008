package accesscontrol

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemStore keeps roles in a map. Used by tests and local tooling.
type MemStore struct {
	mu    sync.RWMutex
	roles map[uuid.UUID]Role
}

func NewMemStore(roles map[uuid.UUID]Role) *MemStore {
	m := &MemStore{roles: make(map[uuid.UUID]Role, len(roles))}
	for id, r := range roles {
		m.roles[id] = r
	}
	return m
}

func (m *MemStore) GetRole(ctx context.Context, userID uuid.UUID) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[userID]
	if !ok {
		return "", ErrProfileNotFound
	}
	return r, nil
}

func (m *MemStore) SetRole(ctx context.Context, userID uuid.UUID, role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[userID]; !ok {
		return ErrProfileNotFound
	}
	m.roles[userID] = role
	return nil
}
