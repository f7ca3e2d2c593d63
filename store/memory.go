package store

import (
	"context"
	"sync"
)

// Memory is a mutable in-process users table.
type Memory struct {
	mu    sync.RWMutex
	users map[int64]string
	err   error
}

// NewMemory returns a table seeded with users (user_id -> status).
func NewMemory(users map[int64]string) *Memory {
	m := &Memory{users: make(map[int64]string, len(users))}
	for id, status := range users {
		m.users[id] = status
	}
	return m
}

func (m *Memory) UserStatus(_ context.Context, userID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return "", false, m.err
	}
	status, ok := m.users[userID]
	return status, ok, nil
}

// SetStatus inserts or updates a user row.
func (m *Memory) SetStatus(userID int64, status string) {
	m.mu.Lock()
	m.users[userID] = status
	m.mu.Unlock()
}

// Remove deletes a user row.
func (m *Memory) Remove(userID int64) {
	m.mu.Lock()
	delete(m.users, userID)
	m.mu.Unlock()
}

// FailWith makes every lookup return err until called again with nil.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}
