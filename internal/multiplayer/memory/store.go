// Package memory is an in-process multiplayer.Store. It backs tests and
// single-node deployments; the per-record mutex provides the same exclusive
// update guarantee the postgres store gets from row locks.
package memory

import (
	"context"
	"sync"

	"github.com/braintease/backend/internal/domain"
	"github.com/braintease/backend/internal/multiplayer"
)

type record struct {
	mu      sync.Mutex
	session *domain.MultiplayerSession
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*record
	byCode   map[string]string // live join code -> session ID
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*record),
		byCode:   make(map[string]string),
	}
}

func (m *Store) Create(_ context.Context, s *domain.MultiplayerSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byCode[s.JoinCode]; ok {
		return multiplayer.ErrDuplicateJoinCode
	}

	m.sessions[s.SessionID] = &record{session: s.Clone()}
	m.byCode[s.JoinCode] = s.SessionID
	return nil
}

func (m *Store) Get(_ context.Context, sessionID string) (*domain.MultiplayerSession, error) {
	m.mu.RLock()
	r, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, multiplayer.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Clone(), nil
}

func (m *Store) GetByJoinCode(ctx context.Context, joinCode string) (*domain.MultiplayerSession, error) {
	m.mu.RLock()
	id, ok := m.byCode[joinCode]
	m.mu.RUnlock()
	if !ok {
		return nil, multiplayer.ErrNotFound
	}
	return m.Get(ctx, id)
}

func (m *Store) Update(_ context.Context, sessionID string, fn func(s *domain.MultiplayerSession) error) (*domain.MultiplayerSession, error) {
	m.mu.RLock()
	r, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, multiplayer.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// fn works on a copy; an error discards the mutation entirely.
	next := r.session.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	if next.Status == domain.StatusFinished && r.session.Status != domain.StatusFinished {
		// Join codes are unique among live sessions only; free the code once
		// the session terminates.
		m.mu.Lock()
		if m.byCode[next.JoinCode] == sessionID {
			delete(m.byCode, next.JoinCode)
		}
		m.mu.Unlock()
	}

	r.session = next
	return next.Clone(), nil
}
