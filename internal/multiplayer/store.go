package multiplayer

import (
	"context"
	"errors"

	"github.com/braintease/backend/internal/domain"
)

// ErrNotFound is returned by stores when no session matches the given key.
var ErrNotFound = errors.New("session not found")

// ErrDuplicateJoinCode is returned by Create when the join code is already
// assigned to a live session.
var ErrDuplicateJoinCode = errors.New("join code already in use")

// Store is durable keyed storage for multiplayer sessions.
//
// Update is the concurrency contract the coordinator relies on: it re-fetches
// the record under an exclusive per-record lock, applies fn to the fresh
// state, and persists the result. Two concurrent Updates on the same session
// never interleave; an error from fn aborts the update and discards the
// mutation. Reads (Get, GetByJoinCode) take snapshots and may run concurrently
// with an Update.
type Store interface {
	Create(ctx context.Context, s *domain.MultiplayerSession) error
	Get(ctx context.Context, sessionID string) (*domain.MultiplayerSession, error)
	GetByJoinCode(ctx context.Context, joinCode string) (*domain.MultiplayerSession, error)
	Update(ctx context.Context, sessionID string, fn func(s *domain.MultiplayerSession) error) (*domain.MultiplayerSession, error)
}
