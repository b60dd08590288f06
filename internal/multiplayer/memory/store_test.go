package memory_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/braintease/backend/internal/domain"
	"github.com/braintease/backend/internal/multiplayer"
	"github.com/braintease/backend/internal/multiplayer/memory"
)

func seedSession(t *testing.T, m *memory.Store, id, code string) {
	t.Helper()

	require.NoError(t, m.Create(context.Background(), &domain.MultiplayerSession{
		SessionID:       id,
		JoinCode:        code,
		BoardSeed:       "seed",
		Players:         []string{"u1"},
		NumberOfPlayers: 2,
		Difficulty:      domain.DifficultyEasy,
		TotalQuestions:  10,
		Scores:          make(map[string]domain.ScoreRecord),
		Status:          domain.StatusWaiting,
		CreatedAt:       time.Now(),
	}))
}

func TestStore_Create(t *testing.T) {
	t.Parallel()

	m := memory.NewStore()
	seedSession(t, m, "s1", "AAAAAA")

	err := m.Create(context.Background(), &domain.MultiplayerSession{SessionID: "s2", JoinCode: "AAAAAA"})
	require.True(t, stderrors.Is(err, multiplayer.ErrDuplicateJoinCode))
}

func TestStore_Get(t *testing.T) {
	t.Parallel()

	m := memory.NewStore()
	seedSession(t, m, "s1", "AAAAAA")

	_, err := m.Get(context.Background(), "missing")
	require.True(t, stderrors.Is(err, multiplayer.ErrNotFound))

	got, err := m.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "AAAAAA", got.JoinCode)

	byCode, err := m.GetByJoinCode(context.Background(), "AAAAAA")
	require.NoError(t, err)
	require.Equal(t, "s1", byCode.SessionID)

	_, err = m.GetByJoinCode(context.Background(), "ZZZZZZ")
	require.True(t, stderrors.Is(err, multiplayer.ErrNotFound))
}

func TestStore_ReturnsSnapshots(t *testing.T) {
	t.Parallel()

	m := memory.NewStore()
	seedSession(t, m, "s1", "AAAAAA")

	got, err := m.Get(context.Background(), "s1")
	require.NoError(t, err)

	// Mutating a snapshot must not leak back into the store.
	got.Players = append(got.Players, "intruder")
	got.Scores["intruder"] = domain.ScoreRecord{Score: 999}

	fresh, err := m.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, fresh.Players)
	require.Empty(t, fresh.Scores)
}

func TestStore_Update(t *testing.T) {
	t.Parallel()

	t.Run("applies the mutation and returns the new state", func(t *testing.T) {
		t.Parallel()

		m := memory.NewStore()
		seedSession(t, m, "s1", "AAAAAA")

		updated, err := m.Update(context.Background(), "s1", func(s *domain.MultiplayerSession) error {
			s.Players = append(s.Players, "u2")
			s.Status = domain.StatusActive
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []string{"u1", "u2"}, updated.Players)

		fresh, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)
		require.Equal(t, domain.StatusActive, fresh.Status)
	})

	t.Run("a callback error discards the mutation", func(t *testing.T) {
		t.Parallel()

		m := memory.NewStore()
		seedSession(t, m, "s1", "AAAAAA")

		boom := stderrors.New("boom")
		_, err := m.Update(context.Background(), "s1", func(s *domain.MultiplayerSession) error {
			s.Players = append(s.Players, "u2")
			return boom
		})
		require.True(t, stderrors.Is(err, boom))

		fresh, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)
		require.Equal(t, []string{"u1"}, fresh.Players)
	})

	t.Run("unknown session is ErrNotFound", func(t *testing.T) {
		t.Parallel()

		m := memory.NewStore()
		_, err := m.Update(context.Background(), "missing", func(*domain.MultiplayerSession) error { return nil })
		require.True(t, stderrors.Is(err, multiplayer.ErrNotFound))
	})

	t.Run("finishing a session releases its join code", func(t *testing.T) {
		t.Parallel()

		m := memory.NewStore()
		seedSession(t, m, "s1", "AAAAAA")

		_, err := m.Update(context.Background(), "s1", func(s *domain.MultiplayerSession) error {
			now := time.Now()
			s.Status = domain.StatusFinished
			s.FinishedAt = &now
			return nil
		})
		require.NoError(t, err)

		_, err = m.GetByJoinCode(context.Background(), "AAAAAA")
		require.True(t, stderrors.Is(err, multiplayer.ErrNotFound))

		// The code is free for a new session while the old one stays readable.
		seedSession(t, m, "s2", "AAAAAA")

		old, err := m.Get(context.Background(), "s1")
		require.NoError(t, err)
		require.Equal(t, domain.StatusFinished, old.Status)
	})
}
