// Package multiplayer coordinates shared trivia sessions: it admits players
// via join codes, walks each session through waiting -> active -> finished,
// and computes winners once every player has reported a score.
package multiplayer

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/braintease/backend/internal/domain"
	"github.com/braintease/backend/internal/errors"
	"github.com/braintease/backend/internal/event"
)

const (
	minPlayers   = 2
	maxPlayers   = 10
	minQuestions = 1
	maxQuestions = 50
)

type Config struct {
	Store    Store
	EventBus *event.Bus

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Service owns all session transition logic. It is stateless between calls;
// every mutation re-fetches the record under the store's exclusive lock.
type Service struct {
	store Store
	codes *CodeGenerator
	eb    *event.Bus
	now   func() time.Time
}

func NewService(c Config) *Service {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		store: c.Store,
		codes: NewCodeGenerator(c.Store),
		eb:    c.EventBus,
		now:   now,
	}
}

type CreateSessionRequest struct {
	UserID          string
	NumberOfPlayers int
	Difficulty      domain.Difficulty
	TotalQuestions  int
	BoardSeed       string
}

// CreateSession validates the request, allocates a join code and board seed,
// and stores a fresh waiting session with the caller as its first player.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.MultiplayerSession, error) {
	if req.NumberOfPlayers < minPlayers || req.NumberOfPlayers > maxPlayers {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("number_of_players must be between %d and %d", minPlayers, maxPlayers))
	}
	if !req.Difficulty.Valid() {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("difficulty must be easy, medium or hard"))
	}
	if req.TotalQuestions < minQuestions || req.TotalQuestions > maxQuestions {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("total_questions must be between %d and %d", minQuestions, maxQuestions))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	seed := req.BoardSeed
	if seed == "" {
		seed = uuid.NewString()
	}

	ss := &domain.MultiplayerSession{
		SessionID:       id.String(),
		BoardSeed:       seed,
		Players:         []string{req.UserID},
		NumberOfPlayers: req.NumberOfPlayers,
		Difficulty:      req.Difficulty,
		TotalQuestions:  req.TotalQuestions,
		Scores:          make(map[string]domain.ScoreRecord),
		Status:          domain.StatusWaiting,
		CreatedAt:       s.now(),
	}

	// Generate checks the code against the store, but a concurrent create can
	// still win the race; a duplicate insert just draws a new code.
	for attempt := 0; ; attempt++ {
		ss.JoinCode, err = s.codes.Generate(ctx)
		if err != nil {
			return nil, err
		}

		err = s.store.Create(ctx, ss)
		if stderrors.Is(err, ErrDuplicateJoinCode) {
			if attempt < maxCodeAttempts {
				continue
			}
			return nil, errors.New(errors.CodeResourceExhausted,
				errors.WithMessagef("could not allocate a unique join code after %d attempts", maxCodeAttempts))
		}
		if err != nil {
			return nil, storeError(err)
		}
		return ss, nil
	}
}

type JoinSessionRequest struct {
	UserID   string
	JoinCode string
}

// JoinSession admits the caller into the session behind the join code.
// Re-joining is a no-op. Appending the last missing player flips the session
// to active inside the same locked critical section, so a reader never sees a
// full player list with waiting status.
func (s *Service) JoinSession(ctx context.Context, req JoinSessionRequest) (*domain.MultiplayerSession, error) {
	code := normalizeJoinCode(req.JoinCode)
	if len(code) != codeLength {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("join_code must be %d characters", codeLength))
	}

	found, err := s.store.GetByJoinCode(ctx, code)
	if err != nil {
		return nil, storeError(err)
	}

	ss, err := s.store.Update(ctx, found.SessionID, func(cur *domain.MultiplayerSession) error {
		if cur.Status == domain.StatusFinished {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("session %s is already finished", cur.SessionID))
		}

		// Membership before capacity: a member re-joining a full session
		// gets the idempotent no-op, not Full.
		if cur.HasPlayer(req.UserID) {
			return nil
		}

		if cur.IsFull() {
			return errors.New(errors.CodeResourceExhausted,
				errors.WithMessagef("session %s is full", cur.SessionID))
		}

		cur.Players = append(cur.Players, req.UserID)
		if cur.IsFull() {
			now := s.now()
			cur.Status = domain.StatusActive
			cur.StartTime = &now
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	return ss, nil
}

type SubmitScoreRequest struct {
	UserID           string
	SessionID        string
	Score            int
	CorrectCount     *int
	TimeTakenSeconds *int
}

// SubmitScore records the caller's final score. The first write wins; while
// the session is active a retried submission returns the current state
// without touching the stored record. The last required score finishes the
// session and computes winners in the same critical section as the insert.
// Finished is terminal: any later submission is rejected, retry or not.
func (s *Service) SubmitScore(ctx context.Context, req SubmitScoreRequest) (*domain.MultiplayerSession, error) {
	if req.SessionID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("session_id is required"))
	}
	if req.Score < 0 {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("score cannot be negative"))
	}
	if req.CorrectCount != nil && *req.CorrectCount < 0 {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("correct_count cannot be negative"))
	}
	if req.TimeTakenSeconds != nil && *req.TimeTakenSeconds < 0 {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("time_taken_seconds cannot be negative"))
	}

	var finished bool

	ss, err := s.store.Update(ctx, req.SessionID, func(cur *domain.MultiplayerSession) error {
		if !cur.HasPlayer(req.UserID) {
			return errors.New(errors.CodePermissionDenied,
				errors.WithMessagef("user is not a player in session %s", cur.SessionID))
		}
		if cur.Status == domain.StatusWaiting {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("session %s has not started", cur.SessionID))
		}
		if cur.Status == domain.StatusFinished {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("session %s is already finished", cur.SessionID))
		}

		if _, ok := cur.Scores[req.UserID]; ok {
			return nil
		}

		cur.Scores[req.UserID] = domain.ScoreRecord{
			Score:            req.Score,
			CorrectCount:     req.CorrectCount,
			TimeTakenSeconds: req.TimeTakenSeconds,
			SubmittedAt:      s.now(),
		}

		if cur.AllSubmitted() {
			now := s.now()
			cur.Status = domain.StatusFinished
			cur.FinishedAt = &now
			cur.Winners = ComputeWinners(cur.Players, cur.Scores)
			finished = true
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	if finished && s.eb != nil {
		s.eb.Publish(ctx, domain.EventSessionFinished{Session: *ss.Clone()})
	}

	return ss, nil
}

// GetSession returns a read-only snapshot by session ID.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.MultiplayerSession, error) {
	if sessionID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("session_id is required"))
	}

	ss, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, storeError(err)
	}
	return ss, nil
}

// GetSessionByCode returns a read-only snapshot by join code.
func (s *Service) GetSessionByCode(ctx context.Context, joinCode string) (*domain.MultiplayerSession, error) {
	code := normalizeJoinCode(joinCode)
	if len(code) != codeLength {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("join_code must be %d characters", codeLength))
	}

	ss, err := s.store.GetByJoinCode(ctx, code)
	if err != nil {
		return nil, storeError(err)
	}
	return ss, nil
}

// ComputeWinners returns every player whose score equals the session maximum,
// in join order. Ties produce multiple winners. Deterministic, no randomness.
func ComputeWinners(players []string, scores map[string]domain.ScoreRecord) []string {
	if len(scores) == 0 {
		return nil
	}

	max := 0
	seen := false
	for _, rec := range scores {
		if !seen || rec.Score > max {
			max = rec.Score
			seen = true
		}
	}

	var winners []string
	for _, p := range players {
		if rec, ok := scores[p]; ok && rec.Score == max {
			winners = append(winners, p)
		}
	}
	return winners
}

func normalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// storeError maps store failures onto the error taxonomy. Business errors
// raised inside Update callbacks pass through untouched; anything else is a
// storage fault surfaced without internal detail.
func storeError(err error) error {
	if stderrors.Is(err, ErrNotFound) {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("session not found"), errors.WithCause(err))
	}

	var e *errors.Error
	if stderrors.As(err, &e) {
		return err
	}

	return errors.New(errors.CodeUnavailable,
		errors.WithMessagef("session storage unavailable"),
		errors.WithCause(err),
	)
}
