// Package game manages single-player game sessions: starting a game against
// the question provider and spending hints during play.
package game

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/braintease/backend/internal/domain"
	"github.com/braintease/backend/internal/errors"
	"github.com/braintease/backend/internal/trivia"
)

const (
	defaultAmount = 10
	maxAmount     = 50
)

// QuestionSource provides the question sequence for a new game.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, p trivia.FetchParams) ([]trivia.Question, error)
}

type Config struct {
	DB        *pgxpool.Pool
	Questions QuestionSource
}

type Service struct {
	db        *pgxpool.Pool
	questions QuestionSource
}

func NewService(c Config) *Service {
	return &Service{
		db:        c.DB,
		questions: c.Questions,
	}
}

type StartGameRequest struct {
	UserID      string
	DisplayName string
	Difficulty  domain.Difficulty // defaults to easy
	Amount      int               // defaults to 10, capped at 50
	Categories  []int
}

type GameQuestion struct {
	trivia.Question
	ShuffledAnswers []string `json:"shuffled_answers"`
}

type StartGameResponse struct {
	SessionID      string
	Difficulty     domain.Difficulty
	TotalQuestions int
	AllowedHints   int
	HintsUsed      int
	Questions      []GameQuestion
}

// StartGame fetches multiple-choice questions, shuffles question and answer
// order, and opens a session record with a hint budget of one hint per five
// questions (minimum one).
func (s *Service) StartGame(ctx context.Context, req StartGameRequest) (*StartGameResponse, error) {
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = domain.DifficultyEasy
	}
	if !difficulty.Valid() {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("difficulty must be easy, medium or hard"))
	}

	amount := req.Amount
	switch {
	case amount == 0:
		amount = defaultAmount
	case amount < 1:
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("amount must be at least 1"))
	case amount > maxAmount:
		amount = maxAmount
	}

	var category int
	if len(req.Categories) > 0 {
		category = req.Categories[0]
	}

	fetched, err := s.questions.FetchQuestions(ctx, trivia.FetchParams{
		Amount:     amount,
		Difficulty: string(difficulty),
		Category:   category,
		Type:       "multiple",
	})
	if err != nil {
		return nil, err
	}

	// The provider is asked for multiple-choice only; drop anything else it
	// returns anyway.
	questions := make([]GameQuestion, 0, len(fetched))
	for _, q := range fetched {
		if q.Type != "multiple" {
			continue
		}
		answers := append([]string{q.CorrectAnswer}, q.IncorrectAnswers...)
		rand.Shuffle(len(answers), func(i, j int) {
			answers[i], answers[j] = answers[j], answers[i]
		})
		questions = append(questions, GameQuestion{Question: q, ShuffledAnswers: answers})
	}
	if len(questions) == 0 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("no multiple-choice questions available"))
	}

	rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})

	allowed := allowedHints(len(questions))
	sessionID := uuid.NewString()

	if err := s.insertSession(ctx, sessionID, req, difficulty, len(questions), allowed); err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("failed to create game session"),
			errors.WithCause(err),
		)
	}

	return &StartGameResponse{
		SessionID:      sessionID,
		Difficulty:     difficulty,
		TotalQuestions: len(questions),
		AllowedHints:   allowed,
		HintsUsed:      0,
		Questions:      questions,
	}, nil
}

func allowedHints(totalQuestions int) int {
	if h := totalQuestions / 5; h > 1 {
		return h
	}
	return 1
}

func (s *Service) insertSession(ctx context.Context, id string, req StartGameRequest, difficulty domain.Difficulty, total, allowed int) error {
	categories := req.Categories
	if categories == nil {
		categories = []int{}
	}

	const stmt = `
INSERT INTO game_sessions
	(session_id, user_id, display_name, difficulty, categories, score, total_questions, allowed_hints, hints_used, created_at)
VALUES ($1, $2, $3, $4, $5, 0, $6, $7, 0, $8);`

	_, err := s.db.Exec(ctx, stmt, id, req.UserID, req.DisplayName, difficulty, categories, total, allowed, time.Now())
	if err != nil {
		return fmt.Errorf("insert game session: %w", err)
	}
	return nil
}

type UseHintRequest struct {
	UserID           string
	SessionID        string
	CorrectAnswer    string
	IncorrectAnswers []string
}

type UseHintResponse struct {
	RemovedAnswer    string
	RemainingAnswers []string
	HintsUsed        int
	HintsRemaining   int
}

// hintSession is the slice of a game session the hint flow needs.
type hintSession struct {
	ownerID      string
	allowedHints *int
	hintsUsed    int
}

// UseHint removes one incorrect answer for the caller's own session and
// spends one hint from the budget.
func (s *Service) UseHint(ctx context.Context, req UseHintRequest) (*UseHintResponse, error) {
	if _, err := uuid.Parse(req.SessionID); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid session ID format"))
	}

	const selStmt = `
SELECT user_id, allowed_hints, hints_used FROM game_sessions WHERE session_id = $1;`

	var hs hintSession
	err := s.db.QueryRow(ctx, selStmt, req.SessionID).Scan(&hs.ownerID, &hs.allowedHints, &hs.hintsUsed)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("game session not found"))
	}
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("failed to load game session"),
			errors.WithCause(err),
		)
	}

	if err := checkHint(hs, req); err != nil {
		return nil, err
	}

	// The guard repeats the budget check so two racing hint requests cannot
	// overspend.
	const updStmt = `
UPDATE game_sessions SET hints_used = hints_used + 1
WHERE session_id = $1 AND hints_used < allowed_hints
RETURNING hints_used;`

	var used int
	err = s.db.QueryRow(ctx, updStmt, req.SessionID).Scan(&used)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("no hints remaining"))
	}
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("failed to update hint usage"),
			errors.WithCause(err),
		)
	}

	removed, remaining := EliminateChoices(req.CorrectAnswer, req.IncorrectAnswers, 1)

	return &UseHintResponse{
		RemovedAnswer:    removed[0],
		RemainingAnswers: remaining,
		HintsUsed:        used,
		HintsRemaining:   *hs.allowedHints - used,
	}, nil
}

// checkHint applies the hint business rules to a loaded session.
func checkHint(hs hintSession, req UseHintRequest) error {
	if hs.ownerID != req.UserID {
		return errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("hints can only be used on your own game sessions"))
	}
	if hs.allowedHints == nil {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("game session has no hint budget"))
	}
	if hs.hintsUsed >= *hs.allowedHints {
		return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("no hints remaining"))
	}

	if req.CorrectAnswer == "" {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("correct_answer is required"))
	}
	if len(req.IncorrectAnswers) == 0 {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("incorrect_answers must contain at least one answer"))
	}
	return nil
}
