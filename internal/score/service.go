// Package score stores single-player results and serves the merged
// leaderboard over both record kinds (plain scores and full game sessions).
package score

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/braintease/backend/internal/domain"
	"github.com/braintease/backend/internal/errors"
	"github.com/braintease/backend/internal/event"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type Config struct {
	DB       *pgxpool.Pool
	EventBus *event.Bus
}

type Service struct {
	db *pgxpool.Pool
	eb *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		db: c.DB,
		eb: c.EventBus,
	}
}

type SubmitScoreRequest struct {
	UserID      string
	DisplayName string
	Score       int
	Difficulty  domain.Difficulty

	// Detail fields. Any of them present promotes the submission to a full
	// game-session record.
	CorrectCount     *int
	TotalQuestions   *int
	TimeTakenSeconds *int
	Categories       []int
}

func (r SubmitScoreRequest) hasSessionFields() bool {
	return r.CorrectCount != nil || r.TotalQuestions != nil || r.TimeTakenSeconds != nil || len(r.Categories) > 0
}

// SubmitScore validates and persists a result, then publishes score.submitted.
func (s *Service) SubmitScore(ctx context.Context, req SubmitScoreRequest) (*domain.ScoreEntry, error) {
	if req.Score < 0 {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("score cannot be negative"))
	}
	if !req.Difficulty.Valid() {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("difficulty must be easy, medium or hard"))
	}
	for name, v := range map[string]*int{
		"correct_count":      req.CorrectCount,
		"total_questions":    req.TotalQuestions,
		"time_taken_seconds": req.TimeTakenSeconds,
	} {
		if v != nil && *v < 0 {
			return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("%s cannot be negative", name))
		}
	}

	entry := &domain.ScoreEntry{
		ScoreID:     uuid.NewString(),
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		Score:       req.Score,
		Difficulty:  req.Difficulty,
		SubmittedAt: time.Now(),
	}

	var err error
	if req.hasSessionFields() {
		entry.CorrectCount = req.CorrectCount
		entry.TotalQuestions = req.TotalQuestions
		entry.TimeTakenSeconds = req.TimeTakenSeconds
		err = s.insertGameSession(ctx, entry, req.Categories)
	} else {
		err = s.insertUserScore(ctx, entry)
	}
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("failed to save score"),
			errors.WithCause(err),
		)
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventScoreSubmitted{Entry: *entry})
	}

	return entry, nil
}

func (s *Service) insertUserScore(ctx context.Context, e *domain.ScoreEntry) error {
	const stmt = `
INSERT INTO user_scores (score_id, user_id, display_name, score, difficulty, created_at)
VALUES ($1, $2, $3, $4, $5, $6);`

	_, err := s.db.Exec(ctx, stmt, e.ScoreID, e.UserID, e.DisplayName, e.Score, e.Difficulty, e.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert user score: %w", err)
	}
	return nil
}

func (s *Service) insertGameSession(ctx context.Context, e *domain.ScoreEntry, categories []int) error {
	if categories == nil {
		categories = []int{}
	}

	const stmt = `
INSERT INTO game_sessions
	(session_id, user_id, display_name, difficulty, categories, score,
	 correct_count, total_questions, time_taken_seconds, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	_, err := s.db.Exec(ctx, stmt,
		e.ScoreID, e.UserID, e.DisplayName, e.Difficulty, categories, e.Score,
		e.CorrectCount, e.TotalQuestions, e.TimeTakenSeconds, e.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game session: %w", err)
	}
	return nil
}

type Timeframe string

const (
	TimeframeAllTime Timeframe = "all_time"
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
)

type LeaderboardRequest struct {
	Limit      int
	Page       int
	Difficulty domain.Difficulty // empty means all difficulties
	Timeframe  Timeframe         // empty means all time
}

// Leaderboard returns one ranked page merged over user scores and game
// sessions, ordered by score desc then submission time asc.
func (s *Service) Leaderboard(ctx context.Context, req LeaderboardRequest) (*domain.Leaderboard, error) {
	limit := req.Limit
	switch {
	case limit == 0:
		limit = defaultLimit
	case limit < 0:
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("limit must be greater than 0"))
	case limit > maxLimit:
		limit = maxLimit
	}

	page := req.Page
	if page < 1 {
		page = 1
	}

	if req.Difficulty != "" && !req.Difficulty.Valid() {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid difficulty %q", req.Difficulty))
	}

	tf := req.Timeframe
	if tf == "" {
		tf = TimeframeAllTime
	}
	var since *time.Time
	switch tf {
	case TimeframeAllTime:
	case TimeframeDaily:
		t := time.Now().Add(-24 * time.Hour)
		since = &t
	case TimeframeWeekly:
		t := time.Now().Add(-7 * 24 * time.Hour)
		since = &t
	default:
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid timeframe %q, must be all_time, daily or weekly", req.Timeframe))
	}

	var difficulty *domain.Difficulty
	if req.Difficulty != "" {
		difficulty = &req.Difficulty
	}

	const stmt = `
WITH merged AS (
	SELECT score_id, display_name, score, difficulty, created_at FROM user_scores
	WHERE ($1::text IS NULL OR difficulty = $1) AND ($2::timestamptz IS NULL OR created_at >= $2)
	UNION ALL
	SELECT session_id, display_name, score, difficulty, created_at FROM game_sessions
	WHERE ($1::text IS NULL OR difficulty = $1) AND ($2::timestamptz IS NULL OR created_at >= $2)
)
SELECT score_id, display_name, score, difficulty, created_at, COUNT(*) OVER () AS total
FROM merged
ORDER BY score DESC, created_at ASC
LIMIT $3 OFFSET $4;`

	rows, err := s.db.Query(ctx, stmt, difficulty, since, limit, (page-1)*limit)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("failed to fetch leaderboard"),
			errors.WithCause(err),
		)
	}

	total := 0
	entries, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.LeaderboardEntry, error) {
		var e domain.LeaderboardEntry
		var name *string
		if err := r.Scan(&e.ScoreID, &name, &e.Score, &e.Difficulty, &e.SubmittedAt, &total); err != nil {
			return domain.LeaderboardEntry{}, err
		}
		if name != nil {
			e.DisplayName = *name
		}
		return e, nil
	})
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("failed to fetch leaderboard"),
			errors.WithCause(err),
		)
	}

	for i := range entries {
		entries[i].Rank = (page-1)*limit + i + 1
	}

	return &domain.Leaderboard{
		Entries:      entries,
		Page:         page,
		Limit:        limit,
		TotalEntries: total,
	}, nil
}
