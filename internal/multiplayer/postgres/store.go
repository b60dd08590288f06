// Package postgres is the durable multiplayer.Store. The exclusive update
// contract is satisfied by SELECT ... FOR UPDATE on the session row inside a
// transaction: concurrent updates on the same session serialize on the row
// lock, updates on different sessions never contend.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/braintease/backend/internal/domain"
	"github.com/braintease/backend/internal/multiplayer"
)

const codeUniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) Create(ctx context.Context, ss *domain.MultiplayerSession) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const insSessionStmt = `
INSERT INTO multiplayer_sessions
	(session_id, join_code, board_seed, number_of_players, difficulty, total_questions, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	_, err = tx.Exec(ctx, insSessionStmt,
		ss.SessionID, ss.JoinCode, ss.BoardSeed, ss.NumberOfPlayers,
		ss.Difficulty, ss.TotalQuestions, ss.Status, ss.CreatedAt,
	)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return multiplayer.ErrDuplicateJoinCode
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err = insertPlayers(ctx, tx, ss.SessionID, ss.Players, 0); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, sessionID string) (*domain.MultiplayerSession, error) {
	return loadSession(ctx, s.db, `WHERE session_id = $1`, sessionID)
}

// GetByJoinCode looks a session up by its code. Only live (non-finished)
// sessions hold their codes; a finished session's code may be reused.
func (s *Store) GetByJoinCode(ctx context.Context, joinCode string) (*domain.MultiplayerSession, error) {
	return loadSession(ctx, s.db, `WHERE join_code = $1 AND status <> 'finished'`, joinCode)
}

func (s *Store) Update(ctx context.Context, sessionID string, fn func(ss *domain.MultiplayerSession) error) (_ *domain.MultiplayerSession, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	ss, err := loadSession(ctx, tx, `WHERE session_id = $1 FOR UPDATE`, sessionID)
	if err != nil {
		return nil, err
	}

	prevPlayers := len(ss.Players)
	prevScores := make(map[string]struct{}, len(ss.Scores))
	for uid := range ss.Scores {
		prevScores[uid] = struct{}{}
	}

	if err = fn(ss); err != nil {
		return nil, err
	}

	// Players are append-only and scores insert-only, so persisting the
	// mutation means writing the deltas plus the session row itself.
	if err = insertPlayers(ctx, tx, sessionID, ss.Players[prevPlayers:], prevPlayers); err != nil {
		return nil, err
	}

	const insScoreStmt = `
INSERT INTO multiplayer_scores (session_id, user_id, score, correct_count, time_taken_seconds, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (session_id, user_id) DO NOTHING;`

	for uid, rec := range ss.Scores {
		if _, ok := prevScores[uid]; ok {
			continue
		}
		_, err = tx.Exec(ctx, insScoreStmt, sessionID, uid, rec.Score, rec.CorrectCount, rec.TimeTakenSeconds, rec.SubmittedAt)
		if err != nil {
			return nil, fmt.Errorf("insert score: %w", err)
		}
	}

	const updSessionStmt = `
UPDATE multiplayer_sessions
SET status = $2, start_time = $3, finished_at = $4, winners = $5
WHERE session_id = $1;`

	_, err = tx.Exec(ctx, updSessionStmt, sessionID, ss.Status, ss.StartTime, ss.FinishedAt, ss.Winners)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ss, nil
}

func insertPlayers(ctx context.Context, q querier, sessionID string, players []string, offset int) error {
	const stmt = `INSERT INTO multiplayer_players (session_id, user_id, position) VALUES ($1, $2, $3);`

	for i, uid := range players {
		if _, err := q.Exec(ctx, stmt, sessionID, uid, offset+i); err != nil {
			return fmt.Errorf("insert player: %w", err)
		}
	}
	return nil
}

func loadSession(ctx context.Context, q querier, where string, arg any) (*domain.MultiplayerSession, error) {
	stmt := `
SELECT session_id, join_code, board_seed, number_of_players, difficulty, total_questions,
       status, start_time, finished_at, winners, created_at
FROM multiplayer_sessions ` + where + `;`

	var ss domain.MultiplayerSession
	err := q.QueryRow(ctx, stmt, arg).Scan(
		&ss.SessionID, &ss.JoinCode, &ss.BoardSeed, &ss.NumberOfPlayers, &ss.Difficulty,
		&ss.TotalQuestions, &ss.Status, &ss.StartTime, &ss.FinishedAt, &ss.Winners, &ss.CreatedAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, multiplayer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	const playersStmt = `
SELECT user_id FROM multiplayer_players WHERE session_id = $1 ORDER BY position;`

	rows, err := q.Query(ctx, playersStmt, ss.SessionID)
	if err != nil {
		return nil, fmt.Errorf("select players: %w", err)
	}
	ss.Players, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect players: %w", err)
	}

	const scoresStmt = `
SELECT user_id, score, correct_count, time_taken_seconds, submitted_at
FROM multiplayer_scores WHERE session_id = $1;`

	rows, err = q.Query(ctx, scoresStmt, ss.SessionID)
	if err != nil {
		return nil, fmt.Errorf("select scores: %w", err)
	}

	ss.Scores = make(map[string]domain.ScoreRecord)
	_, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (struct{}, error) {
		var (
			uid string
			rec domain.ScoreRecord
		)
		if err := r.Scan(&uid, &rec.Score, &rec.CorrectCount, &rec.TimeTakenSeconds, &rec.SubmittedAt); err != nil {
			return struct{}{}, err
		}
		ss.Scores[uid] = rec
		return struct{}{}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect scores: %w", err)
	}

	return &ss, nil
}
