package domain

import (
	"slices"
	"time"
)

// Difficulty of a trivia game. The question provider understands the same values.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of a multiplayer session.
// Transitions: waiting -> active -> finished. Finished is terminal.
type SessionStatus string

const (
	StatusWaiting  SessionStatus = "waiting"
	StatusActive   SessionStatus = "active"
	StatusFinished SessionStatus = "finished"
)

// MultiplayerSession is one shared game instance. Players join via JoinCode
// until the session reaches NumberOfPlayers, then everyone plays the board
// derived from BoardSeed and reports a score.
type MultiplayerSession struct {
	SessionID       string
	JoinCode        string
	BoardSeed       string
	Players         []string // user IDs in join order, append-only
	NumberOfPlayers int
	Difficulty      Difficulty
	TotalQuestions  int
	Scores          map[string]ScoreRecord // keyed by user ID, written once per user
	Status          SessionStatus
	StartTime       *time.Time
	FinishedAt      *time.Time
	Winners         []string
	CreatedAt       time.Time
}

// ScoreRecord is one player's final result within a multiplayer session.
type ScoreRecord struct {
	Score            int
	CorrectCount     *int
	TimeTakenSeconds *int
	SubmittedAt      time.Time
}

func (s *MultiplayerSession) HasPlayer(userID string) bool {
	return slices.Contains(s.Players, userID)
}

func (s *MultiplayerSession) IsFull() bool {
	return len(s.Players) >= s.NumberOfPlayers
}

// AllSubmitted reports whether every admitted player has a recorded score.
func (s *MultiplayerSession) AllSubmitted() bool {
	for _, p := range s.Players {
		if _, ok := s.Scores[p]; !ok {
			return false
		}
	}
	return len(s.Players) > 0
}

// Clone returns a deep copy. Stores hand copies to mutation callbacks so an
// aborted update never leaks partial writes into a shared record.
func (s *MultiplayerSession) Clone() *MultiplayerSession {
	c := *s
	c.Players = slices.Clone(s.Players)
	c.Winners = slices.Clone(s.Winners)
	if s.StartTime != nil {
		t := *s.StartTime
		c.StartTime = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	c.Scores = make(map[string]ScoreRecord, len(s.Scores))
	for k, v := range s.Scores {
		if v.CorrectCount != nil {
			n := *v.CorrectCount
			v.CorrectCount = &n
		}
		if v.TimeTakenSeconds != nil {
			n := *v.TimeTakenSeconds
			v.TimeTakenSeconds = &n
		}
		c.Scores[k] = v
	}
	return &c
}

// ScoreEntry is a single-player result, either a plain score submission or a
// full game session with per-game detail. Detail fields are nil for plain
// submissions.
type ScoreEntry struct {
	ScoreID          string
	UserID           string
	DisplayName      string
	Score            int
	Difficulty       Difficulty
	CorrectCount     *int
	TotalQuestions   *int
	TimeTakenSeconds *int
	AllowedHints     *int
	HintsUsed        int
	SubmittedAt      time.Time
}

// Leaderboard is a ranked page of single-player results.
type Leaderboard struct {
	Entries      []LeaderboardEntry
	Page         int
	Limit        int
	TotalEntries int
}

type LeaderboardEntry struct {
	Rank        int
	ScoreID     string
	DisplayName string
	Score       int
	Difficulty  Difficulty
	SubmittedAt time.Time
}
