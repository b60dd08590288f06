package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/braintease/backend/internal/domain"
	"github.com/braintease/backend/internal/errors"
	"github.com/braintease/backend/internal/game"
	"github.com/braintease/backend/internal/leaderboard"
	"github.com/braintease/backend/internal/score"
	"github.com/braintease/backend/internal/trivia"
)

type submitScoreRequest struct {
	Score            *int   `json:"score" binding:"required"`
	Difficulty       string `json:"difficulty" binding:"required"`
	CorrectCount     *int   `json:"correct_count"`
	TotalQuestions   *int   `json:"total_questions"`
	TimeTakenSeconds *int   `json:"time_taken_seconds"`
	Categories       []int  `json:"categories"`
}

type scoreEntryView struct {
	ScoreID          string    `json:"score_id"`
	UserDisplayName  string    `json:"user_display_name,omitempty"`
	Score            int       `json:"score"`
	Difficulty       string    `json:"difficulty"`
	CorrectCount     *int      `json:"correct_count,omitempty"`
	TotalQuestions   *int      `json:"total_questions,omitempty"`
	TimeTakenSeconds *int      `json:"time_taken_seconds,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
	Message          string    `json:"message,omitempty"`
}

func (a *API) submitScore(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req submitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	entry, err := a.sc.SubmitScore(c.Request.Context(), score.SubmitScoreRequest{
		UserID:           id.UserID,
		DisplayName:      id.DisplayName,
		Score:            *req.Score,
		Difficulty:       domain.Difficulty(req.Difficulty),
		CorrectCount:     req.CorrectCount,
		TotalQuestions:   req.TotalQuestions,
		TimeTakenSeconds: req.TimeTakenSeconds,
		Categories:       req.Categories,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, scoreEntryView{
		ScoreID:          entry.ScoreID,
		UserDisplayName:  entry.DisplayName,
		Score:            entry.Score,
		Difficulty:       string(entry.Difficulty),
		CorrectCount:     entry.CorrectCount,
		TotalQuestions:   entry.TotalQuestions,
		TimeTakenSeconds: entry.TimeTakenSeconds,
		SubmittedAt:      entry.SubmittedAt,
		Message:          "Score submitted successfully",
	})
}

func (a *API) getLeaderboard(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := intQuery(c, "page", 1)
	if err != nil {
		page = 1 // malformed page degrades to the first page
	}

	l, err := a.sc.Leaderboard(c.Request.Context(), score.LeaderboardRequest{
		Limit:      limit,
		Page:       page,
		Difficulty: domain.Difficulty(c.Query("difficulty")),
		Timeframe:  score.Timeframe(c.Query("timeframe")),
	})
	if err != nil {
		fail(c, err)
		return
	}

	entries := make([]gin.H, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, gin.H{
			"rank":         e.Rank,
			"score_id":     e.ScoreID,
			"user_display": e.DisplayName,
			"score":        e.Score,
			"difficulty":   string(e.Difficulty),
			"submitted_at": e.SubmittedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"page":          l.Page,
		"limit":         l.Limit,
		"total_entries": l.TotalEntries,
	})
}

func (a *API) getTopScores(c *gin.Context) {
	limit, err := intQuery(c, "limit", 10)
	if err != nil {
		fail(c, err)
		return
	}

	entries, err := a.top.GetTop(c.Request.Context(), leaderboard.GetTopRequest{
		Difficulty: domain.Difficulty(c.Query("difficulty")),
		Limit:      limit,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

type startGameRequest struct {
	Difficulty string `json:"difficulty"`
	Amount     int    `json:"amount"`
	Categories []int  `json:"categories"`
}

func (a *API) startGame(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req startGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := a.gm.StartGame(c.Request.Context(), game.StartGameRequest{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		Difficulty:  domain.Difficulty(req.Difficulty),
		Amount:      req.Amount,
		Categories:  req.Categories,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id":      resp.SessionID,
		"difficulty":      string(resp.Difficulty),
		"total_questions": resp.TotalQuestions,
		"allowed_hints":   resp.AllowedHints,
		"hints_used":      resp.HintsUsed,
		"questions":       resp.Questions,
	})
}

type useHintRequest struct {
	CorrectAnswer    string   `json:"correct_answer" binding:"required"`
	IncorrectAnswers []string `json:"incorrect_answers" binding:"required"`
}

func (a *API) useHint(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req useHintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := a.gm.UseHint(c.Request.Context(), game.UseHintRequest{
		UserID:           id.UserID,
		SessionID:        c.Param("session_id"),
		CorrectAnswer:    req.CorrectAnswer,
		IncorrectAnswers: req.IncorrectAnswers,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"removed_answer":    resp.RemovedAnswer,
		"remaining_answers": resp.RemainingAnswers,
		"hints_used":        resp.HintsUsed,
		"hints_remaining":   resp.HintsRemaining,
	})
}

func (a *API) getQuestions(c *gin.Context) {
	amount, err := intQuery(c, "amount", 10)
	if err != nil {
		fail(c, err)
		return
	}
	category, err := intQuery(c, "category", 0)
	if err != nil {
		fail(c, err)
		return
	}

	qtype := c.DefaultQuery("type", "multiple")

	questions, err := a.qs.FetchQuestions(c.Request.Context(), trivia.FetchParams{
		Amount:     amount,
		Difficulty: c.Query("difficulty"),
		Category:   category,
		Type:       qtype,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": questions})
}

func (a *API) getCategories(c *gin.Context) {
	cats, err := a.qs.Categories(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("%s must be an integer", name))
	}
	return n, nil
}
