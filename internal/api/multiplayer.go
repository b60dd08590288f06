package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/braintease/backend/internal/domain"
	"github.com/braintease/backend/internal/multiplayer"
)

type createSessionRequest struct {
	NumberOfPlayers int    `json:"number_of_players" binding:"required"`
	Difficulty      string `json:"difficulty" binding:"required"`
	TotalQuestions  int    `json:"total_questions" binding:"required"`
	BoardSeed       string `json:"board_seed"`
}

func (a *API) createMultiplayerSession(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ss, err := a.mp.CreateSession(c.Request.Context(), multiplayer.CreateSessionRequest{
		UserID:          id.UserID,
		NumberOfPlayers: req.NumberOfPlayers,
		Difficulty:      domain.Difficulty(req.Difficulty),
		TotalQuestions:  req.TotalQuestions,
		BoardSeed:       req.BoardSeed,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionView(ss))
}

type joinSessionRequest struct {
	JoinCode string `json:"join_code" binding:"required"`
}

func (a *API) joinMultiplayerSession(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req joinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ss, err := a.mp.JoinSession(c.Request.Context(), multiplayer.JoinSessionRequest{
		UserID:   id.UserID,
		JoinCode: req.JoinCode,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionView(ss))
}

type submitMultiplayerScoreRequest struct {
	SessionID        string `json:"session_id" binding:"required"`
	Score            *int   `json:"score" binding:"required"`
	CorrectCount     *int   `json:"correct_count"`
	TimeTakenSeconds *int   `json:"time_taken_seconds"`
}

func (a *API) submitMultiplayerScore(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req submitMultiplayerScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ss, err := a.mp.SubmitScore(c.Request.Context(), multiplayer.SubmitScoreRequest{
		UserID:           id.UserID,
		SessionID:        req.SessionID,
		Score:            *req.Score,
		CorrectCount:     req.CorrectCount,
		TimeTakenSeconds: req.TimeTakenSeconds,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionView(ss))
}

func (a *API) getMultiplayerSession(c *gin.Context) {
	ss, err := a.mp.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionView(ss))
}

func (a *API) getMultiplayerSessionByCode(c *gin.Context) {
	ss, err := a.mp.GetSessionByCode(c.Request.Context(), c.Query("join_code"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionView(ss))
}

type (
	SessionView struct {
		SessionID        string               `json:"session_id"`
		JoinCode         string               `json:"join_code"`
		BoardSeed        string               `json:"board_seed"`
		Difficulty       string               `json:"difficulty"`
		TotalQuestions   int                  `json:"total_questions"`
		NumberOfPlayers  int                  `json:"number_of_players"`
		Status           string               `json:"status"`
		Players          []PlayerView         `json:"players"`
		PlayersSubmitted int                  `json:"players_submitted"`
		Scores           map[string]ScoreView `json:"scores"`
		StartTime        *time.Time           `json:"start_time,omitempty"`
		FinishedAt       *time.Time           `json:"finished_at,omitempty"`
		CreatedAt        time.Time            `json:"created_at"`
		Winners          []string             `json:"winners,omitempty"`
		WinnerDetails    []WinnerView         `json:"winner_details,omitempty"`
	}

	PlayerView struct {
		UserID    string `json:"user_id"`
		Submitted bool   `json:"submitted"`
	}

	ScoreView struct {
		Score            int       `json:"score"`
		CorrectCount     *int      `json:"correct_count,omitempty"`
		TimeTakenSeconds *int      `json:"time_taken_seconds,omitempty"`
		SubmittedAt      time.Time `json:"submitted_at"`
	}

	WinnerView struct {
		UserID string `json:"user_id"`
		Score  int    `json:"score"`
	}
)

func sessionView(ss *domain.MultiplayerSession) SessionView {
	v := SessionView{
		SessionID:       ss.SessionID,
		JoinCode:        ss.JoinCode,
		BoardSeed:       ss.BoardSeed,
		Difficulty:      string(ss.Difficulty),
		TotalQuestions:  ss.TotalQuestions,
		NumberOfPlayers: ss.NumberOfPlayers,
		Status:          string(ss.Status),
		Players:         make([]PlayerView, 0, len(ss.Players)),
		Scores:          make(map[string]ScoreView, len(ss.Scores)),
		StartTime:       ss.StartTime,
		FinishedAt:      ss.FinishedAt,
		CreatedAt:       ss.CreatedAt,
		Winners:         ss.Winners,
	}

	for _, p := range ss.Players {
		_, submitted := ss.Scores[p]
		v.Players = append(v.Players, PlayerView{UserID: p, Submitted: submitted})
		if submitted {
			v.PlayersSubmitted++
		}
	}

	for uid, rec := range ss.Scores {
		v.Scores[uid] = ScoreView{
			Score:            rec.Score,
			CorrectCount:     rec.CorrectCount,
			TimeTakenSeconds: rec.TimeTakenSeconds,
			SubmittedAt:      rec.SubmittedAt,
		}
	}

	for _, w := range ss.Winners {
		v.WinnerDetails = append(v.WinnerDetails, WinnerView{UserID: w, Score: ss.Scores[w].Score})
	}

	return v
}
