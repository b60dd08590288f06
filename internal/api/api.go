// Package api maps the HTTP surface onto the services. Handlers stay thin:
// bind, resolve identity, call the service, shape the response.
package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/braintease/backend/internal/auth"
	"github.com/braintease/backend/internal/domain"
	"github.com/braintease/backend/internal/errors"
	"github.com/braintease/backend/internal/game"
	"github.com/braintease/backend/internal/leaderboard"
	"github.com/braintease/backend/internal/multiplayer"
	"github.com/braintease/backend/internal/score"
	"github.com/braintease/backend/internal/trivia"
)

type Multiplayer interface {
	CreateSession(ctx context.Context, req multiplayer.CreateSessionRequest) (*domain.MultiplayerSession, error)
	JoinSession(ctx context.Context, req multiplayer.JoinSessionRequest) (*domain.MultiplayerSession, error)
	SubmitScore(ctx context.Context, req multiplayer.SubmitScoreRequest) (*domain.MultiplayerSession, error)
	GetSession(ctx context.Context, sessionID string) (*domain.MultiplayerSession, error)
	GetSessionByCode(ctx context.Context, joinCode string) (*domain.MultiplayerSession, error)
}

type Scores interface {
	SubmitScore(ctx context.Context, req score.SubmitScoreRequest) (*domain.ScoreEntry, error)
	Leaderboard(ctx context.Context, req score.LeaderboardRequest) (*domain.Leaderboard, error)
}

type TopScores interface {
	GetTop(ctx context.Context, req leaderboard.GetTopRequest) ([]leaderboard.TopEntry, error)
}

type Games interface {
	StartGame(ctx context.Context, req game.StartGameRequest) (*game.StartGameResponse, error)
	UseHint(ctx context.Context, req game.UseHintRequest) (*game.UseHintResponse, error)
}

type Questions interface {
	FetchQuestions(ctx context.Context, p trivia.FetchParams) ([]trivia.Question, error)
	Categories(ctx context.Context) ([]trivia.Category, error)
}

type Config struct {
	Multiplayer Multiplayer
	Scores      Scores
	TopScores   TopScores
	Games       Games
	Questions   Questions
	Auth        auth.Verifier
}

type API struct {
	mp  Multiplayer
	sc  Scores
	top TopScores
	gm  Games
	qs  Questions
	av  auth.Verifier
}

func New(c Config) *API {
	return &API{
		mp:  c.Multiplayer,
		sc:  c.Scores,
		top: c.TopScores,
		gm:  c.Games,
		qs:  c.Questions,
		av:  c.Auth,
	}
}

// Register mounts all routes under /api.
func (a *API) Register(r gin.IRouter) {
	pub := r.Group("/api")
	pub.GET("/leaderboard", a.getLeaderboard)
	pub.GET("/leaderboard/top", a.getTopScores)
	pub.GET("/questions", a.getQuestions)
	pub.GET("/categories", a.getCategories)

	priv := r.Group("/api", auth.Middleware(a.av))
	priv.POST("/submit-score", a.submitScore)
	priv.POST("/start-game", a.startGame)
	priv.POST("/use-hint/:session_id", a.useHint)

	priv.POST("/multiplayer/create", a.createMultiplayerSession)
	priv.POST("/multiplayer/join", a.joinMultiplayerSession)
	priv.POST("/multiplayer/submit", a.submitMultiplayerScore)
	priv.GET("/multiplayer/by-code", a.getMultiplayerSessionByCode)
	priv.GET("/multiplayer/:session_id", a.getMultiplayerSession)
}

// fail writes the coded error as JSON. Business failures surface as-is;
// internal faults are logged and replaced with a generic message. Unavailable
// dependencies keep their client message but the cause is logged server-side,
// since it never reaches the response.
func fail(c *gin.Context, err error) {
	e := errors.Convert(err)
	switch e.Code {
	case errors.CodeInternal:
		slog.ErrorContext(c.Request.Context(), "api: internal error",
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(e.HTTPStatusCode(), gin.H{"error": "an unexpected error occurred"})
		return
	case errors.CodeUnavailable:
		slog.ErrorContext(c.Request.Context(), "api: dependency unavailable",
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.JSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
}

func bindError(c *gin.Context, err error) {
	fail(c, errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef("invalid request body"),
		errors.WithCause(err),
	))
}

func identity(c *gin.Context) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(c.Request.Context())
	if !ok {
		fail(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing identity")))
	}
	return id, ok
}
