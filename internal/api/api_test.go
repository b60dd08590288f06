package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/braintease/backend/internal/api"
	"github.com/braintease/backend/internal/auth"
	"github.com/braintease/backend/internal/errors"
	"github.com/braintease/backend/internal/event"
	"github.com/braintease/backend/internal/leaderboard"
	"github.com/braintease/backend/internal/multiplayer"
	"github.com/braintease/backend/internal/multiplayer/memory"
	"github.com/braintease/backend/internal/trivia"
)

// syncBuffer is a log sink safe for handlers running on request goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type topScoresStub struct {
	entries []leaderboard.TopEntry
	err     error
}

func (s topScoresStub) GetTop(context.Context, leaderboard.GetTopRequest) ([]leaderboard.TopEntry, error) {
	return s.entries, s.err
}

type questionsStub struct {
	questions []trivia.Question
}

func (s questionsStub) FetchQuestions(context.Context, trivia.FetchParams) ([]trivia.Question, error) {
	return s.questions, nil
}

func (s questionsStub) Categories(context.Context) ([]trivia.Category, error) {
	return []trivia.Category{{ID: 9, Name: "General Knowledge"}}, nil
}

type harness struct {
	router   *gin.Engine
	verifier *auth.JWTVerifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	gin.SetMode(gin.TestMode)

	v := auth.NewJWTVerifier("test-secret", "")

	mp := multiplayer.NewService(multiplayer.Config{
		Store:    memory.NewStore(),
		EventBus: event.NewBus(),
	})

	r := gin.New()
	api.New(api.Config{
		Multiplayer: mp,
		TopScores:   topScoresStub{entries: []leaderboard.TopEntry{{Rank: 1, UserID: "u1", Score: 99}}},
		Questions:   questionsStub{questions: []trivia.Question{{Question: "q", CorrectAnswer: "a", Type: "multiple"}}},
		Auth:        v,
	}).Register(r)

	return &harness{router: r, verifier: v}
}

func (h *harness) token(t *testing.T, userID string) string {
	t.Helper()

	token, err := h.verifier.Sign(auth.Identity{UserID: userID, DisplayName: userID}, time.Minute)
	require.NoError(t, err)
	return token
}

func (h *harness) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var r *strings.Reader
	if body == "" {
		r = strings.NewReader("{}")
	} else {
		r = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var out map[string]any
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	}
	return w, out
}

func TestAPI_MultiplayerFlow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	u1, u2 := h.token(t, "u1"), h.token(t, "u2")

	w, created := h.do(t, http.MethodPost, "/api/multiplayer/create", u1,
		`{"number_of_players": 2, "difficulty": "easy", "total_questions": 10}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "waiting", created["status"])

	sessionID := created["session_id"].(string)
	joinCode := created["join_code"].(string)
	require.Len(t, joinCode, 6)

	// A spectator can look the session up by code before it starts.
	w, byCode := h.do(t, http.MethodGet, "/api/multiplayer/by-code?join_code="+joinCode, u2, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, sessionID, byCode["session_id"])

	w, joined := h.do(t, http.MethodPost, "/api/multiplayer/join", u2,
		fmt.Sprintf(`{"join_code": %q}`, joinCode))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "active", joined["status"])
	require.NotEmpty(t, joined["start_time"])

	w, after1 := h.do(t, http.MethodPost, "/api/multiplayer/submit", u1,
		fmt.Sprintf(`{"session_id": %q, "score": 80}`, sessionID))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "active", after1["status"])
	require.Equal(t, float64(1), after1["players_submitted"])

	w, after2 := h.do(t, http.MethodPost, "/api/multiplayer/submit", u2,
		fmt.Sprintf(`{"session_id": %q, "score": 95}`, sessionID))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "finished", after2["status"])
	require.Equal(t, []any{"u2"}, after2["winners"])
	require.NotEmpty(t, after2["finished_at"])

	w, polled := h.do(t, http.MethodGet, "/api/multiplayer/"+sessionID, u1, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "finished", polled["status"])
}

func TestAPI_MultiplayerErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	u1 := h.token(t, "u1")

	tests := map[string]struct {
		method     string
		path       string
		token      string
		body       string
		wantStatus int
	}{
		"create without token": {
			method: http.MethodPost, path: "/api/multiplayer/create",
			body:       `{"number_of_players": 2, "difficulty": "easy", "total_questions": 10}`,
			wantStatus: http.StatusUnauthorized,
		},
		"create with missing fields": {
			method: http.MethodPost, path: "/api/multiplayer/create", token: u1,
			body:       `{"difficulty": "easy"}`,
			wantStatus: http.StatusBadRequest,
		},
		"create with one player": {
			method: http.MethodPost, path: "/api/multiplayer/create", token: u1,
			body:       `{"number_of_players": 1, "difficulty": "easy", "total_questions": 10}`,
			wantStatus: http.StatusBadRequest,
		},
		"join unknown code": {
			method: http.MethodPost, path: "/api/multiplayer/join", token: u1,
			body:       `{"join_code": "ZZZZZZ"}`,
			wantStatus: http.StatusNotFound,
		},
		"submit to unknown session": {
			method: http.MethodPost, path: "/api/multiplayer/submit", token: u1,
			body:       `{"session_id": "missing", "score": 10}`,
			wantStatus: http.StatusNotFound,
		},
		"submit without score": {
			method: http.MethodPost, path: "/api/multiplayer/submit", token: u1,
			body:       `{"session_id": "s1"}`,
			wantStatus: http.StatusBadRequest,
		},
		"get unknown session": {
			method: http.MethodGet, path: "/api/multiplayer/missing", token: u1,
			wantStatus: http.StatusNotFound,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			w, body := h.do(t, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.wantStatus, w.Code, "body: %v", body)
			require.Contains(t, body, "error")
		})
	}
}

func TestAPI_StatusConflicts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	u1, u2, u3 := h.token(t, "u1"), h.token(t, "u2"), h.token(t, "u3")

	_, created := h.do(t, http.MethodPost, "/api/multiplayer/create", u1,
		`{"number_of_players": 2, "difficulty": "easy", "total_questions": 10}`)
	sessionID := created["session_id"].(string)
	joinCode := created["join_code"].(string)

	// Submitting before the session starts conflicts.
	w, _ := h.do(t, http.MethodPost, "/api/multiplayer/submit", u1,
		fmt.Sprintf(`{"session_id": %q, "score": 10}`, sessionID))
	require.Equal(t, http.StatusConflict, w.Code)

	w, _ = h.do(t, http.MethodPost, "/api/multiplayer/join", u2,
		fmt.Sprintf(`{"join_code": %q}`, joinCode))
	require.Equal(t, http.StatusOK, w.Code)

	// The session is full now.
	w, _ = h.do(t, http.MethodPost, "/api/multiplayer/join", u3,
		fmt.Sprintf(`{"join_code": %q}`, joinCode))
	require.Equal(t, http.StatusConflict, w.Code)

	// Outsiders cannot report scores.
	w, _ = h.do(t, http.MethodPost, "/api/multiplayer/submit", u3,
		fmt.Sprintf(`{"session_id": %q, "score": 10}`, sessionID))
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPI_UnavailableDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var logs syncBuffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	cause := fmt.Errorf("redis: connection refused")
	r := gin.New()
	api.New(api.Config{
		TopScores: topScoresStub{err: errors.New(errors.CodeUnavailable,
			errors.WithMessagef("leaderboard cache unavailable"),
			errors.WithCause(cause),
		)},
		Auth: auth.NewJWTVerifier("test-secret", ""),
	}).Register(r)

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard/top?difficulty=easy", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.JSONEq(t, `{"error": "leaderboard cache unavailable"}`, w.Body.String())

	// The cause never reaches the client, so it must reach the log.
	require.Contains(t, logs.String(), "dependency unavailable")
	require.Contains(t, logs.String(), "connection refused")
}

func TestAPI_PublicRoutes(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	w, body := h.do(t, http.MethodGet, "/api/leaderboard/top?difficulty=easy", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["entries"], 1)

	w, body = h.do(t, http.MethodGet, "/api/questions?amount=5", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["results"], 1)

	w, _ = h.do(t, http.MethodGet, "/api/questions?amount=five", "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, body = h.do(t, http.MethodGet, "/api/categories", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["categories"], 1)
}
