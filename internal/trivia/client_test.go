package trivia_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/braintease/backend/internal/errors"
	"github.com/braintease/backend/internal/trivia"
)

const questionsBody = `{
	"response_code": 0,
	"results": [
		{
			"question": "What does &quot;HTTP&quot; stand for?",
			"correct_answer": "HyperText Transfer Protocol",
			"incorrect_answers": ["Hyper Transfer Text Protocol", "High Text Transfer Protocol", "HyperText Trade Protocol"],
			"type": "multiple",
			"difficulty": "easy",
			"category": "Science &amp; Technology"
		},
		{
			"question": "",
			"correct_answer": "dropped",
			"incorrect_answers": ["a"],
			"type": "multiple",
			"difficulty": "easy",
			"category": "Broken"
		}
	]
}`

func newClient(t *testing.T, handler http.HandlerFunc, withCache bool) *trivia.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := trivia.Config{BaseURL: srv.URL, HTTPClient: srv.Client(), Prefix: "test:trivia"}
	if withCache {
		mr := miniredis.RunT(t)
		r := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		t.Cleanup(func() { _ = r.Close() })
		c.Cache = r
	}
	return trivia.NewClient(c)
}

func TestClient_FetchQuestions(t *testing.T) {
	t.Parallel()

	t.Run("decodes HTML entities and drops empty questions", func(t *testing.T) {
		t.Parallel()

		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api.php", r.URL.Path)
			require.Equal(t, "5", r.URL.Query().Get("amount"))
			require.Equal(t, "easy", r.URL.Query().Get("difficulty"))
			require.Equal(t, "multiple", r.URL.Query().Get("type"))
			_, _ = w.Write([]byte(questionsBody))
		}, false)

		got, err := c.FetchQuestions(context.Background(), trivia.FetchParams{Amount: 5, Difficulty: "easy"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, `What does "HTTP" stand for?`, got[0].Question)
		require.Equal(t, "Science & Technology", got[0].Category)
		require.Equal(t, "HyperText Transfer Protocol", got[0].CorrectAnswer)
		require.Len(t, got[0].IncorrectAnswers, 3)
	})

	t.Run("serves repeat fetches from cache", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte(questionsBody))
		}, true)

		p := trivia.FetchParams{Amount: 5, Difficulty: "easy"}

		first, err := c.FetchQuestions(context.Background(), p)
		require.NoError(t, err)

		second, err := c.FetchQuestions(context.Background(), p)
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Equal(t, int32(1), hits.Load())

		// A different parameter set misses the cache.
		_, err = c.FetchQuestions(context.Background(), trivia.FetchParams{Amount: 10, Difficulty: "hard"})
		require.NoError(t, err)
		require.Equal(t, int32(2), hits.Load())
	})

	t.Run("maps provider error codes to invalid argument", func(t *testing.T) {
		t.Parallel()

		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"response_code": 2, "results": []}`))
		}, false)

		_, err := c.FetchQuestions(context.Background(), trivia.FetchParams{Amount: 5})
		require.True(t, errors.IsCode(err, errors.CodeInvalidArgument), "got %v", err)
		require.Contains(t, err.Error(), "invalid parameter")
	})

	t.Run("non-200 responses are unavailable", func(t *testing.T) {
		t.Parallel()

		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}, false)

		_, err := c.FetchQuestions(context.Background(), trivia.FetchParams{Amount: 5})
		require.True(t, errors.IsCode(err, errors.CodeUnavailable), "got %v", err)
	})

	t.Run("malformed payloads are unavailable", func(t *testing.T) {
		t.Parallel()

		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>not json</html>"))
		}, false)

		_, err := c.FetchQuestions(context.Background(), trivia.FetchParams{Amount: 5})
		require.True(t, errors.IsCode(err, errors.CodeUnavailable), "got %v", err)
	})
}

func TestClient_Categories(t *testing.T) {
	t.Parallel()

	t.Run("lists and caches the catalog", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api_category.php", r.URL.Path)
			hits.Add(1)
			_, _ = w.Write([]byte(`{"trivia_categories": [
				{"id": 9, "name": "General Knowledge"},
				{"id": 0, "name": ""},
				{"id": 18, "name": "Science: Computers"}
			]}`))
		}, true)

		got, err := c.Categories(context.Background())
		require.NoError(t, err)
		require.Equal(t, []trivia.Category{
			{ID: 9, Name: "General Knowledge"},
			{ID: 18, Name: "Science: Computers"},
		}, got)

		again, err := c.Categories(context.Background())
		require.NoError(t, err)
		require.Equal(t, got, again)
		require.Equal(t, int32(1), hits.Load())
	})
}
