// Package trivia fetches questions from an OpenTDB-compatible provider,
// normalizes the HTML-encoded payload, and caches results in Redis so bursts
// of game starts do not hammer the upstream service.
package trivia

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/braintease/backend/internal/errors"
)

const (
	defaultBaseURL = "https://opentdb.com"
	defaultTimeout = 10 * time.Second

	questionsTTL  = 5 * time.Minute
	categoriesTTL = time.Hour
)

// Provider response codes, per the OpenTDB API contract.
var responseCodeMessages = map[int]string{
	1: "no results found",
	2: "invalid parameter",
	3: "token not found",
	4: "token empty",
}

type Question struct {
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      redis.UniversalClient // optional
	Prefix     string
}

type Client struct {
	base   string
	http   *http.Client
	cache  redis.UniversalClient
	prefix string
}

func NewClient(c Config) *Client {
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		base:   base,
		http:   hc,
		cache:  c.Cache,
		prefix: c.Prefix,
	}
}

type FetchParams struct {
	Amount     int
	Difficulty string // empty for any
	Category   int    // 0 for any
	Type       string // "multiple" or "boolean"
}

// FetchQuestions returns normalized questions, from cache when possible.
func (c *Client) FetchQuestions(ctx context.Context, p FetchParams) ([]Question, error) {
	if p.Type == "" {
		p.Type = "multiple"
	}

	key := fmt.Sprintf("%s:questions:%d:%s:%d:%s", c.prefix, p.Amount, p.Difficulty, p.Category, p.Type)

	var cached []Question
	if c.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	q := url.Values{}
	q.Set("amount", strconv.Itoa(p.Amount))
	q.Set("type", p.Type)
	if p.Difficulty != "" {
		q.Set("difficulty", p.Difficulty)
	}
	if p.Category != 0 {
		q.Set("category", strconv.Itoa(p.Category))
	}

	var body struct {
		ResponseCode int        `json:"response_code"`
		Results      []Question `json:"results"`
	}
	if err := c.getJSON(ctx, "/api.php?"+q.Encode(), &body); err != nil {
		return nil, err
	}

	if body.ResponseCode != 0 {
		msg, ok := responseCodeMessages[body.ResponseCode]
		if !ok {
			msg = fmt.Sprintf("unknown error code %d", body.ResponseCode)
		}
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("question service error: %s", msg))
	}

	questions := make([]Question, 0, len(body.Results))
	for _, raw := range body.Results {
		dq := decodeQuestion(raw)
		if dq.Question == "" || dq.CorrectAnswer == "" {
			continue
		}
		questions = append(questions, dq)
	}

	if len(questions) > 0 {
		c.cacheSet(ctx, key, questions, questionsTTL)
	}

	return questions, nil
}

// Categories lists the provider's category catalog.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	key := c.prefix + ":categories"

	var cached []Category
	if c.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	var body struct {
		TriviaCategories []Category `json:"trivia_categories"`
	}
	if err := c.getJSON(ctx, "/api_category.php", &body); err != nil {
		return nil, err
	}

	cats := make([]Category, 0, len(body.TriviaCategories))
	for _, cat := range body.TriviaCategories {
		if cat.Name == "" {
			continue
		}
		cats = append(cats, cat)
	}

	if len(cats) > 0 {
		c.cacheSet(ctx, key, cats, categoriesTTL)
	}

	return cats, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("question service unreachable"),
			errors.WithCause(err),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("question service returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("invalid response from question service"),
			errors.WithCause(err),
		)
	}

	return nil
}

func decodeQuestion(raw Question) Question {
	q := Question{
		Question:      html.UnescapeString(raw.Question),
		CorrectAnswer: html.UnescapeString(raw.CorrectAnswer),
		Type:          raw.Type,
		Difficulty:    raw.Difficulty,
		Category:      html.UnescapeString(raw.Category),
	}
	for _, a := range raw.IncorrectAnswers {
		q.IncorrectAnswers = append(q.IncorrectAnswers, html.UnescapeString(a))
	}
	return q
}

// Cache failures are never fatal; the provider remains the source of truth.

func (c *Client) cacheGet(ctx context.Context, key string, out any) bool {
	if c.cache == nil {
		return false
	}

	b, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.WarnContext(ctx, "trivia: cache read failed", "error", err)
		}
		return false
	}

	if err := json.Unmarshal(b, out); err != nil {
		slog.WarnContext(ctx, "trivia: corrupt cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Client) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	if c.cache == nil {
		return
	}

	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, b, ttl).Err(); err != nil {
		slog.WarnContext(ctx, "trivia: cache write failed", "error", err)
	}
}
