// Package leaderboard keeps a Redis sorted-set top-N per difficulty, fed from
// score.submitted events. It is a fast read path over the durable merged
// query in the score package.
package leaderboard

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/braintease/backend/internal/domain"
	"github.com/braintease/backend/internal/errors"
	"github.com/braintease/backend/internal/event"
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameScoreSubmitted, func(ctx context.Context, e event.Event) error {
		return s.recordScore(ctx, e.(domain.EventScoreSubmitted))
	})

	return s
}

type GetTopRequest struct {
	Difficulty domain.Difficulty
	Limit      int
}

type TopEntry struct {
	Rank        int
	UserID      string
	DisplayName string
	Score       int
}

// GetTop returns the best score per user for a difficulty, highest first.
func (s *Service) GetTop(ctx context.Context, req GetTopRequest) ([]TopEntry, error) {
	if !req.Difficulty.Valid() {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid difficulty %q", req.Difficulty))
	}

	limit := int64(req.Limit)
	if limit <= 0 {
		limit = 10
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.boardKey(req.Difficulty), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get top scores: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no scores recorded for difficulty %s", req.Difficulty))
	}

	entries := make([]TopEntry, 0, len(res))
	for i, z := range res {
		uid := z.Member.(string)

		name, err := s.redis.HGet(ctx, s.namesKey(), uid).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("get display name: %w", err)
		}

		entries = append(entries, TopEntry{
			Rank:        i + 1,
			UserID:      uid,
			DisplayName: name,
			Score:       int(z.Score),
		})
	}

	return entries, nil
}

// recordScore keeps the best score per user (ZADD GT never lowers a member).
func (s *Service) recordScore(ctx context.Context, e domain.EventScoreSubmitted) error {
	entry := e.Entry

	if err := s.redis.ZAddGT(ctx, s.boardKey(entry.Difficulty), redis.Z{
		Score:  float64(entry.Score),
		Member: entry.UserID,
	}).Err(); err != nil {
		return fmt.Errorf("record score: %w", err)
	}

	if entry.DisplayName != "" {
		if err := s.redis.HSet(ctx, s.namesKey(), entry.UserID, entry.DisplayName).Err(); err != nil {
			return fmt.Errorf("record display name: %w", err)
		}
	}

	return nil
}

func (s *Service) boardKey(d domain.Difficulty) string {
	return fmt.Sprintf("%s:%s:top", s.prefix, d)
}

func (s *Service) namesKey() string {
	return fmt.Sprintf("%s:names", s.prefix)
}
