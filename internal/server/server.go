package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/braintease/backend/internal/api"
	"github.com/braintease/backend/internal/auth"
	"github.com/braintease/backend/internal/event"
	"github.com/braintease/backend/internal/game"
	"github.com/braintease/backend/internal/leaderboard"
	"github.com/braintease/backend/internal/multiplayer"
	mppostgres "github.com/braintease/backend/internal/multiplayer/postgres"
	"github.com/braintease/backend/internal/score"
	"github.com/braintease/backend/internal/telemetry"
	"github.com/braintease/backend/internal/trivia"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Cache struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Score struct {
			Addr string
			User string
			Pass string
			Name string
		}

		Session struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Auth struct {
		Secret string
		Issuer string
	}

	Trivia struct {
		BaseURL string
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			cache       redis.UniversalClient
		}

		postgres struct {
			score   *pgxpool.Pool
			session *pgxpool.Pool
		}
	}

	service struct {
		multiplayer *multiplayer.Service
		score       *score.Service
		leaderboard *leaderboard.Service
		game        *game.Service
		trivia      *trivia.Client
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.cache, err = connect(s.c.Redis.Cache.Addrs, s.c.Redis.Cache.Pass)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(addr, user, pass, name string) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	s.infra.postgres.score, err = connect(s.c.Postgres.Score.Addr, s.c.Postgres.Score.User, s.c.Postgres.Score.Pass, s.c.Postgres.Score.Name)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}

	s.infra.postgres.session, err = connect(s.c.Postgres.Session.Addr, s.c.Postgres.Session.User, s.c.Postgres.Session.Pass, s.c.Postgres.Session.Name)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	return nil
}

func (s *Server) initService() {
	s.service.multiplayer = multiplayer.NewService(multiplayer.Config{
		Store:    mppostgres.NewStore(s.infra.postgres.session),
		EventBus: s.eb,
	})

	s.service.score = score.NewService(score.Config{
		DB:       s.infra.postgres.score,
		EventBus: s.eb,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})

	s.service.trivia = trivia.NewClient(trivia.Config{
		BaseURL: s.c.Trivia.BaseURL,
		Cache:   s.infra.redis.cache,
		Prefix:  s.c.Redis.Cache.Prefix,
	})

	s.service.game = game.NewService(game.Config{
		DB:        s.infra.postgres.score,
		Questions: s.service.trivia,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Multiplayer: s.service.multiplayer,
		Scores:      s.service.score,
		TopScores:   s.service.leaderboard,
		Games:       s.service.game,
		Questions:   s.service.trivia,
		Auth:        auth.NewJWTVerifier(s.c.Auth.Secret, s.c.Auth.Issuer),
	}).Register(e)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	s.infra.postgres.score.Close()
	s.infra.postgres.session.Close()

	slog.InfoContext(ctx, "server: shutdown completed")
}
