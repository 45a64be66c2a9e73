package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"trivia-quiz/internal/app"
	"trivia-quiz/internal/config"
	"trivia-quiz/internal/infra/memory"
	"trivia-quiz/internal/infra/opentdb"
	pghistory "trivia-quiz/internal/infra/postgres"
	infraredis "trivia-quiz/internal/infra/redis"
	"trivia-quiz/internal/infra/sqlite"
	"trivia-quiz/internal/logging"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// deps holds everything a command needs plus the cleanup for it.
type deps struct {
	cfg     config.Config
	log     *zap.Logger
	service *app.QuizService
	history app.HistoryStore
	closers []func() error
}

type depsOptions struct {
	offline bool
	console io.Writer
	extra   []app.Option
}

func (d *deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newDeps(ctx context.Context, cfg config.Config, opts depsOptions) (*deps, error) {
	log, closeLog, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Console: opts.console})
	if err != nil {
		return nil, err
	}
	d := &deps{cfg: cfg, log: log, closers: []func() error{closeLog}}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, redisClient.Close)
	}

	history, err := d.openHistory(ctx, redisClient)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.history = history

	var store app.SessionRepository = memory.NewSessionStore()
	if redisClient != nil {
		store = infraredis.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 30*time.Minute))
	}

	source, err := d.questionSource(opts.offline)
	if err != nil {
		_ = d.Close()
		return nil, err
	}

	serviceOpts := []app.Option{
		app.WithLogger(log.Named("quiz")),
		app.WithDuration(cfg.Quiz.Duration),
	}
	d.service = app.NewQuizService(store, source, history, append(serviceOpts, opts.extra...)...)
	return d, nil
}

// openHistory picks the configured backend. A local store that cannot be
// opened degrades to no history rather than failing the command.
func (d *deps) openHistory(ctx context.Context, redisClient *redis.Client) (app.HistoryStore, error) {
	cfg := d.cfg
	switch cfg.History.Backend {
	case config.BackendMemory:
		return memory.NewHistoryStore(), nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("history backend redis needs redis.addr")
		}
		return infraredis.NewHistoryStore(redisClient), nil
	case config.BackendPostgres:
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		return pghistory.NewHistoryStore(pool), nil
	default:
		store, err := sqlite.Open(cfg.History.Path)
		if err != nil {
			d.log.Warn("history disabled", zap.String("path", cfg.History.Path), zap.Error(err))
			return memory.UnavailableHistory{}, nil
		}
		d.closers = append(d.closers, store.Close)
		return store, nil
	}
}

func (d *deps) questionSource(offline bool) (app.QuestionSource, error) {
	cfg := d.cfg
	if offline {
		src, err := memory.NewOfflineSource(rand.New(rand.NewSource(time.Now().UnixNano())), cfg.Quiz.Amount)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return opentdb.New(
		opentdb.WithBaseURL(cfg.Trivia.BaseURL),
		opentdb.WithAmount(cfg.Quiz.Amount),
		opentdb.WithHTTPClient(&http.Client{Timeout: config.TTLDuration(cfg.Trivia.Timeout, 15*time.Second)}),
		opentdb.WithMinInterval(config.TTLDuration(cfg.Trivia.MinInterval, opentdb.DefaultMinInterval)),
		opentdb.WithLogger(d.log.Named("opentdb")),
	), nil
}
