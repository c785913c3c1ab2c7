package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/lingofeed/internal/bandit"
	"github.com/example/lingofeed/internal/config"
	"github.com/example/lingofeed/internal/database"
	"github.com/example/lingofeed/internal/feed"
	"github.com/example/lingofeed/internal/learning"
	"github.com/example/lingofeed/internal/logging"
	"github.com/example/lingofeed/internal/memstore"
	"github.com/example/lingofeed/internal/scoring"
	"github.com/example/lingofeed/internal/signals"
	"github.com/example/lingofeed/internal/srs"
)

// storage is what the services need from a backend
type storage interface {
	learning.UserStore
	learning.InteractionStore
	learning.ActivityStore
	feed.ContentSource
	srs.CardStore
}

// sqlStorage adapts the repositories to storage
type sqlStorage struct {
	*database.UserRepository
	*database.InteractionRepository
	*database.ActivityRepository
	*database.ContentRepository
	*database.ReviewRepository
}

// app holds the wired services
type app struct {
	config    *config.Config
	db        *database.Store // nil for the memory backend
	storage   storage
	redis     *redis.Client
	graph     *learning.Graph
	tracker   *signals.Tracker
	optimizer *bandit.Optimizer
	feed      *feed.Service
	logger    zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{config: cfg, logger: logging.WithComponent("app")}

	if cfg.Database.Type == database.TypeMemory {
		a.storage = memstore.New()
		a.logger.Warn().Msg("using in-memory storage, data is lost on exit")
	} else {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = database.NewStore(db)
		a.storage = sqlStorage{
			UserRepository:        a.db.Users,
			InteractionRepository: a.db.Interactions,
			ActivityRepository:    a.db.Activity,
			ContentRepository:     a.db.Content,
			ReviewRepository:      a.db.Reviews,
		}
	}

	var arms bandit.ArmStore = bandit.NewMemoryArmStore()
	if cfg.Redis.URL != "" {
		client, err := bandit.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = client
		arms = bandit.NewRedisArmStore(client, cfg.Redis.Prefix, cfg.Redis.TTL)
	}

	a.graph = learning.NewGraph(a.storage, a.storage, a.storage, cfg.Learning, logging.WithComponent("learning"))
	a.tracker = signals.NewTracker(a.graph, cfg.Signals, logging.WithComponent("signals"))
	a.optimizer = bandit.New(cfg.Bandit, arms, logging.WithComponent("bandit"))
	a.feed = feed.NewService(feed.Deps{
		Content:  a.storage,
		Users:    a.storage,
		Graph:    a.graph,
		Bandit:   a.optimizer,
		Scorer:   scoring.New(cfg.Scoring),
		Injector: srs.NewInjector(a.storage, cfg.SRS, logging.WithComponent("srs")),
		Tracker:  a.tracker,
	}, cfg.Feed, logging.WithComponent("feed"))

	return a, nil
}

// Close waits for background aggregate updates and releases connections
func (a *app) Close() error {
	if a.graph != nil {
		a.graph.Wait()
	}
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
