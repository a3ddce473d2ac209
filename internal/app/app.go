// Package app builds the dependency graph shared by the worker manager and
// the prospect CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead-pipeline/internal/ai"
	"lead-pipeline/internal/cache"
	awsclient "lead-pipeline/internal/common/aws"
	"lead-pipeline/internal/common/config"
	"lead-pipeline/internal/common/database"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/common/task"
	"lead-pipeline/internal/geocode"
	"lead-pipeline/internal/intelligence"
	"lead-pipeline/internal/notify"
	"lead-pipeline/internal/places"
	"lead-pipeline/internal/quota"
	"lead-pipeline/internal/search"
	"lead-pipeline/internal/store/esindex"
	"lead-pipeline/internal/store/sqlstore"
	"lead-pipeline/internal/usage"
	"lead-pipeline/internal/webcontext"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Backends accepted by search.local_backend.
const (
	BackendPostgres      = "postgres"
	BackendSQLite        = "sqlite"
	BackendElasticsearch = "elasticsearch"
)

// App holds the wired pipeline.
type App struct {
	Config       *config.Config
	Store        *sqlstore.Store
	Places       *places.Client
	Resolver     *ai.Resolver
	WebContext   *webcontext.Aggregator
	Search       *search.Orchestrator
	Intelligence *intelligence.Service
	Runner       *task.Runner

	logger  logger.Logger
	redis   *database.RedisClient
	es      *database.ElasticsearchClient
	closers []func() error
}

// Build connects every backend and wires the pipeline. Redis is optional:
// when it is unset or unreachable the cache tiers are skipped and the rate
// counter fails open.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{Config: cfg, logger: log}

	store, placeStore, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	a.redis, err = a.openRedis(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	var rdb *goredis.Client
	if a.redis != nil {
		rdb = a.redis.Client
	}

	a.Runner = task.NewRunner(log, config.GetDuration(cfg.Search.BackgroundTimeout))
	recorder := usage.NewRecorder(store, a.Runner, log)

	a.Places = places.NewClient(places.ConfigFrom(cfg.Places), log)
	a.Resolver = ai.NewResolver(store, cfg.AI, recorder, log)
	a.WebContext = webcontext.NewAggregator(store, cfg.WebSearch, recorder, log)

	deps := search.Deps{
		Guard:  quota.NewGuard(store, rdb, cfg.Quota.RateLimitPerMinute, log),
		Places: a.Places,
		Store:  placeStore,
		Ledger: store,
		Usage:  recorder,
		Runner: a.Runner,
	}

	var geocoder geocode.Geocoder
	if cfg.Geocoding.APIKey != "" {
		geocoder = geocode.NewGoogle(cfg.Geocoding)
	}
	if rdb != nil {
		results := cache.New(rdb, cfg.App.Name)
		deps.Cache = results
		if geocoder != nil {
			geocoder = geocode.NewCached(geocoder, results, config.GetDuration(cfg.Geocoding.CacheTTL), log)
		}
	}
	if geocoder != nil {
		deps.Geocoder = geocoder
	}

	if n := a.notifiers(ctx); len(n) == 1 {
		deps.Notifier = n[0]
	} else if len(n) > 1 {
		deps.Notifier = n
	}

	a.Search = search.New(search.ConfigFrom(cfg.Search, cfg.Quota), deps, log)
	a.Intelligence = intelligence.NewService(a.Search, a.Resolver, a.WebContext, log).WithDetails(a.Places, recorder)

	log.Info("pipeline wired", map[string]interface{}{
		"localBackend": cfg.Search.LocalBackend,
		"cache":        rdb != nil,
		"geocoding":    geocoder != nil,
		"notifier":     deps.Notifier != nil,
	})
	return a, nil
}

// openStores returns the relational store and the local place store it
// should search, which is the Elasticsearch index when that backend is set.
func (a *App) openStores(ctx context.Context) (*sqlstore.Store, search.PlaceStore, error) {
	cfg := a.Config

	var store *sqlstore.Store
	switch cfg.Search.LocalBackend {
	case BackendSQLite:
		db, err := database.NewSQLite(cfg.Database.SQLite)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)
		store = sqlstore.New(db, sqlstore.SQLite)
	default:
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, pg.Close)
		err = retryWithBackoff(ctx, func() error { return pg.Ping(ctx) }, 10, 2*time.Second, a.logger, "postgres connection")
		if err != nil {
			return nil, nil, err
		}
		store = sqlstore.New(pg.DB, sqlstore.Postgres)
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, nil, fmt.Errorf("migrate store: %w", err)
	}

	if cfg.Search.LocalBackend != BackendElasticsearch {
		return store, store, nil
	}

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return nil, nil, err
	}
	if err := retryWithBackoff(ctx, func() error { return es.Ping(ctx) }, 10, 2*time.Second, a.logger, "elasticsearch connection"); err != nil {
		return nil, nil, err
	}
	a.es = es
	return store, esindex.New(es.Client, cfg.Database.Elasticsearch.Index, a.logger), nil
}

// openRedis returns nil when Redis is not configured or not reachable.
func (a *App) openRedis(ctx context.Context) (*database.RedisClient, error) {
	redis, err := database.NewRedis(a.Config.Database.Redis)
	if errors.Is(err, database.ErrRedisDisabled) {
		a.logger.Info("redis not configured, running without cache", nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := redis.Ping(ctx); err != nil {
		a.logger.Warn("redis unavailable, running without cache", map[string]interface{}{"error": err.Error()})
		_ = redis.Close()
		return nil, nil
	}
	a.closers = append(a.closers, redis.Close)
	return redis, nil
}

// notifiers builds the enabled quota alert channels. A channel whose AWS
// client cannot be configured is skipped with a warning.
func (a *App) notifiers(ctx context.Context) notify.Fanout {
	cfg := a.Config.Notifications
	var out notify.Fanout

	if cfg.SNS.Enabled {
		snsClient, err := awsclient.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			a.logger.Warn("sns unavailable, topic alerts disabled", map[string]interface{}{"error": err.Error()})
		} else {
			out = append(out, notify.NewSNSNotifier(snsClient, cfg.SNS.TopicARN, a.logger))
		}
	}
	if cfg.SES.Enabled {
		sesClient, err := awsclient.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			a.logger.Warn("ses unavailable, email alerts disabled", map[string]interface{}{"error": err.Error()})
		} else {
			out = append(out, notify.NewSESNotifier(sesClient, cfg.SES.From, cfg.SES.Recipients, a.logger))
		}
	}
	return out
}

// HealthCheck pings every connected backend in parallel and reports the
// first failure.
func (a *App) HealthCheck(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Store.DB().PingContext(ctx) })
	if a.redis != nil {
		g.Go(func() error { return a.redis.Ping(ctx) })
	}
	if a.es != nil {
		g.Go(func() error { return a.es.Ping(ctx) })
	}
	return g.Wait()
}

// Close drains detached tasks, then closes backends in reverse order.
func (a *App) Close() {
	if a.Runner != nil {
		a.Runner.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
}

func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}
		log.Warn(operationName+" failed, retrying", map[string]interface{}{
			"error":       err.Error(),
			"attempt":     i + 1,
			"maxRetries":  maxRetries,
			"nextRetryIn": delay.String(),
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
