// Package bootstrap composes the roadwiki application layers from configuration.
package bootstrap

import (
	"context"
	"errors"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"roadwiki/app/internal/cache"
	"roadwiki/app/internal/config"
	"roadwiki/app/internal/domain"
	apphttp "roadwiki/app/internal/http"
	"roadwiki/app/internal/llm"
	"roadwiki/app/internal/metrics"
	"roadwiki/app/internal/search"
	"roadwiki/app/internal/security/password"
	"roadwiki/app/internal/storage"
	_ "roadwiki/app/internal/storage/backends"
	"roadwiki/app/internal/users"
	"roadwiki/app/internal/wiki"
)

const cacheKeyPrefix = "roadwiki:"

type Dependencies struct {
	Config    *config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
	// Registry receives the application collectors; defaults to the Prometheus default registry.
	Registry *prometheus.Registry
}

type Result struct {
	Store       domain.Store
	Cache       cache.Client
	Search      search.Indexer
	Users       users.Service
	WikiService wiki.Service
	HTTPServer  *apphttp.Server
	Cleanup     func() error
}

// OpenStore opens and migrates the configured storage backend.
func OpenStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (domain.Store, error) {
	store, err := storage.Open(ctx, cfg, storage.Options{Logger: logger})
	if err != nil {
		return nil, eris.Wrap(err, "opening storage")
	}

	if err := store.Migrate(ctx); err != nil {
		if closeErr := store.Close(); closeErr != nil && logger != nil {
			logger.WithError(closeErr).Error("closing storage after migration failure")
		}
		return nil, eris.Wrap(err, "migrating storage")
	}
	return store, nil
}

// Build composes the roadwiki application layers and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	if deps.Config == nil {
		return Result{}, eris.New("configuration is required")
	}
	cfg := deps.Config

	store, err := OpenStore(ctx, cfg, deps.Logger)
	if err != nil {
		return Result{}, err
	}

	var closers []func() error
	closers = append(closers, store.Close)

	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := cleanup(); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("releasing resources after bootstrap failure")
		}
		return Result{}, wrapper
	}

	objectCache, err := buildCache(cfg)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating object cache"))
	}
	closers = append(closers, objectCache.Close)

	index, err := buildSearch(cfg, deps.Logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "opening search index"))
	}
	closers = append(closers, index.Close)

	userService, err := users.NewService(users.Options{
		Repository: store,
		Policy:     password.Policy{MinLength: cfg.MinimumPasswordLength},
		Logger:     deps.Logger,
		SentryHub:  deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating user service"))
	}

	wikiService, err := wiki.NewService(wiki.Options{
		Repository:         store,
		Cache:              objectCache,
		CacheTTL:           cfg.ObjectCacheTTL,
		Search:             index,
		IgnoreSearchErrors: cfg.IgnoreSearchIndexErrors,
		Logger:             deps.Logger,
		SentryHub:          deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating wiki service"))
	}

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}
	if err := metrics.Register(registerer); err != nil {
		return closeOnError(eris.Wrap(err, "registering metrics"))
	}

	httpServer, err := apphttp.NewServer(apphttp.Options{
		Users:     userService,
		Wiki:      wikiService,
		Health:    store,
		Logger:    deps.Logger,
		SentryHub: deps.SentryHub,
		APIKeys:   cfg.APIKeys,
		Gatherer:  gatherer,
		RateLimiter: apphttp.RateLimiterSettings{
			Burst:             cfg.RateLimitBurst,
			RequestsPerSecond: cfg.RateLimitRPS,
			ClientTTL:         cfg.RateLimitClientTTL,
		},
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	return Result{
		Store:       store,
		Cache:       objectCache,
		Search:      index,
		Users:       userService,
		WikiService: wikiService,
		HTTPServer:  httpServer,
		Cleanup:     cleanup,
	}, nil
}

func buildCache(cfg *config.Config) (cache.Client, error) {
	if !cfg.UseObjectCache {
		return cache.Noop{}, nil
	}
	return cache.New(cache.Config{
		Driver:     cfg.CacheDriver,
		Addr:       cfg.RedisAddr,
		Prefix:     cacheKeyPrefix,
		DefaultTTL: cfg.ObjectCacheTTL,
	})
}

// buildSearch opens the embedding index when an LLM endpoint is configured.
// The first configured model is used for embeddings.
func buildSearch(cfg *config.Config, logger *logrus.Logger) (search.Indexer, error) {
	if cfg.LLMAPIKey == "" || len(cfg.LLMModels) == 0 {
		if logger != nil {
			logger.Info("search disabled: no LLM API key or model configured")
		}
		return search.Disabled{}, nil
	}

	client, err := llm.NewClient(llm.ClientOptions{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMEndpoint,
		Logger:  logger,
	})
	if err != nil {
		return nil, eris.Wrap(err, "creating llm client")
	}

	embedder, err := llm.NewEmbedder(llm.EmbedderOptions{Client: client, Model: cfg.LLMModels[0]})
	if err != nil {
		return nil, eris.Wrap(err, "initialising embedder")
	}

	index, err := search.Open(search.Options{
		Path:     cfg.SearchIndexPath,
		Embedder: embedder,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}
