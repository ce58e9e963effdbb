// Package app builds the object graph: config in, ready-to-serve handler out.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/seralabs/tokend/internal/cache"
	"github.com/seralabs/tokend/internal/config"
	"github.com/seralabs/tokend/internal/grant"
	httpx "github.com/seralabs/tokend/internal/http"
	"github.com/seralabs/tokend/internal/http/handlers"
	"github.com/seralabs/tokend/internal/metrics"
	"github.com/seralabs/tokend/internal/oauth/facebook"
	"github.com/seralabs/tokend/internal/observability/logger"
	"github.com/seralabs/tokend/internal/store"
	"github.com/seralabs/tokend/internal/store/core"
)

type Container struct {
	Store   core.Repository
	Cache   cache.Client
	Grants  *grant.Service
	Handler http.Handler
}

// Build opens the store, resolves the first-party client and wires the
// grant engine behind its router. The first-party client must already be
// seeded; a missing one is a startup failure, not something to create on
// the fly.
func Build(ctx context.Context, cfg *config.Config) (*Container, error) {
	log := logger.Named("app")

	st, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	c, err := cache.New(cacheConfig(cfg))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	firstParty, err := st.FindClientByName(ctx, cfg.FirstParty.Client)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("resolve first-party client %q: %w", cfg.FirstParty.Client, err)
	}
	log.Info("first-party client resolved",
		zap.String("name", firstParty.Name), zap.String("id", firstParty.ID))

	fb := facebook.New(
		cfg.Facebook.AppID,
		cfg.Facebook.AppSecret,
		cfg.Facebook.RedirectURI,
		config.Duration(cfg.Facebook.Timeout),
	)

	svc := grant.New(st, *firstParty, fb, grant.Options{
		Accessible:       config.Duration(cfg.Token.Accessible),
		Refreshable:      config.Duration(cfg.Token.Refreshable),
		MinAccessibility: config.Duration(cfg.Token.MinAccessibility),
		RetryAttempts:    cfg.Refresh.RetryAttempts,
		RetryDelay:       config.Duration(cfg.Refresh.RetryDelay),
	}, metrics.NewGrants(prometheus.DefaultRegisterer))

	metricsHandler, err := httpx.RegisterMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	router := handlers.NewRouter(svc, st, c, config.Duration(cfg.Cache.DefaultTTL), metricsHandler)

	return &Container{
		Store:   st,
		Cache:   c,
		Grants:  svc,
		Handler: router,
	}, nil
}

func (c *Container) Close() error {
	return c.Store.Close()
}

func storeConfig(cfg *config.Config) store.Config {
	sc := store.Config{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
	}
	sc.Postgres.MaxConns = int32(cfg.Storage.Postgres.MaxConns)
	sc.Postgres.MinConns = int32(cfg.Storage.Postgres.MinConns)
	if cfg.Storage.Postgres.ConnMaxLifetime != "" {
		sc.Postgres.ConnMaxLifetime = config.Duration(cfg.Storage.Postgres.ConnMaxLifetime)
	}
	return sc
}

func cacheConfig(cfg *config.Config) cache.Config {
	cc := cache.Config{
		Kind:       cfg.Cache.Kind,
		DefaultTTL: config.Duration(cfg.Cache.DefaultTTL),
	}
	cc.Redis.Addr = cfg.Cache.Redis.Addr
	cc.Redis.DB = cfg.Cache.Redis.DB
	return cc
}
