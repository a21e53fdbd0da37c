// Package services wires the cache facade into a dependency-injection container.
package services

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
	"github.com/DeBrosOfficial/rediscache/pkg/contracts"
	"github.com/DeBrosOfficial/rediscache/pkg/logging"
	"github.com/DeBrosOfficial/rediscache/pkg/pool"
	"github.com/DeBrosOfficial/rediscache/pkg/rediscache"
)

// NewContainer returns a container that builds the facade on first use from
// cfg.RedisServers, the process-wide pool and a logger named after the facade.
//
// The container also provides *config.Config, *logging.ColoredLogger,
// *pool.Manager, contracts.ConnectionPool, *prometheus.Registry and
// *rediscache.Metrics.
func NewContainer(cfg *config.Config, logger *logging.ColoredLogger) (*dig.Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("services: nil config")
	}
	if logger == nil {
		return nil, fmt.Errorf("services: nil logger")
	}

	c := dig.New()
	providers := append([]any{
		func() *config.Config { return cfg },
		func() *logging.ColoredLogger { return logger },
	}, constructors()...)
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, fmt.Errorf("services: provide: %w", err)
		}
	}
	return c, nil
}

// Module provides the same components to an fx application. The application
// must supply *config.Config and *logging.ColoredLogger.
var Module = fx.Module("rediscache", fx.Provide(constructors()...))

func constructors() []any {
	return []any{
		newPool,
		func(m *pool.Manager) contracts.ConnectionPool { return m },
		prometheus.NewRegistry,
		newMetrics,
		newCache,
	}
}

func newPool(logger *logging.ColoredLogger) *pool.Manager {
	redis.SetLogger(logging.NewRedisLogger(logger, logging.ComponentPool))
	return pool.Singleton(logger.Named("pool"))
}

func newMetrics(reg *prometheus.Registry) *rediscache.Metrics {
	return rediscache.NewMetrics(reg)
}

func newCache(cfg *config.Config, p contracts.ConnectionPool, logger *logging.ColoredLogger, metrics *rediscache.Metrics) *rediscache.Cache {
	named := logger.Named("rediscache")
	named.Debug("Creating cache facade", zap.Strings("groups", cfg.RedisServers.Names()))

	return rediscache.New(cfg.RedisServers, p, named,
		rediscache.WithMetrics(metrics),
		rediscache.WithEvictOnFailedReconnect(cfg.Diagnostics.EvictOnFailedReconnect),
	)
}

// Cache resolves the facade from c, building it if needed.
func Cache(c *dig.Container) (*rediscache.Cache, error) {
	var out *rediscache.Cache
	if err := c.Invoke(func(cache *rediscache.Cache) { out = cache }); err != nil {
		return nil, fmt.Errorf("services: resolve cache: %w", err)
	}
	return out, nil
}

// Register makes c the source of rediscache.Default and rediscache.GetClient.
func Register(c *dig.Container) {
	rediscache.SetLocator(func() (*rediscache.Cache, error) {
		return Cache(c)
	})
}
