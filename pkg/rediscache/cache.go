// Package rediscache hands out health-checked cache connections by server group.
//
// A Cache resolves a group name to its configured server, obtains a handle
// from the connection pool, applies the key prefix, pings the server and keeps
// the handle for the rest of the request (or process) scope. Connectivity
// failures come back as a nil handle plus a non-fatal *AcquireError so callers
// can skip caching; the most recent ping failure is also kept as LastError.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
	"github.com/DeBrosOfficial/rediscache/pkg/contracts"
	rcerrors "github.com/DeBrosOfficial/rediscache/pkg/errors"
)

// defaultKey caches the connection for calls that name no group. It cannot
// collide with a configured name, so the first group may be cached twice.
const defaultKey = "\x00default"

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics records acquisitions in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithEvictOnFailedReconnect drops the cached handle when a forced reconnect
// fails. By default the old handle stays cached and later non-forced calls
// still return it.
func WithEvictOnFailedReconnect(evict bool) Option {
	return func(c *Cache) { c.evictOnFailure = evict }
}

// Cache is the connection facade. It is safe for concurrent use.
type Cache struct {
	servers        config.ServerGroups
	pool           contracts.ConnectionPool
	logger         *zap.Logger
	metrics        *Metrics
	evictOnFailure bool

	flight singleflight.Group

	mu        sync.Mutex
	conns     map[string]contracts.CacheHandle
	lastError string
}

// New creates a facade over servers. A nil pool is accepted so that hosts
// without a cache client still start; every acquisition then fails with
// KindCapabilityUnavailable.
func New(servers config.ServerGroups, pool contracts.ConnectionPool, logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		servers: servers,
		pool:    pool,
		logger:  logger,
		conns:   make(map[string]contracts.CacheHandle),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetConnection returns a live handle for group, or for the first configured
// group when group is empty. A cached handle is returned without any I/O
// unless newConnection is set. opts override the group's configured options.
//
// On failure the handle is nil and the error is an *AcquireError; use IsFatal
// to tell misconfiguration from runtime connectivity problems.
func (c *Cache) GetConnection(ctx context.Context, group string, newConnection bool, opts ...config.ServerOption) (contracts.CacheHandle, error) {
	handle, result, err := c.acquire(ctx, group, newConnection, opts)
	c.metrics.observe(c.metricLabel(group), result)
	return handle, err
}

// metricLabel keeps the group label bounded to configured names.
func (c *Cache) metricLabel(group string) string {
	if group == "" {
		return "default"
	}
	if _, ok := c.servers.Lookup(group); !ok {
		return "unknown"
	}
	return group
}

func (c *Cache) acquire(ctx context.Context, group string, newConnection bool, opts []config.ServerOption) (contracts.CacheHandle, string, error) {
	if c.pool == nil {
		err := newAcquireError(KindCapabilityUnavailable, group, "no cache connection pool is available", nil)
		return nil, string(err.Kind), err
	}

	if len(c.servers) == 0 {
		c.logger.Error("redis_servers must be configured for the cache to function")
		err := newAcquireError(KindConfigurationMissing, group, "no redis server groups configured", nil)
		return nil, string(err.Kind), err
	}

	key, entry, resolveErr := c.resolve(group)
	if resolveErr != nil {
		return nil, string(resolveErr.Kind), resolveErr
	}

	if !newConnection {
		if handle := c.cached(key); handle != nil {
			return handle, resultReused, nil
		}
	}

	if err := validateEntry(entry); err != nil {
		return nil, string(err.Kind), err
	}

	if newConnection {
		handle, err := c.connect(ctx, key, entry, opts)
		if err != nil {
			c.onForcedFailure(key)
			return nil, string(err.Kind), err
		}
		return handle, resultConnected, nil
	}

	// Concurrent first acquisitions of the same key share one connect and ping.
	// The shared attempt is detached from caller cancellation and bounded by the
	// group's connect timeout. Each caller still stops waiting on its own ctx.
	timeout := entry.Server.Options.Merge(opts...).ConnectTimeoutOrDefault()
	ch := c.flight.DoChan(key, func() (any, error) {
		if handle := c.cached(key); handle != nil {
			return handle, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		handle, acqErr := c.connect(fctx, key, entry, opts)
		if acqErr != nil {
			return nil, acqErr
		}
		return handle, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var acqErr *AcquireError
			if errors.As(res.Err, &acqErr) {
				return nil, string(acqErr.Kind), res.Err
			}
			return nil, string(KindConnectFailed), res.Err
		}
		return res.Val.(contracts.CacheHandle), resultConnected, nil
	case <-ctx.Done():
		err := newAcquireError(KindTransport, entry.Name,
			fmt.Sprintf("gave up waiting for connection to %s", entry.Server.Address()), ctx.Err())
		return nil, string(err.Kind), err
	}
}

// resolve maps a requested group to its cache key and server entry.
func (c *Cache) resolve(group string) (string, config.ServerGroup, *AcquireError) {
	if group == "" {
		first, _ := c.servers.First()
		return defaultKey, first, nil
	}

	server, ok := c.servers.Lookup(group)
	if !ok {
		c.logger.Error("Missing redis server group", zap.String("group", group))
		return "", config.ServerGroup{}, newAcquireError(KindUnknownGroup, group,
			fmt.Sprintf("redis server group '%s' not found", group), nil)
	}
	return group, config.ServerGroup{Name: group, Server: server}, nil
}

func validateEntry(entry config.ServerGroup) *AcquireError {
	s := entry.Server
	switch {
	case s.IsZero():
		return newAcquireError(KindInvalidServerEntry, entry.Name,
			fmt.Sprintf("redis server group '%s' has an empty server entry", entry.Name), nil)
	case s.Host == "":
		return newAcquireError(KindInvalidServerEntry, entry.Name,
			fmt.Sprintf("redis server group '%s' has no host", entry.Name), nil)
	case s.Port < 1 || s.Port > 65535:
		return newAcquireError(KindInvalidServerEntry, entry.Name,
			fmt.Sprintf("redis server group '%s' has invalid port %d", entry.Name, s.Port), nil)
	}
	return nil
}

// connect obtains, configures and pings a new handle, caching it on success.
func (c *Cache) connect(ctx context.Context, key string, entry config.ServerGroup, opts []config.ServerOption) (contracts.CacheHandle, *AcquireError) {
	merged := entry.Server.Options.Merge(opts...)
	addr := entry.Server.Address()
	logger := c.logger.With(zap.String("group", entry.Name), zap.String("addr", addr))

	handle, err := c.pool.GetConnection(ctx, addr, merged)
	if err != nil || handle == nil {
		logger.Warn("Connection pool returned no connection", zap.Error(err))
		return nil, newAcquireError(KindConnectFailed, entry.Name,
			fmt.Sprintf("no connection to %s", addr), err)
	}

	if merged.Prefix != "" {
		if err := handle.SetOption(contracts.OptPrefix, merged.Prefix); err != nil {
			handle.Close()
			logger.Warn("Failed to set key prefix", zap.Error(err))
			return nil, newAcquireError(KindConnectFailed, entry.Name,
				fmt.Sprintf("failed to set key prefix on %s", addr), err)
		}
	}

	reply, err := handle.Ping(ctx)
	if err != nil {
		handle.Close()
		c.setLastError(err.Error())

		var transportErr *contracts.TransportError
		if errors.As(err, &transportErr) {
			logger.Warn("Redis transport error during ping", zap.Error(err))
			return nil, newAcquireError(KindTransport, entry.Name,
				fmt.Sprintf("transport error pinging %s", addr), err)
		}
		logger.Warn("Redis ping failed", zap.Error(err))
		return nil, newAcquireError(KindConnectionUnhealthy, entry.Name,
			fmt.Sprintf("ping to %s failed", addr), err)
	}

	if !healthy(reply) {
		handle.Close()
		msg := fmt.Sprintf("unexpected PING reply from %s: %v", addr, reply)
		c.setLastError(msg)
		logger.Warn("Redis ping returned unexpected reply", zap.Any("reply", reply))
		return nil, newAcquireError(KindConnectionUnhealthy, entry.Name, msg, nil)
	}

	c.mu.Lock()
	prev := c.conns[key]
	c.conns[key] = handle
	n := len(c.conns)
	c.mu.Unlock()
	c.metrics.setCached(n)

	// A forced reconnect replaces the cached handle, which may own a client.
	if prev != nil && prev != handle {
		if err := prev.Close(); err != nil {
			logger.Debug("Failed to close replaced connection", zap.Error(err))
		}
	}

	logger.Debug("Connected to redis server group")
	return handle, nil
}

// healthy accepts both forms client libraries use to acknowledge PING.
func healthy(reply any) bool {
	switch v := reply.(type) {
	case bool:
		return v
	case string:
		return v == contracts.PingOK
	}
	return false
}

func (c *Cache) cached(key string) contracts.CacheHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns[key]
}

func (c *Cache) onForcedFailure(key string) {
	if !c.evictOnFailure {
		return
	}

	c.mu.Lock()
	stale, ok := c.conns[key]
	delete(c.conns, key)
	n := len(c.conns)
	c.mu.Unlock()

	if ok {
		stale.Close()
		c.metrics.setCached(n)
	}
}

func (c *Cache) setLastError(msg string) {
	c.mu.Lock()
	c.lastError = msg
	c.mu.Unlock()
}

// LastError returns the text of the most recent ping failure, or "" if none
// has happened. Successful acquisitions do not clear it.
func (c *Cache) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// Groups returns the configured group names in configuration order.
func (c *Cache) Groups() []string {
	return c.servers.Names()
}

// Cached reports whether a handle is held for group ("" for the default group).
func (c *Cache) Cached(group string) bool {
	key := group
	if key == "" {
		key = defaultKey
	}
	return c.cached(key) != nil
}

// Close releases every cached handle. The Cache can be used again afterwards.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	conns := c.conns
	c.conns = make(map[string]contracts.CacheHandle)
	c.mu.Unlock()
	c.metrics.setCached(0)

	var errs []error
	for key, handle := range conns {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := handle.Close(); err != nil {
			errs = append(errs, rcerrors.Wrapf(err, "close %q", groupLabel(key)))
		}
	}
	return errors.Join(errs...)
}

func groupLabel(key string) string {
	if key == defaultKey {
		return "default"
	}
	return key
}
