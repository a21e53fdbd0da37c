// Package pool is the process-wide connection pool manager behind the cache facade.
//
// It creates client connections for a "host:port" address and a set of
// config.ServerOptions. Persistent connections are shared by every caller in
// the process that asks for the same server and credentials; non-persistent
// ones belong to the handle that created them and close with it.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	olriclib "github.com/olric-data/olric"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
	"github.com/DeBrosOfficial/rediscache/pkg/contracts"
	rcerrors "github.com/DeBrosOfficial/rediscache/pkg/errors"
)

// ErrClosed is returned by GetConnection after Close.
var ErrClosed = rcerrors.NewServiceError("pool", "pool: manager closed", nil)

var (
	singleton     *Manager
	singletonOnce sync.Once
)

// Singleton returns the process-wide manager, creating it on first use.
// The logger passed on later calls is ignored.
func Singleton(logger *zap.Logger) *Manager {
	singletonOnce.Do(func() {
		singleton = New(logger)
	})
	return singleton
}

type sharedKey struct {
	driver   config.Driver
	addr     string
	password string
}

type closer interface {
	close(ctx context.Context) error
}

type redisCloser struct{ client *redis.Client }

func (r redisCloser) close(context.Context) error { return r.client.Close() }

type olricCloser struct{ client olricClient }

func (o olricCloser) close(ctx context.Context) error { return o.client.Close(ctx) }

// Stats is a point-in-time view of the manager's connections.
type Stats struct {
	Shared int `json:"shared"`
	Owned  int `json:"owned"`
}

// Manager creates and tracks client connections. It implements contracts.ConnectionPool.
type Manager struct {
	logger *zap.Logger

	mu          sync.Mutex
	closed      bool
	sharedRedis map[sharedKey]*redis.Client
	sharedOlric map[sharedKey]olricClient
	owned       map[closer]struct{}

	newRedis func(*redis.Options) *redis.Client
	newOlric func(addrs []string) (olricClient, error)
}

var _ contracts.ConnectionPool = (*Manager)(nil)

// New creates a manager. Most callers want Singleton; New exists for tests and
// for hosts that scope pools explicitly.
func New(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:      logger,
		sharedRedis: make(map[sharedKey]*redis.Client),
		sharedOlric: make(map[sharedKey]olricClient),
		owned:       make(map[closer]struct{}),
		newRedis:    redis.NewClient,
		newOlric: func(addrs []string) (olricClient, error) {
			return olriclib.NewClusterClient(addrs)
		},
	}
}

// GetConnection returns a handle for addr using the driver selected in opts.
// The key prefix is not applied here; callers set it with SetOption(OptPrefix, ...).
func (m *Manager) GetConnection(ctx context.Context, addr string, opts config.ServerOptions) (contracts.CacheHandle, error) {
	codec, err := CodecFor(opts.SerializerOrDefault())
	if err != nil {
		return nil, err
	}

	switch driver := opts.DriverOrDefault(); driver {
	case config.DriverRedis:
		conn, err := m.redisConnection(addr, opts, codec)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case config.DriverOlric:
		conn, err := m.olricConnection(addr, opts, codec)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return nil, rcerrors.NewConfigError("driver", fmt.Sprintf("unsupported driver %q", driver))
	}
}

func (m *Manager) redisOptions(addr string, opts config.ServerOptions) *redis.Options {
	return &redis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DialTimeout: opts.ConnectTimeoutOrDefault(),
	}
}

func (m *Manager) redisConnection(addr string, opts config.ServerOptions, codec Codec) (*RedisConn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	if opts.Persistent {
		key := sharedKey{driver: config.DriverRedis, addr: addr, password: opts.Password}
		client, ok := m.sharedRedis[key]
		if !ok {
			client = m.newRedis(m.redisOptions(addr, opts))
			m.sharedRedis[key] = client
			m.logger.Debug("Opened persistent redis connection", zap.String("addr", addr))
		}
		return newRedisConn(m, client, addr, true, codec), nil
	}

	client := m.newRedis(m.redisOptions(addr, opts))
	conn := newRedisConn(m, client, addr, false, codec)
	m.owned[redisCloser{client}] = struct{}{}
	return conn, nil
}

func (m *Manager) olricConnection(addr string, opts config.ServerOptions, codec Codec) (*OlricConn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	timeout := opts.ConnectTimeoutOrDefault()

	if opts.Persistent {
		key := sharedKey{driver: config.DriverOlric, addr: addr}
		client, ok := m.sharedOlric[key]
		if !ok {
			var err error
			client, err = m.newOlric([]string{addr})
			if err != nil {
				return nil, rcerrors.NewServiceError("olric", "failed to create Olric cluster client", err)
			}
			m.sharedOlric[key] = client
			m.logger.Debug("Opened persistent olric connection", zap.String("addr", addr))
		}
		return newOlricConn(m, client, addr, true, timeout, codec), nil
	}

	client, err := m.newOlric([]string{addr})
	if err != nil {
		return nil, rcerrors.NewServiceError("olric", "failed to create Olric cluster client", err)
	}
	m.owned[olricCloser{client}] = struct{}{}
	return newOlricConn(m, client, addr, false, timeout, codec), nil
}

// release closes an owned client and forgets it.
func (m *Manager) release(ctx context.Context, c closer) error {
	m.mu.Lock()
	_, ok := m.owned[c]
	delete(m.owned, c)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return c.close(ctx)
}

// Stats reports how many shared and owned clients are open.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Shared: len(m.sharedRedis) + len(m.sharedOlric),
		Owned:  len(m.owned),
	}
}

// Close closes every client the manager opened. Handles obtained earlier stop working.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	closers := make([]closer, 0, len(m.sharedRedis)+len(m.sharedOlric)+len(m.owned))
	for _, client := range m.sharedRedis {
		closers = append(closers, redisCloser{client})
	}
	for _, client := range m.sharedOlric {
		closers = append(closers, olricCloser{client})
	}
	for c := range m.owned {
		closers = append(closers, c)
	}
	m.sharedRedis = make(map[sharedKey]*redis.Client)
	m.sharedOlric = make(map[sharedKey]olricClient)
	m.owned = make(map[closer]struct{})
	m.mu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c.close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		m.logger.Warn("Errors while closing pool", zap.Int("count", len(errs)))
	}
	return errors.Join(errs...)
}
