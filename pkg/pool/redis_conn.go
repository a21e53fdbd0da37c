package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
	"github.com/DeBrosOfficial/rediscache/pkg/contracts"
)

// RedisConn is one caller's reference to a go-redis client. Prefix and
// serializer are per reference even when the underlying client is shared.
type RedisConn struct {
	id         string
	addr       string
	client     *redis.Client
	persistent bool
	manager    *Manager

	mu     sync.RWMutex
	prefix string
	codec  Codec

	closeOnce sync.Once
	closeErr  error
}

var _ contracts.CacheHandle = (*RedisConn)(nil)

func newRedisConn(m *Manager, client *redis.Client, addr string, persistent bool, codec Codec) *RedisConn {
	return &RedisConn{
		id:         uuid.New().String(),
		addr:       addr,
		client:     client,
		persistent: persistent,
		manager:    m,
		codec:      codec,
	}
}

// Ping sends PING. A "PONG" reply is reported as true.
func (c *RedisConn) Ping(ctx context.Context) (any, error) {
	reply, err := c.client.Ping(ctx).Result()
	if err != nil {
		return nil, classify(c.addr, err)
	}
	if reply == "PONG" {
		return true, nil
	}
	return reply, nil
}

// SetOption implements contracts.CacheHandle.
func (c *RedisConn) SetOption(opt contracts.HandleOption, value string) error {
	return setOption(&c.mu, &c.prefix, &c.codec, opt, value)
}

// ID identifies this reference in logs.
func (c *RedisConn) ID() string { return c.id }

// Addr returns the server address.
func (c *RedisConn) Addr() string { return c.addr }

// Persistent reports whether the underlying client is shared.
func (c *RedisConn) Persistent() bool { return c.persistent }

// Client exposes the go-redis client for issuing commands.
func (c *RedisConn) Client() *redis.Client { return c.client }

// Prefix returns the current key prefix.
func (c *RedisConn) Prefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefix
}

// Key applies the prefix to k.
func (c *RedisConn) Key(k string) string {
	return c.Prefix() + k
}

// Codec returns the serializer currently selected for this reference.
func (c *RedisConn) Codec() Codec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.codec
}

// Encode serializes v with the selected codec.
func (c *RedisConn) Encode(v any) ([]byte, error) { return c.Codec().Marshal(v) }

// Decode deserializes data into v with the selected codec.
func (c *RedisConn) Decode(data []byte, v any) error { return c.Codec().Unmarshal(data, v) }

// Close releases the reference. Owned clients are closed; shared ones stay open.
func (c *RedisConn) Close() error {
	c.closeOnce.Do(func() {
		if c.persistent {
			return
		}
		c.closeErr = c.manager.release(context.Background(), redisCloser{c.client})
	})
	return c.closeErr
}

func (c *RedisConn) String() string {
	return fmt.Sprintf("redis[%s %s]", c.addr, c.id[:8])
}

func setOption(mu *sync.RWMutex, prefix *string, codec *Codec, opt contracts.HandleOption, value string) error {
	mu.Lock()
	defer mu.Unlock()

	switch opt {
	case contracts.OptPrefix:
		*prefix = value
	case contracts.OptSerializer:
		next, err := CodecFor(config.Serializer(value))
		if err != nil {
			return err
		}
		*codec = next
	default:
		return fmt.Errorf("unsupported handle option %s", opt)
	}
	return nil
}
