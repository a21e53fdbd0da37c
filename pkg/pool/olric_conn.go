package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	olriclib "github.com/olric-data/olric"

	"github.com/DeBrosOfficial/rediscache/pkg/contracts"
	rcerrors "github.com/DeBrosOfficial/rediscache/pkg/errors"
)

// olricClient is the part of olric.Client the pool uses.
type olricClient interface {
	NewDMap(name string, options ...olriclib.DMapOption) (olriclib.DMap, error)
	Ping(ctx context.Context, address, message string) (string, error)
	Close(ctx context.Context) error
}

// OlricConn is one caller's reference to an Olric cluster client.
type OlricConn struct {
	id         string
	addr       string
	client     olricClient
	persistent bool
	timeout    time.Duration
	manager    *Manager

	mu     sync.RWMutex
	prefix string
	codec  Codec

	closeOnce sync.Once
	closeErr  error
}

var _ contracts.CacheHandle = (*OlricConn)(nil)

func newOlricConn(m *Manager, client olricClient, addr string, persistent bool, timeout time.Duration, codec Codec) *OlricConn {
	return &OlricConn{
		id:         uuid.New().String(),
		addr:       addr,
		client:     client,
		persistent: persistent,
		timeout:    timeout,
		manager:    m,
		codec:      codec,
	}
}

// Ping asks the member at addr for a PONG. The olric client has no dial
// timeout of its own, so connect_timeout bounds the call.
func (c *OlricConn) Ping(ctx context.Context) (any, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply, err := c.client.Ping(ctx, c.addr, "")
	if err != nil {
		return nil, classify(c.addr, err)
	}
	if reply == "PONG" {
		return true, nil
	}
	return reply, nil
}

// SetOption implements contracts.CacheHandle.
func (c *OlricConn) SetOption(opt contracts.HandleOption, value string) error {
	return setOption(&c.mu, &c.prefix, &c.codec, opt, value)
}

// ID identifies this reference in logs.
func (c *OlricConn) ID() string { return c.id }

// Addr returns the member address.
func (c *OlricConn) Addr() string { return c.addr }

// Prefix returns the current prefix applied to DMap names.
func (c *OlricConn) Prefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefix
}

// Codec returns the serializer currently selected for this reference.
func (c *OlricConn) Codec() Codec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.codec
}

// DMap opens the distributed map name with the prefix applied.
func (c *OlricConn) DMap(name string) (olriclib.DMap, error) {
	full := c.Prefix() + name
	dm, err := c.client.NewDMap(full)
	if err != nil {
		if isTransport(err) {
			return nil, rcerrors.NewNetworkError(c.addr, err)
		}
		return nil, rcerrors.NewServiceError("olric", fmt.Sprintf("failed to open DMap %q", full), err)
	}
	return dm, nil
}

// Close releases the reference. Owned clients are closed; shared ones stay open.
func (c *OlricConn) Close() error {
	c.closeOnce.Do(func() {
		if c.persistent {
			return
		}
		c.closeErr = c.manager.release(context.Background(), olricCloser{c.client})
	})
	return c.closeErr
}
