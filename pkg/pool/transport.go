package pool

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/redis/go-redis/v9"

	"github.com/DeBrosOfficial/rediscache/pkg/contracts"
)

// isTransport reports whether err came from the network rather than from the server.
// Error replies from the server are never transport errors.
func isTransport(err error) bool {
	if err == nil {
		return false
	}

	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return false
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, redis.ErrClosed):
		return true
	}
	return false
}

// classify wraps network failures in *contracts.TransportError and returns
// everything else unchanged.
func classify(addr string, err error) error {
	if isTransport(err) {
		return &contracts.TransportError{Addr: addr, Err: err}
	}
	return err
}
