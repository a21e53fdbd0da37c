package contracts

import (
	"context"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
)

// PingOK is the textual acknowledgement older client libraries return from PING.
// Newer ones return boolean true; both mean healthy.
const PingOK = "+PONG"

// HandleOption names a per-handle setting applied after the pool returns it.
type HandleOption int

const (
	// OptPrefix sets the key prefix. The pool manager does not apply it itself.
	OptPrefix HandleOption = iota + 1
	// OptSerializer sets the payload serializer (see config.Serializer).
	OptSerializer
)

func (o HandleOption) String() string {
	switch o {
	case OptPrefix:
		return "prefix"
	case OptSerializer:
		return "serializer"
	default:
		return "unknown"
	}
}

// CacheHandle is a live connection to a cache server obtained from a ConnectionPool.
type CacheHandle interface {
	// Ping checks liveness. Healthy replies are boolean true or PingOK.
	// Network failures are reported as *TransportError.
	Ping(ctx context.Context) (any, error)

	// SetOption configures the handle, e.g. SetOption(OptPrefix, "wiki:").
	SetOption(opt HandleOption, value string) error

	// Close releases the handle. Shared (persistent) connections stay open
	// for other holders.
	Close() error
}

// ConnectionPool creates or reuses connections to cache servers.
// Implementations are usually process-wide singletons.
type ConnectionPool interface {
	// GetConnection returns a handle for addr ("host:port") configured with opts.
	// A nil handle or a non-nil error both mean no usable connection.
	GetConnection(ctx context.Context, addr string, opts config.ServerOptions) (CacheHandle, error)
}

// TransportError reports a network-level failure while talking to a cache server.
// Error returns the underlying message unchanged so it can be surfaced verbatim.
type TransportError struct {
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport error"
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
