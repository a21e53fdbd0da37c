package rediscache

import (
	"errors"

	rcerrors "github.com/DeBrosOfficial/rediscache/pkg/errors"
)

// Kind classifies why GetConnection returned no handle.
type Kind string

const (
	// KindCapabilityUnavailable: no connection pool is wired in. Fatal.
	KindCapabilityUnavailable Kind = "capability_unavailable"
	// KindConfigurationMissing: no server groups are configured.
	KindConfigurationMissing Kind = "configuration_missing"
	// KindUnknownGroup: the requested group is not configured.
	KindUnknownGroup Kind = "unknown_group"
	// KindInvalidServerEntry: the group's host or port is unusable. Fatal.
	KindInvalidServerEntry Kind = "invalid_server_entry"
	// KindConnectFailed: the pool returned no handle.
	KindConnectFailed Kind = "connect_failed"
	// KindConnectionUnhealthy: the server answered PING with something other than PONG.
	KindConnectionUnhealthy Kind = "connection_unhealthy"
	// KindTransport: PING failed at the network level.
	KindTransport Kind = "transport"
)

func (k Kind) code() string {
	switch k {
	case KindCapabilityUnavailable, KindInvalidServerEntry:
		return rcerrors.CodeConfigError
	case KindConfigurationMissing, KindUnknownGroup:
		return rcerrors.CodeNotFound
	case KindConnectFailed:
		return rcerrors.CodeServiceUnavailable
	case KindConnectionUnhealthy:
		return rcerrors.CodeCacheError
	case KindTransport:
		return rcerrors.CodeNetworkError
	default:
		return rcerrors.CodeInternal
	}
}

// AcquireError is returned by GetConnection whenever the handle is nil.
type AcquireError struct {
	*rcerrors.BaseError
	Kind  Kind
	Group string
}

func newAcquireError(kind Kind, group, message string, cause error) *AcquireError {
	return &AcquireError{
		BaseError: rcerrors.NewBaseError(kind.code(), message, cause),
		Kind:      kind,
		Group:     group,
	}
}

// IsFatal reports whether err signals a deployment misconfiguration that
// callers should not paper over by skipping the cache.
func IsFatal(err error) bool {
	var acqErr *AcquireError
	if !errors.As(err, &acqErr) {
		return false
	}
	code := acqErr.Code()
	return !rcerrors.IsRetryable(code) && rcerrors.GetCategory(code) == rcerrors.CategoryConfig
}

// KindOf returns the kind of an *AcquireError in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var acqErr *AcquireError
	if errors.As(err, &acqErr) {
		return acqErr.Kind
	}
	return ""
}
