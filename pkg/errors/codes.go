package errors

// Error codes for categorizing errors.
const (
	// CodeOK indicates success (not an error).
	CodeOK = "OK"

	// CodeInvalidArgument indicates client specified an invalid argument.
	CodeInvalidArgument = "INVALID_ARGUMENT"

	// CodeDeadlineExceeded indicates operation deadline was exceeded.
	CodeDeadlineExceeded = "DEADLINE_EXCEEDED"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound = "NOT_FOUND"

	// CodeFailedPrecondition indicates the operation was rejected because the
	// process is not in a required state (e.g. a client capability is missing).
	CodeFailedPrecondition = "FAILED_PRECONDITION"

	// CodeInternal indicates internal errors.
	CodeInternal = "INTERNAL"

	// CodeUnavailable indicates the service is currently unavailable.
	CodeUnavailable = "UNAVAILABLE"

	// Domain-specific error codes

	// CodeTimeout indicates an operation timed out.
	CodeTimeout = "TIMEOUT"

	// CodeServiceUnavailable indicates a downstream service is unavailable.
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// CodeCacheError indicates a cache server answered but is not usable.
	CodeCacheError = "CACHE_ERROR"

	// CodeNetworkError indicates a network operation failed.
	CodeNetworkError = "NETWORK_ERROR"

	// CodeConfigError indicates a configuration error.
	CodeConfigError = "CONFIG_ERROR"

	// CodeSerializationError indicates serialization/deserialization failed.
	CodeSerializationError = "SERIALIZATION_ERROR"
)

// ErrorCategory represents a high-level error category.
type ErrorCategory string

const (
	// CategoryClient indicates a caller-side error.
	CategoryClient ErrorCategory = "CLIENT_ERROR"

	// CategoryServer indicates a server-side error.
	CategoryServer ErrorCategory = "SERVER_ERROR"

	// CategoryNetwork indicates a network-related error.
	CategoryNetwork ErrorCategory = "NETWORK_ERROR"

	// CategoryTimeout indicates a timeout error.
	CategoryTimeout ErrorCategory = "TIMEOUT_ERROR"

	// CategoryConfig indicates a deployment misconfiguration.
	CategoryConfig ErrorCategory = "CONFIG_ERROR"
)

// GetCategory returns the category for an error code.
func GetCategory(code string) ErrorCategory {
	switch code {
	case CodeInvalidArgument, CodeNotFound:
		return CategoryClient

	case CodeConfigError, CodeFailedPrecondition:
		return CategoryConfig

	case CodeTimeout, CodeDeadlineExceeded:
		return CategoryTimeout

	case CodeNetworkError, CodeServiceUnavailable, CodeUnavailable, CodeCacheError:
		return CategoryNetwork

	default:
		return CategoryServer
	}
}

// IsRetryable returns true if an error with the given code may succeed on a later attempt.
func IsRetryable(code string) bool {
	switch code {
	case CodeTimeout, CodeDeadlineExceeded,
		CodeServiceUnavailable, CodeUnavailable,
		CodeNetworkError, CodeCacheError:
		return true
	default:
		return false
	}
}
