package errors

import "errors"

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr) || errors.Is(err, ErrNotFound)
}

// IsNetwork checks if an error indicates a transport-level failure.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}

	var networkErr *NetworkError
	return errors.As(err, &networkErr)
}

// IsServiceUnavailable checks if an error indicates a service is unavailable.
func IsServiceUnavailable(err error) bool {
	if err == nil {
		return false
	}

	var serviceErr *ServiceError
	return errors.As(err, &serviceErr) || errors.Is(err, ErrServiceUnavailable)
}

// ShouldRetry checks if an operation should be retried based on the error.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if IsNetwork(err) || IsServiceUnavailable(err) {
		return true
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return IsRetryable(customErr.Code())
	}

	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	if err == nil {
		return CodeOK
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Code()
	}

	switch {
	case IsNotFound(err):
		return CodeNotFound
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case IsServiceUnavailable(err):
		return CodeServiceUnavailable
	default:
		return CodeInternal
	}
}

// GetErrorMessage extracts a human-readable message from an error.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Message()
	}

	return err.Error()
}

// Cause returns the underlying cause of an error.
// It unwraps the error chain until it finds the root cause.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		underlying := unwrapper.Unwrap()
		if underlying == nil {
			return err
		}
		err = underlying
	}
}
