package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HTTPError represents an HTTP error response.
type HTTPError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	TraceID string            `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status code for an error.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return codeToHTTPStatus(customErr.Code())
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

// codeToHTTPStatus maps error codes to HTTP status codes.
func codeToHTTPStatus(code string) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDeadlineExceeded, CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable, CodeServiceUnavailable, CodeNetworkError, CodeCacheError:
		return http.StatusServiceUnavailable
	case CodeConfigError, CodeFailedPrecondition, CodeInternal, CodeSerializationError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTPError converts an error to an HTTPError.
func ToHTTPError(err error, traceID string) *HTTPError {
	if err == nil {
		return &HTTPError{
			Status:  http.StatusOK,
			Code:    CodeOK,
			Message: "success",
			TraceID: traceID,
		}
	}

	httpErr := &HTTPError{
		Status:  StatusCode(err),
		TraceID: traceID,
		Details: make(map[string]string),
	}

	var customErr Error
	if errors.As(err, &customErr) {
		httpErr.Code = customErr.Code()
		httpErr.Message = err.Error()
	} else {
		httpErr.Code = CodeInternal
		httpErr.Message = err.Error()
	}

	var (
		notFoundErr *NotFoundError
		configErr   *ConfigError
		networkErr  *NetworkError
		serviceErr  *ServiceError
	)

	switch {
	case errors.As(err, &notFoundErr):
		if notFoundErr.Resource != "" {
			httpErr.Details["resource"] = notFoundErr.Resource
		}
		if notFoundErr.ID != "" {
			httpErr.Details["id"] = notFoundErr.ID
		}
	case errors.As(err, &configErr):
		if configErr.Key != "" {
			httpErr.Details["key"] = configErr.Key
		}
	case errors.As(err, &networkErr):
		if networkErr.Addr != "" {
			httpErr.Details["addr"] = networkErr.Addr
		}
	case errors.As(err, &serviceErr):
		if serviceErr.Service != "" {
			httpErr.Details["service"] = serviceErr.Service
		}
	}

	return httpErr
}

// WriteHTTPError writes an error response to an http.ResponseWriter.
func WriteHTTPError(w http.ResponseWriter, err error, traceID string) {
	httpErr := ToHTTPError(err, traceID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpErr.Status)
	_ = json.NewEncoder(w).Encode(httpErr)
}
