//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"testing"
	"time"
)

// GetRedisAddr returns the Redis server used by the e2e suite.
func GetRedisAddr() string {
	if addr := os.Getenv("REDISCACHE_E2E_REDIS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// GetRedisPassword returns the password for GetRedisAddr, if any.
func GetRedisPassword() string {
	return os.Getenv("REDISCACHE_E2E_REDIS_PASSWORD")
}

// GetOlricAddr returns the Olric member used by the e2e suite.
func GetOlricAddr() string {
	if addr := os.Getenv("REDISCACHE_E2E_OLRIC"); addr != "" {
		return addr
	}
	return "localhost:3320"
}

func reachable(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// SkipIfMissingRedis skips the test if the Redis server is not reachable.
func SkipIfMissingRedis(t *testing.T) {
	t.Helper()
	if !reachable(GetRedisAddr()) {
		t.Skipf("Redis not reachable at %s; tests skipped", GetRedisAddr())
	}
}

// SkipIfMissingOlric skips the test if the Olric member is not reachable.
func SkipIfMissingOlric(t *testing.T) {
	t.Helper()
	if !reachable(GetOlricAddr()) {
		t.Skipf("Olric not reachable at %s; tests skipped", GetOlricAddr())
	}
}

// HTTPRequest is a helper for calling the diagnostics API.
type HTTPRequest struct {
	Method  string
	URL     string
	Body    interface{}
	Timeout time.Duration
}

// Do executes the request and returns the response body and status.
func (hr *HTTPRequest) Do(ctx context.Context) ([]byte, int, error) {
	if hr.Timeout == 0 {
		hr.Timeout = 10 * time.Second
	}

	var reqBody io.Reader
	if hr.Body != nil {
		data, err := json.Marshal(hr.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, hr.Method, hr.URL, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if hr.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: hr.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// GenerateUniqueID generates a unique identifier for test keys and prefixes.
func GenerateUniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano(), rand.Intn(10000))
}
