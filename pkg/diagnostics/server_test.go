package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
	"github.com/DeBrosOfficial/rediscache/pkg/contracts"
	"github.com/DeBrosOfficial/rediscache/pkg/logging"
	"github.com/DeBrosOfficial/rediscache/pkg/pool"
	"github.com/DeBrosOfficial/rediscache/pkg/rediscache"
)

type stubHandle struct {
	err error
}

func (h *stubHandle) Ping(context.Context) (any, error) { return h.err == nil, h.err }

func (h *stubHandle) SetOption(contracts.HandleOption, string) error { return nil }

func (h *stubHandle) Close() error { return nil }

type stubPool struct {
	failAddr string
}

func (p *stubPool) GetConnection(_ context.Context, addr string, _ config.ServerOptions) (contracts.CacheHandle, error) {
	if addr == p.failAddr {
		return &stubHandle{err: &contracts.TransportError{Addr: addr, Err: errors.New("connection refused")}}, nil
	}
	return &stubHandle{}, nil
}

type stubStats struct{}

func (stubStats) Stats() pool.Stats { return pool.Stats{Shared: 1, Owned: 2} }

func newTestServer(t *testing.T) (*Server, *rediscache.Cache) {
	t.Helper()

	servers := config.ServerGroups{
		{Name: "cache", Server: config.ServerGroupConfig{Host: "10.0.0.1", Port: 6379,
			Options: config.ServerOptions{Prefix: "wiki:", Password: "hunter2"}}},
		{Name: "down", Server: config.ServerGroupConfig{Host: "10.0.0.9", Port: 6379}},
	}
	reg := prometheus.NewRegistry()
	cache := rediscache.New(servers, &stubPool{failAddr: "10.0.0.9:6379"}, zap.NewNop(),
		rediscache.WithMetrics(rediscache.NewMetrics(reg)))

	logger := &logging.ColoredLogger{Logger: zap.NewNop()}
	s, err := New(logger, config.DiagnosticsConfig{ListenAddr: "127.0.0.1:0"}, servers, cache, stubStats{}, reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, cache
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestGroups(t *testing.T) {
	s, cache := newTestServer(t)
	if _, err := cache.GetConnection(context.Background(), "cache", false); err != nil {
		t.Fatalf("GetConnection: %v", err)
	}

	w := do(t, s, http.MethodGet, "/v1/cache/groups", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "hunter2") {
		t.Error("password leaked in response")
	}

	var body struct {
		Groups []GroupInfo `json:"groups"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Groups) != 2 {
		t.Fatalf("groups = %+v", body.Groups)
	}
	first := body.Groups[0]
	if first.Name != "cache" || first.Addr != "10.0.0.1:6379" || first.Prefix != "wiki:" || !first.Cached {
		t.Errorf("first group = %+v", first)
	}
	if first.Driver != config.DriverRedis || first.Serializer != config.SerializerDefault {
		t.Errorf("defaults not reported: %+v", first)
	}
	if body.Groups[1].Cached {
		t.Error("second group should not be cached")
	}
}

func TestConnect(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
		wantRetry  bool
	}{
		{"named group", `{"group":"cache"}`, http.StatusOK, "", false},
		{"default group with empty body", ``, http.StatusOK, "", false},
		{"forced", `{"group":"cache","new":true}`, http.StatusOK, "", false},
		{"unknown group", `{"group":"nope"}`, http.StatusNotFound, "NOT_FOUND", false},
		{"unreachable server", `{"group":"down"}`, http.StatusServiceUnavailable, "NETWORK_ERROR", true},
		{"bad json", `{"group":`, http.StatusBadRequest, "INVALID_ARGUMENT", false},
		{"unknown field", `{"grp":"cache"}`, http.StatusBadRequest, "INVALID_ARGUMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			w := do(t, s, http.MethodPost, "/v1/cache/connect", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := w.Header().Get("Retry-After") != ""; got != tt.wantRetry {
				t.Errorf("Retry-After set = %v, want %v", got, tt.wantRetry)
			}
			if tt.wantCode == "" {
				var resp ConnectResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Status != "ok" {
					t.Errorf("response = %s", w.Body.String())
				}
				return
			}
			var resp struct {
				Code string `json:"code"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestGroup(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/v1/cache/groups/down", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var info GroupInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Name != "down" || info.Addr != "10.0.0.9:6379" || info.Cached {
		t.Errorf("group = %+v", info)
	}

	w = do(t, s, http.MethodGet, "/v1/cache/groups/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "NOT_FOUND" || resp.Details["id"] != "nope" {
		t.Errorf("response = %s", w.Body.String())
	}
}

func TestStatus(t *testing.T) {
	s, cache := newTestServer(t)
	ctx := context.Background()
	cache.GetConnection(ctx, "cache", false)
	cache.GetConnection(ctx, "down", false)

	w := do(t, s, http.MethodGet, "/v1/cache/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var status Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.LastError != "connection refused" {
		t.Errorf("last_error = %q", status.LastError)
	}
	if len(status.Cached) != 1 || status.Cached[0] != "cache" {
		t.Errorf("cached = %v", status.Cached)
	}
	if status.Pool != (pool.Stats{Shared: 1, Owned: 2}) {
		t.Errorf("pool = %+v", status.Pool)
	}
}

func TestMetrics(t *testing.T) {
	s, cache := newTestServer(t)
	cache.GetConnection(context.Background(), "cache", false)

	w := do(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `rediscache_acquisitions_total{group="cache",result="connected"} 1`) {
		t.Errorf("metrics output missing acquisition counter:\n%s", body)
	}
	if !strings.Contains(body, "rediscache_cached_connections 1") {
		t.Errorf("metrics output missing cached gauge:\n%s", body)
	}
}

func TestMetrics_UnknownGroupLabel(t *testing.T) {
	s, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		do(t, s, http.MethodPost, "/v1/cache/connect", fmt.Sprintf(`{"group":"attacker-%d"}`, i))
	}

	body := do(t, s, http.MethodGet, "/metrics", "").Body.String()
	if strings.Contains(body, "attacker-") {
		t.Errorf("caller-supplied group leaked into labels:\n%s", body)
	}
	if !strings.Contains(body, `rediscache_acquisitions_total{group="unknown",result="unknown_group"} 3`) {
		t.Errorf("metrics output missing unknown group counter:\n%s", body)
	}
}

func TestNew_NilCache(t *testing.T) {
	if _, err := New(nil, config.DiagnosticsConfig{}, nil, nil, nil, nil); err == nil {
		t.Error("expected error for nil cache")
	}
}

func TestStartStop(t *testing.T) {
	s, _ := newTestServer(t)
	ln, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		s.Serve(ln)
		close(done)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	<-done
}

func TestConnect_LogsErrorDetails(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := &logging.ColoredLogger{Logger: zap.New(core)}
	servers := config.ServerGroups{
		{Name: "cache", Server: config.ServerGroupConfig{Host: "10.0.0.1", Port: 6379}},
	}
	cache := rediscache.New(servers, nil, zap.NewNop())
	s, err := New(logger, config.DiagnosticsConfig{}, servers, cache, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w := do(t, s, http.MethodPost, "/v1/cache/connect", `{"group":"cache"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if w.Header().Get("Retry-After") != "" {
		t.Error("misconfiguration should not ask clients to retry")
	}

	entries := logs.FilterMessageSnippet("Connect request failed").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["code"] != "CONFIG_ERROR" || fields["retryable"] != false {
		t.Errorf("fields = %v", fields)
	}
	if stack, _ := fields["stack"].(string); !strings.Contains(stack, "rediscache") {
		t.Errorf("stack = %q, want a trace through the cache package", stack)
	}
}
