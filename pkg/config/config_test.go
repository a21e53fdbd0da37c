package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const sampleConfig = `
logging:
  level: debug
  format: json
redis_servers:
  sessions:
    host: 10.0.0.5
    port: 6380
    options:
      connect_timeout: 2.5
      persistent: true
      password: "${RC_TEST_PASSWORD}"
      serializer: msgpack
      prefix: "sess:"
  cache:
    host: 127.0.0.1
    port: 6379
    options:
      connect_timeout: 250ms
  archive:
    host: 10.0.0.9
    port: 3320
    options:
      driver: olric
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rediscache.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadPreservesGroupOrder(t *testing.T) {
	t.Setenv("RC_TEST_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	names := cfg.RedisServers.Names()
	want := []string{"sessions", "cache", "archive"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("group order = %v, want %v", names, want)
	}

	first, ok := cfg.RedisServers.First()
	if !ok || first.Name != "sessions" {
		t.Fatalf("First() = %+v, %v", first, ok)
	}

	sessions := first.Server
	if sessions.Address() != "10.0.0.5:6380" {
		t.Errorf("Address() = %q", sessions.Address())
	}
	if sessions.Options.ConnectTimeoutOrDefault() != 2500*time.Millisecond {
		t.Errorf("connect timeout = %s", sessions.Options.ConnectTimeoutOrDefault())
	}
	if !sessions.Options.Persistent {
		t.Error("expected persistent")
	}
	if sessions.Options.Password != "s3cret" {
		t.Errorf("password not expanded: %q", sessions.Options.Password)
	}
	if sessions.Options.Serializer != SerializerMsgpack {
		t.Errorf("serializer = %q", sessions.Options.Serializer)
	}
	if sessions.Options.Prefix != "sess:" {
		t.Errorf("prefix = %q", sessions.Options.Prefix)
	}

	cache, ok := cfg.RedisServers.Lookup("cache")
	if !ok {
		t.Fatal("expected cache group")
	}
	if cache.Options.ConnectTimeoutOrDefault() != 250*time.Millisecond {
		t.Errorf("cache connect timeout = %s", cache.Options.ConnectTimeoutOrDefault())
	}
	if cache.Options.DriverOrDefault() != DriverRedis {
		t.Errorf("cache driver = %q", cache.Options.DriverOrDefault())
	}

	archive, _ := cfg.RedisServers.Lookup("archive")
	if archive.Options.DriverOrDefault() != DriverOlric {
		t.Errorf("archive driver = %q", archive.Options.DriverOrDefault())
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Diagnostics.ListenAddr != "127.0.0.1:9180" {
		t.Errorf("expected default listen addr, got %q", cfg.Diagnostics.ListenAddr)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"top level", "redis_server: {}\n"},
		{"group", "redis_servers:\n  cache:\n    hostname: x\n    port: 1\n"},
		{"options", "redis_servers:\n  cache:\n    host: x\n    port: 1\n    options:\n      timeout: 1\n"},
		{"duplicate group", "redis_servers:\n  cache:\n    host: a\n    port: 1\n  cache:\n    host: b\n    port: 2\n"},
		{"bad timeout", "redis_servers:\n  cache:\n    host: a\n    port: 1\n    options:\n      connect_timeout: soon\n"},
		{"not a mapping", "redis_servers:\n  - cache\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error, got none")
			}
		})
	}
}

func TestLoadNullGroupIsZero(t *testing.T) {
	cfg, err := Load(writeConfig(t, "redis_servers:\n  cache: ~\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	server, ok := cfg.RedisServers.Lookup("cache")
	if !ok {
		t.Fatal("expected cache group to be declared")
	}
	if !server.IsZero() {
		t.Errorf("expected zero server entry, got %+v", server)
	}
}

func TestServerOptionsMerge(t *testing.T) {
	base := ServerOptions{Prefix: "a:", Persistent: true, Serializer: SerializerNone}

	merged := base.Merge(WithPrefix("b:"), WithPersistent(false), nil, WithConnectTimeout(3*time.Second))

	if merged.Prefix != "b:" {
		t.Errorf("caller prefix should win, got %q", merged.Prefix)
	}
	if merged.Persistent {
		t.Error("caller persistent=false should win")
	}
	if merged.Serializer != SerializerNone {
		t.Errorf("untouched option changed: %q", merged.Serializer)
	}
	if merged.ConnectTimeoutOrDefault() != 3*time.Second {
		t.Errorf("timeout = %s", merged.ConnectTimeoutOrDefault())
	}
	if base.Prefix != "a:" {
		t.Error("Merge must not modify the receiver")
	}
}

func TestServerOptionsDefaults(t *testing.T) {
	var o ServerOptions
	if o.ConnectTimeoutOrDefault() != DefaultConnectTimeout {
		t.Errorf("default timeout = %s", o.ConnectTimeoutOrDefault())
	}
	if o.SerializerOrDefault() != SerializerDefault {
		t.Errorf("default serializer = %q", o.SerializerOrDefault())
	}
	if o.DriverOrDefault() != DriverRedis {
		t.Errorf("default driver = %q", o.DriverOrDefault())
	}
}

func TestServerGroupsMarshalRoundTripOrder(t *testing.T) {
	groups := ServerGroups{
		{Name: "zeta", Server: ServerGroupConfig{Host: "z", Port: 1}},
		{Name: "alpha", Server: ServerGroupConfig{Host: "a", Port: 2}},
	}

	out, err := yaml.Marshal(struct {
		RedisServers ServerGroups `yaml:"redis_servers"`
	}{groups})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var back struct {
		RedisServers ServerGroups `yaml:"redis_servers"`
	}
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v\n%s", err, out)
	}
	if got := strings.Join(back.RedisServers.Names(), ","); got != "zeta,alpha" {
		t.Errorf("order after round trip = %s", got)
	}
}

func TestDefaultPathAbsolute(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "x.yaml")
	got, err := DefaultPath(abs)
	if err != nil || got != abs {
		t.Errorf("DefaultPath(%q) = %q, %v", abs, got, err)
	}
}
