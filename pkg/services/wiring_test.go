package services

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
	"github.com/DeBrosOfficial/rediscache/pkg/logging"
	"github.com/DeBrosOfficial/rediscache/pkg/rediscache"
)

func testLogger() *logging.ColoredLogger {
	return &logging.ColoredLogger{Logger: zap.NewNop()}
}

func TestNewContainer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RedisServers = config.ServerGroups{
		{Name: "cache", Server: config.ServerGroupConfig{Host: "127.0.0.1", Port: 6379}},
		{Name: "jobs", Server: config.ServerGroupConfig{Host: "127.0.0.1", Port: 6380}},
	}

	c, err := NewContainer(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}

	first, err := Cache(c)
	if err != nil {
		t.Fatalf("Cache: %v", err)
	}
	second, err := Cache(c)
	if err != nil {
		t.Fatalf("Cache: %v", err)
	}
	if first != second {
		t.Error("container should build the facade once")
	}

	groups := first.Groups()
	if len(groups) != 2 || groups[0] != "cache" || groups[1] != "jobs" {
		t.Errorf("Groups = %v", groups)
	}
}

func TestNewContainer_NilArgs(t *testing.T) {
	if _, err := NewContainer(nil, testLogger()); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewContainer(config.DefaultConfig(), nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestRegister(t *testing.T) {
	t.Cleanup(func() { rediscache.SetLocator(nil) })

	cfg := config.DefaultConfig()
	c, err := NewContainer(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	Register(c)

	viaLocator, err := rediscache.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	direct, err := Cache(c)
	if err != nil {
		t.Fatalf("Cache: %v", err)
	}
	if viaLocator != direct {
		t.Error("locator should resolve the container's facade")
	}

	// No groups configured: the legacy accessor reports it without a handle.
	h, err := rediscache.GetClient(context.Background(), "")
	if h != nil {
		t.Errorf("handle = %v, want nil", h)
	}
	if rediscache.KindOf(err) != rediscache.KindConfigurationMissing {
		t.Errorf("kind = %q, want %q", rediscache.KindOf(err), rediscache.KindConfigurationMissing)
	}
}
