package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
)

func TestNewLoggerFromConfigJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.log")

	logger, err := NewLoggerFromConfig(config.LoggingConfig{
		Level:      "warn",
		Format:     "json",
		OutputFile: path,
	}, ComponentCache)
	if err != nil {
		t.Fatalf("NewLoggerFromConfig() error = %v", err)
	}

	logger.ComponentInfo(ComponentCache, "dropped below level")
	logger.ComponentWarn(ComponentCache, "kept")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d:\n%s", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "[CACHE] kept" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
	if entry["component"] != "CACHE" {
		t.Errorf("unexpected component %v", entry["component"])
	}
}

func TestNewLoggerFromConfigInvalidLevel(t *testing.T) {
	if _, err := NewLoggerFromConfig(config.LoggingConfig{Level: "loud"}, ComponentGeneral); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestRedisLoggerTrimsNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redis.log")
	logger, err := NewFileLogger(ComponentPool, path, false)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	NewRedisLogger(logger, ComponentPool).Printf(context.Background(), "redis: discarding bad conn: %s\n", "EOF")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "[POOL] redis: discarding bad conn: EOF") {
		t.Errorf("unexpected log output %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("expected a single line, got %q", out)
	}
}
