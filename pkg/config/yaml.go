package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DecodeStrict decodes YAML from a reader and rejects any unknown fields.
// This ensures the YAML only contains recognized configuration keys.
func DecodeStrict(r io.Reader, out interface{}) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads a config file, layering it over DefaultConfig. Passwords may reference
// environment variables (${REDIS_PASSWORD}); they are expanded here.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	if err := DecodeStrict(f, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for i := range cfg.RedisServers {
		opts := &cfg.RedisServers[i].Server.Options
		opts.Password = os.ExpandEnv(opts.Password)
	}

	return cfg, nil
}
