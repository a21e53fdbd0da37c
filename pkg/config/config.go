package config

// Config is the top-level configuration file for a process hosting the cache facade.
type Config struct {
	Logging      LoggingConfig     `yaml:"logging"`
	Diagnostics  DiagnosticsConfig `yaml:"diagnostics"`
	RedisServers ServerGroups      `yaml:"redis_servers"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	OutputFile string `yaml:"output_file"` // Empty for stdout
}

// DiagnosticsConfig controls the diagnostics HTTP server and facade behavior knobs.
type DiagnosticsConfig struct {
	ListenAddr string `yaml:"listen_addr"` // e.g. "127.0.0.1:9180"

	// EvictOnFailedReconnect drops a group's cached connection when a forced
	// reconnection fails. Off by default: the stale handle stays cached.
	EvictOnFailedReconnect bool `yaml:"evict_on_failed_reconnect"`
}

// DefaultConfig returns a config with logging and diagnostics defaults and no server groups.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Diagnostics: DiagnosticsConfig{
			ListenAddr: "127.0.0.1:9180",
		},
	}
}
