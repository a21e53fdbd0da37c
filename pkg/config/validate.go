package config

import (
	"github.com/DeBrosOfficial/rediscache/pkg/config/validate"
)

// Validate performs validation of the entire config.
// It aggregates all errors and returns them, allowing the caller to print all issues at once.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, validate.ValidateLogging(validate.LoggingConfig{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		OutputFile: c.Logging.OutputFile,
	})...)

	if c.Diagnostics.ListenAddr != "" {
		if err := validate.ValidateHostPort(c.Diagnostics.ListenAddr); err != nil {
			errs = append(errs, validate.ValidationError{
				Path:    "diagnostics.listen_addr",
				Message: err.Error(),
			})
		}
	}

	groups := make([]validate.ServerGroup, 0, len(c.RedisServers))
	for _, g := range c.RedisServers {
		groups = append(groups, validate.ServerGroup{
			Name:           g.Name,
			Host:           g.Server.Host,
			Port:           g.Server.Port,
			Driver:         string(g.Server.Options.Driver),
			Serializer:     string(g.Server.Options.Serializer),
			ConnectTimeout: g.Server.Options.ConnectTimeout.Duration(),
		})
	}
	errs = append(errs, validate.ValidateServerGroups(groups)...)

	return errs
}
