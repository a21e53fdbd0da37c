package validate

import (
	"fmt"
	"time"
)

// ServerGroup represents one redis_servers entry for validation purposes.
type ServerGroup struct {
	Name           string
	Host           string
	Port           int
	Driver         string
	Serializer     string
	ConnectTimeout time.Duration
}

// ValidateServerGroups validates every group. An empty list is reported too:
// the facade cannot hand out connections without at least one group.
func ValidateServerGroups(groups []ServerGroup) []error {
	if len(groups) == 0 {
		return []error{ValidationError{
			Path:    "redis_servers",
			Message: "must not be empty",
			Hint:    "declare at least one group; the first one is the default",
		}}
	}

	var errs []error
	for _, g := range groups {
		errs = append(errs, ValidateServerGroup(g)...)
	}
	return errs
}

// ValidateServerGroup validates a single group entry.
func ValidateServerGroup(g ServerGroup) []error {
	var errs []error
	path := fmt.Sprintf("redis_servers.%s", g.Name)

	if g.Name == "" {
		errs = append(errs, ValidationError{
			Path:    "redis_servers",
			Message: "group name must not be empty",
		})
	}

	if g.Host == "" {
		errs = append(errs, ValidationError{
			Path:    path + ".host",
			Message: "must not be empty",
		})
	}

	if err := ValidatePort(g.Port); err != nil {
		errs = append(errs, ValidationError{
			Path:    path + ".port",
			Message: err.Error(),
		})
	}

	switch g.Driver {
	case "", "redis", "olric":
	default:
		errs = append(errs, ValidationError{
			Path:    path + ".options.driver",
			Message: fmt.Sprintf("invalid value %q", g.Driver),
			Hint:    "allowed values: redis, olric",
		})
	}

	switch g.Serializer {
	case "", "none", "default", "msgpack":
	default:
		errs = append(errs, ValidationError{
			Path:    path + ".options.serializer",
			Message: fmt.Sprintf("invalid value %q", g.Serializer),
			Hint:    "allowed values: none, default, msgpack",
		})
	}

	if g.ConnectTimeout < 0 {
		errs = append(errs, ValidationError{
			Path:    path + ".options.connect_timeout",
			Message: fmt.Sprintf("must not be negative; got %s", g.ConnectTimeout),
		})
	}

	return errs
}
