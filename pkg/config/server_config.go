package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConnectTimeout is used when a group does not set connect_timeout.
const DefaultConnectTimeout = 1 * time.Second

// Driver selects the client library a group is served by.
type Driver string

const (
	DriverRedis Driver = "redis"
	DriverOlric Driver = "olric"
)

// Serializer names the payload serializer a handle should use. The facade only
// forwards it; the handle applies it.
type Serializer string

const (
	SerializerNone    Serializer = "none"
	SerializerDefault Serializer = "default"
	SerializerMsgpack Serializer = "msgpack"
)

// Valid reports whether s is a known serializer. Empty means default.
func (s Serializer) Valid() bool {
	switch s {
	case "", SerializerNone, SerializerDefault, SerializerMsgpack:
		return true
	}
	return false
}

// Timeout is a duration that accepts either a Go duration string ("1500ms")
// or a bare number of seconds (1.5) in YAML.
type Timeout time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Timeout) UnmarshalYAML(node *yaml.Node) error {
	var secs float64
	if err := node.Decode(&secs); err == nil {
		*t = Timeout(secs * float64(time.Second))
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: timeout must be a duration or number of seconds", node.Line)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid timeout %q: %w", node.Line, s, err)
	}
	*t = Timeout(d)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (t Timeout) MarshalYAML() (interface{}, error) {
	return time.Duration(t).String(), nil
}

// Duration returns t as a time.Duration.
func (t Timeout) Duration() time.Duration {
	return time.Duration(t)
}

// ServerOptions are the per-group connection options forwarded to the pool manager.
type ServerOptions struct {
	Driver         Driver     `yaml:"driver"`          // redis (default) or olric
	ConnectTimeout Timeout    `yaml:"connect_timeout"` // default 1s
	Persistent     bool       `yaml:"persistent"`      // share the connection across requests
	Password       string     `yaml:"password"`        // sent in clear text; no AUTH when empty
	Serializer     Serializer `yaml:"serializer"`      // none, default, msgpack
	Prefix         string     `yaml:"prefix"`          // key prefix applied after connect
}

// ConnectTimeoutOrDefault returns the configured connect timeout or DefaultConnectTimeout.
func (o ServerOptions) ConnectTimeoutOrDefault() time.Duration {
	if o.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return o.ConnectTimeout.Duration()
}

// DriverOrDefault returns the configured driver, falling back to redis.
func (o ServerOptions) DriverOrDefault() Driver {
	if o.Driver == "" {
		return DriverRedis
	}
	return o.Driver
}

// SerializerOrDefault returns the configured serializer, falling back to SerializerDefault.
func (o ServerOptions) SerializerOrDefault() Serializer {
	if o.Serializer == "" {
		return SerializerDefault
	}
	return o.Serializer
}

// ServerOption overrides a single connection option. Caller-supplied options are
// applied after the group's own, so they win on collision.
type ServerOption func(*ServerOptions)

// Merge returns a copy of o with overrides applied in order.
func (o ServerOptions) Merge(overrides ...ServerOption) ServerOptions {
	merged := o
	for _, apply := range overrides {
		if apply != nil {
			apply(&merged)
		}
	}
	return merged
}

func WithDriver(d Driver) ServerOption {
	return func(o *ServerOptions) { o.Driver = d }
}

func WithConnectTimeout(d time.Duration) ServerOption {
	return func(o *ServerOptions) { o.ConnectTimeout = Timeout(d) }
}

func WithPersistent(persistent bool) ServerOption {
	return func(o *ServerOptions) { o.Persistent = persistent }
}

func WithPassword(password string) ServerOption {
	return func(o *ServerOptions) { o.Password = password }
}

func WithSerializer(s Serializer) ServerOption {
	return func(o *ServerOptions) { o.Serializer = s }
}

func WithPrefix(prefix string) ServerOption {
	return func(o *ServerOptions) { o.Prefix = prefix }
}

// ServerGroupConfig points a named group at one backing server.
type ServerGroupConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Options ServerOptions `yaml:"options"`
}

// IsZero reports whether the entry is empty, e.g. a group declared with a null value.
func (s ServerGroupConfig) IsZero() bool {
	return s == ServerGroupConfig{}
}

// Address returns the host:port identifier handed to the pool manager.
func (s ServerGroupConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ServerGroup is one named entry of ServerGroups.
type ServerGroup struct {
	Name   string
	Server ServerGroupConfig
}

// ServerGroups is an ordered mapping of group name to server config. Order matters:
// the first group is the default when a caller does not name one, so the YAML
// mapping order is preserved instead of decoding into a Go map.
type ServerGroups []ServerGroup

// UnmarshalYAML implements yaml.Unmarshaler, keeping mapping order.
func (g *ServerGroups) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*g = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: redis_servers must be a mapping of group name to server", node.Line)
	}

	groups := make(ServerGroups, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		var name string
		if err := keyNode.Decode(&name); err != nil {
			return fmt.Errorf("line %d: invalid group name: %w", keyNode.Line, err)
		}
		if seen[name] {
			return fmt.Errorf("line %d: duplicate server group %q", keyNode.Line, name)
		}
		seen[name] = true

		if err := checkKnownKeys(valueNode, name, serverGroupKeys); err != nil {
			return err
		}
		if optionsNode := mappingValue(valueNode, "options"); optionsNode != nil {
			if err := checkKnownKeys(optionsNode, name+".options", serverOptionKeys); err != nil {
				return err
			}
		}

		var server ServerGroupConfig
		if err := valueNode.Decode(&server); err != nil {
			return fmt.Errorf("server group %q: %w", name, err)
		}
		groups = append(groups, ServerGroup{Name: name, Server: server})
	}

	*g = groups
	return nil
}

var (
	serverGroupKeys  = []string{"host", "port", "options"}
	serverOptionKeys = []string{"driver", "connect_timeout", "persistent", "password", "serializer", "prefix"}
)

// checkKnownKeys rejects unknown keys in a group mapping. Node.Decode does not
// inherit the outer decoder's KnownFields setting, so groups are checked here.
func checkKnownKeys(node *yaml.Node, path string, allowed []string) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		known := false
		for _, a := range allowed {
			if key == a {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("line %d: field %s not found in server group %s", node.Content[i].Line, key, path)
		}
	}
	return nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler, emitting groups in order.
func (g ServerGroups) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, group := range g {
		var value yaml.Node
		if err := value.Encode(group.Server); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: group.Name},
			&value,
		)
	}
	return node, nil
}

// Lookup returns the server config for name.
func (g ServerGroups) Lookup(name string) (ServerGroupConfig, bool) {
	for _, group := range g {
		if group.Name == name {
			return group.Server, true
		}
	}
	return ServerGroupConfig{}, false
}

// First returns the default group, i.e. the first one declared.
func (g ServerGroups) First() (ServerGroup, bool) {
	if len(g) == 0 {
		return ServerGroup{}, false
	}
	return g[0], true
}

// Names returns group names in declaration order.
func (g ServerGroups) Names() []string {
	names := make([]string, 0, len(g))
	for _, group := range g {
		names = append(names, group.Name)
	}
	return names
}
