// Package config loads the YAML description of a JSON-RPC client and assembles it.
//
// Every key can be overridden from the environment with the JRPC_ prefix, e.g.
// JRPC_TRANSPORT_ADDRESS or JRPC_AUTH_PASSWORD.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"mini-jsonrpc/codec"
	"mini-jsonrpc/idgen"
	"mini-jsonrpc/loadbalance"
	"mini-jsonrpc/protocol"
	"mini-jsonrpc/transport"
)

const EnvPrefix = "JRPC"

type Config struct {
	Transport  TransportConfig  `mapstructure:"transport"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	Client     ClientConfig     `mapstructure:"client"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Log        LogConfig        `mapstructure:"log"`
}

type TransportConfig struct {
	Kind     string            `mapstructure:"kind"`    // "http", "tcp", "unix" or "websocket"
	Address  string            `mapstructure:"address"` // URL for http/websocket, host:port or socket path otherwise
	Timeout  time.Duration     `mapstructure:"timeout"`
	PoolSize int               `mapstructure:"pool_size"`
	Framing  string            `mapstructure:"framing"` // "raw" or "content-length"
	Headers  map[string]string `mapstructure:"headers"`
}

type AuthConfig struct {
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	CookieFile string `mapstructure:"cookie_file"`
	Required   bool   `mapstructure:"required"` // reject a config without credentials
}

type ProxyConfig struct {
	Address  string `mapstructure:"address"` // SOCKS5 host:port, empty for a direct connection
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type ClientConfig struct {
	Codec string `mapstructure:"codec"` // "json" or "go-json"
	ID    string `mapstructure:"id"`    // "counter" or "uuid"
}

type MiddlewareConfig struct {
	RateLimit   float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	Burst       int           `mapstructure:"burst"`
	Retries     int           `mapstructure:"retries"` // refused connections only
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	CallTimeout time.Duration `mapstructure:"call_timeout"` // bounds a call across retries, 0 disables
	Log         bool          `mapstructure:"log"`
	Verbose     bool          `mapstructure:"verbose"` // also log response bodies
}

type DiscoveryConfig struct {
	EtcdEndpoints []string      `mapstructure:"etcd_endpoints"`
	Endpoints     []string      `mapstructure:"endpoints"` // static alternative to etcd
	Service       string        `mapstructure:"service"`
	Balancer      string        `mapstructure:"balancer"`
	HashKey       string        `mapstructure:"hash_key"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
}

// Enabled reports whether exchanges are spread over discovered endpoints instead of
// transport.address.
func (d DiscoveryConfig) Enabled() bool {
	return len(d.EtcdEndpoints) > 0 || len(d.Endpoints) > 0
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport.kind", "http")
	v.SetDefault("transport.address", "http://127.0.0.1:8332")
	v.SetDefault("transport.timeout", 30*time.Second)
	v.SetDefault("transport.pool_size", 1)
	v.SetDefault("transport.framing", "raw")
	v.SetDefault("auth.user", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.cookie_file", "")
	v.SetDefault("auth.required", false)
	v.SetDefault("proxy.address", "")
	v.SetDefault("proxy.user", "")
	v.SetDefault("proxy.password", "")
	v.SetDefault("client.codec", "json")
	v.SetDefault("client.id", "counter")
	v.SetDefault("middleware.rate_limit", 0)
	v.SetDefault("middleware.burst", 1)
	v.SetDefault("middleware.retries", 0)
	v.SetDefault("middleware.retry_delay", 100*time.Millisecond)
	v.SetDefault("middleware.log", false)
	v.SetDefault("middleware.call_timeout", 0)
	v.SetDefault("middleware.verbose", false)
	v.SetDefault("discovery.etcd_endpoints", []string{})
	v.SetDefault("discovery.endpoints", []string{})
	v.SetDefault("discovery.service", "")
	v.SetDefault("discovery.balancer", "round-robin")
	v.SetDefault("discovery.hash_key", "")
	v.SetDefault("discovery.dial_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads the YAML file at path, applies JRPC_* environment overrides and
// validates the result. An empty path loads defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Viper lowercases map keys; HTTP header names are re-read from the YAML so
	// servers that compare them case-sensitively still match.
	if path != "" {
		//nolint:gosec // config file path comes from the command line
		data, err := os.ReadFile(path)
		if err == nil {
			var raw struct {
				Transport struct {
					Headers map[string]string `yaml:"headers"`
				} `yaml:"transport"`
			}
			if yaml.Unmarshal(data, &raw) == nil && len(raw.Transport.Headers) > 0 {
				cfg.Transport.Headers = raw.Transport.Headers
			}
		}
	}

	cfg.Auth.CookieFile = expandHome(cfg.Auth.CookieFile)
	cfg.Transport.Kind = strings.ToLower(cfg.Transport.Kind)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every enumerated setting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport.Kind {
	case "http", "tcp", "unix", "websocket":
	default:
		errs = append(errs, fmt.Errorf("invalid transport.kind: %q (must be http, tcp, unix or websocket)", c.Transport.Kind))
	}
	if c.Transport.Address == "" && !c.Discovery.Enabled() {
		errs = append(errs, errors.New("transport.address is required"))
	}
	if c.Transport.Timeout < 0 {
		errs = append(errs, fmt.Errorf("invalid transport.timeout: %s", c.Transport.Timeout))
	}
	if _, err := protocol.ParseFraming(c.Transport.Framing); err != nil {
		errs = append(errs, fmt.Errorf("invalid transport.framing: %w", err))
	}
	if _, err := codec.ParseType(c.Client.Codec); err != nil {
		errs = append(errs, fmt.Errorf("invalid client.codec: %w", err))
	}
	if _, ok := idgen.New(c.Client.ID); !ok {
		errs = append(errs, fmt.Errorf("invalid client.id: %q (must be counter or uuid)", c.Client.ID))
	}
	if c.Auth.CookieFile != "" && (c.Auth.User != "" || c.Auth.Password != "") {
		errs = append(errs, errors.New("auth: set either user/password or cookie_file, not both"))
	}
	if c.Auth.Required {
		if err := transport.RequireAuth(authFrom(c.Auth)); err != nil {
			errs = append(errs, fmt.Errorf("auth.required: %w", err))
		}
	}
	if c.Middleware.RateLimit < 0 || c.Middleware.Retries < 0 || c.Middleware.CallTimeout < 0 {
		errs = append(errs, errors.New("middleware: rate_limit, retries and call_timeout must not be negative"))
	}
	if c.Discovery.Enabled() {
		if c.Discovery.Service == "" && len(c.Discovery.EtcdEndpoints) > 0 {
			errs = append(errs, errors.New("discovery.service is required with etcd_endpoints"))
		}
		if _, err := loadbalance.New(c.Discovery.Balancer, c.Discovery.HashKey); err != nil {
			errs = append(errs, fmt.Errorf("invalid discovery.balancer: %w", err))
		}
	}

	return errors.Join(errs...)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
