// Package config loads the gateway configuration from an optional YAML file,
// a .env file and PORTALGRAPH_* environment variables, in that order of
// increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PORTALGRAPH_"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Pretty          bool          `yaml:"pretty"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	MetadataHeaders []string      `yaml:"metadataHeaders"`
	ActorHeader     string        `yaml:"actorHeader"`
	Introspection   bool          `yaml:"introspection"`
}

type TransportConfig struct {
	// Backends maps a fully-qualified gRPC service name, or "*", to its
	// endpoints.
	Backends            map[string][]string `yaml:"backends"`
	MaxConnsPerEndpoint int                 `yaml:"maxConnsPerEndpoint"`
	RPCTimeout          time.Duration       `yaml:"rpcTimeout"`
}

type GatewayConfig struct {
	DefaultActor         int64    `yaml:"defaultActor"`
	Locales              []string `yaml:"locales"`
	MaxConcurrentBatches int      `yaml:"maxConcurrentBatches"`
}

type TelemetryConfig struct {
	OTelEndpoint string `yaml:"otelEndpoint"`
	ServiceName  string `yaml:"serviceName"`
	MetricsAddr  string `yaml:"metricsAddr"`
	LogLevel     string `yaml:"logLevel"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			Timeout:       10 * time.Second,
			MaxBodyBytes:  1 << 20,
			ActorHeader:   "X-User-Id",
			Introspection: true,
		},
		Transport: TransportConfig{
			Backends:            map[string][]string{},
			MaxConnsPerEndpoint: 2,
			RPCTimeout:          3 * time.Second,
		},
		Gateway: GatewayConfig{
			Locales: []string{"en_US"},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "portalgraph",
			LogLevel:    "info",
		},
	}
}

// Load reads path (skipped when empty) over the defaults, then the .env
// files in envFiles (missing ones are ignored), then the environment.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = splitList(v)
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := getenv(EnvPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int64) {
		if v := getenv(EnvPrefix + key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := getenv(EnvPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("SERVER_ADDR", &c.Server.Addr)
	boolean("SERVER_PRETTY", &c.Server.Pretty)
	duration("SERVER_TIMEOUT", &c.Server.Timeout)
	integer("SERVER_MAX_BODY_BYTES", &c.Server.MaxBodyBytes)
	list("SERVER_CORS_ORIGINS", &c.Server.CORSOrigins)
	list("SERVER_METADATA_HEADERS", &c.Server.MetadataHeaders)
	str("SERVER_ACTOR_HEADER", &c.Server.ActorHeader)
	boolean("SERVER_INTROSPECTION", &c.Server.Introspection)

	if v := getenv(EnvPrefix + "TRANSPORT_BACKENDS"); v != "" {
		for _, mapping := range splitList(v) {
			if err := c.Transport.AddBackend(mapping); err != nil {
				errs = append(errs, err)
			}
		}
	}
	maxConns := int64(c.Transport.MaxConnsPerEndpoint)
	integer("TRANSPORT_MAX_CONNS_PER_ENDPOINT", &maxConns)
	c.Transport.MaxConnsPerEndpoint = int(maxConns)
	duration("TRANSPORT_RPC_TIMEOUT", &c.Transport.RPCTimeout)

	integer("GATEWAY_DEFAULT_ACTOR", &c.Gateway.DefaultActor)
	list("GATEWAY_LOCALES", &c.Gateway.Locales)
	batches := int64(c.Gateway.MaxConcurrentBatches)
	integer("GATEWAY_MAX_CONCURRENT_BATCHES", &batches)
	c.Gateway.MaxConcurrentBatches = int(batches)

	str("OTEL_ENDPOINT", &c.Telemetry.OTelEndpoint)
	str("OTEL_SERVICE", &c.Telemetry.ServiceName)
	str("METRICS_ADDR", &c.Telemetry.MetricsAddr)
	str("LOG_LEVEL", &c.Telemetry.LogLevel)

	return errors.Join(errs...)
}

// AddBackend adds a "Service=host:port" mapping.
func (t *TransportConfig) AddBackend(mapping string) error {
	svc, ep, ok := strings.Cut(mapping, "=")
	svc, ep = strings.TrimSpace(svc), strings.TrimSpace(ep)
	if !ok || svc == "" || ep == "" {
		return fmt.Errorf("invalid backend %q", mapping)
	}
	if t.Backends == nil {
		t.Backends = map[string][]string{}
	}
	t.Backends[svc] = append(t.Backends[svc], ep)
	return nil
}

// Validate reports every setting the gateway cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Transport.Backends) == 0 {
		errs = append(errs, errors.New("no backend mappings provided"))
	}
	if c.Transport.MaxConnsPerEndpoint < 1 {
		errs = append(errs, errors.New("transport.maxConnsPerEndpoint must be positive"))
	}
	if c.Server.ActorHeader == "" {
		errs = append(errs, errors.New("server.actorHeader must not be empty"))
	}
	for _, l := range c.Gateway.Locales {
		if _, err := language.Parse(strings.ReplaceAll(l, "_", "-")); err != nil {
			errs = append(errs, fmt.Errorf("gateway.locales: %q: %w", l, err))
		}
	}
	if c.Gateway.MaxConcurrentBatches < 0 {
		errs = append(errs, errors.New("gateway.maxConcurrentBatches must not be negative"))
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
