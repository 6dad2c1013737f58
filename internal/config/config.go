package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Router   RouterConfig   `yaml:"router"`
	Traffic  TrafficConfig  `yaml:"traffic"`
	Security SecurityConfig `yaml:"security"`

	Integration IntegrationConfig `yaml:"integration"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents API server configuration
type APIConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig represents database configuration. An empty DSN keeps
// records in memory.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	ClientID          string        `yaml:"client_id"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RouterConfig tunes how the router is reached. The address and
// credentials live in the stored router settings.
type RouterConfig struct {
	RESTTimeout    time.Duration `yaml:"rest_timeout"`
	RESTPort       int           `yaml:"rest_port"`
	RESTInsecure   bool          `yaml:"rest_insecure"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	DefaultPort    int           `yaml:"default_port"`
	WANMarker      string        `yaml:"wan_marker"`
	// Transports lists the attempt order, "rest" and "binary"
	Transports []string `yaml:"transports"`
}

// TrafficConfig represents the traffic poller configuration
type TrafficConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Interface   string        `yaml:"interface"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

// SecurityConfig holds the key sealing stored router passwords
type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

// IntegrationConfig forwards published router events to external systems.
// A sink with an empty endpoint or broker is off.
type IntegrationConfig struct {
	HTTP HTTPIntegrationConfig `yaml:"http"`
	MQTT MQTTIntegrationConfig `yaml:"mqtt"`
}

// HTTPIntegrationConfig posts each event as JSON to Endpoint
type HTTPIntegrationConfig struct {
	Endpoint string            `yaml:"endpoint"`
	Headers  map[string]string `yaml:"headers"`
	Timeout  time.Duration     `yaml:"timeout"`
}

// MQTTIntegrationConfig publishes each event under TopicPrefix
type MQTTIntegrationConfig struct {
	BrokerURL   string `yaml:"broker_url"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	TLS         bool   `yaml:"tls"`
}

// Enabled reports whether any sink is configured
func (c IntegrationConfig) Enabled() bool {
	return c.HTTP.Endpoint != "" || c.MQTT.BrokerURL != ""
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies env overrides and defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply environment overrides
	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if key := os.Getenv("ENCRYPTION_KEY"); key != "" {
		c.Security.EncryptionKey = key
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "netbill-router"
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8090
	}
	if len(c.API.AllowedOrigins) == 0 {
		c.API.AllowedOrigins = []string{"*"}
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if c.NATS.ClientID == "" {
		c.NATS.ClientID = c.Server.Name
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 10
	}
	if c.NATS.ReconnectInterval == 0 {
		c.NATS.ReconnectInterval = 2 * time.Second
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Router.RESTTimeout == 0 {
		c.Router.RESTTimeout = 5 * time.Second
	}
	if c.Router.DialTimeout == 0 {
		c.Router.DialTimeout = 10 * time.Second
	}
	if c.Router.CommandTimeout == 0 {
		c.Router.CommandTimeout = 30 * time.Second
	}
	if c.Router.DefaultPort == 0 {
		c.Router.DefaultPort = 8728
	}
	if len(c.Router.Transports) == 0 {
		c.Router.Transports = []string{"rest", "binary"}
	}
	if c.Traffic.Interval == 0 {
		c.Traffic.Interval = 5 * time.Second
	}
	if c.Traffic.MetricsAddr == "" {
		c.Traffic.MetricsAddr = ":9108"
	}
	if c.Integration.HTTP.Timeout == 0 {
		c.Integration.HTTP.Timeout = 30 * time.Second
	}
	if c.Integration.MQTT.ClientID == "" {
		c.Integration.MQTT.ClientID = c.Server.Name + "-forwarder"
	}
	if c.Integration.MQTT.TopicPrefix == "" {
		c.Integration.MQTT.TopicPrefix = "netbill/router"
	}
}

// Validate checks the configuration and reports every problem at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.API.Port < 1 || c.API.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if c.Router.RESTPort < 0 || c.Router.RESTPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("router.rest_port %d out of range", c.Router.RESTPort))
	}
	if c.Router.DefaultPort < 1 || c.Router.DefaultPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("router.default_port %d out of range", c.Router.DefaultPort))
	}
	if c.Router.RESTTimeout < 0 || c.Router.DialTimeout < 0 || c.Router.CommandTimeout < 0 {
		result = multierror.Append(result, errors.New("router timeouts must not be negative"))
	}

	seen := make(map[string]bool)
	for _, t := range c.Router.Transports {
		switch t {
		case "rest", "binary":
		default:
			result = multierror.Append(result, fmt.Errorf("router.transports: unknown transport %q", t))
		}
		if seen[t] {
			result = multierror.Append(result, fmt.Errorf("router.transports: %q listed twice", t))
		}
		seen[t] = true
	}

	if c.Traffic.Interval < time.Second {
		result = multierror.Append(result, fmt.Errorf("traffic.interval %s is below 1s", c.Traffic.Interval))
	}

	if c.Integration.MQTT.QoS > 2 {
		result = multierror.Append(result, fmt.Errorf("integration.mqtt.qos %d must be 0, 1 or 2", c.Integration.MQTT.QoS))
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		result = multierror.Append(result, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}

	return result.ErrorOrNil()
}

// PrintConfigSummary prints the effective configuration without secrets
func (c *Config) PrintConfigSummary() {
	fmt.Printf("=== %s Configuration ===\n", c.Server.Name)
	if c.Server.Version != "" {
		fmt.Printf("Version: %s\n", c.Server.Version)
	}
	fmt.Printf("API: %s:%d\n", c.API.Host, c.API.Port)
	if c.Database.DSN != "" {
		fmt.Printf("Database: postgres (migrate=%v)\n", c.Database.Migrate)
	} else {
		fmt.Printf("Database: in-memory\n")
	}
	if c.NATS.URL != "" {
		fmt.Printf("NATS: %s\n", c.NATS.URL)
	} else {
		fmt.Printf("NATS: disabled\n")
	}
	fmt.Printf("Router transports: %v\n", c.Router.Transports)
	fmt.Printf("  REST timeout: %s", c.Router.RESTTimeout)
	if c.Router.RESTPort != 0 {
		fmt.Printf(" (port %d)", c.Router.RESTPort)
	}
	fmt.Printf("\n")
	fmt.Printf("  Binary dial/command timeout: %s/%s\n", c.Router.DialTimeout, c.Router.CommandTimeout)
	fmt.Printf("  Default API port: %d\n", c.Router.DefaultPort)
	if c.Router.WANMarker != "" {
		fmt.Printf("  WAN marker: %s\n", c.Router.WANMarker)
	}
	iface := c.Traffic.Interface
	if iface == "" {
		iface = "auto (WAN)"
	}
	fmt.Printf("Traffic: every %s on %s, metrics on %s\n", c.Traffic.Interval, iface, c.Traffic.MetricsAddr)
	fmt.Printf("Password sealing: %v\n", c.Security.EncryptionKey != "")
	if c.Integration.HTTP.Endpoint != "" {
		fmt.Printf("Forward HTTP: %s\n", c.Integration.HTTP.Endpoint)
	}
	if c.Integration.MQTT.BrokerURL != "" {
		fmt.Printf("Forward MQTT: %s (%s)\n", c.Integration.MQTT.BrokerURL, c.Integration.MQTT.TopicPrefix)
	}
	fmt.Printf("==========================================\n")
}
