// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Node      NodeConfig      `mapstructure:"node"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Store     StoreConfig     `mapstructure:"store"`
	Chains    []ChainConfig   `mapstructure:"chains"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// NodeConfig holds the node's own identity and serving settings.
type NodeConfig struct {
	ListenAddr string   `mapstructure:"listen_addr"`
	PrivateKey string   `mapstructure:"private_key"` // hex secp256k1 secret, usually via DDO_NODE_PRIVATE_KEY
	Peers      []string `mapstructure:"peers"`       // base URLs of peer nodes
	TUIMode    bool     `mapstructure:"-"`           // Set at runtime, not from config file
}

// Identity returns the provider string this node stamps on records it
// serves: the address of its signing key, or "local" when no key is
// configured.
func (n *NodeConfig) Identity() string {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(n.PrivateKey, "0x"))
	if err != nil {
		return "local"
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

// ResolverConfig holds resolution and caching settings.
type ResolverConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	QueryTimeout  time.Duration `mapstructure:"query_timeout"`
	VerifyUpdates bool          `mapstructure:"verify_updates"`
}

// StoreConfig holds the descriptor store location.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ChainConfig describes one supported blockchain network: the primary RPC
// endpoint plus the ordered fallbacks the connectivity manager may fail
// over to.
type ChainConfig struct {
	ChainID         uint64        `mapstructure:"chain_id"`
	Name            string        `mapstructure:"name"`
	RPCURL          string        `mapstructure:"rpc_url"`
	FallbackRPCURLs []string      `mapstructure:"fallback_rpc_urls"`
	GracePeriod     time.Duration `mapstructure:"grace_period"`
}

// Endpoints returns the full pool: primary first, fallbacks in listed order.
func (c *ChainConfig) Endpoints() []string {
	pool := make([]string, 0, 1+len(c.FallbackRPCURLs))
	pool = append(pool, c.RPCURL)
	pool = append(pool, c.FallbackRPCURLs...)
	return pool
}

// StorageConfig holds gateways for file object metadata lookups.
type StorageConfig struct {
	IPFSGateway    string        `mapstructure:"ipfs_gateway"`
	ArweaveGateway string        `mapstructure:"arweave_gateway"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"` // zipkin, newrelic, honeycomb, console, none
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// Chain returns the configuration for the given chain id.
func (c *Config) Chain(chainID uint64) (ChainConfig, bool) {
	for _, ch := range c.Chains {
		if ch.ChainID == chainID {
			return ch, true
		}
	}
	return ChainConfig{}, false
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("DDO")
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "DDO_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "DDO_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "DDO_LOG_LEVEL", "LOG_LEVEL")

	// Node
	v.BindEnv("node.listen_addr", "DDO_LISTEN_ADDR")
	v.BindEnv("node.private_key", "DDO_NODE_PRIVATE_KEY", "NODE_PRIVATE_KEY")
	v.BindEnv("node.peers", "DDO_PEERS")

	// Resolver
	v.BindEnv("resolver.cache_ttl", "DDO_CACHE_TTL")
	v.BindEnv("resolver.query_timeout", "DDO_QUERY_TIMEOUT")
	v.BindEnv("resolver.verify_updates", "DDO_VERIFY_UPDATES")

	// Store
	v.BindEnv("store.path", "DDO_STORE_PATH")

	// Storage gateways
	v.BindEnv("storage.ipfs_gateway", "DDO_IPFS_GATEWAY", "IPFS_GATEWAY")
	v.BindEnv("storage.arweave_gateway", "DDO_ARWEAVE_GATEWAY", "ARWEAVE_GATEWAY")

	// Telemetry
	v.BindEnv("telemetry.enabled", "DDO_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "DDO_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.trace_provider", "DDO_TRACE_PROVIDER")
	v.BindEnv("telemetry.otlp_endpoint", "DDO_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	// Health
	v.BindEnv("health.port", "DDO_HEALTH_PORT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "ddo-node")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Node defaults
	v.SetDefault("node.listen_addr", ":8000")
	v.SetDefault("node.peers", []string{})

	// Resolver defaults
	v.SetDefault("resolver.cache_ttl", "60s")
	v.SetDefault("resolver.query_timeout", "5s")
	v.SetDefault("resolver.verify_updates", false)

	// Store defaults
	v.SetDefault("store.path", "data/ddo")

	// Storage gateway defaults
	v.SetDefault("storage.ipfs_gateway", "https://ipfs.io")
	v.SetDefault("storage.arweave_gateway", "https://arweave.net")
	v.SetDefault("storage.request_timeout", "10s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "ddo-node")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9464)

	// Health defaults
	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Resolver.CacheTTL <= 0 {
		return fmt.Errorf("resolver.cache_ttl must be positive")
	}
	if c.Resolver.QueryTimeout <= 0 {
		return fmt.Errorf("resolver.query_timeout must be positive")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}

	if c.Node.PrivateKey != "" {
		key := strings.TrimPrefix(c.Node.PrivateKey, "0x")
		if _, err := crypto.HexToECDSA(key); err != nil {
			return fmt.Errorf("invalid node.private_key: %w", err)
		}
	}
	if len(c.Chains) > 0 && c.Node.PrivateKey == "" {
		return fmt.Errorf("node.private_key is required when chains are configured")
	}

	seen := make(map[uint64]bool, len(c.Chains))
	for i, ch := range c.Chains {
		if ch.ChainID == 0 {
			return fmt.Errorf("chains[%d].chain_id is required", i)
		}
		if ch.RPCURL == "" {
			return fmt.Errorf("chains[%d].rpc_url is required", i)
		}
		if ch.GracePeriod < 0 {
			return fmt.Errorf("chains[%d].grace_period cannot be negative", i)
		}
		if seen[ch.ChainID] {
			return fmt.Errorf("chains[%d]: duplicate chain_id %d", i, ch.ChainID)
		}
		seen[ch.ChainID] = true
	}

	for i, p := range c.Node.Peers {
		u, err := url.Parse(p)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("node.peers[%d]: %q is not a valid http(s) base URL", i, p)
		}
	}

	return nil
}
