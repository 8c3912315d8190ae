package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the records service
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Content-addressed storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Anchor ledger configuration
	Anchor AnchorConfig `mapstructure:"anchor"`

	// JWT configuration
	JWT JWTConfig `mapstructure:"jwt"`

	// Master key sealing per-report keys at rest
	MasterKey string `mapstructure:"master_key"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
	MaxUploadMB  int    `mapstructure:"max_upload_mb"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// StorageConfig holds content-addressed storage configuration
type StorageConfig struct {
	NodeURL        string `mapstructure:"node_url"`
	RequestTimeout int    `mapstructure:"request_timeout"`
}

// AnchorConfig holds anchor ledger configuration.
// Mode selects the backend: "gateway" talks to an external chain gateway
// that holds custodial signing wallets; "embedded" runs the local
// hash-chained ledger. Strict makes anchoring failures fatal to uploads.
type AnchorConfig struct {
	Mode           string `mapstructure:"mode"`
	GatewayURL     string `mapstructure:"gateway_url"`
	LedgerPath     string `mapstructure:"ledger_path"`
	RequestTimeout int    `mapstructure:"request_timeout"`
	Strict         bool   `mapstructure:"strict"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	AccessTokenTTL int    `mapstructure:"access_token_ttl"`
	Issuer         string `mapstructure:"issuer"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/recordvault")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideWithEnv(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)
	viper.SetDefault("server.max_upload_mb", 25)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "recordvault")
	viper.SetDefault("database.user", "recordvault")
	viper.SetDefault("database.ssl_mode", "require")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Storage defaults (local IPFS node API)
	viper.SetDefault("storage.node_url", "http://127.0.0.1:5001")
	viper.SetDefault("storage.request_timeout", 30)

	// Anchor defaults
	viper.SetDefault("anchor.mode", "embedded")
	viper.SetDefault("anchor.ledger_path", "./data/anchor-ledger")
	viper.SetDefault("anchor.request_timeout", 30)
	viper.SetDefault("anchor.strict", false)

	// JWT defaults
	viper.SetDefault("jwt.access_token_ttl", 3600) // 1 hour
	viper.SetDefault("jwt.issuer", "recordvault")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.health_path", "/health")

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if jwtSecret := os.Getenv("JWT_SECRET_KEY"); jwtSecret != "" {
		config.JWT.SecretKey = jwtSecret
	}

	if masterKey := os.Getenv("MASTER_KEY"); masterKey != "" {
		config.MasterKey = masterKey
	}

	if nodeURL := os.Getenv("STORAGE_NODE_URL"); nodeURL != "" {
		config.Storage.NodeURL = nodeURL
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.JWT.SecretKey == "" {
		return fmt.Errorf("JWT secret key is required")
	}

	if config.Database.Password == "" {
		return fmt.Errorf("database password is required")
	}

	if config.MasterKey == "" {
		return fmt.Errorf("master key is required")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Anchor.Mode {
	case "embedded":
		if config.Anchor.LedgerPath == "" {
			return fmt.Errorf("anchor ledger path is required in embedded mode")
		}
	case "gateway":
		if config.Anchor.GatewayURL == "" {
			return fmt.Errorf("anchor gateway URL is required in gateway mode")
		}
	default:
		return fmt.Errorf("unknown anchor mode: %s", config.Anchor.Mode)
	}

	return nil
}
