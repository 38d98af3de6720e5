package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"askingwho-backend/application/ports"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
)

// Config holds all application configuration. Values come from defaults, then
// the YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	// Server configuration
	ServerAddress string `env:"SERVER_ADDRESS" yaml:"serverAddress"`
	Environment   string `env:"ENVIRONMENT" yaml:"environment"`
	ConfigFile    string `env:"CONFIG_FILE" yaml:"-"`

	// Storage
	Store            string `env:"STORE" yaml:"store"`
	AWSRegion        string `env:"AWS_REGION" yaml:"awsRegion"`
	DynamoDBTable    string `env:"TABLE_NAME" yaml:"tableName"`
	DynamoDBEndpoint string `env:"DYNAMODB_ENDPOINT" yaml:"dynamodbEndpoint"`
	GSI1Index        string `env:"GSI1_INDEX_NAME" yaml:"gsi1Index"`
	GSI2Index        string `env:"GSI2_INDEX_NAME" yaml:"gsi2Index"`

	// Lambda and API Gateway websocket configuration
	IsLambda          bool          `env:"IS_LAMBDA" yaml:"isLambda"`
	EventBusName      string        `env:"EVENT_BUS_NAME" yaml:"eventBusName"`
	WebSocketEndpoint string        `env:"WEBSOCKET_ENDPOINT" yaml:"websocketEndpoint"`
	ConnectionTTL     time.Duration `env:"CONNECTION_TTL" yaml:"connectionTTL"`

	// Authentication
	JWTSecret   string        `env:"JWT_SECRET" yaml:"jwtSecret"`
	JWTIssuer   string        `env:"JWT_ISSUER" yaml:"jwtIssuer"`
	JWTAudience []string      `env:"JWT_AUDIENCE" envSeparator:"," yaml:"jwtAudience"`
	JWTExpiry   time.Duration `env:"JWT_EXPIRY" yaml:"jwtExpiry"`

	// HTTP
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," yaml:"corsAllowedOrigins"`
	BreakerMaxFailures uint32        `env:"BREAKER_MAX_FAILURES" yaml:"breakerMaxFailures"`
	BreakerTimeout     time.Duration `env:"BREAKER_TIMEOUT" yaml:"breakerTimeout"`

	// Aggregate cache
	CacheTTL  time.Duration `env:"CACHE_TTL" yaml:"cacheTTL"`
	CacheSize int           `env:"CACHE_SIZE" yaml:"cacheSize"`

	// Observability
	EnableMetrics       bool   `env:"ENABLE_METRICS" yaml:"enableMetrics"`
	MetricsNamespace    string `env:"METRICS_NAMESPACE" yaml:"metricsNamespace"`
	CloudWatchNamespace string `env:"CLOUDWATCH_NAMESPACE" yaml:"cloudwatchNamespace"`
	EnableTracing       bool   `env:"ENABLE_TRACING" yaml:"enableTracing"`
	TracingEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" yaml:"tracingEndpoint"`
	ServiceName         string `env:"SERVICE_NAME" yaml:"serviceName"`

	// Runtime-adjustable settings, hot reloaded from CONFIG_FILE
	Dynamic DynamicConfig `yaml:"dynamic"`
}

// DynamicConfig is the part of the configuration that may change while running
type DynamicConfig struct {
	LogLevel string           `env:"LOG_LEVEL" yaml:"logLevel"`
	Limits   ports.TextLimits `yaml:"limits"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		ServerAddress:      ":8080",
		Environment:        "development",
		Store:              StoreMemory,
		AWSRegion:          "us-west-2",
		DynamoDBTable:      "askingwho",
		GSI1Index:          "GSI1",
		GSI2Index:          "GSI2",
		EventBusName:       "askingwho-events",
		ConnectionTTL:      2 * time.Hour,
		JWTIssuer:          "askingwho",
		JWTExpiry:          24 * time.Hour,
		CORSAllowedOrigins: []string{"*"},
		BreakerMaxFailures: 5,
		BreakerTimeout:     30 * time.Second,
		CacheTTL:           60 * time.Second,
		CacheSize:          256,
		EnableMetrics:      true,
		MetricsNamespace:   "askingwho",
		ServiceName:        "askingwho-backend",
		Dynamic: DynamicConfig{
			LogLevel: "info",
			Limits:   ports.DefaultTextLimits,
		},
	}
}

// LoadConfig loads configuration from the optional YAML file and the environment
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	c.ConfigFile = path
	return nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreDynamoDB:
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StoreMemory, StoreDynamoDB, c.Store)
	}
	if c.Store == StoreDynamoDB && c.DynamoDBTable == "" {
		return errors.New("TABLE_NAME is required for the dynamodb store")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.IsLambda && c.EventBusName == "" {
		return errors.New("EVENT_BUS_NAME is required on Lambda")
	}
	if c.EnableTracing && c.TracingEndpoint == "" {
		return errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required when tracing is enabled")
	}
	if c.CacheTTL < 0 {
		return errors.New("CACHE_TTL cannot be negative")
	}
	return c.Dynamic.Validate()
}

// Validate checks the runtime-adjustable settings
func (d DynamicConfig) Validate() error {
	if _, err := zapcore.ParseLevel(d.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", d.LogLevel)
	}
	l := d.Limits
	if l.Question <= 0 || l.Answer <= 0 || l.Comment <= 0 || l.Message <= 0 {
		return errors.New("text limits must be positive")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
