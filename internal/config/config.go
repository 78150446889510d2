package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/ilyakaznacheev/cleanenv"
)

const SandboxBaseURL = "https://tokenized.sandbox.bka.sh/v1.2.0-beta"

type PaymentConfig struct {
	Env            string `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTPServer     `yaml:"http_server"`
	GRPCServer     `yaml:"grpc_server"`
	PaymentDB      `yaml:"payment_db"`
	LogConfig      `yaml:"log_config"`
	KafkaService   `yaml:"kafka-service"`
	Gateway        `yaml:"gateway"`
	Reconciliation `yaml:"reconciliation"`
}

type HTTPServer struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type GRPCServer struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50061"`
}

type PaymentDB struct {
	// Driver is "postgres" or "memory".
	Driver         string `yaml:"driver" env:"PAYMENT_DB_DRIVER" env-default:"postgres"`
	Dsn            string `yaml:"dsn" env:"PAYMENT_DB_DSN"`
	MigrationsPath string `yaml:"migrations_path" env:"PAYMENT_DB_MIGRATIONS" env-default:"migrations"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
}

type KafkaService struct {
	Brokers    []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic      string   `yaml:"topic" env:"KAFKA_PAYMENT_TOPIC" env-default:"payment-events"`
	OrderTopic string   `yaml:"order_topic" env:"KAFKA_ORDER_TOPIC" env-default:"order-events"`
	GroupID    string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"payment-service"`
}

type Gateway struct {
	Name        string        `yaml:"name" env:"GATEWAY_NAME" env-default:"bkash"`
	BaseURL     string        `yaml:"base_url" env:"BKASH_BASE_URL"`
	Username    string        `yaml:"username" env:"BKASH_USERNAME"`
	Password    string        `yaml:"password" env:"BKASH_PASSWORD"`
	AppKey      string        `yaml:"app_key" env:"BKASH_APP_KEY"`
	AppSecret   string        `yaml:"app_secret" env:"BKASH_APP_SECRET"`
	CallbackURL string        `yaml:"callback_url" env:"BKASH_CALLBACK_URL"`
	Currency    string        `yaml:"currency" env:"BKASH_CURRENCY" env-default:"BDT"`
	Timeout     time.Duration `yaml:"timeout" env:"BKASH_TIMEOUT" env-default:"30s"`
	TokenMargin time.Duration `yaml:"token_margin" env:"BKASH_TOKEN_MARGIN" env-default:"60s"`
	MaxRetries  uint64        `yaml:"max_retries" env:"BKASH_MAX_RETRIES" env-default:"3"`
}

type Reconciliation struct {
	Enabled     bool          `yaml:"enabled" env:"RECONCILE_ENABLED" env-default:"true"`
	Interval    time.Duration `yaml:"interval" env:"RECONCILE_INTERVAL" env-default:"1m"`
	StaleAfter  time.Duration `yaml:"stale_after" env:"RECONCILE_STALE_AFTER" env-default:"5m"`
	BatchSize   int           `yaml:"batch_size" env:"RECONCILE_BATCH_SIZE" env-default:"100"`
	Concurrency int           `yaml:"concurrency" env:"RECONCILE_CONCURRENCY" env-default:"4"`
}

// Load reads the YAML file named by PAYMENT_CONFIG_PATH, or the environment alone when unset.
func Load() (*PaymentConfig, error) {
	var cfg PaymentConfig

	configPath := os.Getenv("PAYMENT_CONFIG_PATH")
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("failed to find config file: %w", err)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env config: %w", err)
	}

	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = SandboxBaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *PaymentConfig {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v\n", err)
	}
	return cfg
}

func (c *PaymentConfig) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"gateway.username", c.Gateway.Username},
		{"gateway.password", c.Gateway.Password},
		{"gateway.app_key", c.Gateway.AppKey},
		{"gateway.app_secret", c.Gateway.AppSecret},
		{"gateway.callback_url", c.Gateway.CallbackURL},
		{"gateway.base_url", c.Gateway.BaseURL},
	}
	for _, r := range required {
		if r.value == "" {
			return &domain.ConfigError{Field: r.field}
		}
	}
	switch c.PaymentDB.Driver {
	case "memory":
	case "postgres":
		if c.PaymentDB.Dsn == "" {
			return &domain.ConfigError{Field: "payment_db.dsn"}
		}
	default:
		return fmt.Errorf("config: unknown payment_db.driver %q", c.PaymentDB.Driver)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("config: gateway.timeout must be positive")
	}
	if c.Reconciliation.Enabled && c.Reconciliation.Interval <= 0 {
		return fmt.Errorf("config: reconciliation.interval must be positive")
	}
	return nil
}
