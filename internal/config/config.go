package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"gopkg.in/yaml.v3"
)

const (
	AuthSession = "session"
	AuthStatic  = "static"
)

type Database struct {
	Driver        string `yaml:"driver"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Name          string `yaml:"name"`
	SQLitePath    string `yaml:"sqlite_path"`
	MigrationsDir string `yaml:"migrations_dir"`
}

type Redis struct {
	// Addr empty disables the product cache; session auth then cannot work.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

type Kafka struct {
	// Brokers empty means events are dropped.
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	// GroupID is the consumer group of the reconciliation consumer.
	GroupID string   `yaml:"group_id"`
}

// AMQP is the RabbitMQ alternative to Kafka for outgoing events.
type AMQP struct {
	URI   string `yaml:"uri"`
	Queue string `yaml:"queue"`
}

type Checkout struct {
	StockPolicy        string        `yaml:"stock_policy"`
	MaxStockRetries    int           `yaml:"max_stock_retries"`
	StoreCallTimeout   time.Duration `yaml:"store_call_timeout"`
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"`
}

type Auth struct {
	Mode string `yaml:"mode"`
	// StaticUserID is the identity every request runs as in static mode.
	StaticUserID string `yaml:"static_user_id"`
}

type Config struct {
	HTTPPort        string        `yaml:"http_port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`

	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	AMQP     AMQP     `yaml:"amqp"`
	Checkout Checkout `yaml:"checkout"`
	Auth     Auth     `yaml:"auth"`
}

func Default() *Config {
	return &Config{
		HTTPPort:        "8080",
		RequestTimeout:  10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
		Database: Database{
			Driver:        "postgres",
			Host:          "localhost",
			Port:          5432,
			User:          "postgres",
			Password:      "postgres",
			Name:          "storefront",
			SQLitePath:    "storefront.db",
			MigrationsDir: "./internal/repository/migrations",
		},
		Redis: Redis{Addr: "localhost:6379"},
		Kafka: Kafka{Topic: "storefront-events", GroupID: "storefront-reconciliation"},
		AMQP:  AMQP{Queue: "storefront-events"},
		Checkout: Checkout{
			StockPolicy:        "conditional",
			MaxStockRetries:    checkout.DefaultMaxStockRetries,
			StoreCallTimeout:   3 * time.Second,
			BreakerMaxFailures: 5,
		},
		Auth: Auth{Mode: AuthSession, StaticUserID: "dev-user"},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// STOREFRONT_CONFIG if set, then individual environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("STOREFRONT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) applyEnv() error {
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SQLitePath = getEnv("SQLITE_PATH", c.Database.SQLitePath)
	c.Database.MigrationsDir = getEnv("MIGRATIONS_DIR", c.Database.MigrationsDir)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", c.Kafka.GroupID)
	c.AMQP.URI = getEnv("RABBITMQ_URI", c.AMQP.URI)
	c.AMQP.Queue = getEnv("RABBITMQ_QUEUE", c.AMQP.Queue)

	c.Checkout.StockPolicy = getEnv("STOCK_POLICY", c.Checkout.StockPolicy)
	c.Auth.Mode = getEnv("AUTH_MODE", c.Auth.Mode)
	c.Auth.StaticUserID = getEnv("STATIC_USER_ID", c.Auth.StaticUserID)

	var err error
	if c.Database.Port, err = envInt("DB_PORT", c.Database.Port); err != nil {
		return err
	}
	if c.Checkout.MaxStockRetries, err = envInt("MAX_STOCK_RETRIES", c.Checkout.MaxStockRetries); err != nil {
		return err
	}
	failures, err := envInt("BREAKER_MAX_FAILURES", int(c.Checkout.BreakerMaxFailures))
	if err != nil {
		return err
	}
	c.Checkout.BreakerMaxFailures = uint32(failures)

	if c.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return err
	}
	if c.Checkout.StoreCallTimeout, err = envDuration("STORE_CALL_TIMEOUT", c.Checkout.StoreCallTimeout); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	if _, err := checkout.ParseStockPolicy(c.Checkout.StockPolicy); err != nil {
		errs = append(errs, err)
	}
	switch c.Auth.Mode {
	case AuthSession:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("session auth requires REDIS_ADDR"))
		}
	case AuthStatic:
		if c.Auth.StaticUserID == "" {
			errs = append(errs, errors.New("static auth requires STATIC_USER_ID"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported AUTH_MODE %q", c.Auth.Mode))
	}
	if len(c.Kafka.Brokers) > 0 && c.AMQP.URI != "" {
		errs = append(errs, errors.New("set KAFKA_BROKERS or RABBITMQ_URI, not both"))
	}
	if c.Checkout.BreakerMaxFailures == 0 {
		errs = append(errs, errors.New("BREAKER_MAX_FAILURES must be positive"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.HTTPPort
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
