// Package config reads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort int
	GRPCPort int

	CatalogDriver  string
	CatalogDSN     string
	MigrationsPath string

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers  []string
	NotifyTopic   string
	CheckoutTopic string

	PublicBaseURL string
	ShopEmail     string
	AdminToken    string

	OTLPEndpoint string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the environment. Values from envFiles only fill variables that
// are not already set; missing files are ignored.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPPort: getEnvInt("HTTP_PORT", 8080),
		GRPCPort: getEnvInt("GRPC_PORT", 8081),

		CatalogDriver:  getEnv("CATALOG_DRIVER", "sqlite"),
		CatalogDSN:     getEnv("CATALOG_DSN", "catalog.db"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "internal/catalog/migrations"),

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "danicandles"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers:  getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
		NotifyTopic:   getEnv("NOTIFY_TOPIC", "notifications"),
		CheckoutTopic: getEnv("CHECKOUT_TOPIC", "checkout-completed"),

		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		ShopEmail:     getEnv("SHOP_EMAIL", "hello@danicandles.com"),
		AdminToken:    getEnv("ADMIN_TOKEN", ""),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.CatalogDriver != "sqlite" && c.CatalogDriver != "postgres" {
		return fmt.Errorf("CATALOG_DRIVER must be sqlite or postgres, got %q", c.CatalogDriver)
	}
	if c.HTTPPort <= 0 || c.GRPCPort <= 0 {
		return errors.New("HTTP_PORT and GRPC_PORT must be positive")
	}
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS must not be empty")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
