package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config carries every knob the binaries read. Values come from the
// environment, with a .env file loaded first when one exists.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"bigbite"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"bigbite"`
	DBName     string `env:"DB_NAME" envDefault:"orders"`

	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	RedisAddr    string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	GatewayBaseURL string `env:"PAYMENT_GATEWAY_URL" envDefault:"http://localhost:8090"`
	GatewaySecret  string `env:"PAYMENT_GATEWAY_SECRET,required"`

	PushGatewayURL string `env:"PUSH_GATEWAY_URL" envDefault:"https://fcm.googleapis.com/fcm/send"`
	PushAPIKey     string `env:"PUSH_API_KEY"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"orders@bigbite.example"`

	DeliveryFeePercent float64       `env:"DELIVERY_FEE_PERCENT" envDefault:"5"`
	ReconcileWindow    time.Duration `env:"RECONCILE_WINDOW" envDefault:"24h"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1h"`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// Missing .env just means everything comes from the real environment.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

// SMTPConfigured reports whether the mailer can be wired at all.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != ""
}
