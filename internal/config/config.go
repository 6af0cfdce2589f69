// Package config содержит логику чтения конфигурации сервиса parkspot.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации сервиса parkspot.
type Config struct {
	RunAddress       string `env:"RUN_ADDRESS"`
	DatabaseURI      string `env:"DATABASE_URI"`
	AuthSecret       string `env:"AUTH_SECRET"`
	NotifyAMQPURL    string `env:"NOTIFY_AMQP_URL"`
	NotifyExchange   string `env:"NOTIFY_EXCHANGE" envDefault:"parkspot.events"`
	NotifyWebhookURL string `env:"NOTIFY_WEBHOOK_URL"`

	SpotUncertainAfter   time.Duration `env:"SPOT_UNCERTAIN_AFTER" envDefault:"10m"`
	SpotEvictAfter       time.Duration `env:"SPOT_EVICT_AFTER" envDefault:"30m"`
	SpotSweepInterval    time.Duration `env:"SPOT_SWEEP_INTERVAL" envDefault:"1m"`
	SpotNearRadius       float64       `env:"SPOT_NEAR_RADIUS" envDefault:"200"`
	BookingSweepInterval time.Duration `env:"BOOKING_SWEEP_INTERVAL" envDefault:"1m"`
}

// Parse считывает конфигурацию из файла .env, переменных окружения и флагов командной строки.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAuthSecret := cfg.AuthSecret
	envAMQPURL := cfg.NotifyAMQPURL
	envWebhookURL := cfg.NotifyWebhookURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing auth cookies")
	flag.StringVar(&cfg.NotifyAMQPURL, "q", "", "AMQP broker URL for spot notifications")
	flag.StringVar(&cfg.NotifyWebhookURL, "w", "", "push gateway URL for spot notifications")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envAMQPURL != "" {
		cfg.NotifyAMQPURL = envAMQPURL
	}
	if envWebhookURL != "" {
		cfg.NotifyWebhookURL = envWebhookURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if cfg.SpotUncertainAfter <= 0 || cfg.SpotEvictAfter <= 0 {
		return nil, fmt.Errorf("spot lifecycle durations must be positive")
	}

	return cfg, nil
}
