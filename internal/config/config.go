// Package config содержит логику чтения конфигурации консоли Purnata.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress   = "localhost:8080"
	defaultSteadfastURL = "https://portal.packzy.com/api/v1"
	defaultAuthSecret   = "purnata-dev-secret"
)

// Config содержит параметры конфигурации консоли.
// Пустой SyncSchedule отключает задание сверки отправлений.
type Config struct {
	RunAddress        string `env:"RUN_ADDRESS"`
	DatabaseURI       string `env:"DATABASE_URI"`
	SteadfastBaseURL  string `env:"STEADFAST_BASE_URL"`
	RedisAddr         string `env:"REDIS_ADDR"`
	AuthSecret        string `env:"AUTH_SECRET"`
	SyncSchedule      string `env:"COURIER_SYNC_SCHEDULE"`
	StrictTransitions bool   `env:"STRICT_TRANSITIONS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные из файла .env подхватываются, если файл существует.
func Parse() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg
	_, envStrictSet := os.LookupEnv("STRICT_TRANSITIONS")

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.SteadfastBaseURL, "s", defaultSteadfastURL, "Steadfast API base URL")
	flag.StringVar(&cfg.RedisAddr, "redis", "", "redis address for order locks")
	flag.StringVar(&cfg.AuthSecret, "k", defaultAuthSecret, "secret for session cookie signing")
	flag.StringVar(&cfg.SyncSchedule, "sync", "", "cron schedule for courier status sync")
	flag.BoolVar(&cfg.StrictTransitions, "strict", false, "reject backward status transitions")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.SteadfastBaseURL != "" {
		cfg.SteadfastBaseURL = envCfg.SteadfastBaseURL
	}
	if envCfg.RedisAddr != "" {
		cfg.RedisAddr = envCfg.RedisAddr
	}
	if envCfg.AuthSecret != "" {
		cfg.AuthSecret = envCfg.AuthSecret
	}
	if envCfg.SyncSchedule != "" {
		cfg.SyncSchedule = envCfg.SyncSchedule
	}
	if envStrictSet {
		cfg.StrictTransitions = envCfg.StrictTransitions
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.SteadfastBaseURL == "" {
		cfg.SteadfastBaseURL = defaultSteadfastURL
	}

	return cfg, nil
}
