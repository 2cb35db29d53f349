package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/huigrowth/careauth"
)

const (
	storeMemory = "memory"
	storeRedis  = "redis"
	storeSQLite = "sqlite"
)

// config is read from CAREAUTH_* environment variables.
type config struct {
	APIURL     string        `env:"CAREAUTH_API_URL"     envDefault:"http://localhost:8080/api"`
	Store      string        `env:"CAREAUTH_STORE"       envDefault:"sqlite"`
	RedisAddr  string        `env:"CAREAUTH_REDIS_ADDR"`
	SQLitePath string        `env:"CAREAUTH_SQLITE_PATH"`
	StorageKey string        `env:"CAREAUTH_STORAGE_KEY" envDefault:"auth-storage"`
	Timeout    time.Duration `env:"CAREAUTH_TIMEOUT"     envDefault:"10s"`
	LogLevel   string        `env:"CAREAUTH_LOG_LEVEL"   envDefault:"warn"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.Store {
	case storeMemory, storeRedis, storeSQLite:
	default:
		return config{}, fmt.Errorf("CAREAUTH_STORE must be one of memory, redis, sqlite; got %q", cfg.Store)
	}
	if cfg.Store == storeRedis && cfg.RedisAddr == "" {
		return config{}, fmt.Errorf("CAREAUTH_REDIS_ADDR is required when CAREAUTH_STORE=redis")
	}
	if cfg.Timeout <= 0 {
		return config{}, fmt.Errorf("CAREAUTH_TIMEOUT must be > 0")
	}
	if _, err := cfg.logLevel(); err != nil {
		return config{}, err
	}

	if cfg.Store == storeSQLite && cfg.SQLitePath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return config{}, fmt.Errorf("resolve config dir: %w", err)
		}
		cfg.SQLitePath = filepath.Join(dir, "careauth", "session.db")
	}
	if cfg.StorageKey == "" {
		cfg.StorageKey = careauth.DefaultStorageKey
	}

	return cfg, nil
}

func (c config) logLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("CAREAUTH_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
