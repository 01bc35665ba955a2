// Package config reads the server configuration from .env, the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"
)

const (
	StorageInMemory = "in-memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

const (
	devAccessSecret  = "dev-access-secret"
	devRefreshSecret = "dev-refresh-secret"
)

type Config struct {
	Port    string
	Storage string

	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	DBLogLevel    string

	JWTSecret           string
	JWTExpiresIn        time.Duration
	JWTRefreshSecret    string
	JWTRefreshExpiresIn time.Duration
	BcryptCost          int
	CookieSecure        bool

	NATSURL string
}

// Load reads .env if present, then the environment, then args (usually os.Args[1:]).
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[config] no .env file loaded: %v", err)
	}
	return parse(os.Getenv, args)
}

func parse(getenv func(string) string, args []string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:             env("PORT", "8080"),
		DatabaseURL:      env("DATABASE_URL", ""),
		MongoURI:         env("MONGO_URI", ""),
		MongoDatabase:    env("MONGO_DATABASE", "blog"),
		DBLogLevel:       env("DB_LOG_LEVEL", "warn"),
		JWTSecret:        env("JWT_SECRET", ""),
		JWTRefreshSecret: env("JWT_REFRESH_SECRET", ""),
		NATSURL:          env("NATS_URL", ""),
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.Storage, "storage", env("STORAGE", StorageInMemory), "Storage type (in-memory, postgres or mongo)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if cfg.JWTExpiresIn, err = duration(env("JWT_EXPIRES_IN", "1h")); err != nil {
		return nil, fmt.Errorf("JWT_EXPIRES_IN: %w", err)
	}
	if cfg.JWTRefreshExpiresIn, err = duration(env("JWT_REFRESH_EXPIRES_IN", "720h")); err != nil {
		return nil, fmt.Errorf("JWT_REFRESH_EXPIRES_IN: %w", err)
	}
	if cfg.BcryptCost, err = strconv.Atoi(env("BCRYPT_COST", strconv.Itoa(bcrypt.DefaultCost))); err != nil {
		return nil, fmt.Errorf("BCRYPT_COST: %w", err)
	}
	if cfg.CookieSecure, err = strconv.ParseBool(env("COOKIE_SECURE", "false")); err != nil {
		return nil, fmt.Errorf("COOKIE_SECURE: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StorageInMemory:
		if c.JWTSecret == "" || c.JWTRefreshSecret == "" {
			log.Printf("[config] WARNING: JWT secrets not set, using development secrets")
		}
		if c.JWTSecret == "" {
			c.JWTSecret = devAccessSecret
		}
		if c.JWTRefreshSecret == "" {
			c.JWTRefreshSecret = devRefreshSecret
		}
		return nil
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set for postgres storage")
		}
	case StorageMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI must be set for mongo storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage)
	}
	if c.JWTSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must be set")
	}
	return nil
}

// GormLogLevel maps DB_LOG_LEVEL to a gorm logger level.
func (c *Config) GormLogLevel() logger.LogLevel {
	switch strings.ToLower(c.DBLogLevel) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// duration accepts Go durations ("90m") and a day suffix ("30d").
func duration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
