package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(envOf(nil), nil)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageInMemory, cfg.Storage)
	assert.Equal(t, "blog", cfg.MongoDatabase)
	assert.Equal(t, time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, 720*time.Hour, cfg.JWTRefreshExpiresIn)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, devAccessSecret, cfg.JWTSecret)
	assert.Equal(t, devRefreshSecret, cfg.JWTRefreshSecret)
	assert.Equal(t, logger.Warn, cfg.GormLogLevel())
}

func TestParse_Environment(t *testing.T) {
	cfg, err := parse(envOf(map[string]string{
		"PORT":                   "9000",
		"STORAGE":                "postgres",
		"DATABASE_URL":           "postgres://localhost/blog",
		"JWT_SECRET":             "a",
		"JWT_REFRESH_SECRET":     "b",
		"JWT_EXPIRES_IN":         "15m",
		"JWT_REFRESH_EXPIRES_IN": "30d",
		"BCRYPT_COST":            "12",
		"COOKIE_SECURE":          "true",
		"DB_LOG_LEVEL":           "silent",
	}), nil)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, 15*time.Minute, cfg.JWTExpiresIn)
	assert.Equal(t, 30*24*time.Hour, cfg.JWTRefreshExpiresIn)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, logger.Silent, cfg.GormLogLevel())
}

func TestParse_FlagOverridesEnvironment(t *testing.T) {
	cfg, err := parse(envOf(map[string]string{"STORAGE": "postgres"}), []string{"-storage", "in-memory"})
	require.NoError(t, err)
	assert.Equal(t, StorageInMemory, cfg.Storage)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url":     {"STORAGE": "postgres", "JWT_SECRET": "a", "JWT_REFRESH_SECRET": "b"},
		"mongo without uri":        {"STORAGE": "mongo", "JWT_SECRET": "a", "JWT_REFRESH_SECRET": "b"},
		"postgres without secrets": {"STORAGE": "postgres", "DATABASE_URL": "postgres://x"},
		"unknown storage":          {"STORAGE": "redis"},
		"bad duration":             {"JWT_EXPIRES_IN": "soon"},
		"bad cost":                 {"BCRYPT_COST": "high"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parse(envOf(env), nil)
			assert.Error(t, err)
		})
	}
}
