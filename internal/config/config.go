// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strings"
	"time"
)

// Store backends selectable with PLAN_STORE.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds the runtime configuration of the HTTP server.  Each field
// corresponds to an environment variable.
type Config struct {
	Env          string        // APP_ENV (dev, test, prod)
	Port         string        // APP_PORT
	Store        string        // PLAN_STORE: mysql (default) or memory
	DBUser       string        // DB_USER
	DBPass       string        // DB_PASS (optional)
	DBHost       string        // DB_HOST
	DBPort       string        // DB_PORT
	DBName       string        // DB_NAME
	DBMigrate    bool          // DB_MIGRATE: apply the embedded schema at startup
	DBTimeout    time.Duration // DB_TIMEOUT: per-call limit on storage queries
	JWTSecret    string        // JWT_SECRET
	LogLevel     string        // LOG_LEVEL
	LogFormat    string        // LOG_FORMAT: text or json
	ReadTimeout  time.Duration // HTTP_READ_TIMEOUT
	WriteTimeout time.Duration // HTTP_WRITE_TIMEOUT
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must(); a missing value stops the program.
// The database variables are only required for the mysql store.
func Load() Config {
	cfg := Config{
		Env:          getenv("APP_ENV", "dev"),
		Port:         must("APP_PORT"),
		Store:        strings.ToLower(getenv("PLAN_STORE", StoreMySQL)),
		JWTSecret:    must("JWT_SECRET"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    getenv("LOG_FORMAT", "text"),
		ReadTimeout:  envDur("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: envDur("HTTP_WRITE_TIMEOUT", 15*time.Second),
	}
	switch cfg.Store {
	case StoreMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
		cfg.DBMigrate = envBool("DB_MIGRATE", false)
		cfg.DBTimeout = envDur("DB_TIMEOUT", 5*time.Second)
	case StoreMemory:
	default:
		log.Fatalf("invalid PLAN_STORE: %q", cfg.Store)
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
