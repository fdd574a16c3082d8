package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Document store backends.
const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

type Config struct {
	Addr             string
	StaticDir        string
	Store            string
	DatabaseURL      string
	FirestoreProject string
	// RedisURL is optional; the last-active pointer is kept in memory
	// without it.
	RedisURL      string
	FlushInterval time.Duration
	WriteTimeout  time.Duration
	LogLevel      string
	LogDev        bool
}

// LoadFile loads variables from an env file into the environment without
// overriding ones already set. A missing file is not an error.
func LoadFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(godotenv.Load(path), "load %s", path)
}

func Load() Config {
	return Config{
		Addr:             getenv("JOURNAL_ADDR", ":8080"),
		StaticDir:        getenv("JOURNAL_STATIC_DIR", "static"),
		Store:            getenv("JOURNAL_STORE", StoreMemory),
		DatabaseURL:      getenv("DATABASE_URL", ""),
		FirestoreProject: getenv("FIRESTORE_PROJECT", ""),
		RedisURL:         getenv("REDIS_URL", ""),
		FlushInterval:    time.Duration(getenvInt("JOURNAL_FLUSH_INTERVAL_MS", 0)) * time.Millisecond,
		WriteTimeout:     time.Duration(getenvInt("JOURNAL_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		LogLevel:         getenv("JOURNAL_LOG_LEVEL", "info"),
		LogDev:           getenv("JOURNAL_LOG_DEV", "") != "",
	}
}

// Validate checks that the selected store has what it needs.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case StoreFirestore:
		if c.FirestoreProject == "" {
			return errors.New("FIRESTORE_PROJECT is required for the firestore store")
		}
	default:
		return errors.Errorf("unknown store %q", c.Store)
	}
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
