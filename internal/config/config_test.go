package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"JOURNAL_ADDR", "JOURNAL_STORE", "JOURNAL_WRITE_TIMEOUT_MS", "JOURNAL_FLUSH_INTERVAL_MS", "REDIS_URL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Zero(t, cfg.FlushInterval)
	assert.Empty(t, cfg.RedisURL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JOURNAL_ADDR", ":9000")
	t.Setenv("JOURNAL_STORE", StorePostgres)
	t.Setenv("JOURNAL_FLUSH_INTERVAL_MS", "250")
	t.Setenv("JOURNAL_WRITE_TIMEOUT_MS", "not-a-number")
	t.Setenv("DATABASE_URL", "")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout, "unparsable values fall back")
	assert.Error(t, cfg.Validate(), "postgres needs DATABASE_URL")

	cfg.Store = "sqlite"
	assert.Error(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	require.NoError(t, LoadFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JOURNAL_TEST_ONLY=from-file\n"), 0o600))
	t.Setenv("JOURNAL_TEST_ONLY", "")
	os.Unsetenv("JOURNAL_TEST_ONLY")

	require.NoError(t, LoadFile(path))
	assert.Equal(t, "from-file", os.Getenv("JOURNAL_TEST_ONLY"))
}
