package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("TOKEN_STORE", "")
	t.Setenv("REQUEST_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/api", cfg.APIBaseURL)
	require.Equal(t, StoreMemory, cfg.TokenStore)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, "portal_session", cfg.SessionCookie)
	require.Equal(t, "data/audit.log", cfg.AuditLogFile)
}

func TestLoadTrimsTrailingSlash(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/api/")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/api", cfg.APIBaseURL)
}

func TestValidate(t *testing.T) {
	t.Run("rejects relative base url", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "/api")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("postgres store needs a database url", func(t *testing.T) {
		t.Setenv("TOKEN_STORE", "postgres")
		t.Setenv("DATABASE_URL", "")
		_, err := Load()
		require.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("redis store needs a redis url", func(t *testing.T) {
		t.Setenv("TOKEN_STORE", "redis")
		t.Setenv("REDIS_URL", "")
		_, err := Load()
		require.ErrorContains(t, err, "REDIS_URL")
	})

	t.Run("unknown store", func(t *testing.T) {
		t.Setenv("TOKEN_STORE", "cookie")
		_, err := Load()
		require.ErrorContains(t, err, "TOKEN_STORE")
	})
}

func TestSplitCSV(t *testing.T) {
	require.Nil(t, splitCSV("  "))
	require.Equal(t, []string{"a", "b"}, splitCSV(" a, ,b "))
}
