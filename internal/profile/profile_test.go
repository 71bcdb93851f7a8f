package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("unknown mode falls back to demo", func(t *testing.T) {
		p := &Profile{Mode: "staging", Driver: "sqlite", Data: t.TempDir()}
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres"}
		require.Error(t, p.Validate())
	})

	t.Run("unsupported driver rejected", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql"}
		require.Error(t, p.Validate())
	})

	t.Run("sqlite dsn derived from data dir", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: dir}
		require.NoError(t, p.Validate())
		assert.Contains(t, p.DSN, "propflow_dev.db")
	})

	t.Run("oracle timeout clamped below turn budget", func(t *testing.T) {
		p := &Profile{
			Mode:          "dev",
			Driver:        "sqlite",
			Data:          t.TempDir(),
			TurnTimeout:   15 * time.Second,
			OracleTimeout: 30 * time.Second,
		}
		require.NoError(t, p.Validate())
		assert.Equal(t, 13*time.Second, p.OracleTimeout)
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PROPFLOW_ORACLE_PROVIDER", "deepseek")
	t.Setenv("PROPFLOW_ORACLE_API_KEY", "sk-test")
	t.Setenv("PROPFLOW_SESSION_TTL_SECONDS", "3600")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "https://api.deepseek.com", p.OracleBaseURL)
	assert.Equal(t, "deepseek-chat", p.OracleModel)
	assert.Equal(t, time.Hour, p.SessionTTL)
	assert.True(t, p.IsOracleEnabled())
}
