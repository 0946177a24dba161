package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("GITHUB_CLIENT_ID", "client-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "client-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.Production())
	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.OAuthTimeout)
	assert.Equal(t, 5, cfg.LoginRateBurst)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.SessionSecret)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8080")
	t.Setenv("APP_ENV", "production")
	t.Setenv("NEXTAUTH_URL", "https://cron.example.com/")
	t.Setenv("NEXTAUTH_SECRET", "s3cret")
	t.Setenv("OAUTH_TIMEOUT", "3s")
	t.Setenv("DATABASE_URL", "postgres://localhost/cron")
	t.Setenv("MIGRATE_ON_START", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Production())
	assert.Equal(t, "https://cron.example.com", cfg.BaseURL)
	assert.Equal(t, "s3cret", cfg.SessionSecret)
	assert.Equal(t, 3*time.Second, cfg.OAuthTimeout)
	assert.True(t, cfg.MigrateOnStart)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Run("client id", func(t *testing.T) {
		t.Setenv("GITHUB_CLIENT_ID", "")
		t.Setenv("GITHUB_CLIENT_SECRET", "secret")

		_, err := Load()
		assert.ErrorContains(t, err, "GITHUB_CLIENT_ID")
	})

	t.Run("client secret", func(t *testing.T) {
		t.Setenv("GITHUB_CLIENT_ID", "id")
		t.Setenv("GITHUB_CLIENT_SECRET", "")

		_, err := Load()
		assert.ErrorContains(t, err, "GITHUB_CLIENT_SECRET")
	})
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":             "abc",
		"OAUTH_TIMEOUT":    "ten",
		"LOGIN_RATE_LIMIT": "fast",
		"MIGRATE_ON_START": "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, value)

			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestLoad_MigrateRequiresDatabase(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MIGRATE_ON_START", "true")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}
