package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestParseEnv(t *testing.T) {
	cfg := defaults()
	err := parseEnv(&cfg, mapLookup(map[string]string{
		"AUTH_SECRET_KEY":             "env-secret",
		"AUTH_ACCESS_TOKEN_TTL":       "1m",
		"AUTH_BCRYPT_COST":            "4",
		"AUTH_REDIS_DB":               "2",
		"AUTH_PASSWORD_REQUIRE_LOWER": "true",
		"AUTH_HTTP_ADDR":              "",
		"SECRET_KEY":                  "ignored without prefix",
	}))
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.SecretKey)
	assert.Equal(t, time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.RequireLower)
	assert.Equal(t, ":8080", cfg.HTTPAddr, "empty values are ignored")
}

func TestParseEnv_CollectsErrors(t *testing.T) {
	cfg := defaults()
	err := parseEnv(&cfg, mapLookup(map[string]string{
		"AUTH_BCRYPT_COST":            "twelve",
		"AUTH_STORE_TIMEOUT":          "later",
		"AUTH_PASSWORD_REQUIRE_DIGIT": "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_BCRYPT_COST")
	assert.Contains(t, err.Error(), "AUTH_STORE_TIMEOUT")
	assert.Contains(t, err.Error(), "AUTH_PASSWORD_REQUIRE_DIGIT")
	assert.Equal(t, 12, cfg.BcryptCost)
}

func TestEnvLookup_DotenvFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("AUTH_TEST_ONLY_KEY=from-dotenv\nAUTH_TEST_SHADOWED=from-dotenv\n"), 0o600))
	t.Setenv("AUTH_TEST_SHADOWED", "from-process")

	lookup, err := envLookup(path)
	require.NoError(t, err)

	v, ok := lookup("AUTH_TEST_ONLY_KEY")
	assert.True(t, ok)
	assert.Equal(t, "from-dotenv", v)

	v, ok = lookup("AUTH_TEST_SHADOWED")
	assert.True(t, ok)
	assert.Equal(t, "from-process", v)

	_, ok = lookup("AUTH_TEST_MISSING")
	assert.False(t, ok)
}

func TestEnvLookup_MissingFile(t *testing.T) {
	lookup, err := envLookup(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	require.NotNil(t, lookup)
}
