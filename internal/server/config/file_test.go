package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseFile_JSON(t *testing.T) {
	path := writeTemp(t, "auth.json", `{
		"http_addr": ":9090",
		"database_dsn": "postgres://db",
		"secret_key": "s3cret",
		"signing_algorithm": "HS512",
		"access_token_ttl": "5m",
		"refresh_token_ttl": 3600000000000,
		"bcrypt_cost": 10,
		"max_failed_logins": 3,
		"store_timeout": "2s",
		"password": {"require_digit": true}
	}`)

	cfg := defaults()
	require.NoError(t, parseFile(&cfg, path))

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, ":50051", cfg.GRPCAddr, "unset keys keep their value")
	assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
	assert.Equal(t, "s3cret", cfg.SecretKey)
	assert.Equal(t, "HS512", cfg.SigningAlgorithm)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 3, cfg.MaxFailedLogins)
	assert.Equal(t, 2*time.Second, cfg.StoreTimeout)
	assert.True(t, cfg.RequireDigit)
	assert.False(t, cfg.RequireUpper)
}

func TestParseFile_TOML(t *testing.T) {
	path := writeTemp(t, "auth.toml", `
secret_key = "toml-secret"
lockout_duration = "10m"
redis_addr = "localhost:6379"
log_backend = "zap"

[password]
require_upper = true
require_special = true
`)

	cfg := defaults()
	require.NoError(t, parseFile(&cfg, path))

	assert.Equal(t, "toml-secret", cfg.SecretKey)
	assert.Equal(t, 10*time.Minute, cfg.LockoutDuration)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "zap", cfg.LogBackend)
	assert.True(t, cfg.RequireUpper)
	assert.True(t, cfg.RequireSpecial)
	assert.False(t, cfg.RequireLower)
}

func TestParseFile_EmptyPathIsNoop(t *testing.T) {
	cfg := defaults()
	require.NoError(t, parseFile(&cfg, ""))
	assert.Equal(t, defaults(), cfg)
}

func TestParseFile_Errors(t *testing.T) {
	cfg := defaults()

	err := parseFile(&cfg, filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)

	bad := writeTemp(t, "bad.json", `{ this is not valid json`)
	require.Error(t, parseFile(&cfg, bad))

	badDur := writeTemp(t, "bad.toml", `store_timeout = "soon"`)
	require.Error(t, parseFile(&cfg, badDur))
}
