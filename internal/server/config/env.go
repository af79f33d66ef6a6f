package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable the server reads.
const EnvPrefix = "AUTH_"

type lookupFunc func(key string) (string, bool)

// envLookup returns a lookup that consults the process environment first and
// then the variables of the dotenv file at path, if it exists. The process
// environment is never modified.
func envLookup(path string) (lookupFunc, error) {
	dotenv, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

// parseEnv overlays AUTH_* variables onto config.
func parseEnv(config *Config, lookup lookupFunc) error {
	p := envParser{lookup: lookup}

	p.str("HTTP_ADDR", &config.HTTPAddr)
	p.str("GRPC_ADDR", &config.GRPCAddr)
	p.str("DATABASE_DSN", &config.DatabaseDSN)
	p.str("SECRET_KEY", &config.SecretKey)
	p.str("SIGNING_ALGORITHM", &config.SigningAlgorithm)
	p.duration("ACCESS_TOKEN_TTL", &config.AccessTokenTTL)
	p.duration("REFRESH_TOKEN_TTL", &config.RefreshTokenTTL)
	p.integer("BCRYPT_COST", &config.BcryptCost)
	p.integer("MAX_FAILED_LOGINS", &config.MaxFailedLogins)
	p.duration("LOCKOUT_DURATION", &config.LockoutDuration)
	p.integer("DB_MAX_OPEN_CONNS", &config.DBMaxOpenConns)
	p.integer("DB_MAX_IDLE_CONNS", &config.DBMaxIdleConns)
	p.duration("DB_CONN_MAX_LIFETIME", &config.DBConnMaxLifetime)
	p.duration("STORE_TIMEOUT", &config.StoreTimeout)
	p.duration("SWEEP_INTERVAL", &config.SweepInterval)
	p.str("REDIS_ADDR", &config.RedisAddr)
	p.str("REDIS_PASSWORD", &config.RedisPassword)
	p.integer("REDIS_DB", &config.RedisDB)
	p.str("LOG_BACKEND", &config.LogBackend)
	p.str("LOG_LEVEL", &config.LogLevel)
	p.boolean("PASSWORD_REQUIRE_UPPER", &config.RequireUpper)
	p.boolean("PASSWORD_REQUIRE_LOWER", &config.RequireLower)
	p.boolean("PASSWORD_REQUIRE_DIGIT", &config.RequireDigit)
	p.boolean("PASSWORD_REQUIRE_SPECIAL", &config.RequireSpecial)

	return errors.Join(p.errs...)
}

type envParser struct {
	lookup lookupFunc
	errs   []error
}

func (p *envParser) get(name string) (string, bool) {
	v, ok := p.lookup(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (p *envParser) str(name string, dst *string) {
	if v, ok := p.get(name); ok {
		*dst = v
	}
}

func (p *envParser) integer(name string, dst *int) {
	v, ok := p.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		return
	}
	*dst = n
}

func (p *envParser) duration(name string, dst *time.Duration) {
	v, ok := p.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		return
	}
	*dst = d
}

func (p *envParser) boolean(name string, dst *bool) {
	v, ok := p.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		return
	}
	*dst = b
}
