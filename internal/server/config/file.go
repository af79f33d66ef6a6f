package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// fileConfig is the on-disk shape of the configuration, shared by the JSON and
// TOML decoders. Zero values mean "not set" and leave the current value alone;
// the boolean toggles are pointers for the same reason.
type fileConfig struct {
	HTTPAddr          string         `json:"http_addr" toml:"http_addr"`
	GRPCAddr          string         `json:"grpc_addr" toml:"grpc_addr"`
	DatabaseDSN       string         `json:"database_dsn" toml:"database_dsn"`
	SecretKey         string         `json:"secret_key" toml:"secret_key"`
	SigningAlgorithm  string         `json:"signing_algorithm" toml:"signing_algorithm"`
	AccessTokenTTL    timex.Duration `json:"access_token_ttl" toml:"access_token_ttl"`
	RefreshTokenTTL   timex.Duration `json:"refresh_token_ttl" toml:"refresh_token_ttl"`
	BcryptCost        int            `json:"bcrypt_cost" toml:"bcrypt_cost"`
	MaxFailedLogins   int            `json:"max_failed_logins" toml:"max_failed_logins"`
	LockoutDuration   timex.Duration `json:"lockout_duration" toml:"lockout_duration"`
	DBMaxOpenConns    int            `json:"db_max_open_conns" toml:"db_max_open_conns"`
	DBMaxIdleConns    int            `json:"db_max_idle_conns" toml:"db_max_idle_conns"`
	DBConnMaxLifetime timex.Duration `json:"db_conn_max_lifetime" toml:"db_conn_max_lifetime"`
	StoreTimeout      timex.Duration `json:"store_timeout" toml:"store_timeout"`
	SweepInterval     timex.Duration `json:"sweep_interval" toml:"sweep_interval"`
	RedisAddr         string         `json:"redis_addr" toml:"redis_addr"`
	RedisPassword     string         `json:"redis_password" toml:"redis_password"`
	RedisDB           int            `json:"redis_db" toml:"redis_db"`
	LogBackend        string         `json:"log_backend" toml:"log_backend"`
	LogLevel          string         `json:"log_level" toml:"log_level"`
	Password          struct {
		RequireUpper   *bool `json:"require_upper" toml:"require_upper"`
		RequireLower   *bool `json:"require_lower" toml:"require_lower"`
		RequireDigit   *bool `json:"require_digit" toml:"require_digit"`
		RequireSpecial *bool `json:"require_special" toml:"require_special"`
	} `json:"password" toml:"password"`
}

// parseFile overlays values from a JSON or TOML file. The format is picked by
// extension; anything other than ".toml" is decoded as JSON. An empty path is
// a no-op.
func parseFile(config *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &fileConfig{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, c)
	} else {
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *fileConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.SigningAlgorithm, c.SigningAlgorithm)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.LogLevel, c.LogLevel)

	setInt(&config.BcryptCost, c.BcryptCost)
	setInt(&config.MaxFailedLogins, c.MaxFailedLogins)
	setInt(&config.DBMaxOpenConns, c.DBMaxOpenConns)
	setInt(&config.DBMaxIdleConns, c.DBMaxIdleConns)
	setInt(&config.RedisDB, c.RedisDB)

	setDuration(&config.AccessTokenTTL, c.AccessTokenTTL)
	setDuration(&config.RefreshTokenTTL, c.RefreshTokenTTL)
	setDuration(&config.LockoutDuration, c.LockoutDuration)
	setDuration(&config.DBConnMaxLifetime, c.DBConnMaxLifetime)
	setDuration(&config.StoreTimeout, c.StoreTimeout)
	setDuration(&config.SweepInterval, c.SweepInterval)

	setBool(&config.RequireUpper, c.Password.RequireUpper)
	setBool(&config.RequireLower, c.Password.RequireLower)
	setBool(&config.RequireDigit, c.Password.RequireDigit)
	setBool(&config.RequireSpecial, c.Password.RequireSpecial)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
