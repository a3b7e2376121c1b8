package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends for ledger blocks and redemption markers.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Envelope   EnvelopeConfig   `mapstructure:"envelope"`
	Settlement SettlementConfig `mapstructure:"settlement"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// RedemptionTTL bounds how long redemption markers are kept.
	// 0 keeps them forever; anything shorter than the code TTL is rejected.
	RedemptionTTL time.Duration `mapstructure:"redemption_ttl"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // trace, debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type LedgerConfig struct {
	Difficulty      int           `mapstructure:"difficulty"` // leading zero bits, 1..255
	MineTimeout     time.Duration `mapstructure:"mine_timeout"`
	MaxSealAttempts int           `mapstructure:"max_seal_attempts"`
	MiningWorkers   int           `mapstructure:"mining_workers"` // 0 = NumCPU
	Storage         string        `mapstructure:"storage"`        // memory, postgres
	Redemptions     string        `mapstructure:"redemptions"`    // memory, redis, postgres
	AuditInterval   time.Duration `mapstructure:"audit_interval"` // 0 disables periodic validation
}

type EnvelopeConfig struct {
	Key     string        `mapstructure:"key"`    // 32-byte hex-encoded master key
	Cipher  string        `mapstructure:"cipher"` // aes-256-gcm, xchacha20-poly1305
	CodeTTL time.Duration `mapstructure:"code_ttl"`
}

type SettlementConfig struct {
	URL     string        `mapstructure:"url"` // empty disables settlement notices
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SPL_.
// Nested keys use underscore: SPL_LEDGER_DIFFICULTY, SPL_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "qr_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.redemption_ttl", "0s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "qr-payment-ledger")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("ledger.difficulty", 16)
	v.SetDefault("ledger.mine_timeout", "30s")
	v.SetDefault("ledger.max_seal_attempts", 5)
	v.SetDefault("ledger.mining_workers", 0)
	v.SetDefault("ledger.storage", BackendMemory)
	v.SetDefault("ledger.redemptions", BackendMemory)
	v.SetDefault("ledger.audit_interval", "0s")
	v.SetDefault("envelope.key", "")
	v.SetDefault("envelope.cipher", "aes-256-gcm")
	v.SetDefault("envelope.code_ttl", "5m")
	v.SetDefault("settlement.url", "")
	v.SetDefault("settlement.secret", "")
	v.SetDefault("settlement.timeout", "10s")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SPL_LEDGER_DIFFICULTY -> ledger.difficulty
	v.SetEnvPrefix("SPL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks settings that would otherwise fail later at startup or,
// worse, produce a ledger nobody can verify.
func (c *Config) Validate() error {
	var errs []error

	if c.Ledger.Difficulty < 1 || c.Ledger.Difficulty > 255 {
		errs = append(errs, fmt.Errorf("ledger.difficulty must be in [1,255], got %d", c.Ledger.Difficulty))
	}
	if c.Ledger.MineTimeout <= 0 {
		errs = append(errs, errors.New("ledger.mine_timeout must be positive"))
	}
	if c.Ledger.MaxSealAttempts < 1 {
		errs = append(errs, errors.New("ledger.max_seal_attempts must be at least 1"))
	}
	if c.Ledger.MiningWorkers < 0 {
		errs = append(errs, errors.New("ledger.mining_workers must not be negative"))
	}

	switch c.Ledger.Storage {
	case BackendMemory:
	case BackendPostgres:
		if !c.Database.Enabled {
			errs = append(errs, errors.New("ledger.storage=postgres requires database.enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger.storage %q", c.Ledger.Storage))
	}

	switch c.Ledger.Redemptions {
	case BackendMemory:
	case BackendPostgres:
		if !c.Database.Enabled {
			errs = append(errs, errors.New("ledger.redemptions=postgres requires database.enabled"))
		}
	case BackendRedis:
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("ledger.redemptions=redis requires redis.enabled"))
		}
		switch {
		case c.Redis.RedemptionTTL > 0 && c.Envelope.CodeTTL == 0:
			// Codes that never expire need markers that never expire.
			errs = append(errs, errors.New("redis.redemption_ttl must be 0 when envelope.code_ttl is 0"))
		case c.Redis.RedemptionTTL > 0 && c.Redis.RedemptionTTL < c.Envelope.CodeTTL:
			errs = append(errs, errors.New("redis.redemption_ttl must not be shorter than envelope.code_ttl"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger.redemptions %q", c.Ledger.Redemptions))
	}

	if key, err := hex.DecodeString(c.Envelope.Key); err != nil || len(key) != 32 {
		errs = append(errs, errors.New("envelope.key must be 32 bytes hex-encoded"))
	}
	if c.Envelope.CodeTTL < 0 {
		errs = append(errs, errors.New("envelope.code_ttl must not be negative"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}

	if c.Settlement.URL != "" {
		u, err := url.ParseRequestURI(c.Settlement.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("settlement.url %q is not an http(s) URL", c.Settlement.URL))
		}
		if c.Settlement.Secret == "" {
			errs = append(errs, errors.New("settlement.secret is required when settlement.url is set"))
		}
	}

	return errors.Join(errs...)
}
