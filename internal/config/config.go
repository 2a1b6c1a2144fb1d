// Package config provides configuration management using viper.
// It supports loading from YAML files, an optional .env file and
// environment variable overrides.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Account   AccountConfig   `mapstructure:"account"`
	Wager     WagerConfig     `mapstructure:"wager"`
	Promotion PromotionConfig `mapstructure:"promotion"`
	Referral  ReferralConfig  `mapstructure:"referral"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Bot       BotConfig       `mapstructure:"bot"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	Migrate         bool          `mapstructure:"migrate"`
}

// LogConfig controls the global zerolog logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// LedgerConfig tunes the account row-lock coordinator.
type LedgerConfig struct {
	LockTimeout        time.Duration `mapstructure:"lock_timeout"`
	BusyRetries        uint64        `mapstructure:"busy_retries"`
	BusyBackoffInitial time.Duration `mapstructure:"busy_backoff_initial"`
	BusyBackoffMax     time.Duration `mapstructure:"busy_backoff_max"`
}

// AccountConfig holds registration settings.
type AccountConfig struct {
	OpeningBalance int64 `mapstructure:"opening_balance"` // credited to self-registered players
}

// WagerConfig holds the bet limits shared by all games.
type WagerConfig struct {
	MinBet int64 `mapstructure:"min_bet"`
	MaxBet int64 `mapstructure:"max_bet"`
}

// PromotionConfig holds promotion defaults.
type PromotionConfig struct {
	WageringMultiplier int64 `mapstructure:"wagering_multiplier"`
}

// ReferralConfig holds referral payout settings.
type ReferralConfig struct {
	PayoutAmount int64 `mapstructure:"payout_amount"`
}

// AuditConfig holds ledger metadata encryption and paging settings.
type AuditConfig struct {
	ActiveKeyID        string            `mapstructure:"active_key_id"`
	Keys               map[string]string `mapstructure:"keys"` // key id -> base64 32-byte key
	HistoryPageSize    int               `mapstructure:"history_page_size"`
	ReencryptBatchSize int               `mapstructure:"reencrypt_batch_size"`
	RetryAttempts      uint64            `mapstructure:"retry_attempts"` // post-commit retries of deferred entries
	RetryInterval      time.Duration     `mapstructure:"retry_interval"`
}

// SchedulerConfig holds cron specs for background jobs.
type SchedulerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Reconcile        string        `mapstructure:"reconcile"`
	ExpirePromotions string        `mapstructure:"expire_promotions"`
	Reencrypt        string        `mapstructure:"reencrypt"`
	JobTimeout       time.Duration `mapstructure:"job_timeout"`
}

// NotifyConfig holds notification queue settings.
type NotifyConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// BotConfig holds Telegram bot configuration.
// An empty token disables both the command front-end and the Telegram sink.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// DecodedKeys returns the audit keys decoded from base64.
func (a *AuditConfig) DecodedKeys() (map[string][]byte, error) {
	keys := make(map[string][]byte, len(a.Keys))
	for id, encoded := range a.Keys {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode audit key %q: %w", id, err)
		}
		keys[id] = raw
	}
	return keys, nil
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory. A .env file in the
// working directory is loaded first when present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. DATABASE_HOST, LEDGER_LOCK_TIMEOUT, BOT_TOKEN
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *Config) Validate() error {
	if c.Wager.MinBet <= 0 {
		return fmt.Errorf("wager.min_bet must be positive, got %d", c.Wager.MinBet)
	}
	if c.Wager.MaxBet < c.Wager.MinBet {
		return fmt.Errorf("wager.max_bet (%d) is below wager.min_bet (%d)", c.Wager.MaxBet, c.Wager.MinBet)
	}
	if c.Ledger.LockTimeout <= 0 {
		return fmt.Errorf("ledger.lock_timeout must be positive")
	}
	if c.Account.OpeningBalance < 0 {
		return fmt.Errorf("account.opening_balance must not be negative")
	}
	if c.Promotion.WageringMultiplier < 0 {
		return fmt.Errorf("promotion.wagering_multiplier must not be negative")
	}
	if len(c.Audit.Keys) > 0 {
		if _, ok := c.Audit.Keys[c.Audit.ActiveKeyID]; !ok {
			return fmt.Errorf("audit.active_key_id %q has no key", c.Audit.ActiveKeyID)
		}
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ledger")
	v.SetDefault("database.name", "ledger")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.migrate", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("ledger.lock_timeout", "2s")
	v.SetDefault("ledger.busy_retries", 3)
	v.SetDefault("ledger.busy_backoff_initial", "50ms")
	v.SetDefault("ledger.busy_backoff_max", "1s")

	v.SetDefault("account.opening_balance", 1000)

	v.SetDefault("wager.min_bet", 1)
	v.SetDefault("wager.max_bet", 10000)

	v.SetDefault("promotion.wagering_multiplier", 5)

	v.SetDefault("referral.payout_amount", 100)

	v.SetDefault("audit.active_key_id", "")
	v.SetDefault("audit.history_page_size", 50)
	v.SetDefault("audit.reencrypt_batch_size", 500)
	v.SetDefault("audit.retry_attempts", 3)
	v.SetDefault("audit.retry_interval", "100ms")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reconcile", "0 0 3 * * *")
	v.SetDefault("scheduler.expire_promotions", "0 * * * * *")
	v.SetDefault("scheduler.reencrypt", "")
	v.SetDefault("scheduler.job_timeout", "5m")

	v.SetDefault("notify.buffer_size", 256)
}

// IsAdmin checks if a user ID is in the bootstrap admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}
