package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var validate = validator.New()

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string   `mapstructure:"app_name" validate:"required"`
	AppEnv         string   `mapstructure:"app_env"`
	LogLevel       string   `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	SourcesFile    string   `mapstructure:"sources_file" validate:"required"`
	PublishersFile string   `mapstructure:"publishers_file"`
	TaxonomyFile   string   `mapstructure:"taxonomy_file"`
	Stores         []string `mapstructure:"stores" validate:"min=1,dive,required"`
	Timezone       string   `mapstructure:"timezone"`

	RunIntervalSeconds int64          `mapstructure:"run_interval" validate:"gt=0"`
	RunInterval        time.Duration  `mapstructure:"-"`
	Location           *time.Location `mapstructure:"-"`

	FetchTimeoutSeconds  int64         `mapstructure:"fetch_timeout_seconds" validate:"gt=0"`
	FetchRetryAttempts   int           `mapstructure:"fetch_retry_attempts" validate:"gte=1,lte=10"`
	FetchRetryWaitMs     int64         `mapstructure:"fetch_retry_wait_ms" validate:"gte=0"`
	FetchRetryMaxWaitMs  int64         `mapstructure:"fetch_retry_max_wait_ms" validate:"gtefield=FetchRetryWaitMs"`
	StoreDelayMs         int64         `mapstructure:"store_delay_ms" validate:"gte=0"`
	MaxOffersPerStore    int           `mapstructure:"max_offers_per_store" validate:"gt=0"`
	FetchTimeout         time.Duration `mapstructure:"-"`
	FetchRetryWait       time.Duration `mapstructure:"-"`
	FetchRetryMaxWait    time.Duration `mapstructure:"-"`
	StoreDelay           time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type" validate:"oneof=bbolt postgres sqlite none"`
	BBoltPath              string        `mapstructure:"bbolt_path" validate:"required_if=StorageType bbolt"`
	SQLitePath             string        `mapstructure:"sqlite_path" validate:"required_if=StorageType sqlite"`
	PostgresDSN            string        `mapstructure:"postgres_dsn" validate:"required_if=StorageType postgres"`
	StorageRetentionSecs   int64         `mapstructure:"storage_retention_seconds" validate:"gt=0"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds" validate:"gt=0"`
	StorageRetention       time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	MaxDiscountAmount  int `mapstructure:"max_discount_amount" validate:"gt=0"`
	MaxMinimumPurchase int `mapstructure:"max_minimum_purchase" validate:"gt=0"`
	MinCodeLength      int `mapstructure:"min_code_length" validate:"gte=1"`

	HTTPAddr      string `mapstructure:"http_addr"`
	WebhookSecret string `mapstructure:"webhook_secret"`

	RunLockType       string        `mapstructure:"runlock_type" validate:"oneof=local redis"`
	RedisAddr         string        `mapstructure:"redis_addr" validate:"required_if=RunLockType redis"`
	RedisPassword     string        `mapstructure:"redis_password"`
	RunLockTTLSeconds int64         `mapstructure:"runlock_ttl_seconds" validate:"gt=0"`
	RunLockTTL        time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Env values arrive as one comma separated string.
	cfg.Stores = splitList(v.GetStringSlice("stores"))

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "samvad-coupon-harvester")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("taxonomy_file", "")
	v.SetDefault("stores", []string{"amazon", "flipkart", "myntra", "snapdeal", "ajio", "nykaa", "croma", "tatacliq"})
	v.SetDefault("timezone", "Local")
	v.SetDefault("run_interval", 21600) // seconds

	v.SetDefault("fetch_timeout_seconds", 30)
	v.SetDefault("fetch_retry_attempts", 3)
	v.SetDefault("fetch_retry_wait_ms", 2000)
	v.SetDefault("fetch_retry_max_wait_ms", 8000)
	v.SetDefault("store_delay_ms", 2000)
	v.SetDefault("max_offers_per_store", 50)

	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/coupons.db")
	v.SetDefault("sqlite_path", "./data/coupons.sqlite")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("storage_retention_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.SetDefault("max_discount_amount", 100000)
	v.SetDefault("max_minimum_purchase", 1000000)
	v.SetDefault("min_code_length", 3)

	v.SetDefault("http_addr", "")
	v.SetDefault("webhook_secret", "")

	v.SetDefault("runlock_type", "local")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("runlock_ttl_seconds", 3600)
}

// finalize validates struct tags and derives the duration and location fields.
func (cfg *Config) finalize() error {
	cfg.StorageType = strings.ToLower(strings.TrimSpace(cfg.StorageType))
	cfg.RunLockType = strings.ToLower(strings.TrimSpace(cfg.RunLockType))

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	cfg.RunInterval = time.Duration(cfg.RunIntervalSeconds) * time.Second
	cfg.FetchTimeout = time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	cfg.FetchRetryWait = time.Duration(cfg.FetchRetryWaitMs) * time.Millisecond
	cfg.FetchRetryMaxWait = time.Duration(cfg.FetchRetryMaxWaitMs) * time.Millisecond
	cfg.StoreDelay = time.Duration(cfg.StoreDelayMs) * time.Millisecond
	cfg.StorageRetention = time.Duration(cfg.StorageRetentionSecs) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second
	cfg.RunLockTTL = time.Duration(cfg.RunLockTTLSeconds) * time.Second

	return nil
}

func loadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "Local", "local":
		return time.Local, nil
	default:
		return time.LoadLocation(name)
	}
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
