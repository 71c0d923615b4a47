/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables (with an
 * optional .env file), providing a centralized and straightforward way to
 * manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	SnapshotPath         string `mapstructure:"SNAPSHOT_PATH"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	LedgerEventExchange  string `mapstructure:"LEDGER_EVENT_EXCHANGE"`
	WebhookURL           string `mapstructure:"WEBHOOK_URL"`
	InternalAPIKey       string `mapstructure:"INTERNAL_API_KEY"`

	ValuationSchedule string `mapstructure:"VALUATION_SCHEDULE"`
	SnapshotSchedule  string `mapstructure:"SNAPSHOT_SCHEDULE"`

	NotifyQueueDepth           int `mapstructure:"NOTIFY_QUEUE_DEPTH"`
	PosRateLimitPerMinute      int `mapstructure:"POS_RATE_LIMIT_PER_MINUTE"`
	CashbackRateLimitPerMinute int `mapstructure:"CASHBACK_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SNAPSHOT_PATH", "data/ledger.json")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "primebank:rate_limit")
	viper.SetDefault("LEDGER_EVENT_EXCHANGE", "primebank.events")
	viper.SetDefault("VALUATION_SCHEDULE", "@every 5m")
	viper.SetDefault("SNAPSHOT_SCHEDULE", "@every 10m")
	viper.SetDefault("NOTIFY_QUEUE_DEPTH", 256)
	viper.SetDefault("POS_RATE_LIMIT_PER_MINUTE", 0)
	viper.SetDefault("CASHBACK_RATE_LIMIT_PER_MINUTE", 0)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("SNAPSHOT_PATH")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("LEDGER_EVENT_EXCHANGE")
	_ = viper.BindEnv("WEBHOOK_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("VALUATION_SCHEDULE")
	_ = viper.BindEnv("SNAPSHOT_SCHEDULE")
	_ = viper.BindEnv("NOTIFY_QUEUE_DEPTH")
	_ = viper.BindEnv("POS_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("CASHBACK_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist; the
	// environment values are authoritative either way.
	if err = viper.ReadInConfig(); err != nil {
		err = nil
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "primebank:rate_limit"
	}
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	return
}
