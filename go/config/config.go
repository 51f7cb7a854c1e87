// Package config reads the checker settings from the environment.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samsarahq/go/oops"
	"github.com/spf13/viper"

	"github.com/KevinXing/housing-alert/go/logging"
)

type Config struct {
	TelegramToken  string `mapstructure:"TELEGRAM_BOT_TOKEN" validate:"required"`
	TelegramChatID string `mapstructure:"TELEGRAM_CHAT_ID" validate:"required"`
	TelegramAPIURL string `mapstructure:"TELEGRAM_API_URL" validate:"omitempty,url"`

	// TelegramCommands makes watch mode answer /start in the chat.
	TelegramCommands bool `mapstructure:"TELEGRAM_COMMANDS"`

	AddressesFile string `mapstructure:"ADDRESSES_FILE" validate:"required"`

	StateBackend  string `mapstructure:"STATE_BACKEND" validate:"oneof=file s3 dynamodb"`
	StateFile     string `mapstructure:"STATE_FILE" validate:"required_if=StateBackend file"`
	S3Bucket      string `mapstructure:"S3_BUCKET" validate:"required_if=StateBackend s3"`
	S3Key         string `mapstructure:"S3_KEY" validate:"required_if=StateBackend s3"`
	DynamoDBTable string `mapstructure:"DYNAMODB_TABLE" validate:"required_if=StateBackend dynamodb"`
	AWSRegion     string `mapstructure:"AWS_REGION"`

	Fetcher          string        `mapstructure:"FETCHER" validate:"oneof=colly tls"`
	FetchTimeout     time.Duration `mapstructure:"FETCH_TIMEOUT" validate:"gt=0"`
	FetchConcurrency int           `mapstructure:"FETCH_CONCURRENCY" validate:"min=1,max=32"`
	UserAgent        string        `mapstructure:"USER_AGENT"`

	CheckSchedule string `mapstructure:"CHECK_SCHEDULE" validate:"required"`

	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFormat     string `mapstructure:"LOG_FORMAT" validate:"oneof=console json"`
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
}

var defaults = map[string]interface{}{
	"TELEGRAM_API_URL":  "https://api.telegram.org",
	"TELEGRAM_COMMANDS": true,
	"ADDRESSES_FILE":    "ile_de_france_addresses.txt",
	"STATE_BACKEND":     "file",
	"STATE_FILE":        "availability_state.json",
	"S3_KEY":            "availability-state.json",
	"AWS_REGION":        "us-west-2",
	"FETCHER":           "colly",
	"FETCH_TIMEOUT":     "30s",
	"FETCH_CONCURRENCY": 1,
	"CHECK_SCHEDULE":    "@every 5m",
	"LOG_LEVEL":         "info",
	"LOG_FORMAT":        "console",
	"LOG_MAX_SIZE_MB":   10,
	"LOG_MAX_BACKUPS":   3,
}

// Load reads a .env file when present, then the process environment, applies
// defaults and validates the result. Missing Telegram credentials are an error
// here so a misconfigured deployment fails at startup.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// Unmarshal only sees keys viper knows about.
	for _, key := range []string{"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "S3_BUCKET", "DYNAMODB_TABLE", "USER_AGENT", "LOG_FILE"} {
		if err := v.BindEnv(key); err != nil {
			return nil, oops.Wrapf(err, "bind %s", key)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, oops.Wrapf(err, "decode configuration")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, oops.Wrapf(err, "invalid configuration")
	}
	return cfg, nil
}

func (c *Config) LogOptions() logging.Options {
	return logging.Options{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
	}
}
