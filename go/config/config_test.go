package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCredentials(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001")
}

func TestLoad_Defaults(t *testing.T) {
	setCredentials(t)

	cfg, err := load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, "-1001", cfg.TelegramChatID)
	assert.Equal(t, "ile_de_france_addresses.txt", cfg.AddressesFile)
	assert.Equal(t, "file", cfg.StateBackend)
	assert.Equal(t, "availability_state.json", cfg.StateFile)
	assert.Equal(t, "colly", cfg.Fetcher)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 1, cfg.FetchConcurrency)
	assert.Equal(t, "@every 5m", cfg.CheckSchedule)
	assert.True(t, cfg.TelegramCommands)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	setCredentials(t)
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("FETCH_CONCURRENCY", "4")
	t.Setenv("STATE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "housing-alert")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("TELEGRAM_COMMANDS", "false")

	cfg, err := load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.Equal(t, "s3", cfg.StateBackend)
	assert.Equal(t, "housing-alert", cfg.S3Bucket)
	assert.Equal(t, "json", cfg.LogOptions().Format)
	assert.False(t, cfg.TelegramCommands)
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")

	_, err := load(viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TelegramToken")
}

func TestLoad_BackendRequirements(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "s3 without bucket", env: map[string]string{"STATE_BACKEND": "s3"}, wantErr: true},
		{name: "dynamodb without table", env: map[string]string{"STATE_BACKEND": "dynamodb"}, wantErr: true},
		{name: "dynamodb with table", env: map[string]string{"STATE_BACKEND": "dynamodb", "DYNAMODB_TABLE": "HousingAvailability"}},
		{name: "unknown backend", env: map[string]string{"STATE_BACKEND": "redis"}, wantErr: true},
		{name: "unknown fetcher", env: map[string]string{"FETCHER": "curl"}, wantErr: true},
		{name: "zero concurrency", env: map[string]string{"FETCH_CONCURRENCY": "0"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setCredentials(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(viper.New())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
