package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	signHex = strings.Repeat("11", 32)
	encHex  = strings.Repeat("22", 32)
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PASETO_KEY", strings.Repeat("k", 32))
	t.Setenv("TOKEN_SIGNING_KEY", signHex)
	t.Setenv("TOKEN_ENCRYPTION_KEY", encHex)
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address())
	assert.Len(t, cfg.Tokens.Keys.SigningKey, 32)
	assert.Empty(t, cfg.Tokens.RetiredKeys)
	assert.False(t, cfg.Email.SMTPEnabled())
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=taskhub sslmode=disable", cfg.Database.ConnectionString())
}

func TestFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("ACCESS_TOKEN_DURATION", "60")
	t.Setenv("TRUSTED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("FRONTEND_URL", "https://app.example/")
	t.Setenv("DB_CHANNEL_BINDING", "require")
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("TOKEN_RETIRED_KEYS", strings.Repeat("33", 32)+":"+strings.Repeat("44", 32))

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.False(t, cfg.Server.IsDevelopment())
	assert.Equal(t, time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.TrustedOrigins)
	assert.Equal(t, "https://app.example", cfg.Email.FrontendURL)
	assert.Contains(t, cfg.Database.ConnectionString(), "channel_binding=require")
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Len(t, cfg.Tokens.RetiredKeys, 1)
}

func TestFromEnvRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "short paseto key", env: map[string]string{"PASETO_KEY": "short"}, want: "PASETO_KEY"},
		{name: "signing key not hex", env: map[string]string{"TOKEN_SIGNING_KEY": "xyz"}, want: "TOKEN_SIGNING_KEY"},
		{name: "short encryption key", env: map[string]string{"TOKEN_ENCRYPTION_KEY": "abcd"}, want: "TOKEN_ENCRYPTION_KEY"},
		{name: "bad retired keys", env: map[string]string{"TOKEN_RETIRED_KEYS": "nocolon"}, want: "TOKEN_RETIRED_KEYS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
