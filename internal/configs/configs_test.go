package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DevelopmentDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.Equal(t, devDatabaseDSN, cfg.DatabaseDSN)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.False(t, cfg.UserTokenRequired())
	assert.False(t, cfg.TranscriptArchiveEnabled())
}

func TestLoadConfig_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://db/propchat")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "")

	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadConfig_Production(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://db/propchat")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.UserTokenRequired())
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "privileged port", env: map[string]string{"PORT": "80"}, want: "port number"},
		{name: "bad port", env: map[string]string{"PORT": "abc"}, want: "failed to parse"},
		{name: "pow too hard", env: map[string]string{"POW_DIFFICULTY": "9"}, want: "POW_DIFFICULTY"},
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "mongo"}, want: "STORE_DRIVER"},
		{name: "memory outside dev", env: map[string]string{"STORE_DRIVER": "memory", "ENVIRONMENT": "staging", "JWT_SECRET": "x", "DATABASE_URL": "x"}, want: "only allowed"},
		{name: "zero rate", env: map[string]string{"CHAT_MESSAGE_RATE": "0"}, want: "rate limits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUserTokenRequired_ExplicitOverride(t *testing.T) {
	t.Setenv("WS_REQUIRE_USER_TOKEN", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.UserTokenRequired())
}
