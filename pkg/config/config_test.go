package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PUBLIC_BASE_URL", "https://auth.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://auth.example.com", cfg.Server.PublicBaseURL)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, "7d", cfg.JWT.Expiry)
	assert.Equal(t, "0 3 * * *", cfg.MagicLink.PurgeCron)
	assert.Equal(t, 168, cfg.MagicLink.RetentionHours)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:8080"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("SERVER_ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com , ,https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMongo, cfg.Store.Driver)
	assert.False(t, cfg.Server.IsDevelopment())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			JWT:       JWTConfig{Secret: "secret"},
			Store:     StoreConfig{Driver: StoreMemory},
			Mail:      MailConfig{Driver: MailLog},
			MagicLink: MagicLinkConfig{PurgeCron: "0 3 * * *"},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing_secret", func(t *testing.T) {
		cfg := valid()
		cfg.JWT.Secret = "  "
		assert.ErrorIs(t, cfg.Validate(), ErrMissingJWTSecret)
	})

	t.Run("unknown_store", func(t *testing.T) {
		cfg := valid()
		cfg.Store.Driver = "cassandra"
		assert.Error(t, cfg.Validate())
	})

	t.Run("ses_requires_sender", func(t *testing.T) {
		cfg := valid()
		cfg.Mail.Driver = MailSES
		assert.Error(t, cfg.Validate())
		cfg.Mail.From = "login@example.com"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("bad_cron", func(t *testing.T) {
		cfg := valid()
		cfg.MagicLink.PurgeCron = "every day"
		assert.Error(t, cfg.Validate())
	})
}

func TestDerivedValues(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", db.DSN())

	redis := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", redis.Addr())

	ml := MagicLinkConfig{RetentionHours: 2}
	assert.Equal(t, "2h0m0s", ml.Retention().String())
}
