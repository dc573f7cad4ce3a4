package database

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestGetConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Run("defaults", func(t *testing.T) {
		viper.Reset()
		cfg := GetConfig()

		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, "mantrailing_card", cfg.Name)
		assert.Equal(t, 10, cfg.MaxOpenConns)
		assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	})

	t.Run("overrides", func(t *testing.T) {
		viper.Reset()
		viper.Set("database.host", "db.internal")
		viper.Set("database.ssl_mode", "require")
		viper.Set("database.max_open_conns", 25)

		cfg := GetConfig()

		assert.Equal(t, "db.internal", cfg.Host)
		assert.Equal(t, "require", cfg.SSLMode)
		assert.Equal(t, 25, cfg.MaxOpenConns)
	})
}

func TestDBConfig_DSN(t *testing.T) {
	cfg := &DBConfig{Host: "localhost", Port: "5432", User: "card", Password: "secret", Name: "mantrailing_card", SSLMode: "disable"}

	assert.Equal(t,
		"host=localhost port=5432 user=card password=secret dbname=mantrailing_card sslmode=disable",
		cfg.DSN())
}
