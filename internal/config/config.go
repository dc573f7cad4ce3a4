package config

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Load reads .env and binds the environment variables the service uses.
// Environment variables override values from the file.
func Load() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	bindings := map[string]string{
		"server.port":        "PORT",
		"server.public_host": "PUBLIC_HOST",

		"database.host":     "DATABASE_HOST",
		"database.port":     "DATABASE_PORT",
		"database.user":     "DATABASE_USER",
		"database.password": "DATABASE_PASSWORD",
		"database.name":     "DATABASE_NAME",
		"database.ssl_mode": "DATABASE_SSL_MODE",
		"database.migrate":  "DATABASE_MIGRATE",

		"redis.host":     "REDIS_HOST",
		"redis.port":     "REDIS_PORT",
		"redis.password": "REDIS_PASSWORD",
		"redis.db":       "REDIS_DB",

		"jwt.secret_key":   "JWT_SECRET_KEY",
		"jwt.expiry_hours": "JWT_EXPIRY_HOURS",

		"argon2.time":        "ARGON2_TIME",
		"argon2.memory":      "ARGON2_MEMORY",
		"argon2.threads":     "ARGON2_THREADS",
		"argon2.key_length":  "ARGON2_KEY_LENGTH",
		"argon2.salt_length": "ARGON2_SALT_LENGTH",

		"ledger.session_price":        "LEDGER_SESSION_PRICE",
		"ledger.session_marker":       "LEDGER_SESSION_MARKER",
		"ledger.match_session_marker": "LEDGER_MATCH_SESSION_MARKER",
		"ledger.recharge_description": "LEDGER_RECHARGE_DESCRIPTION",

		"ledger.required_hours.einsteiger":       "LEDGER_REQUIRED_HOURS_EINSTEIGER",
		"ledger.required_hours.grundlagen":       "LEDGER_REQUIRED_HOURS_GRUNDLAGEN",
		"ledger.required_hours.fortgeschrittene": "LEDGER_REQUIRED_HOURS_FORTGESCHRITTENE",
		"ledger.required_hours.masterclass":      "LEDGER_REQUIRED_HOURS_MASTERCLASS",
		"ledger.required_hours.expert":           "LEDGER_REQUIRED_HOURS_EXPERT",

		"auth.admin_email":    "ADMIN_EMAIL",
		"auth.admin_password": "ADMIN_PASSWORD",

		"qr.ttl": "QR_TTL",

		"log.level":  "LOG_LEVEL",
		"log.format": "LOG_FORMAT",
	}
	for key, env := range bindings {
		viper.BindEnv(key, env)
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		logrus.WithError(err).Info("Config file not found, using environment and defaults")
	}
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.migrate", true)
	viper.SetDefault("jwt.expiry_hours", 12)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("qr.ttl", "10m")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}
