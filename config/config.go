package config

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load initializes the bootstrap configuration with viper. Only process-level
// settings live here; everything runtime-mutable belongs to the settings
// store.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment variables")
	}

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8686")
	viper.SetDefault("db.path", "./data/vibarr.db")
	viper.SetDefault("log.level", "info")

	// Redis is optional; without it download events stay in-process.
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("auth.token_ttl_hours", 24)

	viper.SetDefault("scheduler.workers", 4)
	viper.SetDefault("scheduler.grace_seconds", 5)

	viper.AutomaticEnv()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatal("error reading config file", "err", err)
		}
		log.Debug("config file not found, using defaults and environment")
	} else {
		log.Info("using config file", "path", viper.ConfigFileUsed())
	}

	requiredVars := []string{"auth.jwt_secret"}
	missingVars := []string{}

	for _, v := range requiredVars {
		if !viper.IsSet(v) || viper.GetString(v) == "" {
			missingVars = append(missingVars, v)
		}
	}

	if len(missingVars) > 0 {
		log.Fatal("required configuration variables not set", "vars", strings.Join(missingVars, ", "))
	}
}

// LogLevel parses the configured level, defaulting to info.
func LogLevel() log.Level {
	lvl, err := log.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
