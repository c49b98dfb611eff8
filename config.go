package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config carries everything the process needs. It is constructed once
// at startup and passed by reference; nothing reads viper after that.
type Config struct {
	Addr         string
	DatabasePath string
	SecretKey    string
	LogLevel     string
}

// loadConfig reads config.yml (working directory or configs/) with
// HASHTWIT_* environment overrides. The secret key has no default.
func loadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("configs")
	v.SetEnvPrefix("hashtwit")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":5000")
	v.SetDefault("db.path", "hashtwit.db")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Addr:         v.GetString("addr"),
		DatabasePath: v.GetString("db.path"),
		SecretKey:    v.GetString("secret_key"),
		LogLevel:     v.GetString("log.level"),
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("secret_key must be set in config.yml or HASHTWIT_SECRET_KEY")
	}
	return cfg, nil
}
