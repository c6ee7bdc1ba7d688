// Package config reads the process environment, with a local .env file
// loaded first when present.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	RedisAddr      string
	SessionSecret  string
	LogLevel       string
	AllowedOrigins []string
}

// Load reads configuration. DATABASE_URL and REDIS_ADDR are optional;
// leaving one empty disables the layer that needs it.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:          getenv("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		SessionSecret: getenv("SESSION_SECRET", "dev-secret-do-not-ship"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
	}
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
