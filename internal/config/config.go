package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	DatabaseURL    string
	JWTSecret      string
	TokenTTLHours  int
	AdminUsername  string
	AdminPassword  string
	MetricsEnabled bool
	CORSOrigins    []string
}

// Load reads configuration from the environment, with an optional .env file
// in the working directory filling in anything the environment leaves unset.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Port:          8080,
		TokenTTLHours: 24,
		AdminUsername: "admin",
	}

	if raw := strings.TrimSpace(os.Getenv("PORT")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 {
			return Config{}, fmt.Errorf("invalid PORT: %q", raw)
		}
		cfg.Port = port
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required (environment variable or .env)")
	}

	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required (environment variable or .env)")
	}

	if raw := strings.TrimSpace(os.Getenv("TOKEN_TTL_HOURS")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_TTL_HOURS: %q", raw)
		}
		cfg.TokenTTLHours = hours
	}

	if raw := strings.TrimSpace(os.Getenv("ADMIN_USERNAME")); raw != "" {
		cfg.AdminUsername = raw
	}
	cfg.AdminPassword = strings.TrimSpace(os.Getenv("ADMIN_PASSWORD"))

	if raw := strings.TrimSpace(os.Getenv("METRICS_ENABLED")); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid METRICS_ENABLED: %q", raw)
		}
		cfg.MetricsEnabled = enabled
	}

	if raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	return cfg, nil
}
