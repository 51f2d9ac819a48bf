package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env      string `mapstructure:"FEED_ENV"`
	LogLevel string `mapstructure:"FEED_LOG_LEVEL"` // empty uses the env default
	HTTPAddr string `mapstructure:"FEED_HTTP_ADDR"`

	Database    DBConfig          `mapstructure:",squash"`
	Cache       CacheConfig       `mapstructure:",squash"`
	Leaderboard LeaderboardConfig `mapstructure:",squash"`
	Security    SecurityConfig    `mapstructure:",squash"`
}

type DBConfig struct {
	Type        string `mapstructure:"FEED_DB_TYPE"` // "memory", "postgres"
	PostgresDSN string `mapstructure:"FEED_POSTGRES_DSN"`
	MaxConns    int32  `mapstructure:"FEED_DB_MAX_CONNS"`
	AutoMigrate bool   `mapstructure:"FEED_DB_AUTO_MIGRATE"`
}

type CacheConfig struct {
	RedisAddr string `mapstructure:"FEED_REDIS_ADDR"`
}

type LeaderboardConfig struct {
	Window          time.Duration `mapstructure:"FEED_LEADERBOARD_WINDOW"`
	Limit           int           `mapstructure:"FEED_LEADERBOARD_LIMIT"`
	MaxLimit        int           `mapstructure:"FEED_LEADERBOARD_MAX_LIMIT"`
	PublishInterval time.Duration `mapstructure:"FEED_LEADERBOARD_PUBLISH_INTERVAL"` // 0 disables
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"FEED_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"FEED_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("backend", ".env"),
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if !filepath.IsAbs(path) {
			if resolved, err := filepath.Abs(path); err == nil {
				abs = resolved
			}
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // env vars already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("FEED_ENV", "dev")
	v.SetDefault("FEED_LOG_LEVEL", "")
	v.SetDefault("FEED_HTTP_ADDR", ":8080")
	v.SetDefault("FEED_DB_TYPE", "memory")
	v.SetDefault("FEED_POSTGRES_DSN", "")
	v.SetDefault("FEED_DB_MAX_CONNS", 20)
	v.SetDefault("FEED_DB_AUTO_MIGRATE", true)
	v.SetDefault("FEED_REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("FEED_LEADERBOARD_WINDOW", "24h")
	v.SetDefault("FEED_LEADERBOARD_LIMIT", 5)
	v.SetDefault("FEED_LEADERBOARD_MAX_LIMIT", 50)
	v.SetDefault("FEED_LEADERBOARD_PUBLISH_INTERVAL", "30s")
	v.SetDefault("FEED_RATE_LIMIT_RPM", 120)
	v.SetDefault("FEED_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")

	// Handle array parsing for comma-separated values
	if origins := v.GetString("FEED_CORS_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		v.Set("FEED_CORS_ALLOWED_ORIGINS", parts)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database.Type = strings.ToLower(strings.TrimSpace(cfg.Database.Type))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Type {
	case "memory":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("FEED_POSTGRES_DSN is required when FEED_DB_TYPE=postgres")
		}
	default:
		return fmt.Errorf("invalid FEED_DB_TYPE %q (must be memory or postgres)", c.Database.Type)
	}
	if c.Leaderboard.Window <= 0 {
		return fmt.Errorf("FEED_LEADERBOARD_WINDOW must be positive")
	}
	if c.Leaderboard.Limit <= 0 {
		return fmt.Errorf("FEED_LEADERBOARD_LIMIT must be positive")
	}
	if c.Leaderboard.MaxLimit < c.Leaderboard.Limit {
		return fmt.Errorf("FEED_LEADERBOARD_MAX_LIMIT must be at least FEED_LEADERBOARD_LIMIT")
	}
	if c.Leaderboard.PublishInterval < 0 {
		return fmt.Errorf("FEED_LEADERBOARD_PUBLISH_INTERVAL must not be negative")
	}
	if c.Security.RateLimitRPM <= 0 {
		return fmt.Errorf("FEED_RATE_LIMIT_RPM must be positive")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}
