package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultJWTSecret is only acceptable outside production.
const DefaultJWTSecret = "dev-secret-change-me"

type Config struct {
	AppName         string
	Environment     string
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ServerAddr      string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	APIDomain       string
	WebsiteDomain   string
	CORSOrigins     []string
	LogLevel        string
	LogDir          string
	LogToFile       bool
	LogMaxSizeMB    int
	LogMaxAgeDays   int
	AniListURL      string
	RateLimit       bool
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	MailFrom        string
}

// LoadConfig reads an optional .env and an optional otakushelf.{yaml,json,toml}
// and lets environment variables override both.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("otakushelf")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("app_name", "OtakuShelf")
	v.SetDefault("environment", "development")
	v.SetDefault("database_url", "sqlite://otaku_shelf.db")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("port", ":8000")
	v.SetDefault("jwt_secret", DefaultJWTSecret)
	v.SetDefault("access_token_ttl", 15*time.Minute)
	v.SetDefault("refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("api_domain", "http://localhost:8000")
	v.SetDefault("website_domain", "http://localhost:3000")
	v.SetDefault("cors_origins", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "./logs")
	v.SetDefault("log_to_file", true)
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_age_days", 7)
	v.SetDefault("anilist_url", "https://graphql.anilist.co")
	v.SetDefault("rate_limit", true)
	v.SetDefault("smtp_port", 587)
	v.SetDefault("mail_from", "OtakuShelf <no-reply@otakushelf.local>")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	port := v.GetString("port")
	if port != "" && !strings.Contains(port, ":") {
		port = ":" + port
	}

	cfg := &Config{
		AppName:         v.GetString("app_name"),
		Environment:     strings.ToLower(v.GetString("environment")),
		DatabaseURL:     v.GetString("database_url"),
		RedisAddr:       v.GetString("redis_addr"),
		RedisPassword:   v.GetString("redis_password"),
		RedisDB:         v.GetInt("redis_db"),
		ServerAddr:      port,
		JWTSecret:       v.GetString("jwt_secret"),
		AccessTokenTTL:  v.GetDuration("access_token_ttl"),
		RefreshTokenTTL: v.GetDuration("refresh_token_ttl"),
		APIDomain:       v.GetString("api_domain"),
		WebsiteDomain:   v.GetString("website_domain"),
		CORSOrigins:     splitList(v.GetString("cors_origins")),
		LogLevel:        v.GetString("log_level"),
		LogDir:          v.GetString("log_dir"),
		LogToFile:       v.GetBool("log_to_file"),
		LogMaxSizeMB:    v.GetInt("log_max_size_mb"),
		LogMaxAgeDays:   v.GetInt("log_max_age_days"),
		AniListURL:      v.GetString("anilist_url"),
		RateLimit:       v.GetBool("rate_limit"),
		SMTPHost:        v.GetString("smtp_host"),
		SMTPPort:        v.GetInt("smtp_port"),
		SMTPUsername:    v.GetString("smtp_username"),
		SMTPPassword:    v.GetString("smtp_password"),
		MailFrom:        v.GetString("mail_from"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Environment {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("invalid ENVIRONMENT %q", c.Environment)
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret) {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
