package config

import (
	"errors"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     string
	LogLevel string

	DBDriver string
	DBUrl    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration

	PasswordHasher string
	BcryptCost     int
	HashWorkers    int

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	RequestTimeout time.Duration

	SMTPHost string
	SMTPPort string
	SMTPFrom string
	ResetURL string
}

const defaultJWTSecret = "default-secret-key-change-in-production"

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, using defaults")
	}

	return Config{
		Env:      getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBDriver: getEnv("DB_DRIVER", "mysql"),
		DBUrl:    os.Getenv("DB_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:       getEnv("JWT_SECRET", defaultJWTSecret),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ResetTokenTTL:   getEnvDuration("RESET_TOKEN_TTL", time.Hour),

		PasswordHasher: getEnv("PASSWORD_HASHER", "bcrypt"),
		BcryptCost:     getEnvInt("BCRYPT_COST", 12),
		HashWorkers:    getEnvInt("HASH_WORKERS", runtime.NumCPU()),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20),
		CORSOrigins:    strings.Split(getEnv("CORS_ORIGINS", "*"), ","),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: getEnv("SMTP_PORT", "25"),
		SMTPFrom: getEnv("SMTP_FROM", "noreply@shop.local"),
		ResetURL: getEnv("RESET_URL", "http://localhost:3000/password-reset-confirm"),
	}
}

// Validate rejects configurations that would run with an unsafe signing key
// or an unknown backend.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "memory":
	default:
		return errors.New("DB_DRIVER must be one of mysql, postgres, memory")
	}
	if c.DBDriver != "memory" && c.DBUrl == "" {
		return errors.New("DB_URL is required")
	}
	if c.IsProduction() && (c.JWTSecret == defaultJWTSecret || len(c.JWTSecret) < 32) {
		return errors.New("JWT_SECRET must be set to at least 32 characters in production")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= c.AccessTokenTTL {
		return errors.New("REFRESH_TOKEN_TTL must be longer than ACCESS_TOKEN_TTL")
	}
	if c.ResetTokenTTL <= 0 {
		return errors.New("RESET_TOKEN_TTL must be positive")
	}
	switch c.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		return errors.New("PASSWORD_HASHER must be bcrypt or argon2id")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) UsesDefaultSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
