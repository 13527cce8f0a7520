package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
	MatrixCacheTTLSeconds int
	DefaultContactRegion  string
	LogLevel              string
	LogFormat             string
	TxMaxRetries          int
	DBAutoMigrate         bool
}

// Load reads the process environment. A .env file in the working directory is
// applied first when present; variables already set win over it.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getInt("REDIS_DB", 0, 0),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		MatrixCacheTTLSeconds: getInt("MATRIX_CACHE_TTL_SECONDS", 20, 1),
		DefaultContactRegion:  strings.ToUpper(getEnv("DEFAULT_CONTACT_REGION", "PH")),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:             strings.ToLower(getEnv("LOG_FORMAT", "json")),
		TxMaxRetries:          getInt("TX_MAX_RETRIES", 3, 1),
		DBAutoMigrate:         getBool("DB_AUTO_MIGRATE", false),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getInt falls back when the value is missing, malformed or below min.
func getInt(key string, fallback int, min int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || v < min {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}
