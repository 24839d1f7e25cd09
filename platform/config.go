package platform

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 汇总服务启动需要的全部配置
type Config struct {
	Port       string
	GinMode    string
	CORSOrigin string
	Log        LogConfig
	DB         DBConfig
	LLM        LLMConfig
	Chat       ChatConfig
	Auth       AuthConfig
	Lock       LockConfig
}

type LogConfig struct {
	Path  string
	Name  string
	Level string
}

// DBConfig 包含数据库连接的配置信息
type DBConfig struct {
	Driver     string // "mysql" or "sqlite"
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SQLitePath string
}

type LLMConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	ModerationModel string
	MaxTokens       int
	Temperature     float64
	Timeout         time.Duration
	MaxRetries      int
}

type ChatConfig struct {
	HistoryLimit int
	TokenBudget  int
}

type AuthConfig struct {
	AccessSecret string
	TokenTTL     time.Duration
}

type LockConfig struct {
	RedisURL string
	TTL      time.Duration
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() Config {
	_ = godotenv.Load(".env")

	return Config{
		Port:       getEnv("PORT", "8080"),
		GinMode:    getEnv("GIN_MODE", "debug"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost"),
		Log: LogConfig{
			Path:  getEnv("LOG_PATH", "./log"),
			Name:  getEnv("LOG_NAME", "convochat"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			Driver:     getEnv("SQL_DRIVER", "mysql"),
			Host:       getEnv("SQL_HOST", "127.0.0.1"),
			Port:       getEnv("SQL_PORT", "3306"),
			User:       getEnv("SQL_USER", ""),
			Password:   getEnv("SQL_PASSWORD", ""),
			DBName:     getEnv("SQL_DBNAME", "convochat"),
			SQLitePath: getEnv("SQLITE_PATH", "convochat.db"),
		},
		LLM: LLMConfig{
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			APIKey:          getEnv("LLM_API_KEY", ""),
			Model:           getEnv("LLM_MODEL", "gpt-4o-mini"),
			ModerationModel: getEnv("LLM_MODERATION_MODEL", "omni-moderation-latest"),
			MaxTokens:       getEnvInt("LLM_MAX_TOKENS", 1000),
			Temperature:     getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:         getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			MaxRetries:      getEnvInt("LLM_MAX_RETRIES", 2),
		},
		Chat: ChatConfig{
			HistoryLimit: getEnvInt("MESSAGE_HISTORY_LIMIT", 12),
			TokenBudget:  getEnvInt("MESSAGE_TOKEN_BUDGET", 3000),
		},
		Auth: AuthConfig{
			AccessSecret: getEnv("ACCESS_SECRET", ""),
			TokenTTL:     getEnvDuration("TOKEN_TTL", 7*24*time.Hour),
		},
		Lock: LockConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      getEnvDuration("LOCK_TTL", 2*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
