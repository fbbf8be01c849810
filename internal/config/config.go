package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Gemini AI
	GeminiAPIKey         string
	GeminiConcurrentReqs int

	// Content
	DataPath       string
	ContentBaseURL string
	StoragePath    string

	// Quiz
	QuizDuration          time.Duration
	AllChaptersSampleSize int
	SessionIdleTTL        time.Duration

	// Question generation
	DefaultNumQuestions int
	MinNumQuestions     int
	MaxNumQuestions     int
	WorkerCount         int
	EnableAuthoring     bool
	AuthoringKeyHash    string

	// Frontend
	CORSOrigins []string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		DatabaseURL:           getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:              mustGetEnv("REDIS_URL"),
		JWTSecret:             mustGetEnv("JWT_SECRET"),
		GeminiAPIKey:          getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiConcurrentReqs:  getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		DataPath:              getEnvOrDefault("DATA_PATH", "./public"),
		ContentBaseURL:        getEnvOrDefault("CONTENT_BASE_URL", ""),
		StoragePath:           getEnvOrDefault("STORAGE_PATH", "./uploads"),
		QuizDuration:          time.Duration(getEnvAsIntOrDefault("QUIZ_DURATION_SECONDS", 1200)) * time.Second,
		AllChaptersSampleSize: getEnvAsIntOrDefault("ALL_CHAPTERS_SAMPLE_SIZE", 50),
		SessionIdleTTL:        time.Duration(getEnvAsIntOrDefault("SESSION_IDLE_TTL_MINUTES", 360)) * time.Minute,
		DefaultNumQuestions:   getEnvAsIntOrDefault("DEFAULT_NUM_QUESTIONS", 15),
		MinNumQuestions:       getEnvAsIntOrDefault("MIN_NUM_QUESTIONS", 5),
		MaxNumQuestions:       getEnvAsIntOrDefault("MAX_NUM_QUESTIONS", 50),
		WorkerCount:           getEnvAsIntOrDefault("WORKER_COUNT", 3),
		EnableAuthoring:       getEnvAsBoolOrDefault("ENABLE_AUTHORING", false),
		AuthoringKeyHash:      getEnvOrDefault("AUTHORING_KEY_HASH", ""),
		CORSOrigins:           getEnvAsListOrDefault("CORS_ORIGINS", []string{"http://localhost:5173"}),
	}

	// Authoring writes chapters and spends Gemini quota, so it needs the
	// generation stack and an operator key.
	if cfg.EnableAuthoring {
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
		cfg.AuthoringKeyHash = mustGetEnv("AUTHORING_KEY_HASH")
	}

	return cfg
}

// ClampNumQuestions bounds a requested question count, using the default
// for zero or negative requests.
func (c *Config) ClampNumQuestions(n int) int {
	if n <= 0 {
		n = c.DefaultNumQuestions
	}
	if n < c.MinNumQuestions {
		return c.MinNumQuestions
	}
	if n > c.MaxNumQuestions {
		return c.MaxNumQuestions
	}
	return n
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvAsListOrDefault splits a comma-separated value, dropping blanks.
func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
