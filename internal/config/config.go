// Package config loads configuration from the environment, following the
// teacher's config.Load() shape (env vars with defaults, godotenv for
// local development).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Duel     DuelConfig
	OpenAI   OpenAIConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type ServerConfig struct {
	Port string
}

type AppConfig struct {
	JWTSecret string
}

// DuelConfig enumerates every runtime-tunable duel parameter: timing
// windows, the ELO K-factor, problem reuse limits, judge limits, and
// submission rate limits.
type DuelConfig struct {
	EloKFactor int

	ProblemTTLDays  int
	ProblemMaxReuse int

	WaitingTimeoutRandom  time.Duration
	WaitingTimeoutAI      time.Duration
	WaitingTimeoutPrivate time.Duration
	InProgressDeadline    time.Duration

	SubmissionTimeLimit  time.Duration
	SubmissionMemoryMB   int

	CodeUpdateDebounce time.Duration
	WSTimeout          time.Duration

	SweepInterval time.Duration

	SubmissionRateLimit  int
	SubmissionRateWindow time.Duration
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

// Load loads configuration from environment variables, with an optional
// .env file for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "codeduel"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Duel: DuelConfig{
			EloKFactor: getEnvInt("ELO_K_FACTOR", 32),

			ProblemTTLDays:  getEnvInt("PROBLEM_TTL_DAYS", 30),
			ProblemMaxReuse: getEnvInt("PROBLEM_MAX_REUSE", 3),

			WaitingTimeoutRandom:  time.Duration(getEnvInt("WAITING_TIMEOUT_RANDOM_SEC", 30*60)) * time.Second,
			WaitingTimeoutAI:      time.Duration(getEnvInt("WAITING_TIMEOUT_AI_SEC", 10*60)) * time.Second,
			WaitingTimeoutPrivate: time.Duration(getEnvInt("WAITING_TIMEOUT_PRIVATE_SEC", 60*60)) * time.Second,
			InProgressDeadline:    time.Duration(getEnvInt("IN_PROGRESS_DEADLINE_SEC", 25*60)) * time.Second,

			SubmissionTimeLimit: time.Duration(getEnvInt("SUBMISSION_TIME_LIMIT_SEC", 5)) * time.Second,
			SubmissionMemoryMB:  getEnvInt("SUBMISSION_MEMORY_MB", 256),

			CodeUpdateDebounce: time.Duration(getEnvInt("CODE_UPDATE_DEBOUNCE_MS", 300)) * time.Millisecond,
			WSTimeout:          time.Duration(getEnvInt("WS_TIMEOUT_SEC", 60)) * time.Second,

			SweepInterval: time.Duration(getEnvInt("SWEEP_INTERVAL_SEC", 30)) * time.Second,

			SubmissionRateLimit:  getEnvInt("SUBMISSION_RATE_LIMIT", 10),
			SubmissionRateWindow: time.Duration(getEnvInt("SUBMISSION_RATE_WINDOW_SEC", 60)) * time.Second,
		},
		OpenAI: OpenAIConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
			Model:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
	}

	if cfg.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// GetDSN returns the PostgreSQL connection string. DATABASE_URL takes
// priority over individual DB_* variables, a Railway-friendly fallback.
func (c *Config) GetDSN() string {
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName,
	)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}
