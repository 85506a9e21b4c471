package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scoring   ScoringConfig
	Scheduler SchedulerConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

// ScoringConfig carries the engine tuning constants. KFactor and
// HalfLifeDays must stay shared across all subjects so interest scores remain
// comparable between rows.
type ScoringConfig struct {
	HalfLifeDays   float64
	KFactor        float64
	GCThreshold    float64
	DefaultTenant  string
	DefaultSegment string
}

// SchedulerConfig controls the optional in-process batch loop. The engine
// itself always takes explicit windows; the scheduler owns the checkpoint.
type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "LEO Activation"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "leo_activation"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
		},
		Scoring: ScoringConfig{
			HalfLifeDays:   getEnvFloat("SCORING_HALF_LIFE_DAYS", 7.0),
			KFactor:        getEnvFloat("SCORING_K_FACTOR", 100.0),
			GCThreshold:    getEnvFloat("SCORING_GC_THRESHOLD", 0.05),
			DefaultTenant:  getEnv("TARGET_TENANT", "master"),
			DefaultSegment: getEnv("TARGET_SEGMENT", "Active in last 3 months"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnv("SCHEDULER_ENABLED", "false") == "true",
			Interval: getEnvDuration("SCHEDULER_INTERVAL", time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}
	if cfg.Scoring.HalfLifeDays <= 0 {
		return nil, errors.New("half-life must be positive")
	}
	if cfg.Scoring.KFactor <= 0 {
		return nil, errors.New("scoring K factor must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
