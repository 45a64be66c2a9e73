package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"trivia-quiz/internal/domain"

	"gopkg.in/yaml.v3"
)

// History backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Quiz struct {
		Duration   int    `yaml:"duration"`
		Amount     int    `yaml:"amount"`
		Difficulty string `yaml:"difficulty"`
	} `yaml:"quiz"`
	Trivia struct {
		BaseURL     string `yaml:"baseURL"`
		Timeout     string `yaml:"timeout"`
		MinInterval string `yaml:"minInterval"`
	} `yaml:"trivia"`
	History struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"history"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Quiz.Duration = domain.DefaultDuration
	cfg.Quiz.Amount = domain.QuestionsPerSession
	cfg.Quiz.Difficulty = string(domain.DifficultyEasy)
	cfg.Trivia.BaseURL = "https://opentdb.com"
	cfg.Trivia.Timeout = "15s"
	cfg.Trivia.MinInterval = "5s"
	cfg.History.Backend = BackendSQLite
	cfg.History.Path = "data/history.db"
	cfg.Redis.TTL = "30m"
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch c.History.Backend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("history backend redis needs redis.addr")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("history backend postgres needs postgres.url")
		}
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	if c.Quiz.Duration <= 0 || c.Quiz.Duration > domain.DefaultDuration {
		return fmt.Errorf("quiz.duration must be between 1 and %d", domain.DefaultDuration)
	}
	if c.Quiz.Amount <= 0 {
		return errors.New("quiz.amount must be positive")
	}
	if _, err := domain.ParseDifficulty(c.Quiz.Difficulty); err != nil {
		return fmt.Errorf("quiz.difficulty: %w", err)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
