package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	STT       STTConfig
	Audio     AudioConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// STTConfig holds the upstream speech-to-text settings. URL and Token may be
// empty at startup; the relay reports that condition per request.
type STTConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

type AudioConfig struct {
	FetchTimeout time.Duration
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	File   string // optional rotating log file
}

type RateLimitConfig struct {
	Enabled bool
	Backend string // "memory" or "redis"
	RPS     float64
	Burst   int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MetricsConfig struct {
	Addr string // empty disables the metrics listener
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	readTimeout, err := getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getEnvDuration("SERVER_WRITE_TIMEOUT", 420*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}

	sttTimeout, err := getEnvDuration("STT_TIMEOUT", 300*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid STT_TIMEOUT: %w", err)
	}

	fetchTimeout, err := getEnvDuration("AUDIO_FETCH_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIO_FETCH_TIMEOUT: %w", err)
	}

	rlEnabled, err := getEnvBool("RATE_LIMIT_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_ENABLED: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         port,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		STT: STTConfig{
			URL:     getEnv("STT_URL", ""),
			Token:   getEnv("STT_TOKEN", ""),
			Timeout: sttTimeout,
		},
		Audio: AudioConfig{
			FetchTimeout: fetchTimeout,
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
			File:   getEnv("LOG_FILE", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled: rlEnabled,
			Backend: strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "memory")),
			RPS:     rps,
			Burst:   burst,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Metrics: MetricsConfig{
			Addr: os.Getenv("METRICS_ADDR"),
		},
	}
	if _, ok := os.LookupEnv("METRICS_ADDR"); !ok {
		cfg.Metrics.Addr = ":9091"
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Configured reports whether both the STT endpoint and token are set.
func (c STTConfig) Configured() bool {
	return c.URL != "" && c.Token != ""
}

func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "SERVER_PORT must be between 1 and 65535")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		problems = append(problems, "server timeouts must be positive")
	}
	if c.STT.Timeout <= 0 {
		problems = append(problems, "STT_TIMEOUT must be positive")
	}
	if c.Audio.FetchTimeout <= 0 {
		problems = append(problems, "AUDIO_FETCH_TIMEOUT must be positive")
	}
	// A URL fetch and the STT call run back to back inside one response.
	if c.Server.WriteTimeout <= c.STT.Timeout+c.Audio.FetchTimeout {
		problems = append(problems, "SERVER_WRITE_TIMEOUT must exceed STT_TIMEOUT + AUDIO_FETCH_TIMEOUT")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, "LOG_LEVEL must be one of debug|info|warn|error")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		problems = append(problems, "LOG_FORMAT must be json or text")
	}
	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case "memory", "redis":
		default:
			problems = append(problems, "RATE_LIMIT_BACKEND must be memory or redis")
		}
		if c.RateLimit.RPS <= 0 {
			problems = append(problems, "RATE_LIMIT_RPS must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			problems = append(problems, "RATE_LIMIT_BURST must be positive")
		}
		if c.RateLimit.Backend == "redis" && c.Redis.Addr == "" {
			problems = append(problems, "REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
