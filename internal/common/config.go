package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Naga     NagaConfig
	Paipu    PaipuConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// NagaConfig holds the analysis service client and coordinator settings
type NagaConfig struct {
	BaseURL       string
	Cookies       map[string]string
	UseFake       bool
	FakeDelay     time.Duration
	HTTPTimeout   time.Duration
	Timeout       time.Duration
	PollInterval  time.Duration
	AckAttempts   int
	ClockSkew     time.Duration
	MonthlyBudget int64
}

// PaipuConfig holds the game-record download settings
type PaipuConfig struct {
	MirrorURL   string
	HTTPTimeout time.Duration
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Naga: NagaConfig{
			BaseURL:       getEnv("NAGA_BASE_URL", "https://naga.dmv.nico/naga_report/api"),
			Cookies:       ParseCookies(getEnv("NAGA_COOKIES", "")),
			UseFake:       getEnvAsBool("NAGA_FAKE_API", false),
			FakeDelay:     getEnvAsDuration("NAGA_FAKE_DELAY", 5*time.Second),
			HTTPTimeout:   getEnvAsDuration("NAGA_HTTP_TIMEOUT", 30*time.Second),
			Timeout:       getEnvAsDuration("NAGA_TIMEOUT", 600*time.Second),
			PollInterval:  getEnvAsDuration("NAGA_POLL_INTERVAL", 2*time.Second),
			AckAttempts:   getEnvAsInt("NAGA_ACK_ATTEMPTS", 3),
			ClockSkew:     getEnvAsDuration("NAGA_CLOCK_SKEW", 30*time.Second),
			MonthlyBudget: getEnvAsInt64("NAGA_MONTHLY_BUDGET", 0),
		},
		Paipu: PaipuConfig{
			MirrorURL:   getEnv("PAIPU_MIRROR_URL", ""),
			HTTPTimeout: getEnvAsDuration("PAIPU_HTTP_TIMEOUT", 20*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// ParseCookies reads "name=value; name2=value2" into a map. Malformed pairs are skipped.
func ParseCookies(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Naga.Timeout <= 0 || c.Naga.PollInterval <= 0 {
		return NewAppError("CONFIG_ERROR", "NAGA_TIMEOUT and NAGA_POLL_INTERVAL must be positive", ErrInvalidInput)
	}
	if c.Naga.AckAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "NAGA_ACK_ATTEMPTS must be at least 1", ErrInvalidInput)
	}
	// cookies may also come from the settings table, but partial ones are a mistake
	if !c.Naga.UseFake && len(c.Naga.Cookies) > 0 {
		if err := ValidateCookies(c.Naga.Cookies); err != nil {
			return NewAppError("CONFIG_ERROR", "NAGA_COOKIES is incomplete", err)
		}
	}
	return nil
}
