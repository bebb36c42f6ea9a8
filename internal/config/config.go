package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// OTP length bounds enforced by Validate. MaxOTPDigits matches the code generator.
const (
	MinOTPDigits = 6
	MaxOTPDigits = 18
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Maps     MapsConfig
	Auth     AuthConfig
	Dispatch DispatchConfig
	Fare     FareConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// MapsConfig holds the distance provider configuration.
type MapsConfig struct {
	APIKey string
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string
}

// DispatchConfig tunes ride broadcast and requester notifications.
type DispatchConfig struct {
	DeliveryTimeout time.Duration
	MaxParallel     int
	SendBuffer      int
	OTPDigits       int
}

// Rate is the pricing of one vehicle class.
type Rate struct {
	Base      float64
	PerKm     float64
	PerMinute float64
}

// FareConfig holds the per-class rate table.
type FareConfig struct {
	Economy  Rate
	Standard Rate
	Premium  Rate
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to read .env: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
			AllowedOrigins:  getListEnv("CORS_ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ride_dispatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "ride-dispatch"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Maps: MapsConfig{
			APIKey: getEnv("GOOGLE_MAPS_API", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Dispatch: DispatchConfig{
			DeliveryTimeout: getDurationEnv("DISPATCH_DELIVERY_TIMEOUT", 2*time.Second),
			MaxParallel:     getIntEnv("DISPATCH_MAX_PARALLEL", 32),
			SendBuffer:      getIntEnv("WS_SEND_BUFFER", 32),
			OTPDigits:       getIntEnv("OTP_DIGITS", 6),
		},
		Fare: FareConfig{
			Economy:  getRateEnv("ECONOMY", Rate{Base: 20, PerKm: 8, PerMinute: 1.5}),
			Standard: getRateEnv("STANDARD", Rate{Base: 30, PerKm: 10, PerMinute: 2}),
			Premium:  getRateEnv("PREMIUM", Rate{Base: 50, PerKm: 15, PerMinute: 3}),
		},
	}
}

// Validate rejects settings the server must not start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if d := c.Dispatch.OTPDigits; d < MinOTPDigits || d > MaxOTPDigits {
		errs = append(errs, fmt.Errorf("OTP_DIGITS must be between %d and %d, got %d", MinOTPDigits, MaxOTPDigits, d))
	}
	if c.Dispatch.DeliveryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_DELIVERY_TIMEOUT must be positive, got %v", c.Dispatch.DeliveryTimeout))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getRateEnv reads FARE_<CLASS>_BASE, FARE_<CLASS>_PER_KM and FARE_<CLASS>_PER_MINUTE.
func getRateEnv(class string, defaultValue Rate) Rate {
	prefix := "FARE_" + class + "_"
	return Rate{
		Base:      getFloatEnv(prefix+"BASE", defaultValue.Base),
		PerKm:     getFloatEnv(prefix+"PER_KM", defaultValue.PerKm),
		PerMinute: getFloatEnv(prefix+"PER_MINUTE", defaultValue.PerMinute),
	}
}
