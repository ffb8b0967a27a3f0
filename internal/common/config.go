package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// OCR engine names accepted in OCR_ENGINE.
const (
	EngineTesseractCLI = "tesseract-cli"
	EngineGosseract    = "gosseract"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	SQLite     SQLiteConfig
	Server     ServerConfig
	OCR        OCRConfig
	Preprocess PreprocessConfig
	Queue      QueueConfig
}

// DatabaseConfig holds Postgres result-sink configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// SQLiteConfig holds the local result-sink path; empty disables it
type SQLiteConfig struct {
	Path string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string
	MetricsAddr string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine           string
	Pdftoppm         string
	Tesseract        string
	Language         string
	TessdataDir      string
	DPI              int
	MaxPages         int
	PSM              int
	HeicConverter    string
	ArtifactCacheDir string
}

// PreprocessConfig holds deskew configuration
type PreprocessConfig struct {
	Deskew      bool
	MinAbsAngle float64
	MaxAbsAngle float64
}

// QueueConfig holds worker pool and job source configuration
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
	WatchDir       string
	Debounce       time.Duration
	RedisAddr      string
	RedisKey       string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", ""),
		},
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		OCR: OCRConfig{
			Engine:           getEnv("OCR_ENGINE", EngineTesseractCLI),
			Pdftoppm:         getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:        getEnv("TESSERACT_BIN", "tesseract"),
			Language:         getEnv("OCR_LANG", "eng"),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			DPI:              getEnvAsInt("OCR_DPI", 300),
			MaxPages:         getEnvAsInt("OCR_MAX_PAGES", 0),
			PSM:              getEnvAsInt("OCR_PSM", 0),
			HeicConverter:    getEnv("HEIC_CONVERTER", "magick"),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
		},
		Preprocess: PreprocessConfig{
			Deskew:      getEnvAsBool("DESKEW", true),
			MinAbsAngle: getEnvAsFloat64("DESKEW_MIN_ANGLE", 0.7),
			MaxAbsAngle: getEnvAsFloat64("DESKEW_MAX_ANGLE", 15),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("WORKERS", 2),
			Size:           getEnvAsInt("QUEUE_SIZE", 64),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 2*time.Minute),
			WatchDir:       getEnv("WATCH_DIR", ""),
			Debounce:       getEnvAsDuration("WATCH_DEBOUNCE", 750*time.Millisecond),
			RedisAddr:      getEnv("REDIS_ADDR", ""),
			RedisKey:       getEnv("REDIS_KEY", "invoice-ocr:jobs"),
		},
	}
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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
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

// Validate checks the settings every binary relies on. Store settings are
// optional; the binaries that need them check DSNs themselves.
func (c *Config) Validate() error {
	v := NewValidator().
		Field("OCR_ENGINE", c.OCR.Engine, Required, OneOf(EngineTesseractCLI, EngineGosseract)).
		Field("OCR_DPI", c.OCR.DPI, Positive).
		Field("OCR_LANG", c.OCR.Language, Required).
		Field("WORKERS", c.Queue.Workers, Positive).
		Field("QUEUE_SIZE", c.Queue.Size, Positive).
		Field("DESKEW_MAX_ANGLE", c.Preprocess.MaxAbsAngle, Between(0, 45)).
		Field("DESKEW_MIN_ANGLE", c.Preprocess.MinAbsAngle, Between(0, c.Preprocess.MaxAbsAngle))
	if err := v.Error(); err != nil {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
