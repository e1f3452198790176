package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// SplitterConfig controls document loading and the thumbnail view.
type SplitterConfig struct {
	OutputDir         string
	PageWindow        int
	ProgressEvery     int
	RenderScale       float64
	LargeRenderScale  float64
	LargeDocThreshold int
	PlaceholderWidth  int
	PlaceholderHeight int
	ThumbWidth        int
	ThumbHeight       int
	FetchTimeout      time.Duration
	TempMaxAge        time.Duration
	CleanupSchedule   string
	InputRoot         string
}

// ExportConfig controls output file generation.
type ExportConfig struct {
	Prefix           string
	CleanupOnFailure bool
}

// StorageConfig defines optional S3 publication of generated files.
type StorageConfig struct {
	Bucket string
	Prefix string
}

// StoreConfig selects where job status records live.
type StoreConfig struct {
	RedisURL string
	KeyNS    string
	TTL      time.Duration
}

// WebConfig holds dashboard credentials.
type WebConfig struct {
	Username     string
	Password     string
	PasswordHash string
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Server   ServerConfig
	Splitter SplitterConfig
	Export   ExportConfig
	Storage  StorageConfig
	Store    StoreConfig
	Web      WebConfig
}

// LoadDotEnv preloads variables from .env when running outside production.
// A missing file is not an error.
func LoadDotEnv() error {
	env := strings.ToLower(os.Getenv("GO_ENV"))
	if env != "" && env != "development" {
		return nil
	}
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdfsplitter.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdfsplitter",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
	}

	cfg.Splitter = SplitterConfig{
		OutputDir:         getEnv("SPLIT_OUTPUT_DIR", installDir()),
		PageWindow:        parseInt(getEnv("SPLIT_PAGE_WINDOW", "30"), 30),
		ProgressEvery:     parseInt(getEnv("SPLIT_PROGRESS_EVERY", "5"), 5),
		RenderScale:       parseFloat(getEnv("SPLIT_RENDER_SCALE", "0.5"), 0.5),
		LargeRenderScale:  parseFloat(getEnv("SPLIT_LARGE_RENDER_SCALE", "0.3"), 0.3),
		LargeDocThreshold: parseInt(getEnv("SPLIT_LARGE_THRESHOLD", "400"), 400),
		PlaceholderWidth:  parseInt(getEnv("SPLIT_PLACEHOLDER_WIDTH", "150"), 150),
		PlaceholderHeight: parseInt(getEnv("SPLIT_PLACEHOLDER_HEIGHT", "200"), 200),
		ThumbWidth:        parseInt(getEnv("SPLIT_THUMB_WIDTH", "150"), 150),
		ThumbHeight:       parseInt(getEnv("SPLIT_THUMB_HEIGHT", "200"), 200),
		FetchTimeout:      parseDuration(getEnv("SPLIT_FETCH_TIMEOUT", "60s"), 60*time.Second),
		TempMaxAge:        parseDuration(getEnv("SPLIT_TEMP_MAX_AGE", "1h"), time.Hour),
		CleanupSchedule:   getEnv("SPLIT_CLEANUP_SCHEDULE", "@every 1h"),
		InputRoot:         getEnv("SPLIT_INPUT_ROOT", ""),
	}
	if cfg.Splitter.PageWindow <= 0 {
		cfg.Splitter.PageWindow = 30
	}
	if cfg.Splitter.ProgressEvery <= 0 {
		cfg.Splitter.ProgressEvery = 5
	}

	cfg.Export = ExportConfig{
		Prefix:           getEnv("SPLIT_OUTPUT_PREFIX", "Parte"),
		CleanupOnFailure: !parseBool(getEnv("SPLIT_KEEP_PARTIAL", "0")),
	}

	cfg.Storage = StorageConfig{
		Bucket: getEnv("SPLIT_S3_BUCKET", ""),
		Prefix: strings.Trim(getEnv("SPLIT_S3_PREFIX", "splits"), "/"),
	}

	cfg.Store = StoreConfig{
		RedisURL: getEnv("REDIS_URL", ""),
		KeyNS:    getEnv("STATUS_KEY_NS", "split"),
		TTL:      parseDuration(getEnv("STATUS_TTL", "168h"), 7*24*time.Hour),
	}

	cfg.Web = WebConfig{
		Username:     getEnv("WEB_USERNAME", ""),
		Password:     getEnv("WEB_PASSWORD", ""),
		PasswordHash: getEnv("WEB_PASSWORD_HASH", ""),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}

// installDir is the directory holding the running binary; generated files
// land next to it unless SPLIT_OUTPUT_DIR says otherwise.
func installDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
