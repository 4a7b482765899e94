package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Duplicate hearing policies accepted by DUPLICATE_HEARING_POLICY.
const (
	HearingPolicyReject = "reject"
	HearingPolicySkip   = "skip"
	HearingPolicyUpdate = "update"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host           string
	Port           string
	AllowedOrigins []string

	// Database settings
	StagingDatabasePath string
	MainDatabasePath    string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Cache settings
	CacheSize int
	CacheTTL  time.Duration

	// Registry settings
	RegistryName           string
	DefaultPlaceOfFiling   string
	DuplicateHearingPolicy string
	MaxImportBatch         int

	// Cause list PDF rendering
	PDFExportEnabled bool
	HeadlessMode     bool
	BrowserPath      string
	RenderTimeout    time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:                   getEnv("HOST", "0.0.0.0"),
		Port:                   getEnv("PORT", "10000"),
		StagingDatabasePath:    getEnv("STAGING_DB_PATH", "./data/staging.db"),
		MainDatabasePath:       getEnv("MAIN_DB_PATH", "./data/main.db"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
		RegistryName:           getEnv("REGISTRY_NAME", "Income Tax Appellate Tribunal, Nagpur Bench"),
		DefaultPlaceOfFiling:   strings.ToUpper(getEnv("DEFAULT_PLACE_OF_FILING", "NAG")),
		DuplicateHearingPolicy: strings.ToLower(getEnv("DUPLICATE_HEARING_POLICY", HearingPolicyReject)),
		BrowserPath:            getEnv("ROD_BROWSER_PATH", ""),
	}

	for _, origin := range strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	var err error
	cfg.CacheSize, err = strconv.Atoi(getEnv("CACHE_SIZE", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_SIZE: %w", err)
	}

	cacheTTL, err := strconv.Atoi(getEnv("CACHE_TTL", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = time.Duration(cacheTTL) * time.Minute

	cfg.MaxImportBatch, err = strconv.Atoi(getEnv("MAX_IMPORT_BATCH", "5000"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_IMPORT_BATCH: %w", err)
	}

	renderTimeout, err := strconv.Atoi(getEnv("RENDER_TIMEOUT", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid RENDER_TIMEOUT: %w", err)
	}
	cfg.RenderTimeout = time.Duration(renderTimeout) * time.Second

	cfg.PDFExportEnabled = getEnv("PDF_EXPORT_ENABLED", "false") == "true"
	cfg.HeadlessMode = getEnv("HEADLESS_MODE", "true") == "true"

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that cannot be caught while parsing.
func (c *Config) Validate() error {
	switch c.DuplicateHearingPolicy {
	case HearingPolicyReject, HearingPolicySkip, HearingPolicyUpdate:
	default:
		return fmt.Errorf("invalid DUPLICATE_HEARING_POLICY %q: want reject, skip or update", c.DuplicateHearingPolicy)
	}
	if len(c.DefaultPlaceOfFiling) != 3 {
		return fmt.Errorf("invalid DEFAULT_PLACE_OF_FILING %q: must be a 3 letter code", c.DefaultPlaceOfFiling)
	}
	if c.StagingDatabasePath == c.MainDatabasePath {
		return fmt.Errorf("STAGING_DB_PATH and MAIN_DB_PATH must differ")
	}
	if c.MaxImportBatch <= 0 {
		return fmt.Errorf("invalid MAX_IMPORT_BATCH: must be positive")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
