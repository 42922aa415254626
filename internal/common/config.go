package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Imaging    ImagingConfig
	Hashing    HashingConfig
	Forensics  ForensicsConfig
	Risk       RiskConfig
	Extraction ExtractionConfig
	Auth       AuthConfig
	Audit      AuditConfig
	PolicyFile string
	LogLevel   string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string // postgres; takes precedence over SQLitePath
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr  string
	MaxRecvMB int // largest accepted request message
}

// ImagingConfig controls decoding and canonical sizing.
type ImagingConfig struct {
	CanonicalWidth   int
	MaxPixels        int
	HeicConverter    string
	ArtifactCacheDir string
}

// HashingConfig holds perceptual distance thresholds.
type HashingConfig struct {
	SameFileDistance     int
	SameTemplateDistance int
}

// ForensicsConfig controls error-level analysis.
type ForensicsConfig struct {
	Quality         int
	LowThreshold    float64
	MediumThreshold float64
	HighThreshold   float64
}

// RiskConfig holds scoring weights and decision boundaries.
type RiskConfig struct {
	DuplicateWeight         int
	ManipulationWeight      int
	MissingAmountWeight     int
	MissingIdentifierWeight int
	RejectThreshold         int
	ReviewThreshold         int
	TemplateConfidence      int
}

// ExtractionConfig selects and configures the remote extraction service.
type ExtractionConfig struct {
	Provider    string // openai | anthropic | none
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	MaxImageMB  int
}

// AuthConfig configures optional bearer token verification.
type AuthConfig struct {
	OIDCIssuerURL string
	OIDCClientID  string
}

// AuditConfig schedules corpus rescans in the daemon.
type AuditConfig struct {
	Cron string
	Orgs []string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			SQLitePath:       getEnv("SQLITE_PATH", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:  getEnv("GRPC_ADDR", ":8080"),
			MaxRecvMB: getEnvAsInt("GRPC_MAX_RECV_MB", 16),
		},
		Imaging: ImagingConfig{
			CanonicalWidth:   getEnvAsInt("CANONICAL_WIDTH", 800),
			MaxPixels:        getEnvAsInt("MAX_PIXELS", 50_000_000),
			HeicConverter:    getEnv("HEIC_CONVERTER", "magick"),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", ""),
		},
		Hashing: HashingConfig{
			SameFileDistance:     getEnvAsInt("SAME_FILE_DISTANCE", 4),
			SameTemplateDistance: getEnvAsInt("SAME_TEMPLATE_DISTANCE", 12),
		},
		Forensics: ForensicsConfig{
			Quality:         getEnvAsInt("ELA_QUALITY", 90),
			LowThreshold:    getEnvAsFloat64("ELA_LOW_THRESHOLD", 20),
			MediumThreshold: getEnvAsFloat64("ELA_MEDIUM_THRESHOLD", 40),
			HighThreshold:   getEnvAsFloat64("ELA_HIGH_THRESHOLD", 70),
		},
		Risk: RiskConfig{
			DuplicateWeight:         getEnvAsInt("RISK_DUPLICATE_WEIGHT", 100),
			ManipulationWeight:      getEnvAsInt("RISK_MANIPULATION_WEIGHT", 40),
			MissingAmountWeight:     getEnvAsInt("RISK_MISSING_AMOUNT_WEIGHT", 20),
			MissingIdentifierWeight: getEnvAsInt("RISK_MISSING_IDENTIFIER_WEIGHT", 15),
			RejectThreshold:         getEnvAsInt("RISK_REJECT_THRESHOLD", 80),
			ReviewThreshold:         getEnvAsInt("RISK_REVIEW_THRESHOLD", 40),
			TemplateConfidence:      getEnvAsInt("TEMPLATE_MATCH_CONFIDENCE", 50),
		},
		Extraction: ExtractionConfig{
			Provider:    strings.ToLower(getEnv("EXTRACT_PROVIDER", "openai")),
			Model:       getEnv("EXTRACT_MODEL", ""),
			APIKey:      getEnv("EXTRACT_API_KEY", ""),
			BaseURL:     getEnv("EXTRACT_BASE_URL", ""),
			Temperature: getEnvAsFloat32("EXTRACT_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("EXTRACT_TIMEOUT", 20*time.Second),
			MaxImageMB:  getEnvAsInt("EXTRACT_MAX_IMAGE_MB", 10),
		},
		Auth: AuthConfig{
			OIDCIssuerURL: getEnv("OIDC_ISSUER_URL", ""),
			OIDCClientID:  getEnv("OIDC_CLIENT_ID", ""),
		},
		Audit: AuditConfig{
			Cron: getEnv("AUDIT_CRON", ""),
			Orgs: getEnvAsList("AUDIT_ORGS"),
		},
		PolicyFile: getEnv("POLICY_FILE", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" && c.Database.SQLitePath == "" {
		return NewAppError(CodeConfig, "DB_URL or SQLITE_PATH is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxRecvMB <= c.Extraction.MaxImageMB {
		return NewAppError(CodeConfig, "GRPC_MAX_RECV_MB must exceed EXTRACT_MAX_IMAGE_MB", ErrInvalidInput)
	}
	if c.Imaging.CanonicalWidth <= 0 {
		return NewAppError(CodeConfig, "CANONICAL_WIDTH must be positive", ErrInvalidInput)
	}
	if c.Hashing.SameFileDistance < 0 || c.Hashing.SameFileDistance >= c.Hashing.SameTemplateDistance {
		return NewAppError(CodeConfig, "SAME_FILE_DISTANCE must be below SAME_TEMPLATE_DISTANCE", ErrInvalidInput)
	}
	if c.Forensics.Quality < 1 || c.Forensics.Quality > 100 {
		return NewAppError(CodeConfig, "ELA_QUALITY must be within 1..100", ErrInvalidInput)
	}
	if c.Risk.ReviewThreshold >= c.Risk.RejectThreshold {
		return NewAppError(CodeConfig, "RISK_REVIEW_THRESHOLD must be below RISK_REJECT_THRESHOLD", ErrInvalidInput)
	}
	switch c.Extraction.Provider {
	case "openai", "anthropic":
		if c.Extraction.APIKey == "" {
			return NewAppError(CodeConfig, "EXTRACT_API_KEY is required for provider "+c.Extraction.Provider, ErrInvalidInput)
		}
	case "none", "":
	default:
		return NewAppError(CodeConfig, "EXTRACT_PROVIDER must be openai, anthropic or none", ErrInvalidInput)
	}
	return nil
}
