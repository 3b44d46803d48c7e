// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Blob backends for resource handles.
const (
	BlobBackendMemory = "memory"
	BlobBackendRedis  = "redis"
	BlobBackendMinIO  = "minio"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the display shell HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetPublicBaseURL() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetShellRateLimit() float64
}

// ReportServiceConfig provides settings for talking to the report service.
type ReportServiceConfig interface {
	GetReportServiceURL() string
	GetRequestTimeout() time.Duration
	GetBreakerEnabled() bool
	GetBreakerFailureThreshold() uint32
	GetBreakerOpenTimeout() time.Duration
	GetDedupeInFlight() bool
	GetReportRateLimit() float64
	GetReportRateBurst() int
}

// RedisConfig provides Redis connection settings.
type RedisConfig interface {
	GetRedisURL() string
	IsRedisEnabled() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOBucketReports() string
	GetPresignTTL() time.Duration
	IsMinIOEnabled() bool
}

// ResourceConfig selects and configures the blob backend behind handles.
type ResourceConfig interface {
	RedisConfig
	MinIOConfig
	GetBlobBackend() string
	GetRedisBlobTTL() time.Duration
}

// DeliveryConfig provides settings for the delivery modes.
type DeliveryConfig interface {
	GetDownloadDir() string
	GetDefaultFormat() string
	GetExternalPreviewTTL() time.Duration
	GetOpenBrowser() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	PublicBaseURL           string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	ShellRateLimit          float64
	ReportServiceURL        string
	RequestTimeout          time.Duration
	BreakerEnabled          bool
	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration
	DedupeInFlight          bool
	ReportRateLimit         float64
	ReportRateBurst         int
	BlobBackend             string
	RedisURL                string
	RedisBlobTTL            time.Duration
	MinIOEndpoint           string
	MinIOAccessKey          string
	MinIOSecretKey          string
	MinIOUseSSL             bool
	MinIOBucketReports      string
	PresignTTL              time.Duration
	DownloadDir             string
	DefaultFormat           string
	ExternalPreviewTTL      time.Duration
	OpenBrowser             bool
}

// =============================================================================
// Interface Implementations
// =============================================================================

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string        { return c.HTTPAddr }
func (c *Config) GetPublicBaseURL() string   { return c.PublicBaseURL }
func (c *Config) GetCORSAllowAll() bool      { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string   { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool    { return c.CORSAllowCreds }
func (c *Config) GetShellRateLimit() float64 { return c.ShellRateLimit }

// ReportServiceConfig implementation
func (c *Config) GetReportServiceURL() string          { return c.ReportServiceURL }
func (c *Config) GetRequestTimeout() time.Duration     { return c.RequestTimeout }
func (c *Config) GetBreakerEnabled() bool              { return c.BreakerEnabled }
func (c *Config) GetBreakerFailureThreshold() uint32   { return c.BreakerFailureThreshold }
func (c *Config) GetBreakerOpenTimeout() time.Duration { return c.BreakerOpenTimeout }
func (c *Config) GetDedupeInFlight() bool              { return c.DedupeInFlight }
func (c *Config) GetReportRateLimit() float64          { return c.ReportRateLimit }
func (c *Config) GetReportRateBurst() int              { return c.ReportRateBurst }

// RedisConfig implementation
func (c *Config) GetRedisURL() string  { return c.RedisURL }
func (c *Config) IsRedisEnabled() bool { return c.RedisURL != "" }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string      { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string     { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string     { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool          { return c.MinIOUseSSL }
func (c *Config) GetMinIOBucketReports() string { return c.MinIOBucketReports }
func (c *Config) GetPresignTTL() time.Duration  { return c.PresignTTL }
func (c *Config) IsMinIOEnabled() bool          { return c.MinIOEndpoint != "" }

// ResourceConfig implementation
func (c *Config) GetBlobBackend() string         { return c.BlobBackend }
func (c *Config) GetRedisBlobTTL() time.Duration { return c.RedisBlobTTL }

// DeliveryConfig implementation
func (c *Config) GetDownloadDir() string               { return c.DownloadDir }
func (c *Config) GetDefaultFormat() string             { return c.DefaultFormat }
func (c *Config) GetExternalPreviewTTL() time.Duration { return c.ExternalPreviewTTL }
func (c *Config) GetOpenBrowser() bool                 { return c.OpenBrowser }

// Load reads configuration from environment variables (and .env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	httpAddr := getEnv("HTTP_ADDR", "127.0.0.1:8090")

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                httpAddr,
		PublicBaseURL:           strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://"+httpAddr), "/"),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		ShellRateLimit:          mustFloat(getEnv("SHELL_RATE_LIMIT", "20")),
		ReportServiceURL:        strings.TrimRight(getEnv("REPORT_SERVICE_URL", "http://localhost:8080"), "/"),
		RequestTimeout:          mustDuration(getEnv("REPORT_REQUEST_TIMEOUT", "60s")),
		BreakerEnabled:          strings.EqualFold(getEnv("REPORT_BREAKER_ENABLED", "true"), "true"),
		BreakerFailureThreshold: uint32(mustInt64(getEnv("REPORT_BREAKER_FAILURES", "5"))),
		BreakerOpenTimeout:      mustDuration(getEnv("REPORT_BREAKER_OPEN_TIMEOUT", "30s")),
		DedupeInFlight:          strings.EqualFold(getEnv("REPORT_DEDUPE_INFLIGHT", "false"), "true"),
		ReportRateLimit:         mustFloat(getEnv("REPORT_RATE_LIMIT", "0")),
		ReportRateBurst:         int(mustInt64(getEnv("REPORT_RATE_BURST", "1"))),
		BlobBackend:             strings.ToLower(getEnv("BLOB_BACKEND", BlobBackendMemory)),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisBlobTTL:            mustDuration(getEnv("REDIS_BLOB_TTL", "24h")),
		MinIOEndpoint:           getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:          getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:          getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:             strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOBucketReports:      getEnv("MINIO_BUCKET_REPORTS", "inventory-reports"),
		PresignTTL:              mustDuration(getEnv("MINIO_PRESIGN_TTL", "15m")),
		DownloadDir:             getEnv("DOWNLOAD_DIR", "."),
		DefaultFormat:           strings.ToLower(getEnv("DEFAULT_FORMAT", "pdf")),
		ExternalPreviewTTL:      mustDuration(getEnv("EXTERNAL_PREVIEW_TTL", "30m")),
		OpenBrowser:             strings.EqualFold(getEnv("OPEN_BROWSER", "true"), "true"),
	}

	if cfg.ReportServiceURL == "" {
		return nil, fmt.Errorf("REPORT_SERVICE_URL is required")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REPORT_REQUEST_TIMEOUT must be a positive duration")
	}
	switch cfg.BlobBackend {
	case BlobBackendMemory:
	case BlobBackendRedis:
		if !cfg.IsRedisEnabled() {
			return nil, fmt.Errorf("REDIS_URL is required when BLOB_BACKEND is redis")
		}
	case BlobBackendMinIO:
		if !cfg.IsMinIOEnabled() {
			return nil, fmt.Errorf("MINIO_ENDPOINT is required when BLOB_BACKEND is minio")
		}
	default:
		return nil, fmt.Errorf("BLOB_BACKEND must be one of memory, redis, minio; got %q", cfg.BlobBackend)
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
