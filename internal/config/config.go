// Package config loads chartvault's runtime configuration from the environment.
package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config holds every tunable chartvault reads at startup. Optional values
// (Redis, auth, cloud credentials) are left empty when unset, and the
// components that consume them degrade to "disabled" rather than erroring.
type Config struct {
	Port        string
	BaseURL     string
	Environment string

	StorageBackend string // fs, memory, s3, azure, gcs
	StoragePath    string // fs backend root
	MaxUploadSize  int64

	S3Bucket   string
	S3Region   string
	S3Endpoint string

	AzureAccount   string
	AzureContainer string

	GCSBucket    string
	GCSProjectID string

	RedisURL      string
	IndexCacheTTL time.Duration

	BasicAuthUser string
	BasicAuthPass string
	JWTSecret     string
}

// Load reads configuration from the environment, loading a .env file first
// if one is present.
func Load() (*Config, error) {
	LoadEnvOnce()

	maxUploadSize, err := strconv.ParseInt(GetEnvWithFallback("MAX_UPLOAD_SIZE", "536870912"), 10, 64) // 512MB default
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
	}

	cacheTTLSeconds, err := strconv.Atoi(GetEnvWithFallback("INDEX_CACHE_TTL_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid INDEX_CACHE_TTL_SECONDS: %w", err)
	}

	return &Config{
		Port:        GetEnvWithFallback("PORT", "8080"),
		BaseURL:     GetEnvWithFallback("BASE_URL", "http://localhost:8080/"),
		Environment: GetEnvWithFallback("ENVIRONMENT", "development"),

		StorageBackend: GetEnvWithFallback("STORAGE_BACKEND", "fs"),
		StoragePath:    GetEnvWithFallback("STORAGE_PATH", "./data"),
		MaxUploadSize:  maxUploadSize,

		S3Bucket:   GetEnvWithFallback("S3_BUCKET", ""),
		S3Region:   GetEnvWithFallback("AWS_REGION", "us-east-1"),
		S3Endpoint: GetEnvWithFallback("S3_ENDPOINT", ""),

		AzureAccount:   GetEnvWithFallback("AZURE_STORAGE_ACCOUNT", ""),
		AzureContainer: GetEnvWithFallback("AZURE_STORAGE_CONTAINER", ""),

		GCSBucket:    GetEnvWithFallback("GCS_BUCKET", ""),
		GCSProjectID: GetEnvWithFallback("GCS_PROJECT_ID", ""),

		RedisURL:      GetEnvWithFallback("REDIS_URL", ""),
		IndexCacheTTL: time.Duration(cacheTTLSeconds) * time.Second,

		BasicAuthUser: GetEnvWithFallback("BASIC_AUTH_USER", ""),
		BasicAuthPass: GetEnvWithFallback("BASIC_AUTH_PASS", ""),
		JWTSecret:     GetEnvWithFallback("JWT_SECRET", ""),
	}, nil
}
