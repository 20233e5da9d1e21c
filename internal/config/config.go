// Package config handles application configuration.
package config

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// ScoreWeights is the inter-dimension weighting policy for the overall page
// score. Weights do not need to sum to 1; the engine normalizes them.
type ScoreWeights struct {
	Technical   float64
	Content     float64
	AIReadiness float64
	Performance float64
}

// DefaultScoreWeights returns the weighting used when none is configured.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Technical:   0.30,
		Content:     0.30,
		AIReadiness: 0.25,
		Performance: 0.15,
	}
}

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// Credential encryption (32-byte AES-256-GCM key)
	EncryptionKey []byte

	// Object storage (S3-compatible: raw HTML and performance audits)
	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string

	// Model provider (content-quality judgments)
	ModelProvider string // openai, anthropic, openrouter
	ModelAPIKey   string
	ModelName     string
	ModelBaseURL  string
	ModelTimeout  time.Duration

	// Scoring
	Weights              ScoreWeights
	MinContentWords      int // eligibility threshold for content-quality scoring
	ContentConcurrency   int // parallel content-quality scorings per batch
	AnalyticsConcurrency int // parallel integration fetches during enrichment

	// Background tasks
	TaskTimeout  time.Duration // bounded lifetime per background task
	TaskCapacity int           // max concurrently running background tasks

	// Startup recovery
	StaleJobAge time.Duration // jobs stuck past this are failed at boot

	// OAuth token refresh endpoint (overridable for tests)
	OAuthTokenURL string

	// CORS
	CORSOrigins []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:llmrank.db?_journal=WAL&_timeout=5000"),

		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnv("STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),

		ModelProvider: getEnv("MODEL_PROVIDER", "openrouter"),
		ModelAPIKey:   getEnv("MODEL_API_KEY", ""),
		ModelName:     getEnv("MODEL_NAME", "openai/gpt-4o-mini"),
		ModelBaseURL:  getEnv("MODEL_BASE_URL", ""),
		ModelTimeout:  getEnvDuration("MODEL_TIMEOUT", 60*time.Second),

		MinContentWords:      getEnvInt("MIN_CONTENT_WORDS", 100),
		ContentConcurrency:   getEnvInt("CONTENT_CONCURRENCY", 4),
		AnalyticsConcurrency: getEnvInt("ANALYTICS_CONCURRENCY", 3),

		TaskTimeout:  getEnvDuration("TASK_TIMEOUT", 10*time.Minute),
		TaskCapacity: getEnvInt("TASK_CAPACITY", 16),

		StaleJobAge: getEnvDuration("STALE_JOB_AGE", 1*time.Hour),

		OAuthTokenURL: getEnv("OAUTH_TOKEN_URL", "https://oauth2.googleapis.com/token"),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),
	}

	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	cfg.Weights = ScoreWeights{
		Technical:   getEnvFloat("WEIGHT_TECHNICAL", 0.30),
		Content:     getEnvFloat("WEIGHT_CONTENT", 0.30),
		AIReadiness: getEnvFloat("WEIGHT_AI_READINESS", 0.25),
		Performance: getEnvFloat("WEIGHT_PERFORMANCE", 0.15),
	}
	sum := cfg.Weights.Technical + cfg.Weights.Content + cfg.Weights.AIReadiness + cfg.Weights.Performance
	if sum <= 0 {
		return nil, fmt.Errorf("score weights must sum to a positive value")
	}

	// Encryption key: explicit base64 key, or derived from APP_SECRET
	if encKey := getEnv("ENCRYPTION_KEY", ""); encKey != "" {
		decoded, err := base64.StdEncoding.DecodeString(encKey)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	} else {
		cfg.EncryptionKey = deriveEncryptionKey(getEnv("APP_SECRET", "llmrank-dev-secret"))
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// deriveEncryptionKey creates a 32-byte AES-256 key from the app secret using
// HKDF-SHA256. The salt and info strings bind the key to its purpose.
func deriveEncryptionKey(secret string) []byte {
	salt := []byte("llmrank-encryption-key-v1")
	info := []byte("aes-256-gcm-integration-credentials")

	reader := hkdf.New(sha256.New, []byte(secret), salt, info)
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}
	return key
}
