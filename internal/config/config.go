// Package config loads and validates pipeline configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all pipeline configuration.
type Config struct {
	// Text generation settings.
	OpenAIAPIKey string
	TextModel    string
	TextTimeout  time.Duration
	TextWorkers  int // Concurrent text-generation calls per batch.

	// Image generation settings.
	ImageModel       string
	ImageSize        string
	ImageTimeout     time.Duration // Per-attempt timeout; a timeout demotes the item, never the batch.
	ImageMaxAttempts int           // Total generation attempts per recipe, including the first.
	ImageWorkers     int           // Concurrent per-recipe image processing.
	PlaceholderURL   string        // Image reference used when generation is exhausted or fails.

	// Perceptual hash store settings. Exactly one backend is selected:
	// DatabaseURL (Postgres+pgvector), SQLitePath (embedded), QdrantURL,
	// or none (in-memory, non-durable).
	DatabaseURL      string
	SQLitePath       string
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	HashMaxDistance  int // Hamming distance at or under which two hashes are near-duplicates.

	// Durable object storage settings.
	GCSBucket string
	GCSPrefix string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Validation tolerances.
	CalorieTolerance float64 // Fraction of target calories; defaults to the product rule of 15%.
	MacroTolerance   float64 // Grams for protein/carbs/fat; defaults to 10 g.

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		OpenAIAPIKey:     envStr("OPENAI_API_KEY", ""),
		TextModel:        envStr("RECIPEGEN_TEXT_MODEL", "gpt-4o"),
		TextTimeout:      envDuration("RECIPEGEN_TEXT_TIMEOUT", 120*time.Second),
		TextWorkers:      envInt("RECIPEGEN_TEXT_WORKERS", 4),
		ImageModel:       envStr("RECIPEGEN_IMAGE_MODEL", "dall-e-3"),
		ImageSize:        envStr("RECIPEGEN_IMAGE_SIZE", "1024x1024"),
		ImageTimeout:     envDuration("RECIPEGEN_IMAGE_TIMEOUT", 60*time.Second),
		ImageMaxAttempts: envInt("RECIPEGEN_IMAGE_MAX_ATTEMPTS", 3),
		ImageWorkers:     envInt("RECIPEGEN_IMAGE_WORKERS", 4),
		PlaceholderURL:   envStr("RECIPEGEN_PLACEHOLDER_IMAGE_URL", "/images/recipe-placeholder.jpg"),
		DatabaseURL:      envStr("DATABASE_URL", ""),
		SQLitePath:       envStr("RECIPEGEN_SQLITE_PATH", ""),
		QdrantURL:        envStr("QDRANT_URL", ""),
		QdrantAPIKey:     envStr("QDRANT_API_KEY", ""),
		QdrantCollection: envStr("RECIPEGEN_QDRANT_COLLECTION", "recipe_image_hashes"),
		HashMaxDistance:  envInt("RECIPEGEN_HASH_MAX_DISTANCE", 6),
		GCSBucket:        envStr("RECIPEGEN_GCS_BUCKET", ""),
		GCSPrefix:        envStr("RECIPEGEN_GCS_PREFIX", "recipes"),
		OTELEndpoint:     envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:     envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:      envStr("OTEL_SERVICE_NAME", "recipegen"),
		CalorieTolerance: envFloat("RECIPEGEN_CALORIE_TOLERANCE", 0.15),
		MacroTolerance:   envFloat("RECIPEGEN_MACRO_TOLERANCE_GRAMS", 10),
		LogLevel:         envStr("RECIPEGEN_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that configuration values are internally consistent.
func (c Config) Validate() error {
	if c.ImageMaxAttempts < 1 {
		return fmt.Errorf("config: RECIPEGEN_IMAGE_MAX_ATTEMPTS must be at least 1")
	}
	if c.TextWorkers < 1 || c.ImageWorkers < 1 {
		return fmt.Errorf("config: worker counts must be at least 1")
	}
	if c.HashMaxDistance < 0 || c.HashMaxDistance > 64 {
		return fmt.Errorf("config: RECIPEGEN_HASH_MAX_DISTANCE must be between 0 and 64")
	}
	if c.CalorieTolerance < 0 || c.CalorieTolerance >= 1 {
		return fmt.Errorf("config: RECIPEGEN_CALORIE_TOLERANCE must be in [0, 1)")
	}
	if c.MacroTolerance < 0 {
		return fmt.Errorf("config: RECIPEGEN_MACRO_TOLERANCE_GRAMS must be non-negative")
	}
	if c.PlaceholderURL == "" {
		return fmt.Errorf("config: RECIPEGEN_PLACEHOLDER_IMAGE_URL must not be empty")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
