// Package config loads process configuration from environment variables,
// following the teacher's config.ConfigManager role (binding one struct the
// rest of the process reads from) but reduced to the plain env-var surface
// this system actually needs — no encryption at rest, no SMTP/OAuth/admin
// settings, since those concerns don't exist here.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the fully-resolved process configuration.
type Config struct {
	Port        string
	DataDir     string
	TestingData bool

	EmbeddingEndpoint    string
	EmbeddingAPIKey      string
	EmbeddingModel       string
	EmbeddingBatchSize   int
	EmbeddingConcurrency int
	EmbeddingTimeout     time.Duration

	DefaultLeafSize int
}

// Load reads Config from the process environment, applying the defaults
// named in spec §6.
func Load() Config {
	return Config{
		Port:        getEnv("PORT", "8080"),
		DataDir:     getEnv("DATA_DIR", "data"),
		TestingData: getBool("TESTING_DATA", false),

		EmbeddingEndpoint:    getEnv("EMBEDDING_ENDPOINT", "https://api.cohere.ai/v1"),
		EmbeddingAPIKey:      os.Getenv("COHERE_API_KEY"),
		EmbeddingModel:       getEnv("EMBEDDING_MODEL", "embed-english-v3.0"),
		EmbeddingBatchSize:   getInt("EMBEDDING_BATCH_SIZE", 96),
		EmbeddingConcurrency: getInt("EMBEDDING_CONCURRENCY", 4),
		EmbeddingTimeout:     time.Duration(getInt("EMBEDDING_TIMEOUT_SECONDS", 30)) * time.Second,

		DefaultLeafSize: getInt("DEFAULT_LEAF_SIZE", 40),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
