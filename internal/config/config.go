package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/akarpov/visearch/internal/core/similarity"
)

type Config struct {
	APIPort  string
	LogLevel string

	CohereAPIURL     string
	CohereAPIKey     string
	CohereEmbedModel string
	CohereChatModel  string

	ProviderTimeoutSeconds   int
	ProviderRateLimitRPS     int
	ProviderRateLimitBurst   int
	ProviderRetryMaxAttempts int

	UploadDir        string
	MaxFileSizeBytes int64

	RankTopK         int
	EmbedConcurrency int

	NATSURL     string
	NATSSubject string

	SimilarityWeightsFile string

	MaxConnections int
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		CohereAPIURL:     mustEnv("COHERE_API_URL", "https://api.cohere.ai"),
		CohereAPIKey:     mustEnv("COHERE_API_KEY", ""),
		CohereEmbedModel: mustEnv("COHERE_EMBED_MODEL", "embed-multilingual-v3.0"),
		CohereChatModel:  mustEnv("COHERE_CHAT_MODEL", "command"),

		ProviderTimeoutSeconds:   mustEnvInt("PROVIDER_TIMEOUT_SECONDS", 30),
		ProviderRateLimitRPS:     mustEnvInt("PROVIDER_RATE_LIMIT_RPS", 5),
		ProviderRateLimitBurst:   mustEnvInt("PROVIDER_RATE_LIMIT_BURST", 5),
		ProviderRetryMaxAttempts: mustEnvInt("PROVIDER_RETRY_MAX_ATTEMPTS", 3),

		UploadDir:        mustEnv("UPLOAD_DIR", "./data/uploads"),
		MaxFileSizeBytes: mustEnvInt64("MAX_FILE_SIZE_BYTES", 5<<20),

		RankTopK:         mustEnvInt("RANK_TOP_K", 5),
		EmbedConcurrency: mustEnvInt("EMBED_CONCURRENCY", 4),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "images.stored"),

		SimilarityWeightsFile: mustEnv("SIMILARITY_WEIGHTS_FILE", ""),

		MaxConnections: mustEnvInt("MAX_CONNECTIONS", 256),
	}
}

// Weights returns the multi-method similarity weights: the YAML file
// when configured, the structural-only default otherwise.
func (c Config) Weights() (similarity.Weights, error) {
	if c.SimilarityWeightsFile == "" {
		return similarity.DefaultWeights(), nil
	}

	raw, err := os.ReadFile(c.SimilarityWeightsFile)
	if err != nil {
		return similarity.Weights{}, fmt.Errorf("read weights file: %w", err)
	}
	var weights similarity.Weights
	if err := yaml.Unmarshal(raw, &weights); err != nil {
		return similarity.Weights{}, fmt.Errorf("parse weights file: %w", err)
	}
	return weights, nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
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

func mustEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
