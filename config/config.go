// Package config loads uploader configuration from the environment and
// hands it over as an explicit value, so nothing below the CLI reads
// environment variables on its own.
package config

import (
	"fmt"
	"strconv"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/docker/go-units"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultConcurrency             = 8
	DefaultChunkSizeBytes          = 10 * 1000 * 1000
	DefaultMultipartThresholdBytes = 5 * 1000 * 1000
)

// Environment variable names.
const (
	regionEnv          = "AWS_REGION"
	accessKeyIDEnv     = "AWS_ACCESS_KEY_ID"
	secretAccessKeyEnv = "AWS_SECRET_ACCESS_KEY"
	bucketEnv          = "BLOBPUT_BUCKET"
	concurrencyEnv     = "BLOBPUT_CONCURRENCY"
	chunkSizeEnv       = "BLOBPUT_CHUNK_SIZE"
	thresholdEnv       = "BLOBPUT_MULTIPART_THRESHOLD"
	cacheControlEnv    = "BLOBPUT_CACHE_CONTROL"
)

// Config ...
type Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Concurrency caps the number of part uploads in flight at once.
	Concurrency int
	// ChunkSizeBytes is the size of one multipart part.
	ChunkSizeBytes int64
	// MultipartThresholdBytes is the file size at which uploads switch from
	// a single PutObject to a multipart session.
	MultipartThresholdBytes int64
	CacheControl            string
}

// Load reads and validates the configuration from envRepo. Size values
// accept either plain byte counts or human-readable values such as "10MB".
func Load(envRepo env.Repository) (Config, error) {
	cfg := Config{
		Region:                  envRepo.Get(regionEnv),
		Bucket:                  envRepo.Get(bucketEnv),
		AccessKeyID:             envRepo.Get(accessKeyIDEnv),
		SecretAccessKey:         envRepo.Get(secretAccessKeyEnv),
		Concurrency:             DefaultConcurrency,
		ChunkSizeBytes:          DefaultChunkSizeBytes,
		MultipartThresholdBytes: DefaultMultipartThresholdBytes,
		CacheControl:            envRepo.Get(cacheControlEnv),
	}

	if cfg.Region == "" {
		return Config{}, fmt.Errorf("%s must not be empty", regionEnv)
	}
	if cfg.Bucket == "" {
		return Config{}, fmt.Errorf("%s must not be empty", bucketEnv)
	}

	if value := envRepo.Get(concurrencyEnv); value != "" {
		concurrency, err := strconv.Atoi(value)
		if err != nil || concurrency < 1 {
			return Config{}, fmt.Errorf("%s: expected a positive integer, got %q", concurrencyEnv, value)
		}
		cfg.Concurrency = concurrency
	}

	chunkSize, err := sizeFromEnv(envRepo, chunkSizeEnv, DefaultChunkSizeBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.ChunkSizeBytes = chunkSize

	threshold, err := sizeFromEnv(envRepo, thresholdEnv, DefaultMultipartThresholdBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.MultipartThresholdBytes = threshold

	return cfg, nil
}

func sizeFromEnv(envRepo env.Repository, key string, fallback int64) (int64, error) {
	value := envRepo.Get(key)
	if value == "" {
		return fallback, nil
	}

	size, err := units.FromHumanSize(value)
	if err != nil || size < 1 {
		return 0, fmt.Errorf("%s: expected a size such as \"10MB\", got %q", key, value)
	}
	return size, nil
}
