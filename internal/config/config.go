package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL   string // FUNNEL_DATABASE_URL (required)
	HTTPAddr      string // FUNNEL_HTTP_ADDR (default ":8080")
	NATSURL       string // FUNNEL_NATS_URL (optional, empty = no events)
	AuthToken     string // FUNNEL_AUTH_TOKEN (optional, empty = auth disabled)
	ProvidersFile string // FUNNEL_PROVIDERS_FILE (TOML provider chains; empty = mock only)
	Workers       int    // FUNNEL_WORKERS (default 4)

	// Archive settings
	ArchiveInterval   time.Duration // FUNNEL_ARCHIVE_INTERVAL (default 10m; 0 = disabled)
	ArchiveS3Bucket   string        // FUNNEL_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // FUNNEL_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // FUNNEL_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Key      string        // FUNNEL_ARCHIVE_S3_KEY (default "funnel/ledger.jsonl")
	ArchiveGitRepo    string        // FUNNEL_ARCHIVE_GIT_REPO (local clone; enables git when set)
	ArchiveGitFile    string        // FUNNEL_ARCHIVE_GIT_FILE (default "ledger.jsonl")
	ArchiveGitBranch  string        // FUNNEL_ARCHIVE_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:       os.Getenv("FUNNEL_DATABASE_URL"),
		HTTPAddr:          envOrDefault("FUNNEL_HTTP_ADDR", ":8080"),
		NATSURL:           os.Getenv("FUNNEL_NATS_URL"),
		AuthToken:         os.Getenv("FUNNEL_AUTH_TOKEN"),
		ProvidersFile:     os.Getenv("FUNNEL_PROVIDERS_FILE"),
		ArchiveS3Bucket:   os.Getenv("FUNNEL_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("FUNNEL_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("FUNNEL_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Key:      envOrDefault("FUNNEL_ARCHIVE_S3_KEY", "funnel/ledger.jsonl"),
		ArchiveGitRepo:    os.Getenv("FUNNEL_ARCHIVE_GIT_REPO"),
		ArchiveGitFile:    envOrDefault("FUNNEL_ARCHIVE_GIT_FILE", "ledger.jsonl"),
		ArchiveGitBranch:  envOrDefault("FUNNEL_ARCHIVE_GIT_BRANCH", "main"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("FUNNEL_DATABASE_URL is required")
	}

	workersStr := envOrDefault("FUNNEL_WORKERS", "4")
	workers, err := strconv.Atoi(workersStr)
	if err != nil || workers < 1 {
		return nil, fmt.Errorf("FUNNEL_WORKERS: invalid value %q", workersStr)
	}
	c.Workers = workers

	intervalStr := envOrDefault("FUNNEL_ARCHIVE_INTERVAL", "10m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("FUNNEL_ARCHIVE_INTERVAL: %w", err)
		}
		c.ArchiveInterval = d
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
