package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("FUNNEL_DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when FUNNEL_DATABASE_URL is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FUNNEL_DATABASE_URL", "postgres://localhost/funnel")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", c.HTTPAddr)
	}
	if c.Workers != 4 {
		t.Errorf("Workers = %d", c.Workers)
	}
	if c.ArchiveInterval != 10*time.Minute {
		t.Errorf("ArchiveInterval = %v", c.ArchiveInterval)
	}
	if c.ArchiveS3Region != "us-east-1" || c.ArchiveS3Key != "funnel/ledger.jsonl" {
		t.Errorf("archive defaults = %q %q", c.ArchiveS3Region, c.ArchiveS3Key)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FUNNEL_DATABASE_URL", "postgres://localhost/funnel")
	t.Setenv("FUNNEL_HTTP_ADDR", ":9000")
	t.Setenv("FUNNEL_WORKERS", "16")
	t.Setenv("FUNNEL_ARCHIVE_INTERVAL", "1h")
	t.Setenv("FUNNEL_ARCHIVE_S3_BUCKET", "crm-archives")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.HTTPAddr != ":9000" || c.Workers != 16 {
		t.Errorf("config = %+v", c)
	}
	if c.ArchiveInterval != time.Hour || c.ArchiveS3Bucket != "crm-archives" {
		t.Errorf("archive config = %+v", c)
	}
}

func TestLoadRejectsBadWorkers(t *testing.T) {
	t.Setenv("FUNNEL_DATABASE_URL", "postgres://localhost/funnel")
	t.Setenv("FUNNEL_WORKERS", "zero")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric FUNNEL_WORKERS")
	}
}
